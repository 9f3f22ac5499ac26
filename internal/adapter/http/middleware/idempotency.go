package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayHeader marks a response served from the idempotency store.
	ReplayHeader = "X-Idempotency-Replay"

	// DefaultIdempotencyTTL is how long a completed response is replayed.
	DefaultIdempotencyTTL = 24 * time.Hour

	pendingMarker = "processing"
	maxKeyLength  = 255
)

// storedResponse is the replayable part of a completed response.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the first successful response for a
// repeated Idempotency-Key. Keys are scoped to the caller, method and path.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. A zero ttl
// uses DefaultIdempotencyTTL.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLength {
			writeError(w, http.StatusBadRequest, "invalid idempotency key", "key is too long")
			return
		}

		scoped := scopedKey(r, key)
		exists, cached, err := m.store.CheckAndSet(r.Context(), scoped, nil, m.ttl)
		if err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("idempotency check failed")
			writeError(w, http.StatusInternalServerError, "idempotency check failed", "")
			return
		}

		if exists {
			if cached == nil || string(cached) == pendingMarker {
				writeError(w, http.StatusConflict, "request in progress", "a request with this idempotency key is still being processed")
				return
			}
			replay(w, cached)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		ctx := context.WithoutCancel(r.Context())
		status := recorder.status()
		if status < 200 || status >= 300 {
			if err := m.store.Release(ctx, scoped); err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to release idempotency key")
			}
			return
		}

		payload, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		})
		if err == nil {
			err = m.store.Update(ctx, scoped, payload, m.ttl)
		}
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to store idempotent response")
		}
	})
}

// scopedKey keeps two callers, or two endpoints, from sharing a key.
func scopedKey(r *http.Request, key string) string {
	principal := "anonymous"
	if p, ok := domain.PrincipalFromContext(r.Context()); ok {
		principal = p.ID
	}
	return principal + ":" + r.Method + ":" + r.URL.Path + ":" + key
}

func replay(w http.ResponseWriter, cached []byte) {
	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil || stored.Status == 0 {
		stored = storedResponse{Status: http.StatusOK, Body: cached}
	}
	if stored.ContentType == "" {
		stored.ContentType = "application/json"
	}

	w.Header().Set("Content-Type", stored.ContentType)
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.statusCode == 0 {
		r.statusCode = statusCode
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) status() int {
	if r.statusCode == 0 {
		return http.StatusOK
	}
	return r.statusCode
}
