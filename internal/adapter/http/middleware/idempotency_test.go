package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/iho/marketledger/internal/domain"
)

type fakeIdempotencyStore struct {
	mu            sync.Mutex
	checkAndSetFn func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	updateFn      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	released      []string
	claimed       []string
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	f.mu.Lock()
	f.claimed = append(f.claimed, key)
	f.mu.Unlock()
	if f.checkAndSetFn != nil {
		return f.checkAndSetFn(ctx, key, response, ttl)
	}
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, key, response, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, key)
	return nil
}

func idempotentRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/withdrawals/request", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req.WithContext(domain.WithPrincipal(req.Context(), &domain.Principal{ID: "seller-1", Role: domain.RoleUser}))
}

func TestIdempotencyMiddleware_FailsClosedOnStoreErrors(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	mw := NewIdempotencyMiddleware(store, 0)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, idempotentRequest("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	var updated bool
	store := &fakeIdempotencyStore{
		updateFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updated = true
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Hour)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})).ServeHTTP(rr, idempotentRequest("key-fail"))

	if updated {
		t.Fatalf("expected error responses not to be cached")
	}
	if len(store.released) != 1 || store.released[0] != store.claimed[0] {
		t.Fatalf("expected claimed key to be released, claimed=%v released=%v", store.claimed, store.released)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := &fakeIdempotencyStore{}
	mw := NewIdempotencyMiddleware(store, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/billing/my-account", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-get")
	rr := httptest.NewRecorder()

	called := false
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
	if len(store.claimed) != 0 {
		t.Fatalf("expected no claim for GET, got %v", store.claimed)
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	stored, _ := json.Marshal(storedResponse{Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"cached":true}`)})
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return true, stored, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, 0)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called when cached response exists")
	})).ServeHTTP(rr, idempotentRequest("key-123"))

	if rr.Header().Get(ReplayHeader) != "true" {
		t.Fatalf("expected %s header to be set", ReplayHeader)
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected original status 201, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"cached":true}` {
		t.Fatalf("unexpected cached body: %s", got)
	}
}

func TestIdempotencyMiddleware_ConflictWhileInFlight(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return true, []byte(pendingMarker), nil
		},
	}
	mw := NewIdempotencyMiddleware(store, 0)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run while the first request is in flight")
	})).ServeHTTP(rr, idempotentRequest("key-busy"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	var updatedBody []byte
	var updatedTTL time.Duration
	store := &fakeIdempotencyStore{
		updateFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updatedBody = append([]byte(nil), response...)
			updatedTTL = ttl
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, 2*time.Hour)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, idempotentRequest("key-456"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	var stored storedResponse
	if err := json.Unmarshal(updatedBody, &stored); err != nil {
		t.Fatalf("stored payload is not an envelope: %v", err)
	}
	if stored.Status != http.StatusCreated || string(stored.Body) != `{"ok":true}` {
		t.Fatalf("unexpected stored response %+v", stored)
	}
	if updatedTTL != 2*time.Hour {
		t.Fatalf("expected configured ttl, got %s", updatedTTL)
	}
}

func TestIdempotencyMiddleware_ScopesKeysPerCaller(t *testing.T) {
	store := &fakeIdempotencyStore{}
	mw := NewIdempotencyMiddleware(store, 0)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	first := idempotentRequest("shared")
	second := idempotentRequest("shared")
	second = second.WithContext(domain.WithPrincipal(second.Context(), &domain.Principal{ID: "seller-2", Role: domain.RoleUser}))

	mw.Wrap(next).ServeHTTP(httptest.NewRecorder(), first)
	mw.Wrap(next).ServeHTTP(httptest.NewRecorder(), second)

	if len(store.claimed) != 2 || store.claimed[0] == store.claimed[1] {
		t.Fatalf("expected distinct keys per caller, got %v", store.claimed)
	}
}
