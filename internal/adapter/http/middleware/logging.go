package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/marketledger/internal/domain"
)

// LoggingMiddleware logs HTTP requests.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps an http.Handler with logging. Server errors are logged at
// error level and client errors at warn.
func (m *LoggingMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		var principal string
		// Filled by CapturePrincipal.
		next.ServeHTTP(ww, r.WithContext(withPrincipalSink(r.Context(), &principal)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		event := m.logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = m.logger.Error()
		case status >= http.StatusBadRequest:
			event = m.logger.Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", clientIP(r)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("principal_id", principal).
			Msg("request completed")
	})
}

// CapturePrincipal copies the authenticated principal id into the slot set
// up by LoggingMiddleware. It belongs after the authentication middleware.
func CapturePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sink, ok := r.Context().Value(principalSinkKey{}).(*string); ok {
			if p, ok := domain.PrincipalFromContext(r.Context()); ok {
				*sink = p.ID
			}
		}
		next.ServeHTTP(w, r)
	})
}
