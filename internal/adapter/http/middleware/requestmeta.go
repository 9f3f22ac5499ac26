package middleware

import (
	"net"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/iho/marketledger/internal/domain"
)

// RequestMeta records the client address, user agent and request id for the
// audit trail. It must run after chi's RequestID middleware.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(chimw.RequestIDHeader, reqID)
		}

		ctx := domain.WithRequestMeta(r.Context(), domain.RequestMeta{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: reqID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP returns the originating client address. Only the first entry of
// X-Forwarded-For is used.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
