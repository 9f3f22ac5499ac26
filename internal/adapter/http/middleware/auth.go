package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/auth"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
)

const (
	// PrincipalIDHeader carries the caller identity when token auth is disabled.
	PrincipalIDHeader = "X-Principal-ID"
	// PrincipalRoleHeader carries the caller role when token auth is disabled.
	PrincipalRoleHeader = "X-Principal-Role"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer token and stores its principal in
// the request context.
func Authenticate(verifier TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				authFailed(w, m, "missing_token", "missing authorization header")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				authFailed(w, m, "malformed_header", "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, domain.ErrExpiredToken) {
					reason = "expired_token"
				}
				authFailed(w, m, reason, "invalid or expired token")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HeaderIdentity trusts the identity headers set by an upstream gateway.
// The role defaults to user.
func HeaderIdentity(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(PrincipalIDHeader))
			if id == "" {
				authFailed(w, m, "missing_identity", "missing "+PrincipalIDHeader+" header")
				return
			}

			role := domain.RoleUser
			if raw := r.Header.Get(PrincipalRoleHeader); raw != "" {
				role = domain.Role(strings.ToLower(strings.TrimSpace(raw)))
			}
			if !role.IsValid() {
				authFailed(w, m, "invalid_role", "unknown role")
				return
			}

			ctx := domain.WithPrincipal(r.Context(), &domain.Principal{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require lets the request through only when allowed reports true for the
// caller's role, e.g. Require(domain.Role.CanAdminister).
func Require(allowed func(domain.Role) bool, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := domain.PrincipalFromContext(r.Context())
			if !ok {
				authFailed(w, m, "missing_identity", "authentication required")
				return
			}
			if !allowed(p.Role) {
				if m != nil {
					m.AuthFailures.WithLabelValues("forbidden").Inc()
				}
				writeError(w, http.StatusForbidden, "forbidden", domain.ErrInsufficientRole.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func authFailed(w http.ResponseWriter, m *metrics.Metrics, reason, message string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message, Message: details})
}
