package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status code and writes it. Internal errors
// are logged and their details withheld from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(message)
		writeError(w, status, message, "internal error")
		return
	}

	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: err.Error(),
		Field:   domain.FieldOf(err),
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPrincipal):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountSuspended),
		errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrPurchaseConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPlatformAccountMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.NewValidationError("body", nil, fmt.Sprintf("invalid JSON: %v", err))
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// pageParams reads limit and offset. A page parameter (1-based) takes
// precedence over offset. Pages past domain.MaxPageOffset land on the last
// addressable offset.
func pageParams(r *http.Request) (limit, offset int) {
	limit = min(parseIntQuery(r, "limit", 20), domain.MaxPageSize)
	offset = parseIntQuery(r, "offset", 0)
	if page := parseIntQuery(r, "page", 0); page > 0 && limit > 0 {
		if page-1 > domain.MaxPageOffset/limit {
			return limit, domain.MaxPageOffset
		}
		offset = (page - 1) * limit
	}
	return limit, offset
}

// caller returns the authenticated principal or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	return p, true
}
