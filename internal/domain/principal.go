package domain

import (
	"context"
	"errors"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

// Role represents a caller's access level
type Role string

const (
	// RoleAdmin may process withdrawals and adjust balances.
	RoleAdmin Role = "admin"

	// RoleService is the purchase system posting distributions and refunds.
	RoleService Role = "service"

	// RoleUser may read its own account and request withdrawals.
	RoleUser Role = "user"
)

var validRoles = map[Role]bool{
	RoleAdmin:   true,
	RoleService: true,
	RoleUser:    true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanAdminister checks if the role may use the administrative API.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}

// CanPostSales checks if the role may distribute earnings and record refunds.
func (r Role) CanPostSales() bool {
	return r == RoleService || r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the caller stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}

// ActorFromContext returns the caller ID or "system" when none is set.
func ActorFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.ID
	}
	return "system"
}
