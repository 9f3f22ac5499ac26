package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/marketledger/internal/domain"
)

// Issuer is stamped on every token minted by this service.
const Issuer = "marketledger"

// Claims are the bearer token payload.
type Claims struct {
	PrincipalID string      `json:"principal_id"`
	Email       string      `json:"email,omitempty"`
	Role        domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the caller identity.
func (c *Claims) Principal() *domain.Principal {
	return &domain.Principal{ID: c.PrincipalID, Email: c.Email, Role: c.Role}
}

// JWTManager mints and verifies HS256 bearer tokens.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// Generate mints a token with the default lifetime.
func (m *JWTManager) Generate(p *domain.Principal) (string, error) {
	return m.GenerateWithTTL(p, m.tokenDuration)
}

// GenerateWithTTL generates a token that expires after ttl.
func (m *JWTManager) GenerateWithTTL(p *domain.Principal, ttl time.Duration) (string, error) {
	if p == nil || p.ID == "" {
		return "", fmt.Errorf("%w: principal id is required", domain.ErrInvalidToken)
	}
	if !p.Role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrInvalidToken, p.Role)
	}

	now := time.Now()
	claims := Claims{
		PrincipalID: p.ID,
		Email:       p.Email,
		Role:        p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// clockSkew tolerates small clock drift between the gateway that mints
// tokens and this service.
const clockSkew = 30 * time.Second

// Verify checks the signature, issuer and lifetime of a bearer token. Only
// HS256 is accepted.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(clockSkew),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrExpiredToken
	case err != nil:
		return nil, domain.ErrInvalidToken
	}

	// The subject and the principal claim must agree.
	if claims.PrincipalID == "" || claims.Subject != claims.PrincipalID || !claims.Role.IsValid() {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
