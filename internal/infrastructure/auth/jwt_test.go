package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/auth"
)

func TestJWTManagerGenerateAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute)

	principal := &domain.Principal{
		ID:    "admin-1",
		Email: "admin@example.com",
		Role:  domain.RoleAdmin,
	}

	token, err := manager.Generate(principal)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	if got := claims.Principal(); *got != *principal {
		t.Fatalf("expected claims to match principal, got %+v", got)
	}
	if claims.Subject != "admin-1" || claims.Issuer != auth.Issuer {
		t.Fatalf("unexpected registered claims %+v", claims.RegisteredClaims)
	}
}

func TestJWTManagerGenerateRejectsBadPrincipals(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	if _, err := manager.Generate(&domain.Principal{Role: domain.RoleUser}); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected missing id to fail, got %v", err)
	}
	if _, err := manager.Generate(&domain.Principal{ID: "x", Role: "viewer"}); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected unknown role to fail, got %v", err)
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	expired, err := manager.GenerateWithTTL(&domain.Principal{ID: "seller-1", Role: domain.RoleUser}, -time.Minute)
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	foreign, err := auth.NewJWTManager("other-secret", time.Minute).Generate(&domain.Principal{ID: "seller-1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("failed to sign foreign token: %v", err)
	}

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		PrincipalID: "seller-1",
		Role:        domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		PrincipalID: "seller-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	mismatchedSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		PrincipalID: "admin-1",
		Role:        domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			Subject:   "seller-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	otherAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, auth.Claims{
		PrincipalID: "seller-1",
		Role:        domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			Subject:   "seller-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "subject differs from principal", token: mismatchedSubject, want: domain.ErrInvalidToken},
		{name: "non-HS256 algorithm", token: otherAlg, want: domain.ErrInvalidToken},
		{name: "expired", token: expired, want: domain.ErrExpiredToken},
		{name: "wrong secret", token: foreign, want: domain.ErrInvalidToken},
		{name: "wrong issuer", token: wrongIssuer, want: domain.ErrInvalidToken},
		{name: "missing role", token: noRole, want: domain.ErrInvalidToken},
		{name: "garbage", token: "not-a-token", want: domain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.Verify(tt.token); !errors.Is(err, tt.want) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}
