// Package identity classifies principal IDs issued by the external identity
// provider into billing account types.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/iho/marketledger/internal/domain"
)

// StaticResolver implements usecase.PrincipalResolver from configuration.
// The configured platform principal owns the PLATFORM account; every other
// well-formed principal that is not denied is a USER.
type StaticResolver struct {
	platformID string
	denied     map[string]struct{}
}

// NewStaticResolver creates a resolver. denied lists principals that must
// never own an account, such as retired service identities.
func NewStaticResolver(platformID string, denied ...string) *StaticResolver {
	r := &StaticResolver{
		platformID: strings.TrimSpace(platformID),
		denied:     make(map[string]struct{}, len(denied)),
	}
	for _, id := range denied {
		if id = strings.TrimSpace(id); id != "" {
			r.denied[id] = struct{}{}
		}
	}
	return r
}

// PlatformPrincipalID returns the configured platform principal, or "".
func (r *StaticResolver) PlatformPrincipalID() string {
	return r.platformID
}

// Resolve returns the account type for principalID.
func (r *StaticResolver) Resolve(_ context.Context, principalID string) (domain.AccountType, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return "", err
	}

	if _, ok := r.denied[principalID]; ok {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidPrincipal, principalID)
	}

	if r.platformID != "" && principalID == r.platformID {
		return domain.AccountTypePlatform, nil
	}

	return domain.AccountTypeUser, nil
}
