package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Identity resolution errors. All but ErrConstraintViolation are fatal to a
// login attempt.
var (
	ErrMissingProviderID   = errors.New("provider user id claim missing")
	ErrMissingEmail        = errors.New("provider login identifier missing")
	ErrConstraintViolation = errors.New("uniqueness constraint violated")
	ErrUnverifiedMerge     = errors.New("refusing to merge unverified identity into existing account")
	ErrInvalidPrincipal    = errors.New("invalid authentication principal")
)

// Claim keys guaranteed present in canonical claims.
const (
	ClaimEmail    = "email"
	ClaimProvider = "provider"
)

// NormalizedProfile is the provider-independent view of a login.
type NormalizedProfile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}

// CanonicalClaims is what the resolver hands to the session layer: the
// provider's claims plus normalized email and provider name.
type CanonicalClaims struct {
	Attributes       map[string]any
	NameAttributeKey string
	UserID           uuid.UUID
	IsNewUser        bool
}

// IdentityResolver turns one successful provider authentication into a local
// identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, providerName, subjectClaim string, rawClaims map[string]any) (*CanonicalClaims, error)
}

// Repositories is the set of stores bound to a single unit of work.
type Repositories struct {
	Users         UserRepository
	IdentityLinks IdentityLinkRepository
}

// UnitOfWork runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including on context cancellation.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}
