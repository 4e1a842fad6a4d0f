package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrIdentityLinkNotFound = errors.New("identity link not found")
	ErrUnknownProvider      = errors.New("unknown identity provider")
)

// Provider enumerates the recognized identity providers.
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

// Providers lists every recognized provider.
var Providers = []Provider{ProviderGoogle, ProviderGitHub}

// ParseProvider maps a registration name such as "google" onto a Provider.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Name returns the lowercase registration name ("google", "github").
func (p Provider) Name() string {
	return strings.ToLower(string(p))
}

// DefaultSubjectClaim is the claim holding the provider's stable user id when
// no explicit claim name is configured.
func (p Provider) DefaultSubjectClaim() string {
	switch p {
	case ProviderGitHub:
		return "id"
	default:
		return "sub"
	}
}

// IdentityLink binds one provider account to exactly one User. The pair
// (Provider, ProviderUserID) is unique system-wide.
type IdentityLink struct {
	ID             uuid.UUID `json:"id"`
	Provider       Provider  `json:"provider"`
	ProviderUserID string    `json:"providerUserId"`
	ProviderEmail  string    `json:"providerEmail"`
	UserID         uuid.UUID `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IdentityLinkRepository defines persistence for identity links.
type IdentityLinkRepository interface {
	// FindByProviderAndID returns ErrIdentityLinkNotFound when absent.
	FindByProviderAndID(ctx context.Context, provider Provider, providerUserID string) (*IdentityLink, error)
	// Create yields ErrConstraintViolation when the pair is already linked.
	Create(ctx context.Context, link *IdentityLink) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*IdentityLink, error)
}
