package auth

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/identity/internal/auth/profile"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

// Principal is the authenticated subject carried by a session.
type Principal struct {
	Attributes       map[string]any
	NameAttributeKey string
	UserID           uuid.UUID
}

// NewPrincipal builds a session principal from resolved claims. Email,
// provider and the name attribute must all be present.
func NewPrincipal(claims *domain.CanonicalClaims) (*Principal, error) {
	if claims == nil {
		return nil, fmt.Errorf("%w: no claims", domain.ErrInvalidPrincipal)
	}
	p := &Principal{
		Attributes:       maps.Clone(claims.Attributes),
		NameAttributeKey: claims.NameAttributeKey,
		UserID:           claims.UserID,
	}
	if p.Attributes == nil {
		p.Attributes = map[string]any{}
	}
	for _, key := range []string{domain.ClaimEmail, domain.ClaimProvider} {
		if _, ok := p.Attribute(key); !ok {
			return nil, fmt.Errorf("%w: missing %q attribute", domain.ErrInvalidPrincipal, key)
		}
	}
	if p.NameAttributeKey == "" || p.Name() == "" {
		return nil, fmt.Errorf("%w: name attribute %q not present", domain.ErrInvalidPrincipal, p.NameAttributeKey)
	}
	return p, nil
}

// Attribute returns a non-blank attribute rendered as a string.
func (p *Principal) Attribute(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := profile.Claim(p.Attributes, key)
	return v, v != ""
}

// Name is the provider's subject identifier.
func (p *Principal) Name() string {
	v, _ := p.Attribute(p.nameKey())
	return v
}

func (p *Principal) Email() string {
	v, _ := p.Attribute(domain.ClaimEmail)
	return v
}

func (p *Principal) Provider() string {
	v, _ := p.Attribute(domain.ClaimProvider)
	return v
}

func (p *Principal) nameKey() string {
	if p == nil {
		return ""
	}
	return p.NameAttributeKey
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal attached by Middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
