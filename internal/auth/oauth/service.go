package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/interfaces"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/oauthtypes"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/providers"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"golang.org/x/oauth2"
)

// Service handles OAuth authentication flows
type Service struct {
	providers map[string]interfaces.Provider
}

// Config holds OAuth configuration. RedirectURL is a format string with one
// %s verb for the provider name.
type Config struct {
	Google      oauthtypes.ProviderConfig
	GitHub      oauthtypes.ProviderConfig
	RedirectURL string
}

// NewService creates a new OAuth service for every configured provider
func NewService(ctx context.Context, cfg Config) *Service {
	var ps []interfaces.Provider

	// Initialize Google provider if configured
	if cfg.Google.Configured() {
		google := cfg.Google
		google.RedirectURL = fmt.Sprintf(cfg.RedirectURL, "google")
		ps = append(ps, providers.NewGoogleProvider(ctx, google, nil))
	}

	// Initialize GitHub provider if configured
	if cfg.GitHub.Configured() {
		github := cfg.GitHub
		github.RedirectURL = fmt.Sprintf(cfg.RedirectURL, "github")
		ps = append(ps, providers.NewGitHubProvider(github))
	}

	return NewServiceWithProviders(ps...)
}

// NewServiceWithProviders registers the given providers under their names.
func NewServiceWithProviders(ps ...interfaces.Provider) *Service {
	s := &Service{
		providers: make(map[string]interfaces.Provider, len(ps)),
	}
	for _, p := range ps {
		s.providers[p.Name()] = p
	}
	return s
}

// GetProvider returns the provider with the given name
func (s *Service) GetProvider(name string) (interfaces.Provider, error) {
	provider, exists := s.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: oauth provider %s not configured", domain.ErrUnknownProvider, name)
	}
	return provider, nil
}

// GetAuthURL returns the authorization URL for the given provider and state
func (s *Service) GetAuthURL(provider, state string) (string, error) {
	p, err := s.GetProvider(provider)
	if err != nil {
		return "", err
	}

	// Generate a random state if not provided
	if state == "" {
		state, err = GenerateState()
		if err != nil {
			return "", err
		}
	}

	return p.GetAuthURL(state), nil
}

// ExchangeCode exchanges an authorization code for a token
func (s *Service) ExchangeCode(ctx context.Context, provider, code string) (*oauth2.Token, error) {
	p, err := s.GetProvider(provider)
	if err != nil {
		return nil, err
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return token, nil
}

// FetchClaims retrieves the raw claims for the token owner together with the
// name of the claim holding their provider id.
func (s *Service) FetchClaims(ctx context.Context, provider string, token *oauth2.Token) (map[string]any, string, error) {
	p, err := s.GetProvider(provider)
	if err != nil {
		return nil, "", err
	}

	claims, err := p.FetchClaims(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch claims: %w", err)
	}

	return claims, p.SubjectClaim(), nil
}

// GenerateState returns a random, URL-safe OAuth state value
func GenerateState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GetSupportedProviders returns the configured provider names in order
func (s *Service) GetSupportedProviders() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
