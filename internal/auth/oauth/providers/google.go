package providers

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/interfaces"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/oauthtypes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer      = "https://accounts.google.com"
	googleCertsURL    = "https://www.googleapis.com/oauth2/v3/certs"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Ensure googleProvider implements interfaces.Provider
var _ interfaces.Provider = (*googleProvider)(nil)

type googleProvider struct {
	config       *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	userInfoURL  string
	subjectClaim string
}

// NewGoogleProvider creates a new Google OAuth provider. ID tokens returned
// by the code exchange are checked with verifier; a nil verifier checks them
// against Google's published signing keys.
func NewGoogleProvider(ctx context.Context, cfg oauthtypes.ProviderConfig, verifier *oidc.IDTokenVerifier) interfaces.Provider {
	scopes := cfg.Scopes
	if scopes == nil {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	subject := cfg.SubjectClaim
	if subject == "" {
		subject = "sub"
	}
	if verifier == nil {
		verifier = oidc.NewVerifier(googleIssuer, oidc.NewRemoteKeySet(ctx, googleCertsURL), &oidc.Config{
			ClientID: cfg.ClientID,
		})
	}

	return &googleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		verifier:     verifier,
		userInfoURL:  userInfoURL,
		subjectClaim: subject,
	}
}

func (g *googleProvider) Name() string {
	return "google"
}

func (g *googleProvider) SubjectClaim() string {
	return g.subjectClaim
}

func (g *googleProvider) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(ctx, code)
}

// FetchClaims prefers the verified ID token and falls back to the userinfo
// endpoint when the exchange did not return one.
func (g *googleProvider) FetchClaims(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return fetchClaims(ctx, g.config.Client(ctx, token), g.userInfoURL)
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return claims, nil
}
