package interfaces

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider defines the interface that all OAuth providers must implement
type Provider interface {
	// GetAuthURL returns the URL to redirect the user to for authentication
	GetAuthURL(state string) string

	// Exchange exchanges an authorization code for a token
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchClaims returns the provider's raw claim map for the token owner
	FetchClaims(ctx context.Context, token *oauth2.Token) (map[string]any, error)

	// SubjectClaim names the claim that identifies the user at the provider
	SubjectClaim() string

	// Name returns the name of the provider (e.g., "google", "github")
	Name() string
}
