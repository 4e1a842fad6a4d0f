package oauthtypes

import "golang.org/x/oauth2"

// ProviderConfig holds the settings shared by every OAuth provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// SubjectClaim names the claim holding the provider's stable user id.
	SubjectClaim string

	// Endpoint and UserInfoURL override the provider defaults.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// Configured reports whether both client credentials are set.
func (c ProviderConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
