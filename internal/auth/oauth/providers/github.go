package providers

import (
	"context"

	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/interfaces"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth/oauthtypes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// Ensure githubProvider implements interfaces.Provider
var _ interfaces.Provider = (*githubProvider)(nil)

type githubProvider struct {
	config       *oauth2.Config
	userInfoURL  string
	subjectClaim string
}

// NewGitHubProvider creates a new GitHub OAuth provider
func NewGitHubProvider(cfg oauthtypes.ProviderConfig) interfaces.Provider {
	scopes := cfg.Scopes
	if scopes == nil {
		scopes = []string{"read:user", "user:email"}
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = githubUserURL
	}
	subject := cfg.SubjectClaim
	if subject == "" {
		subject = "id"
	}

	return &githubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL:  userInfoURL,
		subjectClaim: subject,
	}
}

func (g *githubProvider) Name() string {
	return "github"
}

func (g *githubProvider) SubjectClaim() string {
	return g.subjectClaim
}

func (g *githubProvider) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *githubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(ctx, code)
}

// FetchClaims returns the /user document. GitHub does not guarantee a public
// email, so login is the identifier the resolver relies on.
func (g *githubProvider) FetchClaims(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	return fetchClaims(ctx, g.config.Client(ctx, token), g.userInfoURL)
}
