// Package profile maps provider claim sets onto the canonical profile shape.
package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

// claimSet is implemented by each provider's typed view of its raw claims.
type claimSet interface {
	profile() (domain.NormalizedProfile, error)
}

type googleClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

func (c googleClaims) profile() (domain.NormalizedProfile, error) {
	if c.Subject == "" {
		return domain.NormalizedProfile{}, fmt.Errorf("%w: google", domain.ErrMissingProviderID)
	}
	if c.Email == "" {
		return domain.NormalizedProfile{}, fmt.Errorf("%w: google email claim", domain.ErrMissingEmail)
	}
	return domain.NormalizedProfile{
		ProviderUserID: c.Subject,
		Email:          domain.NormalizeEmail(c.Email),
		DisplayName:    c.Name,
		AvatarURL:      c.Picture,
	}, nil
}

type githubClaims struct {
	ID        string
	Login     string
	Name      string
	AvatarURL string
}

// GitHub does not guarantee a public email, so the login doubles as the
// matching key.
func (c githubClaims) profile() (domain.NormalizedProfile, error) {
	if c.ID == "" {
		return domain.NormalizedProfile{}, fmt.Errorf("%w: github", domain.ErrMissingProviderID)
	}
	if c.Login == "" {
		return domain.NormalizedProfile{}, fmt.Errorf("%w: github login claim", domain.ErrMissingEmail)
	}
	displayName := c.Name
	if displayName == "" {
		displayName = c.Login
	}
	return domain.NormalizedProfile{
		ProviderUserID: c.ID,
		Email:          domain.NormalizeEmail(c.Login),
		DisplayName:    displayName,
		AvatarURL:      c.AvatarURL,
	}, nil
}

// Normalize builds a NormalizedProfile from a provider's raw claims.
// subjectClaim names the claim carrying the provider user id; an empty value
// selects the provider default.
func Normalize(provider domain.Provider, subjectClaim string, raw map[string]any) (domain.NormalizedProfile, error) {
	if strings.TrimSpace(subjectClaim) == "" {
		subjectClaim = provider.DefaultSubjectClaim()
	}

	var claims claimSet
	switch provider {
	case domain.ProviderGoogle:
		claims = googleClaims{
			Subject: Claim(raw, subjectClaim),
			Email:   Claim(raw, "email"),
			Name:    Claim(raw, "name"),
			Picture: Claim(raw, "picture"),
		}
	case domain.ProviderGitHub:
		claims = githubClaims{
			ID:        Claim(raw, subjectClaim),
			Login:     Claim(raw, "login"),
			Name:      Claim(raw, "name"),
			AvatarURL: Claim(raw, "avatar_url"),
		}
	default:
		return domain.NormalizedProfile{}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, provider)
	}
	return claims.profile()
}

// Claim renders a claim value as a trimmed string. Absent, null and blank
// values all yield "".
func Claim(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case uint64:
		s = strconv.FormatUint(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return strings.TrimSpace(s)
}
