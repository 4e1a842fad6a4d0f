package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

func TestNormalizeGoogle(t *testing.T) {
	got, err := Normalize(domain.ProviderGoogle, "sub", map[string]any{
		"sub":     "g1",
		"email":   "A@X.com",
		"name":    "Ann",
		"picture": "p.png",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NormalizedProfile{
		ProviderUserID: "g1",
		Email:          "a@x.com",
		DisplayName:    "Ann",
		AvatarURL:      "p.png",
	}, got)
}

func TestNormalizeGitHubWithoutNameOrEmail(t *testing.T) {
	got, err := Normalize(domain.ProviderGitHub, "id", map[string]any{
		"id":    "42",
		"login": "octo",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NormalizedProfile{
		ProviderUserID: "42",
		Email:          "octo",
		DisplayName:    "octo",
	}, got)
}

func TestNormalizeGitHubKeepsLoginCaseForDisplayName(t *testing.T) {
	got, err := Normalize(domain.ProviderGitHub, "id", map[string]any{
		"id":         float64(583231),
		"login":      "  Octo-Cat ",
		"name":       "   ",
		"avatar_url": "https://avatars.example/u/583231",
	})
	require.NoError(t, err)
	assert.Equal(t, "583231", got.ProviderUserID)
	assert.Equal(t, "octo-cat", got.Email)
	assert.Equal(t, "Octo-Cat", got.DisplayName)
	assert.Equal(t, "https://avatars.example/u/583231", got.AvatarURL)
}

func TestNormalizeGitHubPrefersName(t *testing.T) {
	got, err := Normalize(domain.ProviderGitHub, "id", map[string]any{
		"id":    json.Number("7"),
		"login": "octo",
		"name":  "The Octocat",
	})
	require.NoError(t, err)
	assert.Equal(t, "7", got.ProviderUserID)
	assert.Equal(t, "The Octocat", got.DisplayName)
}

func TestNormalizeDefaultSubjectClaim(t *testing.T) {
	got, err := Normalize(domain.ProviderGoogle, "", map[string]any{"sub": "g2", "email": "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "g2", got.ProviderUserID)

	got, err = Normalize(domain.ProviderGitHub, " ", map[string]any{"id": 9, "login": "nine"})
	require.NoError(t, err)
	assert.Equal(t, "9", got.ProviderUserID)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.Provider
		subject  string
		raw      map[string]any
		want     error
	}{
		{
			name:     "google missing subject",
			provider: domain.ProviderGoogle,
			subject:  "sub",
			raw:      map[string]any{"email": "a@x.com"},
			want:     domain.ErrMissingProviderID,
		},
		{
			name:     "google missing email",
			provider: domain.ProviderGoogle,
			subject:  "sub",
			raw:      map[string]any{"sub": "g1", "name": "Ann"},
			want:     domain.ErrMissingEmail,
		},
		{
			name:     "google blank email",
			provider: domain.ProviderGoogle,
			subject:  "sub",
			raw:      map[string]any{"sub": "g1", "email": "   "},
			want:     domain.ErrMissingEmail,
		},
		{
			name:     "subject checked before email",
			provider: domain.ProviderGoogle,
			subject:  "sub",
			raw:      map[string]any{},
			want:     domain.ErrMissingProviderID,
		},
		{
			name:     "github missing login",
			provider: domain.ProviderGitHub,
			subject:  "id",
			raw:      map[string]any{"id": "42", "email": "octo@example.com"},
			want:     domain.ErrMissingEmail,
		},
		{
			name:     "github null id",
			provider: domain.ProviderGitHub,
			subject:  "id",
			raw:      map[string]any{"id": nil, "login": "octo"},
			want:     domain.ErrMissingProviderID,
		},
		{
			name:     "configured subject claim absent",
			provider: domain.ProviderGitHub,
			subject:  "node_id",
			raw:      map[string]any{"id": "42", "login": "octo"},
			want:     domain.ErrMissingProviderID,
		},
		{
			name:     "unknown provider",
			provider: domain.Provider("VK"),
			subject:  "sub",
			raw:      map[string]any{"sub": "1"},
			want:     domain.ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.provider, tt.subject, tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClaim(t *testing.T) {
	raw := map[string]any{
		"s":    "  x ",
		"f":    float64(42),
		"big":  float64(12345678901),
		"n":    json.Number("17"),
		"i64":  int64(-3),
		"b":    true,
		"null": nil,
	}
	assert.Equal(t, "x", Claim(raw, "s"))
	assert.Equal(t, "42", Claim(raw, "f"))
	assert.Equal(t, "12345678901", Claim(raw, "big"))
	assert.Equal(t, "17", Claim(raw, "n"))
	assert.Equal(t, "-3", Claim(raw, "i64"))
	assert.Equal(t, "true", Claim(raw, "b"))
	assert.Equal(t, "", Claim(raw, "null"))
	assert.Equal(t, "", Claim(raw, "missing"))
}
