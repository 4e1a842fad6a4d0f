package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/identity/internal/auth/profile"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// sessionAttributes are the provider claims kept in the session token besides
// email, provider and the subject.
var sessionAttributes = []string{"name", "picture", "login", "avatar_url"}

type Claims struct {
	UserID     uuid.UUID         `json:"user_id"`
	Email      string            `json:"email"`
	Provider   string            `json:"provider"`
	NameKey    string            `json:"name_key"`
	Attributes map[string]string `json:"attrs,omitempty"`
	jwt.RegisteredClaims
}

// Principal rebuilds the session principal carried by the token.
func (c *Claims) Principal() (*Principal, error) {
	attrs := make(map[string]any, len(c.Attributes)+3)
	for k, v := range c.Attributes {
		attrs[k] = v
	}
	attrs[domain.ClaimEmail] = c.Email
	attrs[domain.ClaimProvider] = c.Provider
	attrs[c.NameKey] = c.Subject
	return NewPrincipal(&domain.CanonicalClaims{
		Attributes:       attrs,
		NameAttributeKey: c.NameKey,
		UserID:           c.UserID,
	})
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	CookieName string
}

type JWTService interface {
	GenerateToken(principal *Principal) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	Middleware() func(next http.Handler) http.Handler
}

type DefaultJWTService struct {
	config JWTConfig
	now    func() time.Time
}

func NewJWTService(config JWTConfig) *DefaultJWTService {
	return &DefaultJWTService{
		config: config,
		now:    time.Now,
	}
}

// GenerateToken creates a session token for the given principal
func (s *DefaultJWTService) GenerateToken(principal *Principal) (string, error) {
	if principal == nil {
		return "", domain.ErrInvalidPrincipal
	}
	now := s.now()

	attrs := make(map[string]string)
	for _, key := range sessionAttributes {
		if key == principal.NameAttributeKey {
			continue
		}
		if v := profile.Claim(principal.Attributes, key); v != "" {
			attrs[key] = v
		}
	}

	claims := &Claims{
		UserID:     principal.UserID,
		Email:      principal.Email(),
		Provider:   principal.Provider(),
		NameKey:    principal.NameAttributeKey,
		Attributes: attrs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Name(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "identity-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken validates the JWT token and returns the claims
func (s *DefaultJWTService) ValidateToken(tokenString string) (*Claims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Middleware attaches the session principal to the request context when the
// request carries a valid bearer token or session cookie. It never rejects a
// request; handlers decide whether a principal is required.
func (s *DefaultJWTService) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := s.tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := s.ValidateToken(tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := claims.Principal()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func (s *DefaultJWTService) tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if tokenString := strings.TrimPrefix(authHeader, "Bearer "); tokenString != authHeader {
			return strings.TrimSpace(tokenString)
		}
	}
	if s.config.CookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(s.config.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SessionCookie wraps a token in the configured session cookie.
func (s *DefaultJWTService) SessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.config.Expiration),
		MaxAge:   int(s.config.Expiration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the session cookie.
func (s *DefaultJWTService) ClearSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
