package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/yoshapihoff/bricks/identity/internal/auth"
	"github.com/yoshapihoff/bricks/identity/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"github.com/yoshapihoff/bricks/identity/internal/service"
	"golang.org/x/oauth2"
)

const (
	stateCookieName = "oauth_state"
	stateCookiePath = "/auth/oauth"
	stateMaxAge     = 600
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

type ProfileResponse struct {
	*domain.User
	Provider string `json:"provider"`
}

type UpdateProfileResponse struct {
	Status      string `json:"status"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// OAuthFlow is the provider-facing half of the login flow.
type OAuthFlow interface {
	GetSupportedProviders() []string
	GetAuthURL(provider, state string) (string, error)
	ExchangeCode(ctx context.Context, provider, code string) (*oauth2.Token, error)
	FetchClaims(ctx context.Context, provider string, token *oauth2.Token) (map[string]any, string, error)
}

type Config struct {
	LoginSuccessURL string
	LoginFailureURL string
	CookieSecure    bool
}

type AuthHandler struct {
	oauth       OAuthFlow
	resolver    domain.IdentityResolver
	userService domain.UserService
	jwtSvc      *auth.DefaultJWTService
	cfg         Config
	logger      logrus.FieldLogger
}

func NewAuthHandler(
	flow OAuthFlow,
	resolver domain.IdentityResolver,
	userService domain.UserService,
	jwtSvc *auth.DefaultJWTService,
	cfg Config,
	logger logrus.FieldLogger,
) *AuthHandler {
	return &AuthHandler{
		oauth:       flow,
		resolver:    resolver,
		userService: userService,
		jwtSvc:      jwtSvc,
		cfg:         cfg,
		logger:      logger,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")

	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.Use(h.jwtSvc.Middleware())

	// Public routes
	authRouter.HandleFunc("/providers", h.handleProviders).Methods("GET")
	authRouter.HandleFunc("/oauth/{provider}/login", h.handleOAuthLogin).Methods("GET")
	authRouter.HandleFunc("/oauth/{provider}/callback", h.handleOAuthCallback).Methods("GET")
	authRouter.HandleFunc("/logout", h.handleLogout).Methods("POST")

	// Principal-scoped routes; the service reports missing authentication
	authRouter.HandleFunc("/me", h.handleGetProfile).Methods("GET")
	authRouter.HandleFunc("/me", h.handleUpdateProfile).Methods("POST")
	authRouter.HandleFunc("/me/identities", h.handleListIdentities).Methods("GET")
}

func (h *AuthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) handleProviders(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, &ProvidersResponse{Providers: h.oauth.GetSupportedProviders()})
}

func (h *AuthHandler) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	state, err := oauth.GenerateState()
	if err != nil {
		h.handleError(w, err)
		return
	}
	authURL, err := h.oauth.GetAuthURL(provider, state)
	if err != nil {
		h.handleError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	query := r.URL.Query()
	log := h.logger.WithField("provider", provider)

	// The state cookie is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if providerErr := query.Get("error"); providerErr != "" {
		log.WithField("error", providerErr).Warn("provider denied authorization")
		h.redirectFailure(w, r, "access_denied")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		log.Warn("oauth state mismatch")
		h.redirectFailure(w, r, "invalid_state")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectFailure(w, r, "missing_code")
		return
	}

	token, err := h.oauth.ExchangeCode(r.Context(), provider, code)
	if err != nil {
		log.WithError(err).Warn("code exchange failed")
		h.redirectFailure(w, r, failureCode(err))
		return
	}

	rawClaims, subjectClaim, err := h.oauth.FetchClaims(r.Context(), provider, token)
	if err != nil {
		log.WithError(err).Warn("fetching provider claims failed")
		h.redirectFailure(w, r, failureCode(err))
		return
	}

	claims, err := h.resolver.Resolve(r.Context(), provider, subjectClaim, rawClaims)
	if err != nil {
		log.WithError(err).Warn("identity resolution failed")
		h.redirectFailure(w, r, failureCode(err))
		return
	}

	principal, err := auth.NewPrincipal(claims)
	if err != nil {
		log.WithError(err).Error("resolved claims do not form a principal")
		h.redirectFailure(w, r, failureCode(err))
		return
	}

	sessionToken, err := h.jwtSvc.GenerateToken(principal)
	if err != nil {
		log.WithError(err).Error("issuing session token failed")
		h.redirectFailure(w, r, "authentication_failed")
		return
	}

	log.WithFields(logrus.Fields{
		"user_id":  principal.UserID,
		"new_user": claims.IsNewUser,
	}).Info("login succeeded")

	http.SetCookie(w, h.jwtSvc.SessionCookie(sessionToken, h.cfg.CookieSecure))
	http.Redirect(w, r, h.cfg.LoginSuccessURL, http.StatusFound)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.jwtSvc.ClearSessionCookie(h.cfg.CookieSecure))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal := principalView(r)

	user, err := h.userService.GetProfile(r.Context(), principal)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, &ProfileResponse{
		User:     user,
		Provider: service.DetectProvider(principal),
	})
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, &ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), principalView(r), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, &UpdateProfileResponse{
		Status:      "updated",
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
	})
}

func (h *AuthHandler) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	links, err := h.userService.ListIdentities(r.Context(), principalView(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	if links == nil {
		links = []*domain.IdentityLink{}
	}

	h.respondWithJSON(w, http.StatusOK, links)
}

// principalView returns the request's principal, or a nil interface for
// anonymous requests.
func principalView(r *http.Request) domain.PrincipalView {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	return p
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	target, err := url.Parse(h.cfg.LoginFailureURL)
	if err != nil || h.cfg.LoginFailureURL == "" {
		target = &url.URL{Path: "/"}
	}
	q := target.Query()
	q.Set("error", code)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// failureCode maps a login failure onto the short code shown by the login page.
func failureCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, domain.ErrMissingProviderID):
		return "missing_provider_id"
	case errors.Is(err, domain.ErrMissingEmail):
		return "missing_email"
	case errors.Is(err, domain.ErrUnverifiedMerge):
		return "unverified_merge"
	default:
		return "authentication_failed"
	}
}

func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.WithError(err).Error("failed to encode response")
		}
	}
}

func (h *AuthHandler) handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		status, message = http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, domain.ErrEmailUnavailable):
		status, message = http.StatusBadRequest, "Email not found"
	case errors.Is(err, domain.ErrUserNotFound):
		status, message = http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrUnknownProvider):
		status, message = http.StatusNotFound, err.Error()
	default:
		h.logger.WithError(err).Error("request failed")
	}

	h.respondWithJSON(w, status, &ErrorResponse{Error: message})
}
