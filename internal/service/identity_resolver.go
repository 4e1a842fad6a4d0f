package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoshapihoff/bricks/identity/internal/auth/profile"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type IdentityResolverOptions struct {
	// TrustGitHubEmailMerge lets a first GitHub login join an existing user
	// that was created through another provider.
	TrustGitHubEmailMerge bool
	Now                   func() time.Time
}

type IdentityResolver struct {
	uow        domain.UnitOfWork
	publisher  domain.EventPublisher
	logger     logrus.FieldLogger
	trustMerge bool
	now        func() time.Time
}

func NewIdentityResolver(uow domain.UnitOfWork, publisher domain.EventPublisher, logger logrus.FieldLogger, opts IdentityResolverOptions) *IdentityResolver {
	if publisher == nil {
		publisher = domain.NopPublisher{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &IdentityResolver{
		uow:        uow,
		publisher:  publisher,
		logger:     logger,
		trustMerge: opts.TrustGitHubEmailMerge,
		now:        now,
	}
}

type resolution struct {
	user   *domain.User
	isNew  bool
	events []domain.IdentityEvent
}

// Resolve finds or creates the local user for one successful provider login,
// links the provider account on first sight and backfills blank profile
// fields. Steps after normalization run in a single unit of work.
func (r *IdentityResolver) Resolve(ctx context.Context, providerName, subjectClaim string, rawClaims map[string]any) (*domain.CanonicalClaims, error) {
	provider, err := domain.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(subjectClaim)
	if subject == "" {
		subject = provider.DefaultSubjectClaim()
	}

	normalized, err := profile.Normalize(provider, subject, rawClaims)
	if err != nil {
		return nil, fmt.Errorf("normalize %s claims: %w", provider.Name(), err)
	}

	log := r.logger.WithFields(logrus.Fields{
		"provider":         provider.Name(),
		"provider_user_id": normalized.ProviderUserID,
	})

	res, err := r.run(ctx, provider, normalized)
	if errors.Is(err, domain.ErrConstraintViolation) {
		log.WithError(err).Warn("concurrent login won the race, re-reading")
		res, err = r.run(ctx, provider, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s identity: %w", provider.Name(), err)
	}

	for _, event := range res.events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			log.WithError(err).WithField("event", event.Type).Error("failed to publish identity event")
		}
	}

	attrs := make(map[string]any, len(rawClaims)+2)
	for k, v := range rawClaims {
		attrs[k] = v
	}
	attrs[domain.ClaimEmail] = normalized.Email
	attrs[domain.ClaimProvider] = provider.Name()

	return &domain.CanonicalClaims{
		Attributes:       attrs,
		NameAttributeKey: subject,
		UserID:           res.user.ID,
		IsNewUser:        res.isNew,
	}, nil
}

func (r *IdentityResolver) run(ctx context.Context, provider domain.Provider, p domain.NormalizedProfile) (*resolution, error) {
	var res *resolution
	err := r.uow.Do(ctx, func(repos domain.Repositories) error {
		var err error
		res, err = r.reconcile(ctx, repos, provider, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *IdentityResolver) reconcile(ctx context.Context, repos domain.Repositories, provider domain.Provider, p domain.NormalizedProfile) (*resolution, error) {
	now := r.now().UTC()
	res := &resolution{}
	log := r.logger.WithFields(logrus.Fields{
		"provider":         provider.Name(),
		"provider_user_id": p.ProviderUserID,
	})

	user, err := repos.Users.FindByEmail(ctx, p.Email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = &domain.User{
			Email:       p.Email,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		res.isNew = true
		res.events = append(res.events, newEvent(domain.EventUserCreated, user, provider, p, now))
		log.WithField("user_id", user.ID).Info("created user")
	case err != nil:
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	res.user = user

	link, err := repos.IdentityLinks.FindByProviderAndID(ctx, provider, p.ProviderUserID)
	switch {
	case errors.Is(err, domain.ErrIdentityLinkNotFound):
		if !res.isNew && provider == domain.ProviderGitHub && !r.trustMerge {
			if err := refuseForeignMerge(ctx, repos, user); err != nil {
				return nil, err
			}
		}
		link = &domain.IdentityLink{
			Provider:       provider,
			ProviderUserID: p.ProviderUserID,
			ProviderEmail:  p.Email,
			UserID:         user.ID,
			CreatedAt:      now,
		}
		if err := repos.IdentityLinks.Create(ctx, link); err != nil {
			return nil, fmt.Errorf("create identity link: %w", err)
		}
		res.events = append(res.events, newEvent(domain.EventIdentityLinked, user, provider, p, now))
		log.WithField("user_id", user.ID).Info("linked identity")
	case err != nil:
		return nil, fmt.Errorf("find identity link: %w", err)
	case link.UserID != user.ID:
		log.WithFields(logrus.Fields{
			"user_id":        user.ID,
			"linked_user_id": link.UserID,
		}).Warn("identity link belongs to a different user than the login email")
	}

	if res.isNew {
		return res, nil
	}

	changed := false
	if domain.IsBlank(user.DisplayName) && !domain.IsBlank(p.DisplayName) {
		user.DisplayName = p.DisplayName
		changed = true
	}
	if domain.IsBlank(user.AvatarURL) && !domain.IsBlank(p.AvatarURL) {
		user.AvatarURL = p.AvatarURL
		changed = true
	}
	if changed {
		user.UpdatedAt = now
		if err := repos.Users.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("save user: %w", err)
		}
		res.events = append(res.events, newEvent(domain.EventUserUpdated, user, provider, p, now))
		log.WithField("user_id", user.ID).Info("filled missing profile fields")
	}

	return res, nil
}

// refuseForeignMerge fails when user is already reachable through a provider
// other than GitHub.
func refuseForeignMerge(ctx context.Context, repos domain.Repositories, user *domain.User) error {
	links, err := repos.IdentityLinks.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list identity links: %w", err)
	}
	for _, l := range links {
		if l.Provider != domain.ProviderGitHub {
			return domain.ErrUnverifiedMerge
		}
	}
	return nil
}

func newEvent(t domain.IdentityEventType, user *domain.User, provider domain.Provider, p domain.NormalizedProfile, at time.Time) domain.IdentityEvent {
	return domain.IdentityEvent{
		Type:           t,
		UserID:         user.ID,
		Email:          user.Email,
		Provider:       provider,
		ProviderUserID: p.ProviderUserID,
		OccurredAt:     at,
	}
}
