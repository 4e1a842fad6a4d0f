package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type UserService struct {
	uow       domain.UnitOfWork
	publisher domain.EventPublisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewUserService(uow domain.UnitOfWork, publisher domain.EventPublisher, logger logrus.FieldLogger) *UserService {
	if publisher == nil {
		publisher = domain.NopPublisher{}
	}
	return &UserService{
		uow:       uow,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func attribute(principal domain.PrincipalView, key string) string {
	v, ok := principal.Attribute(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// principalEmail extracts the lookup email, falling back to the GitHub login.
func principalEmail(principal domain.PrincipalView, allowLogin bool) (string, error) {
	if principal == nil {
		return "", domain.ErrNotAuthenticated
	}
	email := attribute(principal, domain.ClaimEmail)
	if email == "" && allowLogin {
		email = attribute(principal, "login")
	}
	if email == "" {
		return "", domain.ErrEmailUnavailable
	}
	return domain.NormalizeEmail(email), nil
}

// DetectProvider returns the principal's provider attribute, or guesses it
// from the claim shape when the attribute is missing. It returns "unknown"
// when neither works.
func DetectProvider(principal domain.PrincipalView) string {
	if principal == nil {
		return "unknown"
	}
	if p := attribute(principal, domain.ClaimProvider); p != "" {
		return p
	}
	switch {
	case attribute(principal, "login") != "" && attribute(principal, "avatar_url") != "":
		return domain.ProviderGitHub.Name()
	case attribute(principal, "email") != "" && attribute(principal, "picture") != "":
		return domain.ProviderGoogle.Name()
	}
	return "unknown"
}

// GetProfile returns the user behind principal, creating it on first read.
func (s *UserService) GetProfile(ctx context.Context, principal domain.PrincipalView) (*domain.User, error) {
	email, err := principalEmail(principal, true)
	if err != nil {
		return nil, err
	}

	var (
		user    *domain.User
		created bool
	)
	err = s.uow.Do(ctx, func(repos domain.Repositories) error {
		var err error
		user, err = repos.Users.FindByEmail(ctx, email)
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		name := attribute(principal, "name")
		if name == "" {
			name = attribute(principal, "login")
		}
		picture := attribute(principal, "picture")
		if picture == "" {
			picture = attribute(principal, "avatar_url")
		}
		now := s.now().UTC()
		user = &domain.User{
			Email:       email,
			DisplayName: name,
			AvatarURL:   picture,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.WithField("user_id", user.ID).Info("created user on profile read")
		s.publish(ctx, domain.IdentityEvent{
			Type:       domain.EventUserCreated,
			UserID:     user.ID,
			Email:      user.Email,
			OccurredAt: user.CreatedAt,
		})
	}
	return user, nil
}

// UpdateProfile applies a non-blank, changed display name and a changed bio.
// Nothing is written when neither differs.
func (s *UserService) UpdateProfile(ctx context.Context, principal domain.PrincipalView, update domain.ProfileUpdate) (*domain.User, error) {
	email, err := principalEmail(principal, false)
	if err != nil {
		return nil, err
	}

	var (
		user  *domain.User
		dirty bool
	)
	err = s.uow.Do(ctx, func(repos domain.Repositories) error {
		var err error
		user, err = repos.Users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}

		if update.DisplayName != nil {
			name := strings.TrimSpace(*update.DisplayName)
			if name != "" && name != user.DisplayName {
				user.DisplayName = name
				dirty = true
			}
		}
		if update.Bio != nil {
			bio := strings.TrimSpace(*update.Bio)
			if bio != user.Bio {
				user.Bio = bio
				dirty = true
			}
		}
		if !dirty {
			return nil
		}

		user.UpdatedAt = s.now().UTC()
		return repos.Users.Save(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	if dirty {
		s.publish(ctx, domain.IdentityEvent{
			Type:       domain.EventUserUpdated,
			UserID:     user.ID,
			Email:      user.Email,
			OccurredAt: user.UpdatedAt,
		})
	}
	return user, nil
}

// ListIdentities returns the provider accounts linked to the principal's user.
func (s *UserService) ListIdentities(ctx context.Context, principal domain.PrincipalView) ([]*domain.IdentityLink, error) {
	email, err := principalEmail(principal, false)
	if err != nil {
		return nil, err
	}

	var links []*domain.IdentityLink
	err = s.uow.Do(ctx, func(repos domain.Repositories) error {
		user, err := repos.Users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		links, err = repos.IdentityLinks.ListByUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (s *UserService) publish(ctx context.Context, event domain.IdentityEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Error("failed to publish identity event")
	}
}
