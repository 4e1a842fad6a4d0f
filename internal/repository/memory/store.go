// Package memory is an in-process store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type linkKey struct {
	provider       domain.Provider
	providerUserID string
}

type state struct {
	users   map[uuid.UUID]domain.User
	byEmail map[string]uuid.UUID
	links   map[linkKey]domain.IdentityLink
}

func (s *state) clone() *state {
	return &state{
		users:   maps.Clone(s.users),
		byEmail: maps.Clone(s.byEmail),
		links:   maps.Clone(s.links),
	}
}

// Store keeps users and identity links in memory. Units of work are
// serialized and apply their changes only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: &state{
		users:   make(map[uuid.UUID]domain.User),
		byEmail: make(map[string]uuid.UUID),
		links:   make(map[linkKey]domain.IdentityLink),
	}}
}

func (s *Store) Do(ctx context.Context, fn func(repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.state.clone()
	if err := fn(domain.Repositories{
		Users:         &userRepository{state: staged},
		IdentityLinks: &identityLinkRepository{state: staged},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = staged
	return nil
}

type userRepository struct {
	state *state
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	id, ok := r.state.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := r.state.users[id]
	return &user, nil
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := r.state.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	email := domain.NormalizeEmail(user.Email)
	if _, ok := r.state.byEmail[email]; ok {
		return fmt.Errorf("%w: users.email", domain.ErrConstraintViolation)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.state.users[user.ID]; ok {
		return fmt.Errorf("%w: users.id", domain.ErrConstraintViolation)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.Email = email

	r.state.users[user.ID] = *user
	r.state.byEmail[email] = user.ID
	return nil
}

func (r *userRepository) Save(_ context.Context, user *domain.User) error {
	stored, ok := r.state.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	stored.DisplayName = user.DisplayName
	stored.AvatarURL = user.AvatarURL
	stored.Bio = user.Bio
	stored.UpdatedAt = user.UpdatedAt
	r.state.users[user.ID] = stored
	return nil
}

type identityLinkRepository struct {
	state *state
}

func (r *identityLinkRepository) FindByProviderAndID(_ context.Context, provider domain.Provider, providerUserID string) (*domain.IdentityLink, error) {
	link, ok := r.state.links[linkKey{provider, providerUserID}]
	if !ok {
		return nil, domain.ErrIdentityLinkNotFound
	}
	return &link, nil
}

func (r *identityLinkRepository) Create(_ context.Context, link *domain.IdentityLink) error {
	key := linkKey{link.Provider, link.ProviderUserID}
	if _, ok := r.state.links[key]; ok {
		return fmt.Errorf("%w: identity_links.provider_user", domain.ErrConstraintViolation)
	}
	if _, ok := r.state.users[link.UserID]; !ok {
		return fmt.Errorf("identity link references unknown user %s: %w", link.UserID, domain.ErrUserNotFound)
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	r.state.links[key] = *link
	return nil
}

func (r *identityLinkRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.IdentityLink, error) {
	var links []*domain.IdentityLink
	for _, link := range r.state.links {
		if link.UserID == userID {
			l := link
			links = append(links, &l)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].Provider < links[j].Provider
	})
	return links, nil
}
