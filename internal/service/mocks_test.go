package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockUserRepository) Save(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

type mockIdentityLinkRepository struct {
	mock.Mock
}

func (m *mockIdentityLinkRepository) FindByProviderAndID(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.IdentityLink, error) {
	args := m.Called(ctx, provider, providerUserID)
	link, _ := args.Get(0).(*domain.IdentityLink)
	return link, args.Error(1)
}

func (m *mockIdentityLinkRepository) Create(ctx context.Context, link *domain.IdentityLink) error {
	return m.Called(ctx, link).Error(0)
}

func (m *mockIdentityLinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.IdentityLink, error) {
	args := m.Called(ctx, userID)
	links, _ := args.Get(0).([]*domain.IdentityLink)
	return links, args.Error(1)
}

// fakeUnitOfWork hands the same mock repositories to every unit of work and
// counts how many were started.
type fakeUnitOfWork struct {
	repos domain.Repositories
	runs  int
}

func (f *fakeUnitOfWork) Do(_ context.Context, fn func(repos domain.Repositories) error) error {
	f.runs++
	return fn(f.repos)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.IdentityEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.IdentityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.IdentityEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.IdentityEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type attrs map[string]string

func (a attrs) Attribute(key string) (string, bool) {
	v, ok := a[key]
	return v, ok
}
