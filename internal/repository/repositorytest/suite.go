// Package repositorytest holds behaviour shared by every domain.UnitOfWork
// backend.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

// Run exercises a fresh backend per subtest.
func Run(t *testing.T, newUnitOfWork func(t *testing.T) domain.UnitOfWork) {
	t.Run("create and find user", func(t *testing.T) { testCreateAndFindUser(t, newUnitOfWork(t)) })
	t.Run("duplicate email", func(t *testing.T) { testDuplicateEmail(t, newUnitOfWork(t)) })
	t.Run("save user", func(t *testing.T) { testSaveUser(t, newUnitOfWork(t)) })
	t.Run("identity links", func(t *testing.T) { testIdentityLinks(t, newUnitOfWork(t)) })
	t.Run("rollback on error", func(t *testing.T) { testRollback(t, newUnitOfWork(t)) })
}

var (
	created = time.Date(2024, 3, 1, 9, 30, 0, 125e6, time.UTC)
	later   = created.Add(90 * time.Minute)
)

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func createUser(t *testing.T, uow domain.UnitOfWork, user *domain.User) {
	t.Helper()
	require.NoError(t, uow.Do(context.Background(), func(repos domain.Repositories) error {
		return repos.Users.Create(context.Background(), user)
	}))
}

func testCreateAndFindUser(t *testing.T, uow domain.UnitOfWork) {
	ctx := context.Background()
	user := &domain.User{Email: " Ann@Example.COM ", DisplayName: "Ann", CreatedAt: created, UpdatedAt: created}
	createUser(t, uow, user)
	require.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ann@example.com", user.Email)

	err := uow.Do(ctx, func(repos domain.Repositories) error {
		byEmail, err := repos.Users.FindByEmail(ctx, "ANN@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, "Ann", byEmail.DisplayName)
		assert.Empty(t, byEmail.AvatarURL)
		assert.Empty(t, byEmail.Bio)
		assertSameInstant(t, created, byEmail.CreatedAt)
		assertSameInstant(t, created, byEmail.UpdatedAt)

		byID, err := repos.Users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", byID.Email)

		_, err = repos.Users.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		_, err = repos.Users.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testDuplicateEmail(t *testing.T, uow domain.UnitOfWork) {
	createUser(t, uow, &domain.User{Email: "dup@example.com"})

	err := uow.Do(context.Background(), func(repos domain.Repositories) error {
		return repos.Users.Create(context.Background(), &domain.User{Email: "DUP@example.com"})
	})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
}

func testSaveUser(t *testing.T, uow domain.UnitOfWork) {
	ctx := context.Background()
	user := &domain.User{Email: "bob@example.com", DisplayName: "Bob", Bio: "hi", CreatedAt: created, UpdatedAt: created}
	createUser(t, uow, user)

	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		found, err := repos.Users.FindByID(ctx, user.ID)
		if err != nil {
			return err
		}
		found.DisplayName = "Robert"
		found.AvatarURL = "https://img.example/bob.png"
		found.Bio = ""
		found.UpdatedAt = later
		return repos.Users.Save(ctx, found)
	}))

	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		found, err := repos.Users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Robert", found.DisplayName)
		assert.Equal(t, "https://img.example/bob.png", found.AvatarURL)
		assert.Empty(t, found.Bio)
		assertSameInstant(t, created, found.CreatedAt)
		assertSameInstant(t, later, found.UpdatedAt)

		err = repos.Users.Save(ctx, &domain.User{ID: uuid.New(), UpdatedAt: later})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		return nil
	}))
}

func testIdentityLinks(t *testing.T, uow domain.UnitOfWork) {
	ctx := context.Background()
	user := &domain.User{Email: "carol@example.com"}
	createUser(t, uow, user)

	google := &domain.IdentityLink{
		Provider:       domain.ProviderGoogle,
		ProviderUserID: "g-1",
		ProviderEmail:  "carol@example.com",
		UserID:         user.ID,
		CreatedAt:      created,
	}
	github := &domain.IdentityLink{
		Provider:       domain.ProviderGitHub,
		ProviderUserID: "42",
		UserID:         user.ID,
		CreatedAt:      later,
	}
	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		if err := repos.IdentityLinks.Create(ctx, github); err != nil {
			return err
		}
		return repos.IdentityLinks.Create(ctx, google)
	}))
	assert.NotEqual(t, uuid.Nil, google.ID)

	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		found, err := repos.IdentityLinks.FindByProviderAndID(ctx, domain.ProviderGoogle, "g-1")
		require.NoError(t, err)
		assert.Equal(t, google.ID, found.ID)
		assert.Equal(t, user.ID, found.UserID)
		assert.Equal(t, "carol@example.com", found.ProviderEmail)

		_, err = repos.IdentityLinks.FindByProviderAndID(ctx, domain.ProviderGitHub, "g-1")
		assert.ErrorIs(t, err, domain.ErrIdentityLinkNotFound)

		links, err := repos.IdentityLinks.ListByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, domain.ProviderGoogle, links[0].Provider)
		assert.Equal(t, domain.ProviderGitHub, links[1].Provider)
		assert.Empty(t, links[1].ProviderEmail)

		none, err := repos.IdentityLinks.ListByUser(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))

	other := &domain.User{Email: "mallory@example.com"}
	createUser(t, uow, other)
	err := uow.Do(ctx, func(repos domain.Repositories) error {
		return repos.IdentityLinks.Create(ctx, &domain.IdentityLink{
			Provider:       domain.ProviderGoogle,
			ProviderUserID: "g-1",
			UserID:         other.ID,
		})
	})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
}

var errAbort = errors.New("abort")

func testRollback(t *testing.T, uow domain.UnitOfWork) {
	ctx := context.Background()
	err := uow.Do(ctx, func(repos domain.Repositories) error {
		user := &domain.User{Email: "ghost@example.com"}
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := repos.IdentityLinks.Create(ctx, &domain.IdentityLink{
			Provider:       domain.ProviderGitHub,
			ProviderUserID: "7",
			UserID:         user.ID,
		}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		_, err := repos.Users.FindByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = repos.IdentityLinks.FindByProviderAndID(ctx, domain.ProviderGitHub, "7")
		assert.ErrorIs(t, err, domain.ErrIdentityLinkNotFound)
		return nil
	}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = uow.Do(cancelled, func(repos domain.Repositories) error {
		return repos.Users.Create(cancelled, &domain.User{Email: "late@example.com"})
	})
	require.Error(t, err)
	require.NoError(t, uow.Do(ctx, func(repos domain.Repositories) error {
		_, err := repos.Users.FindByEmail(ctx, "late@example.com")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		return nil
	}))
}
