package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type userRepository struct {
	db queryer
}

func NewUserRepository(db queryer) domain.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, display_name, avatar_url, bio, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	user.Email = domain.NormalizeEmail(user.Email)
	user.CreatedAt = fromMillis(toMillis(user.CreatedAt))
	user.UpdatedAt = fromMillis(toMillis(user.UpdatedAt))

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(),
		user.Email,
		nullString(user.DisplayName),
		nullString(user.AvatarURL),
		nullString(user.Bio),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, domain.NormalizeEmail(email)))
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id.String()))
}

func (r *userRepository) Save(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = fromMillis(toMillis(user.UpdatedAt))
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, avatar_url = ?, bio = ?, updated_at = ? WHERE id = ?`,
		nullString(user.DisplayName),
		nullString(user.AvatarURL),
		nullString(user.Bio),
		toMillis(user.UpdatedAt),
		user.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		user                        domain.User
		id                          string
		displayName, avatarURL, bio sql.NullString
		createdAt, updatedAt        int64
	)
	if err := row.Scan(&id, &user.Email, &displayName, &avatarURL, &bio, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	user.ID = parsed
	user.DisplayName = displayName.String
	user.AvatarURL = avatarURL.String
	user.Bio = bio.String
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return &user, nil
}

type identityLinkRepository struct {
	db queryer
}

func NewIdentityLinkRepository(db queryer) domain.IdentityLinkRepository {
	return &identityLinkRepository{db: db}
}

const linkColumns = `id, user_id, provider, provider_user_id, provider_email, created_at`

func (r *identityLinkRepository) Create(ctx context.Context, link *domain.IdentityLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	link.CreatedAt = fromMillis(toMillis(link.CreatedAt))

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identity_links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID.String(),
		link.UserID.String(),
		string(link.Provider),
		link.ProviderUserID,
		nullString(link.ProviderEmail),
		toMillis(link.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert identity link: %w", translate(err))
	}
	return nil
}

func (r *identityLinkRepository) FindByProviderAndID(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.IdentityLink, error) {
	link, err := scanLink(r.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE provider = ? AND provider_user_id = ?`,
		string(provider), providerUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

func (r *identityLinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.IdentityLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE user_id = ? ORDER BY created_at, provider`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.IdentityLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*domain.IdentityLink, error) {
	var (
		link          domain.IdentityLink
		id, userID    string
		provider      string
		providerEmail sql.NullString
		createdAt     int64
	)
	if err := row.Scan(&id, &userID, &provider, &link.ProviderUserID, &providerEmail, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if link.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse identity link id: %w", err)
	}
	if link.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parse identity link user id: %w", err)
	}
	link.Provider = domain.Provider(provider)
	link.ProviderEmail = providerEmail.String
	link.CreatedAt = fromMillis(createdAt)
	return &link, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
