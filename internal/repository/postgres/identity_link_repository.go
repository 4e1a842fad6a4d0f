package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
)

type identityLinkRepository struct {
	db DBTX
}

func NewIdentityLinkRepository(db DBTX) domain.IdentityLinkRepository {
	return &identityLinkRepository{db: db}
}

func (r *identityLinkRepository) Create(ctx context.Context, link *domain.IdentityLink) error {
	query := `
		INSERT INTO identity_links (id, user_id, provider, provider_user_id, provider_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ID,
		link.UserID,
		string(link.Provider),
		link.ProviderUserID,
		nullString(link.ProviderEmail),
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		return translate(err)
	}

	return nil
}

func (r *identityLinkRepository) FindByProviderAndID(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.IdentityLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, provider_email, created_at
		FROM identity_links
		WHERE provider = $1 AND provider_user_id = $2
	`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, string(provider), providerUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrIdentityLinkNotFound
		}
		return nil, err
	}

	return link, nil
}

func (r *identityLinkRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.IdentityLink, error) {
	query := `
		SELECT id, user_id, provider, provider_user_id, provider_email, created_at
		FROM identity_links
		WHERE user_id = $1
		ORDER BY created_at, provider
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.IdentityLink, error) {
	var (
		link          domain.IdentityLink
		provider      string
		providerEmail sql.NullString
	)
	if err := row.Scan(
		&link.ID,
		&link.UserID,
		&provider,
		&link.ProviderUserID,
		&providerEmail,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}
	link.Provider = domain.Provider(provider)
	link.ProviderEmail = providerEmail.String
	return &link, nil
}
