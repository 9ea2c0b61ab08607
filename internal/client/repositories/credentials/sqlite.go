package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, c *models.Credentials) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (id, access_token, user_id, username, expires_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			user_id      = excluded.user_id,
			username     = excluded.username,
			expires_at   = excluded.expires_at
	`, c.AccessToken, c.UserID, c.Username, c.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Load(ctx context.Context) (*models.Credentials, error) {
	var (
		c       models.Credentials
		expires string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, user_id, username, expires_at FROM credentials WHERE id = 1`,
	).Scan(&c.AccessToken, &c.UserID, &c.Username, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	c.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials expiry %q: %w", expires, err)
	}
	return &c, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
