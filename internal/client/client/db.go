package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/gophdrive/internal/client/migrations"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/uploads"

	_ "modernc.org/sqlite"
)

// Repositories groups the local stores used by the client services.
type Repositories struct {
	DB          *sql.DB
	Credentials credentials.Repository
	Uploads     uploads.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Credentials: credentials.NewSQLiteRepository(db),
		Uploads:     uploads.NewSQLiteRepository(db),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn and migrates it to the latest schema.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}
	return db, nil
}
