package uploads

import (
	"context"
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

func (r *SQLiteRepository) Save(ctx context.Context, rec models.UploadRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, user_id, object_key, upload_id, local_path, size, part_number, byte_offset, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id     = excluded.user_id,
			object_key  = excluded.object_key,
			upload_id   = excluded.upload_id,
			local_path  = excluded.local_path,
			size        = excluded.size,
			part_number = excluded.part_number,
			byte_offset = excluded.byte_offset,
			updated_at  = excluded.updated_at
	`, rec.ID, rec.UserID, rec.ObjectKey, rec.UploadID, rec.LocalPath, rec.Size, rec.PartNumber, rec.Offset,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save upload %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete upload %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID int64) ([]models.UploadRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, object_key, upload_id, local_path, size, part_number, byte_offset, updated_at
		FROM upload_sessions
		WHERE user_id = ?
		ORDER BY updated_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var result []models.UploadRecord
	for rows.Next() {
		var (
			rec     models.UploadRecord
			updated string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ObjectKey, &rec.UploadID, &rec.LocalPath, &rec.Size,
			&rec.PartNumber, &rec.Offset, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("failed to parse upload %s timestamp: %w", rec.ID, err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload rows: %w", err)
	}
	return result, nil
}
