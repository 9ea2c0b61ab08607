// Package uploads is the on-disk journal of multipart uploads in progress.
//
// A row is written after every acknowledged part and removed when the
// upload completes, fails or is aborted. Rows left behind by a crash are
// picked up when their owner next logs in so the server-side sessions can be
// aborted.
package uploads

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

// Repository describes the journal operations used by the upload orchestrator.
type Repository interface {
	// Save inserts the record or overwrites the one with the same ID.
	Save(ctx context.Context, rec models.UploadRecord) error

	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the records of userID, oldest update first.
	List(ctx context.Context, userID int64) ([]models.UploadRecord, error)
}
