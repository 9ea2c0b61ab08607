// Package credentials persists the single login record of the client.
//
// At most one row exists at a time: saving replaces whatever was stored,
// and Load reports (nil, nil) when nobody is logged in.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
)

// Repository stores and erases the client's credentials.
type Repository interface {
	Save(ctx context.Context, c *models.Credentials) error
	Load(ctx context.Context) (*models.Credentials, error)
	Clear(ctx context.Context) error
}
