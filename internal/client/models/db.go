package models

import "time"

// Credentials is the persisted login state of the client.
type Credentials struct {
	AccessToken string
	UserID      int64
	Username    string

	// ExpiresAt is when the stored credentials stop being used, independent
	// of the token's own lifetime.
	ExpiresAt time.Time
}

// Expired reports whether the credentials are no longer usable at now.
func (c *Credentials) Expired(now time.Time) bool {
	return c == nil || c.AccessToken == "" || !now.Before(c.ExpiresAt)
}

// UploadRecord is the journal row of a multipart upload in progress.
type UploadRecord struct {
	// ID is the client-side session identifier.
	ID string

	// UserID owns the storage the upload goes to.
	UserID int64

	ObjectKey string
	UploadID  string
	LocalPath string
	Size      int64

	// PartNumber is the next part to send; Offset the first byte not yet uploaded.
	PartNumber int32
	Offset     int64

	UpdatedAt time.Time
}
