// Package models defines the data exchanged with the storage backend and the
// records kept in the local database.
package models

import "github.com/dmitrijs2005/gophdrive/internal/client/objkey"

// FileObject is a snapshot of one stored object. The key is its only identity.
type FileObject struct {
	ObjectKey    string `json:"objectKey"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
	ETag         string `json:"eTag,omitempty"`
	StorageClass string `json:"storageClass,omitempty"`

	// Sharings is attached by the shared views only. Several records appear when
	// more than one grant (file-level, folder-level, group) reaches the object.
	Sharings []FileSharing `json:"fileSharing,omitempty"`
}

// IsFolder reports whether the object is a folder marker.
func (f FileObject) IsFolder() bool {
	return objkey.IsFolder(f.ObjectKey)
}

// Name returns the display name of the object.
func (f FileObject) Name() string {
	return objkey.DisplayName(f.ObjectKey)
}

// SharingIDs returns the ids of all attached sharing records.
func (f FileObject) SharingIDs() []int64 {
	ids := make([]int64, 0, len(f.Sharings))
	for _, s := range f.Sharings {
		ids = append(ids, s.ID)
	}
	return ids
}

// FileSharing is a grant of an object to a user or a group.
type FileSharing struct {
	ID               int64  `json:"id"`
	SharedByUserID   int64  `json:"sharedByUserId"`
	SharedToUserID   *int64 `json:"sharedToUserId,omitempty"`
	SharedToGroupID  *int64 `json:"sharedToGroupId,omitempty"`
	SharedByUsername string `json:"sharedByUsername,omitempty"`
	SharedToUsername string `json:"sharedToUsername,omitempty"`
	Filename         string `json:"filename,omitempty"`
}

// SharedEntry pairs a grant with the object it points at, as returned by the
// "shared by me" and "shared to me" listings.
type SharedEntry struct {
	FileSharing FileSharing `json:"fileSharing"`
	FileObject  FileObject  `json:"fileObject"`
}

// RecipientType selects who receives a share.
type RecipientType string

const (
	RecipientUser  RecipientType = "USER"
	RecipientGroup RecipientType = "GROUP"
)
