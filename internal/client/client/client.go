package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
)

// Auth covers account endpoints.
type Auth interface {
	Signup(ctx context.Context, username, password string) (models.AuthResult, error)
	Login(ctx context.Context, username, password string) (models.AuthResult, error)
	RefreshToken(ctx context.Context) (string, error)
	ChangePassword(ctx context.Context, newPassword string) error
}

// ObjectStore covers the objects of the current user. ownerID selects whose
// objects are read, so files shared by other users can be downloaded.
type ObjectStore interface {
	upload.Transport

	ListObjects(ctx context.Context) ([]models.FileObject, error)
	CreateFolder(ctx context.Context, key string) error
	RenameObject(ctx context.Context, key, newKey string) error
	DeleteObject(ctx context.Context, key string) error
	Download(ctx context.Context, ownerID int64, key string, w io.Writer) (filename string, err error)
	PresignDownload(ctx context.Context, ownerID int64, key string) (string, error)
}

// Sharing covers grants and the user directory.
type Sharing interface {
	SharedByMe(ctx context.Context) ([]models.SharedEntry, error)
	SharedToMe(ctx context.Context) ([]models.SharedEntry, error)
	Share(ctx context.Context, recipient models.RecipientType, recipientID int64, key string) error
	Unshare(ctx context.Context, shareID int64) error
	SearchUsers(ctx context.Context, prefix string) ([]models.User, error)
}

// Groups covers groups owned by the current user and their members.
type Groups interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	CreateGroup(ctx context.Context, name string) (models.Group, error)
	RenameGroup(ctx context.Context, groupID int64, name string) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID int64) error
	Members(ctx context.Context, groupID int64) ([]models.User, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// Backend bundles the collaborators used by the services. Objects may be
// served by a different implementation than the rest.
type Backend struct {
	Auth    Auth
	Objects ObjectStore
	Sharing Sharing
	Groups  Groups
}
