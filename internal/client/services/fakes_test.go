package services

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, client.RunMigrations(context.Background(), db))
	return db
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func yes(string) bool { return true }
func no(string) bool  { return false }

// ---- fake auth ----

type fakeAuth struct {
	result     models.AuthResult
	err        error
	refreshed  string
	refreshErr error
	passwdErr  error

	lastUser     string
	lastPassword string
	refreshCalls int
}

func (f *fakeAuth) Signup(ctx context.Context, username, password string) (models.AuthResult, error) {
	f.lastUser, f.lastPassword = username, password
	return f.result, f.err
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (models.AuthResult, error) {
	f.lastUser, f.lastPassword = username, password
	return f.result, f.err
}

func (f *fakeAuth) RefreshToken(ctx context.Context) (string, error) {
	f.refreshCalls++
	return f.refreshed, f.refreshErr
}

func (f *fakeAuth) ChangePassword(ctx context.Context, newPassword string) error {
	f.lastPassword = newPassword
	return f.passwdErr
}

// ---- fake object store ----

type fakeObjects struct {
	mu sync.Mutex

	objects  []models.FileObject
	listErr  error
	opErr    error
	download string
	dlName   string
	dlErr    error
	link     string

	renames  [][2]string
	deleted  []string
	folders  []string
	uploaded []string
	owners   []int64

	// listed is closed on the first listing after armListed.
	listed chan struct{}
	// onList runs at the start of every listing.
	onList func()

	// When partGate is set, UploadPart announces itself on partStarted and
	// blocks until the gate is closed or ctx is done.
	partGate    chan struct{}
	partStarted chan struct{}
	aborted     []string
}

func (f *fakeObjects) armListed() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = make(chan struct{})
	return f.listed
}

func (f *fakeObjects) ListObjects(ctx context.Context) ([]models.FileObject, error) {
	if f.onList != nil {
		f.onList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listed != nil {
		close(f.listed)
		f.listed = nil
	}
	return append([]models.FileObject(nil), f.objects...), f.listErr
}

func (f *fakeObjects) CreateFolder(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.folders = append(f.folders, key)
	f.objects = append(f.objects, models.FileObject{ObjectKey: key})
	return nil
}

func (f *fakeObjects) RenameObject(ctx context.Context, key, newKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, [2]string{key, newKey})
	if f.opErr != nil {
		return f.opErr
	}
	for i, o := range f.objects {
		if o.ObjectKey == key {
			f.objects[i].ObjectKey = newKey
		} else if strings.HasSuffix(key, "/") && strings.HasPrefix(o.ObjectKey, key) {
			f.objects[i].ObjectKey = newKey + o.ObjectKey[len(key):]
		}
	}
	return nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.deleted = append(f.deleted, key)
	kept := f.objects[:0]
	for _, o := range f.objects {
		if o.ObjectKey != key {
			kept = append(kept, o)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeObjects) Download(ctx context.Context, ownerID int64, key string, w io.Writer) (string, error) {
	f.mu.Lock()
	f.owners = append(f.owners, ownerID)
	f.mu.Unlock()
	if f.dlErr != nil {
		return "", f.dlErr
	}
	_, err := io.WriteString(w, f.download)
	return f.dlName, err
}

func (f *fakeObjects) PresignDownload(ctx context.Context, ownerID int64, key string) (string, error) {
	f.mu.Lock()
	f.owners = append(f.owners, ownerID)
	f.mu.Unlock()
	if f.dlErr != nil {
		return "", f.dlErr
	}
	return f.link, nil
}

func (f *fakeObjects) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress func(int64)) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opErr != nil {
		return f.opErr
	}
	f.uploaded = append(f.uploaded, key)
	f.objects = append(f.objects, models.FileObject{ObjectKey: key, Size: size})
	if progress != nil {
		progress(size)
	}
	return nil
}

func (f *fakeObjects) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	return "up-1", nil
}

func (f *fakeObjects) UploadPart(ctx context.Context, key, uploadID string, part int32, r io.Reader, size int64) (string, error) {
	f.mu.Lock()
	gate := f.partGate
	f.mu.Unlock()
	if gate != nil {
		f.partStarted <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "etag", nil
}

func (f *fakeObjects) CompleteMultipart(ctx context.Context, key, uploadID string) error {
	return f.Upload(ctx, key, "", strings.NewReader(""), 0, nil)
}

func (f *fakeObjects) AbortMultipart(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, uploadID)
	return nil
}

// ---- fake sharing ----

type fakeSharing struct {
	byMe   []models.SharedEntry
	toMe   []models.SharedEntry
	err    error
	users  []models.User
	shared []string
	failOn int64

	unshared    []int64
	searchCalls int
}

func (f *fakeSharing) SharedByMe(ctx context.Context) ([]models.SharedEntry, error) {
	return f.byMe, f.err
}

func (f *fakeSharing) SharedToMe(ctx context.Context) ([]models.SharedEntry, error) {
	return f.toMe, f.err
}

func (f *fakeSharing) Share(ctx context.Context, recipient models.RecipientType, recipientID int64, key string) error {
	if recipientID == f.failOn {
		return client.ErrNotFound
	}
	f.shared = append(f.shared, string(recipient)+":"+key)
	return nil
}

func (f *fakeSharing) Unshare(ctx context.Context, shareID int64) error {
	f.unshared = append(f.unshared, shareID)
	return f.err
}

func (f *fakeSharing) SearchUsers(ctx context.Context, prefix string) ([]models.User, error) {
	f.searchCalls++
	return f.users, f.err
}

// ---- fake groups ----

type fakeGroups struct {
	groups  []models.Group
	members map[int64][]models.User
	err     error
	calls   []string
}

func (f *fakeGroups) ListGroups(ctx context.Context) ([]models.Group, error) { return f.groups, f.err }

func (f *fakeGroups) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	f.calls = append(f.calls, "create:"+name)
	return models.Group{ID: 1, Name: name, CreatorID: 7}, f.err
}

func (f *fakeGroups) RenameGroup(ctx context.Context, groupID int64, name string) (models.Group, error) {
	f.calls = append(f.calls, "rename:"+name)
	return models.Group{ID: groupID, Name: name}, f.err
}

func (f *fakeGroups) DeleteGroup(ctx context.Context, groupID int64) error {
	f.calls = append(f.calls, "delete")
	return f.err
}

func (f *fakeGroups) Members(ctx context.Context, groupID int64) ([]models.User, error) {
	return f.members[groupID], f.err
}

func (f *fakeGroups) AddMember(ctx context.Context, groupID, userID int64) error {
	f.calls = append(f.calls, "add")
	return f.err
}

func (f *fakeGroups) RemoveMember(ctx context.Context, groupID, userID int64) error {
	f.calls = append(f.calls, "remove")
	return f.err
}
