package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/navigation"
	"github.com/dmitrijs2005/gophdrive/internal/client/projection"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

type browserFixture struct {
	b       *browser
	objects *fakeObjects
	sharing *fakeSharing
	auth    *authService
	session *client.Session
	notes   chan Notification
}

func newBrowser(t *testing.T, keys ...string) *browserFixture {
	t.Helper()
	log := logging.NewDiscardLogger()

	objs := &fakeObjects{}
	for _, k := range keys {
		objs.objects = append(objs.objects, models.FileObject{ObjectKey: k, Size: 1})
	}
	shr := &fakeSharing{}

	db := setupDB(t)
	session := &client.Session{}
	session.Set("tok", 7)
	auth := NewAuthService(&fakeAuth{}, session, db, time.Hour, log).(*authService)
	auth.current = &models.Credentials{AccessToken: "tok", UserID: 7}

	orch := upload.New(objs, uploads.NewSQLiteRepository(db), log, upload.Config{ChunkSize: 10, RetryBase: time.Millisecond})
	t.Cleanup(orch.Wait)

	backend := client.Backend{Objects: objs, Sharing: shr}
	b := NewBrowser(backend, auth, session, orch, log).(*browser)

	notes := make(chan Notification, 16)
	b.SetNotifier(func(n Notification) { notes <- n })

	require.NoError(t, b.Load(context.Background()))
	return &browserFixture{b: b, objects: objs, sharing: shr, auth: auth, session: session, notes: notes}
}

func names(v projection.View) []string {
	out := make([]string, 0, len(v.Items))
	for _, o := range v.Items {
		out = append(out, o.ObjectKey)
	}
	return out
}

func TestBrowser_LoadAndView(t *testing.T) {
	f := newBrowser(t, "docs/", "docs/a.txt", "readme.md", "photos/2024/cat.png")

	v := f.b.View()
	assert.Equal(t, []string{"readme.md", "docs/"}, names(v))
	assert.Equal(t, []string{"photos/2024/cat.png"}, v.Orphans)

	require.NoError(t, f.b.Open("docs"))
	assert.Equal(t, []string{"docs/a.txt"}, names(f.b.View()))
	assert.Equal(t, "", f.b.Up())
}

func TestBrowser_LoadUnauthorizedLogsOut(t *testing.T) {
	f := newBrowser(t, "a.txt")
	f.objects.listErr = client.ErrUnauthorized

	err := f.b.Load(context.Background())
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.False(t, f.session.Active())
	assert.Nil(t, f.auth.Current())
}

func TestBrowser_LoadUnauthorizedCancelsUploads(t *testing.T) {
	f := newBrowser(t)
	f.objects.partGate = make(chan struct{})
	f.objects.partStarted = make(chan struct{}, 4)
	p := writeLocal(t, t.TempDir(), "big.bin", strings.Repeat("x", 25))

	_, err := f.b.Upload(context.Background(), []string{p}, no)
	require.NoError(t, err)
	select {
	case <-f.objects.partStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("upload did not start")
	}

	f.objects.mu.Lock()
	f.objects.listErr = client.ErrUnauthorized
	f.objects.mu.Unlock()
	require.ErrorIs(t, f.b.Load(context.Background()), common.ErrorUnauthorized)

	f.b.uploads.Wait()
	assert.Empty(t, f.b.Uploads())
	assert.Equal(t, []string{"up-1"}, f.objects.aborted)
	assert.Empty(t, f.objects.uploaded)
}

func TestBrowser_LoadDropsListingAfterTabSwitch(t *testing.T) {
	f := newBrowser(t, "a.txt")
	f.objects.objects = append(f.objects.objects, models.FileObject{ObjectKey: "b.txt"})
	f.objects.onList = func() { f.b.nav.SwitchTab(navigation.TabSharedByMe) }

	require.NoError(t, f.b.Load(context.Background()))
	assert.Equal(t, navigation.TabSharedByMe, f.b.nav.Tab())
	assert.Equal(t, []string{"a.txt"}, projection.Keys(f.b.Objects()))
}

func TestBrowser_SharedTabsMergeGrants(t *testing.T) {
	f := newBrowser(t)
	obj := models.FileObject{ObjectKey: "team/plan.pdf"}
	f.sharing.toMe = []models.SharedEntry{
		{FileSharing: models.FileSharing{ID: 1, SharedByUserID: 3}, FileObject: obj},
		{FileSharing: models.FileSharing{ID: 2, SharedByUserID: 3}, FileObject: obj},
	}

	require.NoError(t, f.b.SwitchTab(context.Background(), navigation.TabSharedToMe))
	objs := f.b.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, []int64{1, 2}, objs[0].SharingIDs())
}

func TestBrowser_ChangeDir(t *testing.T) {
	f := newBrowser(t, "docs/", "docs/sub/", "docs/sub/x.txt")

	require.NoError(t, f.b.ChangeDir("docs"))
	assert.Equal(t, "docs/", f.b.Navigator().CurrentDir())

	require.NoError(t, f.b.ChangeDir("sub"))
	assert.Equal(t, "docs/sub/", f.b.Navigator().CurrentDir())

	require.NoError(t, f.b.ChangeDir("/docs"))
	assert.Equal(t, "docs/", f.b.Navigator().CurrentDir())

	require.ErrorIs(t, f.b.ChangeDir(":/nope"), navigation.ErrUnknownFolder)
	assert.Equal(t, "", f.b.Navigator().CurrentDir())
}

func TestBrowser_Lookup(t *testing.T) {
	f := newBrowser(t, "a.txt", "docs/", "implied/deep/x.txt")

	obj, err := f.b.Lookup("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", obj.ObjectKey)

	obj, err = f.b.Lookup("docs")
	require.NoError(t, err)
	assert.Equal(t, "docs/", obj.ObjectKey)

	obj, err = f.b.Lookup("implied/")
	require.NoError(t, err)
	assert.Equal(t, "implied/", obj.ObjectKey)

	_, err = f.b.Lookup("missing")
	require.ErrorIs(t, err, ErrNoSuchObject)
}

func TestBrowser_CreateFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("free name", func(t *testing.T) {
		f := newBrowser(t, "a.txt")
		key, err := f.b.CreateFolder(ctx, "new", no)
		require.NoError(t, err)
		assert.Equal(t, "new/", key)
		assert.Contains(t, names(f.b.View()), "new/")
	})

	t.Run("conflict accepted", func(t *testing.T) {
		f := newBrowser(t, "docs/")
		key, err := f.b.CreateFolder(ctx, "docs", yes)
		require.NoError(t, err)
		assert.Equal(t, "docs (1)/", key)
	})

	t.Run("conflict declined", func(t *testing.T) {
		f := newBrowser(t, "docs/")
		_, err := f.b.CreateFolder(ctx, "docs", no)
		require.ErrorIs(t, err, common.ErrDeclined)
		assert.Empty(t, f.objects.folders)
	})

	t.Run("invalid name", func(t *testing.T) {
		f := newBrowser(t)
		_, err := f.b.CreateFolder(ctx, "a/b", yes)
		require.ErrorIs(t, err, common.ErrInvalidName)
		_, err = f.b.CreateFolder(ctx, "", yes)
		require.ErrorIs(t, err, common.ErrInvalidName)
	})
}

func TestBrowser_RenameReloads(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t, "docs/", "docs/a.txt")

	require.NoError(t, f.b.Rename(ctx, models.FileObject{ObjectKey: "docs/"}, "papers"))
	assert.Equal(t, [][2]string{{"docs/", "papers/"}}, f.objects.renames)
	assert.ElementsMatch(t, []string{"papers/", "papers/a.txt"}, projection.Keys(f.b.Objects()))
}

func TestBrowser_RenameRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t, "x.txt")

	require.NoError(t, f.b.Rename(ctx, models.FileObject{ObjectKey: "x.txt"}, "y.txt"))
	assert.Equal(t, []string{"y.txt"}, projection.Keys(f.b.Objects()))

	require.NoError(t, f.b.Rename(ctx, models.FileObject{ObjectKey: "y.txt"}, "x.txt"))
	assert.Equal(t, [][2]string{{"x.txt", "y.txt"}, {"y.txt", "x.txt"}}, f.objects.renames)
	assert.Equal(t, []string{"x.txt"}, projection.Keys(f.b.Objects()))
	obj, err := f.b.Lookup("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "x.txt", obj.ObjectKey)
}

func TestBrowser_RenameFailureStillReloads(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t, "a.txt")
	f.objects.opErr = client.ErrConflict

	err := f.b.Rename(ctx, models.FileObject{ObjectKey: "a.txt"}, "b.txt")
	require.ErrorIs(t, err, client.ErrConflict)
	assert.Equal(t, []string{"a.txt"}, projection.Keys(f.b.Objects()), "reload supersedes the optimistic patch")
}

func TestBrowser_PatchKeys(t *testing.T) {
	f := newBrowser(t, "docs/", "docs/a.txt", "docsier.txt")

	f.b.patchKeys("docs/", "papers/")
	assert.Equal(t, []string{"papers/", "papers/a.txt", "docsier.txt"}, projection.Keys(f.b.Objects()))
}

func TestBrowser_Move(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t, "a.txt", "docs/")

	require.NoError(t, f.b.Move(ctx, models.FileObject{ObjectKey: "a.txt"}, models.FileObject{ObjectKey: "docs/"}))
	assert.Equal(t, [][2]string{{"a.txt", "docs/a.txt"}}, f.objects.renames)

	err := f.b.Move(ctx, models.FileObject{ObjectKey: "docs/"}, models.FileObject{ObjectKey: "docs/a.txt"})
	require.ErrorIs(t, err, navigation.ErrNotAFolder)
}

func TestBrowser_Delete(t *testing.T) {
	f := newBrowser(t, "a.txt", "b.txt")

	require.NoError(t, f.b.Delete(context.Background(), models.FileObject{ObjectKey: "a.txt"}))
	assert.Equal(t, []string{"b.txt"}, projection.Keys(f.b.Objects()))
}

func writeLocal(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestBrowser_UploadNotifiesAndReloads(t *testing.T) {
	f := newBrowser(t, "docs/")
	require.NoError(t, f.b.Open("docs"))
	dir := t.TempDir()
	p := writeLocal(t, dir, "small.txt", "hello")

	statuses, err := f.b.Upload(context.Background(), []string{p}, no)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "docs/small.txt", statuses[0].Key)

	select {
	case n := <-f.notes:
		assert.Equal(t, LevelSuccess, n.Level)
		assert.Equal(t, "Uploaded small.txt", n.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
	f.b.uploads.Wait()
	assert.Contains(t, projection.Keys(f.b.Objects()), "docs/small.txt")
}

func TestBrowser_UploadConflicts(t *testing.T) {
	dir := t.TempDir()
	p := writeLocal(t, dir, "a.txt", "x")

	t.Run("declined everywhere", func(t *testing.T) {
		f := newBrowser(t, "a.txt")
		_, err := f.b.Upload(context.Background(), []string{p}, no)
		require.ErrorIs(t, err, common.ErrDeclined)
		assert.Empty(t, f.objects.uploaded)
	})

	t.Run("accepted gets alternate name", func(t *testing.T) {
		f := newBrowser(t, "a.txt")
		statuses, err := f.b.Upload(context.Background(), []string{p}, yes)
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "a (1).txt", statuses[0].Key)
		f.b.uploads.Wait()
	})

	t.Run("same name twice in one batch", func(t *testing.T) {
		f := newBrowser(t)
		other := filepath.Join(t.TempDir(), "a.txt")
		require.NoError(t, os.WriteFile(other, []byte("y"), 0o600))

		statuses, err := f.b.Upload(context.Background(), []string{p, other}, yes)
		require.NoError(t, err)
		require.Len(t, statuses, 2)
		assert.Equal(t, "a.txt", statuses[0].Key)
		assert.Equal(t, "a (1).txt", statuses[1].Key)
		f.b.uploads.Wait()
	})

	t.Run("missing local file", func(t *testing.T) {
		f := newBrowser(t)
		_, err := f.b.Upload(context.Background(), []string{filepath.Join(dir, "nope")}, yes)
		require.Error(t, err)
	})
}

func TestBrowser_UploadFailureNotifies(t *testing.T) {
	f := newBrowser(t)
	f.objects.opErr = client.ErrUnavailable
	p := writeLocal(t, t.TempDir(), "a.txt", "x")

	_, err := f.b.Upload(context.Background(), []string{p}, no)
	require.NoError(t, err)

	select {
	case n := <-f.notes:
		assert.Equal(t, LevelError, n.Level)
		assert.Contains(t, n.Message, "Failed to upload a.txt")
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
}

func TestBrowser_Download(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t, "docs/report.pdf")
	f.objects.download = "content"
	f.objects.dlName = "docs/report.pdf"
	dir := t.TempDir()

	path, err := f.b.Download(ctx, models.FileObject{ObjectKey: "docs/report.pdf"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, []int64{7}, f.objects.owners)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is gone")
}

func TestBrowser_DownloadErrors(t *testing.T) {
	ctx := context.Background()
	obj := models.FileObject{ObjectKey: "a.txt"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "missing", err: client.ErrNotFound, want: ErrFileNotFound},
		{name: "forbidden", err: client.ErrForbidden, want: ErrFileDenied},
		{name: "session gone", err: client.ErrUnauthorized, want: common.ErrorUnauthorized},
		{name: "server down", err: client.ErrUnavailable, want: client.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBrowser(t, "a.txt")
			f.objects.dlErr = tt.err

			_, err := f.b.Download(ctx, obj, t.TempDir())
			require.ErrorIs(t, err, tt.want)
			_, err = f.b.Link(ctx, obj)
			require.ErrorIs(t, err, tt.want)
		})
	}

	f := newBrowser(t, "docs/")
	_, err := f.b.Download(ctx, models.FileObject{ObjectKey: "docs/"}, t.TempDir())
	require.ErrorIs(t, err, ErrIsFolder)
}

func TestBrowser_SharedDownloadUsesOwner(t *testing.T) {
	ctx := context.Background()
	f := newBrowser(t)
	f.objects.link = "https://signed"
	obj := models.FileObject{ObjectKey: "plan.pdf", Sharings: []models.FileSharing{{ID: 1, SharedByUserID: 42}}}
	f.sharing.toMe = []models.SharedEntry{{FileSharing: obj.Sharings[0], FileObject: models.FileObject{ObjectKey: "plan.pdf"}}}
	require.NoError(t, f.b.SwitchTab(ctx, navigation.TabSharedToMe))

	url, err := f.b.Link(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, "https://signed", url)
	assert.Equal(t, []int64{42}, f.objects.owners)
}

func TestBrowser_UploadControls(t *testing.T) {
	f := newBrowser(t)
	assert.Empty(t, f.b.Uploads())
	require.ErrorIs(t, f.b.PauseUpload("nope"), upload.ErrUnknownSession)
	require.ErrorIs(t, f.b.ResumeUpload("nope"), upload.ErrUnknownSession)
	require.ErrorIs(t, f.b.CancelUpload("nope"), upload.ErrUnknownSession)
}
