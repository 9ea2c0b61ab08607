package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/navigation"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/client/projection"
	"github.com/dmitrijs2005/gophdrive/internal/client/sharing"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// Browser is the file browser behind the REPL. It owns the object snapshot of
// the active tab and the navigation state, and runs every object operation.
//
// The snapshot is only replaced by a full reload, except for the optimistic
// rename patch which the following reload supersedes.
type Browser interface {
	Navigator() *navigation.Navigator
	Objects() []models.FileObject

	Load(ctx context.Context) error
	View() projection.View
	SwitchTab(ctx context.Context, tab navigation.Tab) error
	Lookup(name string) (models.FileObject, error)
	ChangeDir(path string) error
	Open(name string) error
	Up() string

	CreateFolder(ctx context.Context, name string, confirm Confirmer) (string, error)
	Rename(ctx context.Context, obj models.FileObject, newName string) error
	Move(ctx context.Context, obj, target models.FileObject) error
	Delete(ctx context.Context, obj models.FileObject) error

	Upload(ctx context.Context, paths []string, confirm Confirmer) ([]upload.Status, error)
	Uploads() []upload.Status
	PauseUpload(id string) error
	ResumeUpload(id string) error
	CancelUpload(id string) error

	Download(ctx context.Context, obj models.FileObject, dir string) (string, error)
	Link(ctx context.Context, obj models.FileObject) (string, error)

	SetNotifier(n Notifier)
}

type browser struct {
	objects client.ObjectStore
	sharing client.Sharing
	auth    AuthService
	session *client.Session
	uploads *upload.Orchestrator
	nav     *navigation.Navigator
	log     logging.Logger
	notes   notifications

	mu       sync.RWMutex
	snapshot []models.FileObject
}

// NewBrowser wires a Browser. The orchestrator's notifier is taken over to
// reload the listing and report finished uploads.
func NewBrowser(backend client.Backend, auth AuthService, session *client.Session, uploads *upload.Orchestrator, log logging.Logger) Browser {
	b := &browser{
		objects: backend.Objects,
		sharing: backend.Sharing,
		auth:    auth,
		session: session,
		uploads: uploads,
		log:     log,
	}
	b.nav = navigation.New(b)
	uploads.SetNotifier(b.uploadFinished)
	return b
}

func (b *browser) Navigator() *navigation.Navigator { return b.nav }

func (b *browser) SetNotifier(n Notifier) { b.notes.set(n) }

// Objects returns a copy of the snapshot.
func (b *browser) Objects() []models.FileObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.FileObject(nil), b.snapshot...)
}

// replace installs objs fetched for tab. It reports false, leaving the
// snapshot alone, when another tab became active during the fetch.
func (b *browser) replace(tab navigation.Tab, objs []models.FileObject) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nav.Tab() != tab {
		return false
	}
	b.snapshot = objs
	return true
}

// Load fetches the listing of the active tab. An authentication failure
// erases the saved login, cancels running uploads and returns
// common.ErrorUnauthorized.
func (b *browser) Load(ctx context.Context) error {
	var (
		objs []models.FileObject
		err  error
	)

	tab := b.nav.Tab()
	switch tab {
	case navigation.TabSharedToMe:
		var entries []models.SharedEntry
		if entries, err = b.sharing.SharedToMe(ctx); err == nil {
			objs = sharing.Merge(entries)
		}
	case navigation.TabSharedByMe:
		var entries []models.SharedEntry
		if entries, err = b.sharing.SharedByMe(ctx); err == nil {
			objs = sharing.Merge(entries)
		}
	default:
		objs, err = b.objects.ListObjects(ctx)
	}
	if err != nil {
		return b.fail(ctx, "failed to load files", err)
	}

	if !b.replace(tab, objs) {
		b.log.Debug(ctx, "listing dropped after tab switch", "tab", tab)
	}
	return nil
}

// fail logs err and turns authentication failures into a logout.
func (b *browser) fail(ctx context.Context, msg string, err error) error {
	if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrNoSession) {
		b.log.Warn(ctx, "session rejected, logging out", "error", err)
		if n := b.uploads.CancelAll(); n > 0 {
			b.log.Warn(ctx, "uploads canceled", "count", n)
		}
		if lerr := b.auth.Logout(ctx); lerr != nil {
			b.log.Error(ctx, "failed to erase credentials", "error", lerr)
		}
		return common.ErrorUnauthorized
	}
	b.log.Error(ctx, msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}

func (b *browser) View() projection.View {
	return projection.Project(b.Objects(), b.nav.Query())
}

func (b *browser) SwitchTab(ctx context.Context, tab navigation.Tab) error {
	b.nav.SwitchTab(tab)
	return b.Load(ctx)
}

// Lookup resolves a name typed by the user against the current folder. A
// trailing "/" selects a folder; folders implied by deeper keys resolve too.
func (b *browser) Lookup(name string) (models.FileObject, error) {
	dir := b.nav.CurrentDir()
	objs := b.Objects()
	name = strings.TrimPrefix(name, "./")

	candidates := []string{dir + name}
	if !objkey.IsFolder(name) {
		candidates = append(candidates, dir+name+objkey.Separator)
	}

	for _, key := range candidates {
		if obj, ok := lo.Find(objs, func(o models.FileObject) bool { return o.ObjectKey == key }); ok {
			return obj, nil
		}
	}
	if folder := candidates[len(candidates)-1]; objkey.FolderExists(projection.Keys(objs), folder) {
		return models.FileObject{ObjectKey: folder}, nil
	}
	return models.FileObject{}, fmt.Errorf("%w: %s", ErrNoSuchObject, name)
}

// ChangeDir submits path to the navigator. Paths starting with "/" or ":/"
// are absolute, others are relative to the current folder.
func (b *browser) ChangeDir(path string) error {
	switch {
	case strings.HasPrefix(path, navigation.InputPrefix):
	case strings.HasPrefix(path, objkey.Separator):
		path = navigation.InputPrefix + strings.TrimLeft(path, objkey.Separator)
	default:
		path = navigation.InputPrefix + b.nav.CurrentDir() + path
	}
	b.nav.SetInput(path)
	_, err := b.nav.SubmitPath()
	return err
}

func (b *browser) Open(name string) error {
	obj, err := b.Lookup(name)
	if err != nil {
		return err
	}
	if !b.nav.EnterFolder(obj) {
		return navigation.ErrNotAFolder
	}
	return nil
}

func (b *browser) Up() string { return b.nav.NavigateUp() }

// resolveConflict returns name, or a free alternative the user agreed to.
func resolveConflict(name string, taken map[string]struct{}, confirm Confirmer) (string, error) {
	alt := objkey.AlternateName(name, taken)
	if alt == name {
		return name, nil
	}
	q := fmt.Sprintf("%q already exists here. Use %q instead?", strings.TrimSuffix(name, objkey.Separator), strings.TrimSuffix(alt, objkey.Separator))
	if confirm == nil || !confirm(q) {
		return "", common.ErrDeclined
	}
	return alt, nil
}

// CreateFolder creates name in the current folder and returns the new key.
func (b *browser) CreateFolder(ctx context.Context, name string, confirm Confirmer) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	dir := b.nav.CurrentDir()
	chosen, err := resolveConflict(name+objkey.Separator, projection.NamesIn(b.Objects(), dir), confirm)
	if err != nil {
		return "", err
	}

	key := dir + chosen
	if err := b.objects.CreateFolder(ctx, key); err != nil {
		return "", b.fail(ctx, "failed to create folder", err)
	}
	b.log.Info(ctx, "folder created", "key", key)
	return key, b.Load(ctx)
}

// Rename gives obj a new display name in its folder. The snapshot is patched
// right away and then reloaded, whatever the outcome of the request.
func (b *browser) Rename(ctx context.Context, obj models.FileObject, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	newKey := objkey.JoinKey(objkey.ParentPath(obj.ObjectKey), newName, obj.IsFolder())
	if newKey == obj.ObjectKey {
		return nil
	}
	return b.rekey(ctx, obj, newKey)
}

// Move drops obj into the target folder.
func (b *browser) Move(ctx context.Context, obj, target models.FileObject) error {
	newKey, err := navigation.MoveTarget(obj, target)
	if err != nil {
		return err
	}
	return b.rekey(ctx, obj, newKey)
}

func (b *browser) rekey(ctx context.Context, obj models.FileObject, newKey string) error {
	b.patchKeys(obj.ObjectKey, newKey)

	err := b.objects.RenameObject(ctx, obj.ObjectKey, newKey)
	if err != nil {
		err = b.fail(ctx, "failed to rename", err)
	} else {
		b.log.Info(ctx, "object renamed", "from", obj.ObjectKey, "to", newKey)
	}

	if lerr := b.Load(ctx); lerr != nil && err == nil {
		return lerr
	}
	return err
}

// patchKeys rewrites oldKey, and for folders every key below it, in the snapshot.
func (b *browser) patchKeys(oldKey, newKey string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	patched := make([]models.FileObject, len(b.snapshot))
	for i, o := range b.snapshot {
		switch {
		case o.ObjectKey == oldKey:
			o.ObjectKey = newKey
		case objkey.IsFolder(oldKey) && strings.HasPrefix(o.ObjectKey, oldKey):
			o.ObjectKey = newKey + o.ObjectKey[len(oldKey):]
		}
		patched[i] = o
	}
	b.snapshot = patched
}

func (b *browser) Delete(ctx context.Context, obj models.FileObject) error {
	if err := b.objects.DeleteObject(ctx, obj.ObjectKey); err != nil {
		return b.fail(ctx, "failed to delete", err)
	}
	b.log.Info(ctx, "object deleted", "key", obj.ObjectKey)
	return b.Load(ctx)
}

// Upload starts background uploads of local files into the current folder.
// A name conflict, also between files of the same batch, asks for an
// alternate name; declined files are skipped. When every file is declined
// common.ErrDeclined is returned.
func (b *browser) Upload(ctx context.Context, paths []string, confirm Confirmer) ([]upload.Status, error) {
	dir := b.nav.CurrentDir()
	taken := projection.NamesIn(b.Objects(), dir)

	var (
		reqs []upload.Request
		errs []error
	)
	for _, p := range paths {
		name, err := resolveConflict(filepath.Base(p), taken, confirm)
		if errors.Is(err, common.ErrDeclined) {
			b.log.Info(ctx, "upload declined", "path", p)
			continue
		}

		req, err := upload.FromPath(p, dir+name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		req.UserID = b.session.UserID()
		taken[name] = struct{}{}
		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, common.ErrDeclined
	}

	return b.uploads.Start(ctx, reqs), errors.Join(errs...)
}

// uploadFinished reloads the listing and reports the outcome of a session.
func (b *browser) uploadFinished(st upload.Status) {
	ctx := context.Background()
	name := objkey.DisplayName(st.Key)

	switch st.State {
	case upload.StateCompleted:
		b.notes.send(LevelSuccess, fmt.Sprintf("Uploaded %s", name))
	case upload.StateCanceled:
		b.notes.send(LevelSuccess, fmt.Sprintf("Upload of %s canceled", name))
	default:
		b.notes.send(LevelError, fmt.Sprintf("Failed to upload %s: %v", name, st.Err))
	}

	if err := b.Load(ctx); err != nil {
		b.notes.send(LevelError, err.Error())
	}
}

func (b *browser) Uploads() []upload.Status { return b.uploads.Sessions() }

func (b *browser) PauseUpload(id string) error  { return b.uploads.Pause(id) }
func (b *browser) ResumeUpload(id string) error { return b.uploads.Resume(id) }
func (b *browser) CancelUpload(id string) error { return b.uploads.Cancel(id) }

// owner is the user whose storage holds obj: the granting user for shared
// rows, the current user otherwise.
func (b *browser) owner(obj models.FileObject) int64 {
	if len(obj.Sharings) > 0 && b.nav.Tab() == navigation.TabSharedToMe {
		return obj.Sharings[0].SharedByUserID
	}
	return b.session.UserID()
}

// downloadError maps backend failures to the messages shown to the user.
func (b *browser) downloadError(ctx context.Context, key string, err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		b.log.Warn(ctx, "download of missing object", "key", key)
		return ErrFileNotFound
	case errors.Is(err, client.ErrForbidden):
		b.log.Warn(ctx, "download denied", "key", key)
		return ErrFileDenied
	default:
		return b.fail(ctx, "failed to download", err)
	}
}

// Download saves obj into dir under the name reported by the backend and
// returns the written path.
func (b *browser) Download(ctx context.Context, obj models.FileObject, dir string) (string, error) {
	if obj.IsFolder() {
		return "", ErrIsFolder
	}

	tmp, err := os.CreateTemp(dir, ".gophdrive-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	filename, err := b.objects.Download(ctx, b.owner(obj), obj.ObjectKey, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", b.downloadError(ctx, obj.ObjectKey, err)
	}

	if filename = objkey.DisplayName(filename); filename == "" {
		filename = obj.Name()
	}
	target := filepath.Join(dir, filepath.Base(filename))
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	b.log.Info(ctx, "object downloaded", "key", obj.ObjectKey, "path", target)
	return target, nil
}

// Link returns a temporary download URL for obj.
func (b *browser) Link(ctx context.Context, obj models.FileObject) (string, error) {
	if obj.IsFolder() {
		return "", ErrIsFolder
	}
	url, err := b.objects.PresignDownload(ctx, b.owner(obj), obj.ObjectKey)
	if err != nil {
		return "", b.downloadError(ctx, obj.ObjectKey, err)
	}
	return url, nil
}
