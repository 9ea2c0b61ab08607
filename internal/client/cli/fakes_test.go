package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/navigation"
	"github.com/dmitrijs2005/gophdrive/internal/client/projection"
	"github.com/dmitrijs2005/gophdrive/internal/client/services"
	"github.com/dmitrijs2005/gophdrive/internal/client/upload"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
)

// captureOutput replaces printlnFn and returns the collected lines.
func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func joined(lines *[]string) string { return strings.Join(*lines, "\n") }

// ---- fake auth ----

type fakeAuth struct {
	current *models.Credentials

	creds      *models.Credentials
	err        error
	restoreErr error
	passwdErr  error

	lastUser     string
	lastPassword string
	logoutCalls  int
}

func (f *fakeAuth) login(user string, pw []byte) (*models.Credentials, error) {
	f.lastUser, f.lastPassword = user, string(pw)
	if f.err != nil {
		return nil, f.err
	}
	f.current = f.creds
	return f.creds, nil
}

func (f *fakeAuth) Register(_ context.Context, user string, pw []byte) (*models.Credentials, error) {
	return f.login(user, pw)
}

func (f *fakeAuth) Login(_ context.Context, user string, pw []byte) (*models.Credentials, error) {
	return f.login(user, pw)
}

func (f *fakeAuth) Restore(context.Context) (*models.Credentials, error) {
	if f.restoreErr != nil {
		return nil, f.restoreErr
	}
	f.current = f.creds
	return f.creds, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, pw []byte) error {
	f.lastPassword = string(pw)
	return f.passwdErr
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalls++
	f.current = nil
	return nil
}

func (f *fakeAuth) Current() *models.Credentials { return f.current }

// ---- fake browser ----

type fakeBrowser struct {
	objs []models.FileObject
	nav  *navigation.Navigator

	loadCalls int
	loadErr   error
	opErr     error

	created  []string
	deleted  []string
	renamed  map[string]string
	moved    map[string]string
	uploaded [][]string
	sessions []upload.Status
	paused   []string
	resumed  []string
	canceled []string
	dlDir    string
	notifier services.Notifier
}

func newFakeBrowser(objs ...models.FileObject) *fakeBrowser {
	b := &fakeBrowser{objs: objs, renamed: map[string]string{}, moved: map[string]string{}}
	b.nav = navigation.New(b)
	return b
}

func (b *fakeBrowser) Navigator() *navigation.Navigator { return b.nav }
func (b *fakeBrowser) Objects() []models.FileObject     { return b.objs }
func (b *fakeBrowser) SetNotifier(n services.Notifier)  { b.notifier = n }

func (b *fakeBrowser) Load(context.Context) error {
	b.loadCalls++
	return b.loadErr
}

func (b *fakeBrowser) View() projection.View { return projection.Project(b.objs, b.nav.Query()) }

func (b *fakeBrowser) SwitchTab(ctx context.Context, tab navigation.Tab) error {
	b.nav.SwitchTab(tab)
	return b.Load(ctx)
}

func (b *fakeBrowser) Lookup(name string) (models.FileObject, error) {
	dir := b.nav.CurrentDir()
	for _, o := range b.objs {
		if o.ObjectKey == dir+name || o.ObjectKey == dir+name+"/" {
			return o, nil
		}
	}
	return models.FileObject{}, services.ErrNoSuchObject
}

func (b *fakeBrowser) ChangeDir(path string) error {
	b.nav.SetInput(path)
	_, err := b.nav.SubmitPath()
	return err
}

func (b *fakeBrowser) Open(name string) error {
	obj, err := b.Lookup(name)
	if err != nil {
		return err
	}
	if !b.nav.EnterFolder(obj) {
		return navigation.ErrNotAFolder
	}
	return nil
}

func (b *fakeBrowser) Up() string { return b.nav.NavigateUp() }

func (b *fakeBrowser) CreateFolder(_ context.Context, name string, _ services.Confirmer) (string, error) {
	if b.opErr != nil {
		return "", b.opErr
	}
	key := b.nav.CurrentDir() + name + "/"
	b.created = append(b.created, key)
	return key, nil
}

func (b *fakeBrowser) Rename(_ context.Context, obj models.FileObject, newName string) error {
	b.renamed[obj.ObjectKey] = newName
	return b.opErr
}

func (b *fakeBrowser) Move(_ context.Context, obj, target models.FileObject) error {
	b.moved[obj.ObjectKey] = target.ObjectKey
	return b.opErr
}

func (b *fakeBrowser) Delete(_ context.Context, obj models.FileObject) error {
	b.deleted = append(b.deleted, obj.ObjectKey)
	return b.opErr
}

func (b *fakeBrowser) Upload(_ context.Context, paths []string, _ services.Confirmer) ([]upload.Status, error) {
	b.uploaded = append(b.uploaded, paths)
	if b.opErr != nil {
		return nil, b.opErr
	}
	out := make([]upload.Status, len(paths))
	for i, p := range paths {
		out[i] = upload.Status{ID: "id-" + p, Key: p, State: upload.StatePending, Size: 2048}
	}
	return out, nil
}

func (b *fakeBrowser) Uploads() []upload.Status { return b.sessions }

func (b *fakeBrowser) PauseUpload(id string) error {
	b.paused = append(b.paused, id)
	return b.opErr
}

func (b *fakeBrowser) ResumeUpload(id string) error {
	b.resumed = append(b.resumed, id)
	return b.opErr
}

func (b *fakeBrowser) CancelUpload(id string) error {
	b.canceled = append(b.canceled, id)
	return b.opErr
}

func (b *fakeBrowser) Download(_ context.Context, obj models.FileObject, dir string) (string, error) {
	b.dlDir = dir
	if b.opErr != nil {
		return "", b.opErr
	}
	return dir + "/" + obj.Name(), nil
}

func (b *fakeBrowser) Link(_ context.Context, obj models.FileObject) (string, error) {
	if b.opErr != nil {
		return "", b.opErr
	}
	return "https://example.org/" + obj.ObjectKey, nil
}

// ---- fake sharing ----

type shareCall struct {
	key       string
	recipient models.RecipientType
	ids       []int64
}

type fakeSharing struct {
	shares   []shareCall
	unshares []int64
	users    []models.User
	err      error
}

func (s *fakeSharing) Share(_ context.Context, key string, r models.RecipientType, ids []int64) error {
	s.shares = append(s.shares, shareCall{key, r, ids})
	return s.err
}

func (s *fakeSharing) Unshare(_ context.Context, _ models.FileObject, id int64, confirm services.Confirmer) error {
	if s.err != nil {
		return s.err
	}
	if !confirm("again?") {
		return errors.New("declined")
	}
	s.unshares = append(s.unshares, id)
	return nil
}

func (s *fakeSharing) SearchUsers(context.Context, string) ([]models.User, error) {
	return s.users, s.err
}

// ---- fake groups ----

type fakeGroups struct {
	groups  []models.Group
	members []models.User
	calls   []string
	err     error
}

func (g *fakeGroups) record(format string, args ...any) error {
	g.calls = append(g.calls, fmt.Sprintf(format, args...))
	return g.err
}

func (g *fakeGroups) List(context.Context) ([]models.Group, error) { return g.groups, g.err }

func (g *fakeGroups) Create(_ context.Context, name string) (models.Group, error) {
	return models.Group{ID: 5, Name: name}, g.record("create %s", name)
}

func (g *fakeGroups) Rename(_ context.Context, id int64, name string) (models.Group, error) {
	return models.Group{ID: id, Name: name}, g.record("rename %d %s", id, name)
}

func (g *fakeGroups) Delete(_ context.Context, id int64) error { return g.record("delete %d", id) }

func (g *fakeGroups) Members(_ context.Context, id int64) ([]models.User, error) {
	return g.members, g.record("members %d", id)
}

func (g *fakeGroups) AddMember(_ context.Context, id, user int64) error {
	return g.record("add %d %d", id, user)
}

func (g *fakeGroups) RemoveMember(_ context.Context, id, user int64) error {
	return g.record("remove %d %d", id, user)
}

// ---- app ----

type testApp struct {
	*App
	auth    *fakeAuth
	browser *fakeBrowser
	sharing *fakeSharing
	groups  *fakeGroups
	out     *bytes.Buffer
}

// newTestApp builds an App over fakes. input feeds confirmations and prompts.
func newTestApp(t *testing.T, input string, objs ...models.FileObject) *testApp {
	t.Helper()
	ta := &testApp{
		auth:    &fakeAuth{creds: &models.Credentials{AccessToken: "t", UserID: 7, Username: "alice"}},
		browser: newFakeBrowser(objs...),
		sharing: &fakeSharing{},
		groups:  &fakeGroups{},
		out:     &bytes.Buffer{},
	}
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DownloadDir = "/tmp/dl"
	ta.App = newApp(cfg, ta.auth, ta.browser, ta.sharing, ta.groups, logging.NewDiscardLogger(),
		strings.NewReader(input), ta.out)
	return ta
}

func (ta *testApp) login() {
	ta.auth.current = ta.auth.creds
}
