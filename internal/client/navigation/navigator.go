// Package navigation holds the browsing state of the client: the current
// directory cursor, the editable path box, the search term, the share filter
// and the active tab.
//
// Consumers never read the cursor from global state; they receive a Cursor
// (usually the *Navigator itself) at construction time.
package navigation

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/client/projection"
)

// InputPrefix starts every value of the path box and stands for the root.
const InputPrefix = ":/"

var (
	ErrUnknownFolder = errors.New("folder does not exist")
	ErrNotAFolder    = errors.New("target is not a folder")
	ErrInvalidMove   = errors.New("cannot move an object into itself")
)

// Tab selects the data source of the browser.
type Tab string

const (
	TabMyFiles    Tab = "myFiles"
	TabSharedToMe Tab = "sharedToMe"
	TabSharedByMe Tab = "sharedByMe"
)

// Cursor gives access to the current directory.
type Cursor interface {
	CurrentDir() string
	SetCurrentDir(dir string)
}

// ObjectSource exposes the object list used to validate navigation targets.
type ObjectSource interface {
	Objects() []models.FileObject
}

var trailingSpaceBeforeSlash = regexp.MustCompile(`\s+/$`)

// Navigator is the navigation state machine. It is safe for concurrent use.
type Navigator struct {
	mu       sync.RWMutex
	source   ObjectSource
	cursor   string
	input    string
	search   string
	sharedBy *int64
	tab      Tab
}

// New returns a Navigator positioned at the root of the My Files tab.
func New(source ObjectSource) *Navigator {
	return &Navigator{source: source, input: InputPrefix, tab: TabMyFiles}
}

func (n *Navigator) CurrentDir() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cursor
}

func (n *Navigator) SetCurrentDir(dir string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setCursor(dir)
}

// setCursor moves the cursor and re-syncs the path box. Returning to the root
// drops the share filter. Callers hold n.mu.
func (n *Navigator) setCursor(dir string) {
	n.cursor = dir
	n.input = InputPrefix + dir
	if dir == "" {
		n.sharedBy = nil
	}
}

// Input returns the current text of the path box.
func (n *Navigator) Input() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.input
}

// SetInput edits the path box without moving the cursor.
func (n *Navigator) SetInput(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.input = text
}

func (n *Navigator) Search() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.search
}

func (n *Navigator) SetSearch(term string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.search = term
}

// SharedBy returns the active share filter, nil when none.
func (n *Navigator) SharedBy() *int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.sharedBy == nil {
		return nil
	}
	v := *n.sharedBy
	return &v
}

func (n *Navigator) Tab() Tab {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tab
}

// Query returns the projection query for the current state.
func (n *Navigator) Query() projection.Query {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return projection.Query{Cursor: n.cursor, Search: n.search, SharedBy: n.sharedBy}
}

func (n *Navigator) knownKeys() []string {
	if n.source == nil {
		return nil
	}
	return projection.Keys(n.source.Objects())
}

// NormalizePath turns path box text into a folder key: the ":/" prefix and
// surrounding blanks are removed, blanks before the final "/" collapse, and a
// trailing "/" is ensured. The root is "".
func NormalizePath(text string) string {
	p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), InputPrefix))
	p = trailingSpaceBeforeSlash.ReplaceAllString(p, objkey.Separator)
	p = strings.TrimLeft(p, objkey.Separator)
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, objkey.Separator) {
		p += objkey.Separator
	}
	return p
}

// SubmitPath commits the path box. An unknown folder sends the cursor back to
// the root and returns ErrUnknownFolder. changed reports whether the cursor
// moved.
func (n *Navigator) SubmitPath() (changed bool, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	before := n.cursor
	target := NormalizePath(n.input)

	if !objkey.FolderExists(n.knownKeys(), target) {
		n.setCursor("")
		return before != "", ErrUnknownFolder
	}

	n.setCursor(target)
	return before != target, nil
}

// EnterFolder opens a folder row. Rows carrying sharing records set the share
// filter to the granting user; other rows clear it. Non-folder rows are
// ignored and false is returned.
func (n *Navigator) EnterFolder(obj models.FileObject) bool {
	if !obj.IsFolder() {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.setCursor(obj.ObjectKey)
	if len(obj.Sharings) > 0 {
		by := obj.Sharings[0].SharedByUserID
		n.sharedBy = &by
	} else {
		n.sharedBy = nil
	}
	return true
}

// NavigateUp drops the last segment of the path box and walks upward until a
// known folder, or the root, is found. The resulting folder becomes the cursor.
func (n *Navigator) NavigateUp() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	keys := n.knownKeys()
	path := strings.TrimSuffix(strings.TrimPrefix(n.input, InputPrefix), objkey.Separator)

	target := ""
	for {
		i := strings.LastIndex(path, objkey.Separator)
		if i < 0 {
			break
		}
		path = path[:i]
		if candidate := path + objkey.Separator; objkey.FolderExists(keys, candidate) {
			target = candidate
			break
		}
	}

	n.setCursor(target)
	return target
}

// MoveTarget returns the key that source gets when dropped onto target.
func MoveTarget(source, target models.FileObject) (string, error) {
	if !target.IsFolder() {
		return "", ErrNotAFolder
	}
	if source.IsFolder() && strings.HasPrefix(target.ObjectKey, source.ObjectKey) {
		return "", ErrInvalidMove
	}

	newKey := objkey.JoinKey(target.ObjectKey, objkey.DisplayName(source.ObjectKey), source.IsFolder())
	if newKey == source.ObjectKey {
		return "", ErrInvalidMove
	}
	return newKey, nil
}

// SwitchTab activates tab and resets cursor, search and share filter.
func (n *Navigator) SwitchTab(tab Tab) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.tab = tab
	n.search = ""
	n.sharedBy = nil
	n.setCursor("")
}
