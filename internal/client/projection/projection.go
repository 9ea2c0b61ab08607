// Package projection computes the folder view shown for a cursor position out
// of the flat object list returned by the backend.
//
// The projection is a pure recomputation: it never mutates its input and keeps
// no state between calls, so implied folders are always derived from the
// authoritative list.
package projection

import (
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/samber/lo"
)

// Query selects what to project.
type Query struct {
	// Cursor is the current directory, "" for the root.
	Cursor string

	// Search, when not empty, keeps objects whose full key contains it
	// (case-insensitive).
	Search string

	// SharedBy, when set, keeps objects carrying a sharing record granted by
	// that user. It has no effect at the root.
	SharedBy *int64
}

// View is the result of a projection.
type View struct {
	// Items are the direct children of the cursor, files first.
	Items []models.FileObject

	// Orphans are keys below the cursor whose implied child folder has no
	// marker object. They are dropped from Items.
	Orphans []string
}

// Project returns the direct children of q.Cursor among files.
func Project(files []models.FileObject, q Query) View {
	known := make(map[string]struct{}, len(files))
	for _, f := range files {
		known[f.ObjectKey] = struct{}{}
	}

	var view View
	items := make([]models.FileObject, 0, len(files))

	for _, f := range files {
		key := f.ObjectKey
		if !strings.HasPrefix(key, q.Cursor) || key == q.Cursor {
			continue
		}

		rest := key[len(q.Cursor):]
		i := strings.Index(rest, objkey.Separator)
		if i < 0 || i == len(rest)-1 {
			items = append(items, f)
			continue
		}

		// Deeper than one level: the row belongs to the child folder, which is
		// listed on its own when its marker exists.
		if _, ok := known[q.Cursor+rest[:i+1]]; !ok {
			view.Orphans = append(view.Orphans, key)
		}
	}

	if q.SharedBy != nil && q.Cursor != "" {
		by := *q.SharedBy
		items = lo.Filter(items, func(f models.FileObject, _ int) bool {
			return lo.ContainsBy(f.Sharings, func(s models.FileSharing) bool {
				return s.SharedByUserID == by
			})
		})
	}

	if term := strings.ToLower(q.Search); term != "" {
		items = lo.Filter(items, func(f models.FileObject, _ int) bool {
			return strings.Contains(strings.ToLower(f.ObjectKey), term)
		})
	}

	sort.SliceStable(items, func(a, b int) bool {
		return !items[a].IsFolder() && items[b].IsFolder()
	})

	view.Items = items
	return view
}

// Keys returns the object keys of files, in order.
func Keys(files []models.FileObject) []string {
	return lo.Map(files, func(f models.FileObject, _ int) string { return f.ObjectKey })
}

// NamesIn returns the display names (with a trailing separator for folders) of
// the direct children of dir, implied folders included. It is used to detect
// name conflicts.
func NamesIn(files []models.FileObject, dir string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, f := range files {
		if !strings.HasPrefix(f.ObjectKey, dir) || f.ObjectKey == dir {
			continue
		}
		rest := f.ObjectKey[len(dir):]
		if i := strings.Index(rest, objkey.Separator); i >= 0 {
			rest = rest[:i+1]
		}
		names[rest] = struct{}{}
	}
	return names
}
