// Package sharing overlays sharing grants onto file objects.
//
// The backend returns one (grant, object) pair per grant. Several grants can
// reach the same object, for instance a direct file share and a share of the
// containing folder, and one grant can be reported under several objects when
// it covers a folder. Merge folds the pairs into one row per object;
// HasDuplicateFileSharingIDs and DuplicateGrants detect grants that are
// visible under more than one row, whose revocation affects more than the row
// the user is looking at.
package sharing

import (
	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/samber/lo"
)

// Merge collapses entries pointing at the same object key into one object
// carrying every sharing record. Rows keep the order in which their key was
// first seen; records keep arrival order and are not repeated.
func Merge(entries []models.SharedEntry) []models.FileObject {
	index := make(map[string]int, len(entries))
	out := make([]models.FileObject, 0, len(entries))

	for _, e := range entries {
		key := e.FileObject.ObjectKey
		i, ok := index[key]
		if !ok {
			obj := e.FileObject
			obj.Sharings = nil
			index[key] = len(out)
			out = append(out, obj)
			i = len(out) - 1
		}

		row := &out[i]
		dup := lo.ContainsBy(row.Sharings, func(s models.FileSharing) bool { return s.ID == e.FileSharing.ID })
		if !dup {
			row.Sharings = append(row.Sharings, e.FileSharing)
		}
	}
	return out
}

// HasDuplicateFileSharingIDs reports whether a and b share at least one
// sharing record id.
func HasDuplicateFileSharingIDs(a, b models.FileObject) bool {
	if len(a.Sharings) == 0 || len(b.Sharings) == 0 {
		return false
	}
	ids := lo.SliceToMap(a.Sharings, func(s models.FileSharing) (int64, struct{}) { return s.ID, struct{}{} })
	return lo.ContainsBy(b.Sharings, func(s models.FileSharing) bool {
		_, ok := ids[s.ID]
		return ok
	})
}

// DuplicateGrants returns the objects other than target that carry any of
// target's sharing records.
func DuplicateGrants(target models.FileObject, objects []models.FileObject) []models.FileObject {
	return lo.Filter(objects, func(o models.FileObject, _ int) bool {
		return o.ObjectKey != target.ObjectKey && HasDuplicateFileSharingIDs(target, o)
	})
}

// AffectedBy returns the keys of objects carrying the sharing record id.
func AffectedBy(id int64, objects []models.FileObject) []string {
	var keys []string
	for _, o := range objects {
		if lo.ContainsBy(o.Sharings, func(s models.FileSharing) bool { return s.ID == id }) {
			keys = append(keys, o.ObjectKey)
		}
	}
	return keys
}
