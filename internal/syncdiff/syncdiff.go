package syncdiff

import (
	"sort"

	"curator/internal/index"
	"curator/internal/scanner"
)

// Diff partitions the union of scanned and indexed paths into four disjoint
// sets, computed once per sync pass.
type Diff struct {
	ToAdd     []string `json:"to_add"`
	ToUpdate  []string `json:"to_update"`
	ToRemove  []string `json:"to_remove"`
	Unchanged []string `json:"unchanged"`
}

// Counts summarizes a diff for reporting.
type Counts struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Counts returns the per-set sizes.
func (d Diff) Counts() Counts {
	return Counts{
		Added:     len(d.ToAdd),
		Updated:   len(d.ToUpdate),
		Removed:   len(d.ToRemove),
		Unchanged: len(d.Unchanged),
	}
}

// Empty reports whether the diff requires no index mutation.
func (d Diff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdate) == 0 && len(d.ToRemove) == 0
}

// Compute classifies every path known to either side. The content hash is
// authoritative: a path present on both sides with an identical hash is
// unchanged even when timestamps differ, and a differing hash means update
// regardless of timestamps. When the snapshot carries no hash for a path the
// modification time decides. Compute never mutates its inputs and is a pure
// function of them.
func Compute(current []scanner.FileRecord, previous []index.Document) Diff {
	snapshot := make(map[string]index.Document, len(previous))
	for _, doc := range previous {
		snapshot[doc.Path] = doc
	}

	var diff Diff
	seen := make(map[string]struct{}, len(current))
	for _, record := range current {
		if _, dup := seen[record.Path]; dup {
			continue
		}
		seen[record.Path] = struct{}{}

		doc, exists := snapshot[record.Path]
		switch {
		case !exists:
			diff.ToAdd = append(diff.ToAdd, record.Path)
		case changed(record, doc):
			diff.ToUpdate = append(diff.ToUpdate, record.Path)
		default:
			diff.Unchanged = append(diff.Unchanged, record.Path)
		}
	}

	for path := range snapshot {
		if _, exists := seen[path]; !exists {
			diff.ToRemove = append(diff.ToRemove, path)
		}
	}

	sort.Strings(diff.ToAdd)
	sort.Strings(diff.ToUpdate)
	sort.Strings(diff.ToRemove)
	sort.Strings(diff.Unchanged)
	return diff
}

func changed(record scanner.FileRecord, doc index.Document) bool {
	if record.ContentHash != "" && doc.ContentHash != "" {
		return record.ContentHash != doc.ContentHash
	}
	return !record.ModifiedAt.Equal(doc.ModifiedAt)
}
