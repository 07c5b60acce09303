package tagger

import (
	"context"
	"sort"
)

// Tag is a semantic label with an opaque comparable weight. Higher weight
// means stronger evidence; the absolute scale carries no meaning across
// providers.
type Tag struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Provider derives weighted tags for a file from its path and an optional
// content sample.
type Provider interface {
	Name() string
	Tag(ctx context.Context, path, content string) ([]Tag, error)
}

// Names flattens tags to their labels, best first.
func Names(tags []Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.Name)
	}
	return out
}

// SortAndTrim orders tags by descending weight with lexicographic tie-break
// and keeps at most limit entries. A non-positive limit keeps everything.
func SortAndTrim(tags []Tag, limit int) []Tag {
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Weight != tags[j].Weight {
			return tags[i].Weight > tags[j].Weight
		}
		return tags[i].Name < tags[j].Name
	})
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}
