package index

import (
	"context"
	"time"

	"curator/internal/scanner"
)

// Document is the unit persisted in the search index: a scanned file plus the
// tags and optional embedding derived for it. The index owns persisted state;
// the core only reads snapshots and issues explicit upserts and deletes.
type Document struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Extension   string    `json:"extension,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	ContentHash string    `json:"content_hash"`
	Tags        []string  `json:"tags,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// FromRecord builds a Document from a scan record and derived semantics.
func FromRecord(record scanner.FileRecord, tags []string, embedding []float32) Document {
	return Document{
		Path:        record.Path,
		Size:        record.Size,
		Extension:   record.Extension,
		CreatedAt:   record.CreatedAt,
		ModifiedAt:  record.ModifiedAt,
		ContentHash: record.ContentHash,
		Tags:        tags,
		Embedding:   embedding,
	}
}

// Hit is a search result with its relevance score.
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// Client is the narrow contract curator consumes from a search index backend.
type Client interface {
	// Upsert adds or replaces documents keyed by path.
	Upsert(ctx context.Context, docs []Document) error
	// Delete removes the documents for the given paths. Unknown paths are
	// not an error.
	Delete(ctx context.Context, paths []string) error
	// Snapshot returns every persisted document.
	Snapshot(ctx context.Context) ([]Document, error)
	// Search returns documents matching the query, best first.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}
