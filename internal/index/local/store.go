package local

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/index"
	"curator/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rebuilt by deleting the file.
const schemaVersion = 1

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is an embedded index backend persisted in SQLite. It doubles as the
// snapshot source for incremental sync when no external index is configured.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the index database inside dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, services.Wrap(services.ErrIndexConnection, "index", "open database", dbPath, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrIndexConnection, "index", "apply pragma", pragma, err)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(services.ErrIndexConnection, "index", "create schema", "", err)
	}
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "write schema version", "", err)
		}
	case err != nil:
		return services.Wrap(services.ErrIndexConnection, "index", "read schema version", "", err)
	case version.Int64 != schemaVersion:
		return services.Wrap(services.ErrIndexConnection, "index", "verify schema",
			fmt.Sprintf("database has version %d, expected %d (delete %s to rebuild)", version.Int64, schemaVersion, s.path), nil)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) Upsert(ctx context.Context, docs []index.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "begin upsert", "", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (path, size, extension, created_at, modified_at, content_hash, tags, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size = excluded.size,
				extension = excluded.extension,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at,
				content_hash = excluded.content_hash,
				tags = excluded.tags,
				embedding = excluded.embedding`)
		if err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "prepare upsert", "", err)
		}
		defer stmt.Close()

		for _, doc := range docs {
			tags, err := json.Marshal(doc.Tags)
			if err != nil {
				return services.Wrap(services.ErrIndexRejected, "index", "encode tags", doc.Path, err)
			}
			embedding := ""
			if len(doc.Embedding) > 0 {
				encoded, err := json.Marshal(doc.Embedding)
				if err != nil {
					return services.Wrap(services.ErrIndexRejected, "index", "encode embedding", doc.Path, err)
				}
				embedding = string(encoded)
			}
			if _, err := stmt.ExecContext(ctx,
				doc.Path, doc.Size, doc.Extension,
				doc.CreatedAt.UTC().Format(time.RFC3339Nano),
				doc.ModifiedAt.UTC().Format(time.RFC3339Nano),
				doc.ContentHash, string(tags), embedding,
			); err != nil {
				return services.Wrap(services.ErrIndexRejected, "index", "upsert document", doc.Path, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "commit upsert", "", err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "begin delete", "", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, path := range paths {
			if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
				return services.Wrap(services.ErrIndexConnection, "index", "delete document", path, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrIndexConnection, "index", "commit delete", "", err)
		}
		return nil
	})
}

func (s *Store) Snapshot(ctx context.Context) ([]index.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, size, extension, created_at, modified_at, content_hash, tags, embedding FROM documents ORDER BY path")
	if err != nil {
		return nil, services.Wrap(services.ErrIndexConnection, "index", "query snapshot", "", err)
	}
	defer rows.Close()

	var docs []index.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrIndexConnection, "index", "iterate snapshot", "", err)
	}
	return docs, nil
}

// Search matches the query against paths and tags. Tag matches rank above
// path matches; ties break by path for stable output.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]index.Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, size, extension, created_at, modified_at, content_hash, tags, embedding
		FROM documents
		WHERE lower(path) LIKE ? OR lower(tags) LIKE ?
		ORDER BY path`, pattern, pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrIndexConnection, "index", "search", "", err)
	}
	defer rows.Close()

	needle := strings.ToLower(strings.TrimSpace(query))
	var hits []index.Hit
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, index.Hit{Document: doc, Score: score(doc, needle)})
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrIndexConnection, "index", "iterate search", "", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func score(doc index.Document, needle string) float64 {
	for _, tag := range doc.Tags {
		if strings.ToLower(tag) == needle {
			return 1.0
		}
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return 0.8
		}
	}
	return 0.5
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (index.Document, error) {
	var (
		doc        index.Document
		createdAt  string
		modifiedAt string
		tagsJSON   string
		embedding  string
	)
	if err := row.Scan(&doc.Path, &doc.Size, &doc.Extension, &createdAt, &modifiedAt, &doc.ContentHash, &tagsJSON, &embedding); err != nil {
		return index.Document{}, services.Wrap(services.ErrIndexConnection, "index", "scan row", "", err)
	}
	if createdAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			doc.CreatedAt = ts
		}
	}
	if modifiedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, modifiedAt); err == nil {
			doc.ModifiedAt = ts
		}
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
			return index.Document{}, services.Wrap(services.ErrIndexRejected, "index", "decode tags", doc.Path, err)
		}
	}
	if embedding != "" {
		if err := json.Unmarshal([]byte(embedding), &doc.Embedding); err != nil {
			return index.Document{}, services.Wrap(services.ErrIndexRejected, "index", "decode embedding", doc.Path, err)
		}
	}
	return doc, nil
}
