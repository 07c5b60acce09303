package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"curator/internal/logging"
	"curator/internal/services"
)

// FileRecord describes one regular file produced by a scan pass. Records are
// immutable once produced; identity key is Path.
type FileRecord struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Extension   string    `json:"extension"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	ContentHash string    `json:"content_hash"`
}

// ScanError reports a per-file failure that excluded the file from the scan.
type ScanError struct {
	Path string
	Err  error
}

func (e ScanError) Error() string {
	return "scan " + e.Path + ": " + e.Err.Error()
}

// MarshalJSON flattens the wrapped error into its message.
func (e ScanError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{Path: e.Path, Error: e.Err.Error()})
}

// Result holds the materialized outcome of one scan pass.
type Result struct {
	Root    string
	Records []FileRecord
	Errors  []ScanError
}

// Scanner walks a root path and fingerprints every regular file it can read.
type Scanner struct {
	workers int
	ignore  *gitignore.GitIgnore
	logger  *slog.Logger
}

// New constructs a scanner. ignoreFile may be empty; when set it is parsed as
// gitignore-style patterns applied to paths relative to the scan root.
func New(workers int, ignoreFile string, logger *slog.Logger) (*Scanner, error) {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scanner{
		workers: workers,
		logger:  logger.With(logging.String(logging.FieldComponent, "scanner")),
	}
	if strings.TrimSpace(ignoreFile) != "" {
		matcher, err := gitignore.CompileIgnoreFile(ignoreFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "scanning", "parse ignore file", ignoreFile, err)
		}
		s.ignore = matcher
	}
	return s, nil
}

// Scan walks root and returns a FileRecord per reachable regular file.
// Per-file failures are collected in Result.Errors; an unreadable root is
// fatal. Hashing runs across files with bounded parallelism.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	resolved, err := filepath.Abs(strings.TrimSpace(root))
	if err != nil {
		return nil, services.Wrap(services.ErrRootUnreadable, "scanning", "resolve root", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, services.Wrap(services.ErrRootUnreadable, "scanning", "stat root", resolved, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrRootUnreadable, "scanning", "stat root", resolved+" is not a directory", nil)
	}

	result := &Result{Root: resolved}
	var candidates []string

	walkErr := filepath.WalkDir(resolved, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == resolved {
				return services.Wrap(services.ErrRootUnreadable, "scanning", "walk root", resolved, err)
			}
			result.Errors = append(result.Errors, ScanError{Path: path, Err: err})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != resolved && s.ignored(resolved, path, true) {
				return fs.SkipDir
			}
			return nil
		}
		// WalkDir never follows directory symlinks, which doubles as the
		// cycle guard; symlink entries are skipped outright.
		if !entry.Type().IsRegular() {
			return nil
		}
		if s.ignored(resolved, path, false) {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if walkErr != nil {
		if services.Fatal(walkErr) || errors.Is(walkErr, context.Canceled) {
			return nil, walkErr
		}
		return nil, services.Wrap(services.ErrRootUnreadable, "scanning", "walk root", resolved, walkErr)
	}

	records := make([]FileRecord, 0, len(candidates))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for _, path := range candidates {
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			record, err := fingerprint(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// The file may have vanished or become unreadable between
				// walk and hash. Report and continue.
				result.Errors = append(result.Errors, ScanError{Path: path, Err: err})
				return nil
			}
			records = append(records, record)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	result.Records = records

	s.logger.Debug("scan completed",
		logging.String("root", resolved),
		logging.Int("files", len(records)),
		logging.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *Scanner) ignored(root, path string, isDir bool) bool {
	if s.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return s.ignore.MatchesPath(rel)
}
