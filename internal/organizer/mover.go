package organizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"golang.org/x/sync/errgroup"

	"curator/internal/logging"
	"curator/internal/services"
)

// Mode selects whether Execute mutates the filesystem.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeApply   Mode = "apply"
)

// Mover executes a plan with per-entry failure isolation. Entries targeting
// the same destination directory run on one goroutine; disjoint directories
// run concurrently up to the worker limit.
type Mover struct {
	workers int
	logger  *slog.Logger
}

// NewMover bounds move concurrency to workers.
func NewMover(workers int, logger *slog.Logger) *Mover {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Mover{workers: workers, logger: logger}
}

// Execute runs the plan. In Preview mode nothing on disk changes and the
// report describes what Apply would do. Apply requires confirmed to be true
// before any move begins; this is checked once for the whole plan. A failed
// entry never aborts the rest, and cancellation leaves every entry not
// reported Moved at its original path.
func (m *Mover) Execute(ctx context.Context, plan Plan, mode Mode, confirmed bool) (*Report, error) {
	entries := append([]Entry(nil), plan.Entries...)

	if mode == ModePreview {
		return newReport(ctx, plan.Root, mode, entries), nil
	}
	if !confirmed {
		return nil, services.Wrap(services.ErrValidation, "mover", "execute plan",
			"apply requires confirmation", nil)
	}

	for i := range entries {
		if entries[i].Status == StatusPlanned {
			entries[i].Status = StatusConfirmed
		}
	}

	groups := make(map[string][]int)
	for i, entry := range entries {
		if entry.Status != StatusConfirmed {
			continue
		}
		dir := filepath.Dir(entry.Destination)
		groups[dir] = append(groups[dir], i)
	}
	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	// One goroutine per destination directory so directory creation and
	// sibling moves never race. Entries of different groups touch disjoint
	// slice indices.
	log := logging.WithContext(ctx, m.logger)
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(m.workers)
	for _, dir := range dirs {
		indices := groups[dir]
		grp.Go(func() error {
			for _, i := range indices {
				if grpCtx.Err() != nil {
					entries[i].Status = StatusPlanned
					entries[i].Reason = ""
					continue
				}
				m.moveOne(log, &entries[i])
			}
			return nil
		})
	}
	_ = grp.Wait()

	if err := ctx.Err(); err != nil {
		return newReport(ctx, plan.Root, mode, entries), err
	}
	return newReport(ctx, plan.Root, mode, entries), nil
}

func (m *Mover) moveOne(log *slog.Logger, entry *Entry) {
	err := m.move(entry.Source, entry.Destination)
	if err != nil {
		entry.Status = StatusFailed
		entry.Reason = err.Error()
		log.Warn("move failed",
			logging.String(logging.FieldComponent, "mover"),
			logging.String(logging.FieldPath, entry.Source),
			logging.String("destination", entry.Destination),
			logging.Error(err))
		return
	}
	entry.Status = StatusMoved
	log.Debug("moved",
		logging.String(logging.FieldComponent, "mover"),
		logging.String(logging.FieldPath, entry.Source),
		logging.String("destination", entry.Destination))
}

func (m *Mover) move(source, destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return services.Wrap(services.ErrMoveFailed, "mover", "create destination directory", destination, err)
	}
	if _, err := os.Lstat(destination); err == nil {
		return services.Wrap(services.ErrMoveFailed, "mover", "move file",
			"destination already exists: "+destination, nil)
	}

	err := os.Rename(source, destination)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EXDEV) {
		if copyErr := copyAndRemove(source, destination); copyErr != nil {
			return services.Wrap(services.ErrMoveFailed, "mover", "copy across devices", source, copyErr)
		}
		return nil
	}
	return services.Wrap(services.ErrMoveFailed, "mover", "move file", source, err)
}

// copyAndRemove is the cross-device fallback: copy to a temp file next to
// the destination, verify the digest, rename into place, then remove the
// source. The source survives any failure.
func copyAndRemove(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), ".curator-move-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), in)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if written != info.Size() {
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size())
	}
	if err := verifyDigest(tmpPath, hex.EncodeToString(hasher.Sum(nil))); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return err
	}
	return os.Remove(source)
}

func verifyDigest(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(hasher.Sum(nil)); got != want {
		return fmt.Errorf("digest mismatch after copy: %s != %s", got, want)
	}
	return nil
}
