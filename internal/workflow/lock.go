package workflow

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"curator/internal/services"
)

// lockRun takes the per-data-dir run lock so two curator processes never
// sync or reorganize the same tree at once. The returned function releases
// the lock.
func (r *Runner) lockRun() (func(), error) {
	lockPath := filepath.Join(r.cfg.Paths.DataDir, "curator.lock")
	lock := flock.New(lockPath)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "acquire run lock", lockPath, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "acquire run lock",
			"another curator run is already in progress", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
