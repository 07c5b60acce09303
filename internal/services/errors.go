package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrScan marks a per-file scan failure. Non-fatal: the file is excluded
	// from the record sequence and reported.
	ErrScan = errors.New("scan error")
	// ErrRootUnreadable marks a hard I/O failure on the scan root. Fatal to the run.
	ErrRootUnreadable = errors.New("root unreadable")
	// ErrProviderUnavailable marks a tagging or embedding provider that could
	// not be reached. Triggers degraded tagging for the affected file.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderTimeout marks a provider call that exceeded its deadline.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrIndexConnection marks an unreachable search index. Fatal to the sync
	// step; callers retry with backoff.
	ErrIndexConnection = errors.New("index connection error")
	// ErrIndexRejected marks a document the index refused to accept.
	ErrIndexRejected = errors.New("document rejected")
	// ErrMoveFailed marks a single failed move entry, isolated from the rest
	// of the plan.
	ErrMoveFailed = errors.New("move failed")
	// ErrValidation marks caller mistakes such as a missing root path.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes run context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrScan
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err should abort the whole run instead of being
// absorbed into the report.
func Fatal(err error) bool {
	return errors.Is(err, ErrRootUnreadable) ||
		errors.Is(err, ErrIndexConnection) ||
		errors.Is(err, ErrConfiguration)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
