package tagger

import (
	"context"
	"errors"
	"log/slog"

	"curator/internal/logging"
	"curator/internal/services"
)

// Fallback wraps a primary provider and degrades to a secondary one when the
// primary is unavailable or times out. Other failures pass through.
type Fallback struct {
	primary   Provider
	secondary Provider
	logger    *slog.Logger
}

// NewFallback pairs the providers. The secondary should be infallible in
// practice (the dictionary provider is).
func NewFallback(primary, secondary Provider, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string { return f.primary.Name() + "+" + f.secondary.Name() }

func (f *Fallback) Tag(ctx context.Context, path, content string) ([]Tag, error) {
	tags, err := f.primary.Tag(ctx, path, content)
	if err == nil {
		return tags, nil
	}
	if !errors.Is(err, services.ErrProviderUnavailable) && !errors.Is(err, services.ErrProviderTimeout) {
		return nil, err
	}
	f.logger.Warn("tag provider degraded",
		logging.String(logging.FieldComponent, "tagger"),
		logging.String("provider", f.primary.Name()),
		logging.String("fallback", f.secondary.Name()),
		logging.String(logging.FieldPath, path),
		logging.Error(err))
	return f.secondary.Tag(ctx, path, content)
}
