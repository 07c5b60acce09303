// Package logging builds the slog loggers used throughout curator and keeps
// structured field names consistent between components.
package logging
