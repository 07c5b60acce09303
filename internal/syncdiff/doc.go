// Package syncdiff reconciles the current scan against the last persisted
// index snapshot. The diff is pure and re-derivable: callers apply it to the
// index, and a partial upsert failure never corrupts the classification.
package syncdiff
