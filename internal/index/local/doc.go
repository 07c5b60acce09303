// Package local implements the index client on an embedded SQLite database,
// for running curator without an external search service.
package local
