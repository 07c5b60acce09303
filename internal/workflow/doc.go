// Package workflow orchestrates the curator pipeline: scanning, protected
// zone detection, diffing against the index, tagging and embedding with
// bounded concurrency, clustering, planning, and moving. One run lock per
// data directory keeps concurrent runs off the same tree.
package workflow
