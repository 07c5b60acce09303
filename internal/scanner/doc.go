// Package scanner walks a directory tree and produces a fingerprinted
// FileRecord per regular file. Directory symlinks are never followed, per-file
// failures are reported without aborting the walk, and content hashing runs
// across files with bounded parallelism.
package scanner
