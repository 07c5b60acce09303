// Package protect flags directory subtrees that reorganization must never
// touch: version-control trees, dependency and build folders, platform
// bundles, and project roots identified by a manifest file. Protection is
// prefix-closed and monotonic; a nested manifest neither re-triggers
// detection nor revokes anything.
package protect
