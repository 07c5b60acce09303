// Package services defines the error taxonomy shared by curator's components
// and the context helpers used to correlate log output across a run.
//
// Component-local faults (one file, one provider call, one move) are wrapped
// with a sentinel marker and absorbed into the run report; systemic faults
// (unreadable root, unreachable index) propagate as run-level failures.
package services
