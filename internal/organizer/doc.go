// Package organizer groups tagged files into clusters, names a destination
// folder per cluster, plans the moves around protected zones, and executes
// the plan with preview and apply modes.
//
// The plan is immutable once built: execution mutates only entry statuses on
// a copy, and a preview run performs no filesystem mutation at all. Failure
// on one entry never aborts the rest; the mover returns an aggregate report
// enumerating every skipped and failed entry with its reason.
package organizer
