package organizer

import (
	"context"

	"github.com/google/uuid"

	"curator/internal/services"
)

// Failure records one entry that could not be moved.
type Failure struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
}

// Report aggregates an Execute call: per-status counts, every failure with
// its reason, and the final entry states. A run always ends with a report,
// never a silent partial result.
type Report struct {
	RunID    string    `json:"run_id"`
	Root     string    `json:"root"`
	Mode     Mode      `json:"mode"`
	Planned  int       `json:"planned"`
	Moved    int       `json:"moved"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
	Entries  []Entry   `json:"entries"`
}

// newReport adopts the run identifier already on the context so the report
// correlates with the run's log lines; a bare context gets a fresh one.
func newReport(ctx context.Context, root string, mode Mode, entries []Entry) *Report {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
	}
	report := &Report{
		RunID:   runID,
		Root:    root,
		Mode:    mode,
		Entries: entries,
	}
	for _, entry := range entries {
		switch entry.Status {
		case StatusPlanned, StatusConfirmed:
			report.Planned++
		case StatusMoved:
			report.Moved++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
			report.Failures = append(report.Failures, Failure{
				Source:      entry.Source,
				Destination: entry.Destination,
				Reason:      entry.Reason,
			})
		}
	}
	return report
}
