package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"curator/internal/protect"
)

// Status tracks a plan entry through its lifecycle. A plan is immutable once
// built; execution mutates only the status and reason of entry copies.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusSkipped   Status = "skipped"
	StatusConfirmed Status = "confirmed"
	StatusMoved     Status = "moved"
	StatusFailed    Status = "failed"
)

// Skip reasons used by the planner.
const (
	SkipProtected = "protected"
	SkipNoop      = "no-op"
	SkipUnplanned = "no destination"
)

// Entry is one file's fate in a reorganization pass.
type Entry struct {
	Source      string `json:"source"`
	Destination string `json:"destination,omitempty"`
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// Plan is the exhaustive move plan for one pass: every input file appears in
// exactly one entry.
type Plan struct {
	Root    string  `json:"root"`
	Entries []Entry `json:"entries"`
}

// Planned returns the entries that would move.
func (p Plan) Planned() []Entry {
	var out []Entry
	for _, entry := range p.Entries {
		if entry.Status == StatusPlanned {
			out = append(out, entry)
		}
	}
	return out
}

// Counts tallies entries per status.
func (p Plan) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, entry := range p.Entries {
		counts[entry.Status]++
	}
	return counts
}

// Planner turns folder assignments plus protection into a Plan.
type Planner struct {
	root  string
	zones *protect.Set
}

// NewPlanner builds a planner for files under root. zones may be nil when
// nothing is protected.
func NewPlanner(root string, zones *protect.Set) *Planner {
	return &Planner{root: filepath.Clean(root), zones: zones}
}

// Build produces the plan. folders maps a source path to its destination
// folder relative to the root (possibly hierarchical). Files under a
// protected zone are skipped regardless of assignment; a file already at its
// destination is a no-op; destination name collisions get a numeric suffix,
// never an overwrite. Building the same inputs twice yields identical plans.
func (p *Planner) Build(paths []string, folders map[string]string) Plan {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	plan := Plan{Root: p.root, Entries: make([]Entry, 0, len(sorted))}
	claimed := make(map[string]struct{}, len(sorted))
	seen := make(map[string]struct{}, len(sorted))

	for _, source := range sorted {
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}

		if p.zones != nil {
			if _, protected := p.zones.Protected(source); protected {
				plan.Entries = append(plan.Entries, Entry{Source: source, Status: StatusSkipped, Reason: SkipProtected})
				continue
			}
		}
		folder, ok := folders[source]
		if !ok || folder == "" {
			plan.Entries = append(plan.Entries, Entry{Source: source, Status: StatusSkipped, Reason: SkipUnplanned})
			continue
		}

		destination := filepath.Join(p.root, filepath.FromSlash(folder), filepath.Base(source))
		if destination == source {
			plan.Entries = append(plan.Entries, Entry{Source: source, Status: StatusSkipped, Reason: SkipNoop})
			continue
		}
		destination = p.disambiguate(destination, source, claimed)
		claimed[destination] = struct{}{}
		plan.Entries = append(plan.Entries, Entry{Source: source, Destination: destination, Status: StatusPlanned})
	}
	return plan
}

// disambiguate appends _1, _2, ... to the filename stem until the
// destination collides with neither a claimed destination nor an existing
// file.
func (p *Planner) disambiguate(destination, source string, claimed map[string]struct{}) string {
	candidate := destination
	for i := 1; ; i++ {
		if !taken(candidate, source, claimed) {
			return candidate
		}
		dir := filepath.Dir(destination)
		base := filepath.Base(destination)
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}

func taken(candidate, source string, claimed map[string]struct{}) bool {
	if _, ok := claimed[candidate]; ok {
		return true
	}
	if candidate == source {
		return false
	}
	_, err := os.Lstat(candidate)
	return err == nil
}
