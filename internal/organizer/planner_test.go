package organizer_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"curator/internal/config"
	"curator/internal/organizer"
	"curator/internal/protect"
	"curator/internal/scanner"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPlannerSkipsProtectedFiles(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	writeFile(t, filepath.Join(project, ".git", "config"))
	writeFile(t, filepath.Join(project, "README.md"))
	writeFile(t, filepath.Join(root, "notes", "todo.txt"))

	records := []scanner.FileRecord{
		{Path: filepath.Join(project, ".git", "config")},
		{Path: filepath.Join(project, "README.md")},
		{Path: filepath.Join(root, "notes", "todo.txt")},
	}
	zones := protect.NewDetector(config.Default().Protection).Detect(root, records)

	paths := []string{
		filepath.Join(project, "README.md"),
		filepath.Join(root, "notes", "todo.txt"),
	}
	folders := map[string]string{
		filepath.Join(project, "README.md"):      "docs",
		filepath.Join(root, "notes", "todo.txt"): "tasks",
	}

	plan := organizer.NewPlanner(root, zones).Build(paths, folders)
	if len(plan.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(plan.Entries))
	}

	byen := map[string]organizer.Entry{}
	for _, entry := range plan.Entries {
		byen[entry.Source] = entry
	}
	readme := byen[filepath.Join(project, "README.md")]
	if readme.Status != organizer.StatusSkipped || readme.Reason != organizer.SkipProtected {
		t.Errorf("README entry = %+v, want Skipped(protected)", readme)
	}
	todo := byen[filepath.Join(root, "notes", "todo.txt")]
	if todo.Status != organizer.StatusPlanned {
		t.Errorf("todo entry = %+v, want Planned", todo)
	}
	if want := filepath.Join(root, "tasks", "todo.txt"); todo.Destination != want {
		t.Errorf("todo destination = %q, want %q", todo.Destination, want)
	}
}

func TestPlannerNoopWhenAlreadyInPlace(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "invoices", "a.pdf")
	writeFile(t, source)

	plan := organizer.NewPlanner(root, nil).Build(
		[]string{source},
		map[string]string{source: "invoices"},
	)
	if len(plan.Entries) != 1 {
		t.Fatalf("got %d entries", len(plan.Entries))
	}
	entry := plan.Entries[0]
	if entry.Status != organizer.StatusSkipped || entry.Reason != organizer.SkipNoop {
		t.Errorf("entry = %+v, want Skipped(no-op)", entry)
	}
}

func TestPlannerSuffixesCollidingDestinations(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "one", "a.pdf")
	second := filepath.Join(root, "two", "a.pdf")
	writeFile(t, first)
	writeFile(t, second)

	plan := organizer.NewPlanner(root, nil).Build(
		[]string{first, second},
		map[string]string{first: "invoices", second: "invoices"},
	)

	destinations := map[string]string{}
	for _, entry := range plan.Entries {
		if entry.Status != organizer.StatusPlanned {
			t.Fatalf("entry = %+v, want Planned", entry)
		}
		destinations[entry.Source] = entry.Destination
	}
	if want := filepath.Join(root, "invoices", "a.pdf"); destinations[first] != want {
		t.Errorf("first destination = %q, want %q", destinations[first], want)
	}
	if want := filepath.Join(root, "invoices", "a_1.pdf"); destinations[second] != want {
		t.Errorf("second destination = %q, want %q", destinations[second], want)
	}
}

func TestPlannerSuffixesWhenDestinationFileExists(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "inbox", "a.pdf")
	writeFile(t, source)
	writeFile(t, filepath.Join(root, "invoices", "a.pdf"))

	plan := organizer.NewPlanner(root, nil).Build(
		[]string{source},
		map[string]string{source: "invoices"},
	)
	entry := plan.Entries[0]
	if want := filepath.Join(root, "invoices", "a_1.pdf"); entry.Destination != want {
		t.Errorf("destination = %q, want %q", entry.Destination, want)
	}
}

func TestPlannerExhaustiveAndIdempotent(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "x", "a.txt")
	b := filepath.Join(root, "x", "b.txt")
	c := filepath.Join(root, "x", "c.txt")
	for _, p := range []string{a, b, c} {
		writeFile(t, p)
	}

	paths := []string{a, b, c}
	folders := map[string]string{a: "notes", b: "notes"}

	planner := organizer.NewPlanner(root, nil)
	plan := planner.Build(paths, folders)
	if len(plan.Entries) != 3 {
		t.Fatalf("plan not exhaustive: %d entries", len(plan.Entries))
	}
	for _, entry := range plan.Entries {
		if entry.Source == c {
			if entry.Status != organizer.StatusSkipped || entry.Reason != organizer.SkipUnplanned {
				t.Errorf("unassigned file entry = %+v", entry)
			}
		}
	}

	again := planner.Build(paths, folders)
	if !reflect.DeepEqual(plan, again) {
		t.Error("planner is not idempotent for identical inputs")
	}
}
