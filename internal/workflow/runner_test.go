package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/index"
	"curator/internal/organizer"
	"curator/internal/services"
	"curator/internal/tagger"
	"curator/internal/testsupport"
	"curator/internal/workflow"
)

type memoryIndex struct {
	mu   sync.Mutex
	docs map[string]index.Document
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: make(map[string]index.Document)}
}

func (m *memoryIndex) Upsert(_ context.Context, docs []index.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.docs[doc.Path] = doc
	}
	return nil
}

func (m *memoryIndex) Delete(_ context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range paths {
		delete(m.docs, path)
	}
	return nil
}

func (m *memoryIndex) Snapshot(context.Context) ([]index.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]index.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memoryIndex) Search(context.Context, string, int) ([]index.Hit, error) {
	return nil, nil
}

func (m *memoryIndex) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for path := range m.docs {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// dirTagger tags each file with its parent directory name.
type dirTagger struct{}

func (dirTagger) Name() string { return "dir-stub" }

func (dirTagger) Tag(_ context.Context, path, _ string) ([]tagger.Tag, error) {
	parent := filepath.Base(filepath.Dir(path))
	return []tagger.Tag{{Name: strings.ToLower(parent), Weight: 1}}, nil
}

// constTagger assigns every file the same tag, forcing one cluster.
type constTagger struct{ tag string }

func (c constTagger) Name() string { return "const-stub" }

func (c constTagger) Tag(context.Context, string, string) ([]tagger.Tag, error) {
	return []tagger.Tag{{Name: c.tag, Weight: 1}}, nil
}

type failingTagger struct{}

func (failingTagger) Name() string { return "failing" }

func (failingTagger) Tag(context.Context, string, string) ([]tagger.Tag, error) {
	return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "tag", "down", nil)
}

func newRunner(t *testing.T, idx index.Client, tags tagger.Provider) *workflow.Runner {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	runner, err := workflow.NewRunner(cfg, idx, tags, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func TestSyncIndexesNewFiles(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "invoices", "a.pdf"), "invoice a")
	testsupport.WriteFile(t, filepath.Join(root, "invoices", "b.pdf"), "invoice b")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, dirTagger{})

	result, err := runner.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Counts.Added != 2 || result.Counts.Removed != 0 {
		t.Errorf("counts = %+v", result.Counts)
	}
	if len(idx.paths()) != 2 {
		t.Errorf("indexed paths = %v", idx.paths())
	}

	snapshot, _ := idx.Snapshot(context.Background())
	if len(snapshot[0].Tags) == 0 || snapshot[0].Tags[0] != "invoices" {
		t.Errorf("tags = %v", snapshot[0].Tags)
	}
}

func TestSyncIsIncremental(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "docs", "keep.txt")
	gone := filepath.Join(root, "docs", "gone.txt")
	testsupport.WriteFile(t, keep, "keep")
	testsupport.WriteFile(t, gone, "gone")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, dirTagger{})
	if _, err := runner.Sync(context.Background(), root); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, keep, "keep v2")
	added := filepath.Join(root, "docs", "new.txt")
	testsupport.WriteFile(t, added, "new")

	result, err := runner.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if result.Counts.Added != 1 || result.Counts.Updated != 1 || result.Counts.Removed != 1 {
		t.Errorf("counts = %+v", result.Counts)
	}
	paths := idx.paths()
	want := []string{keep, added}
	sort.Strings(want)
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("indexed paths = %v, want %v", paths, want)
	}
}

func TestSyncTouchOnlyFileIsUnchanged(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "docs", "a.txt")
	testsupport.WriteFile(t, file, "stable content")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, dirTagger{})
	if _, err := runner.Sync(context.Background(), root); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(file, past, past); err != nil {
		t.Fatal(err)
	}
	result, err := runner.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if result.Counts.Unchanged != 1 || result.Counts.Updated != 0 {
		t.Errorf("counts = %+v", result.Counts)
	}
}

func TestSyncDegradesWhenTaggerDown(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "docs", "a.pdf"), "x")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, failingTagger{})

	result, err := runner.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Degraded != 1 {
		t.Errorf("degraded = %d, want 1", result.Degraded)
	}
	snapshot, _ := idx.Snapshot(context.Background())
	if len(snapshot) != 1 {
		t.Fatalf("snapshot = %v", snapshot)
	}
	// Extension tag survives as the degraded tag set.
	if len(snapshot[0].Tags) != 1 || snapshot[0].Tags[0] != "pdf" {
		t.Errorf("degraded tags = %v", snapshot[0].Tags)
	}
}

func TestOrganizePreviewPlansWithoutMoving(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "scans", "invoice-jan.pdf")
	b := filepath.Join(root, "scans", "invoice-feb.pdf")
	testsupport.WriteFile(t, a, "jan")
	testsupport.WriteFile(t, b, "feb")

	runner := newRunner(t, newMemoryIndex(), constTagger{tag: "invoice"})
	report, err := runner.Organize(context.Background(), root, organizer.ModePreview, false)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if report.Planned != 2 || report.Moved != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(a); err != nil {
		t.Errorf("preview moved a file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "invoice")); !errors.Is(err, os.ErrNotExist) {
		t.Error("preview created a destination directory")
	}
}

func TestOrganizeApplyMovesAndReindexes(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "scans", "one.pdf")
	b := filepath.Join(root, "scans", "two.pdf")
	testsupport.WriteFile(t, a, "one")
	testsupport.WriteFile(t, b, "two")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, constTagger{tag: "archive"})
	if _, err := runner.Sync(context.Background(), root); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	report, err := runner.Organize(context.Background(), root, organizer.ModeApply, true)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if report.Moved != 2 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(root, "archive", "one.pdf")); err != nil {
		t.Errorf("file not at clustered destination: %v", err)
	}
	if _, err := os.Stat(a); !errors.Is(err, os.ErrNotExist) {
		t.Error("source still present after apply")
	}
	for _, path := range idx.paths() {
		if filepath.Dir(path) == filepath.Join(root, "scans") {
			t.Errorf("index still references old path %s", path)
		}
	}
}

func TestOrganizeLeavesProtectedProjectsAlone(t *testing.T) {
	root := t.TempDir()
	readme := filepath.Join(root, "project", "README.md")
	testsupport.WriteFile(t, filepath.Join(root, "project", ".git", "config"), "")
	testsupport.WriteFile(t, readme, "readme")
	testsupport.WriteFile(t, filepath.Join(root, "notes", "todo.txt"), "todo")
	testsupport.WriteFile(t, filepath.Join(root, "notes", "plan.txt"), "plan")

	runner := newRunner(t, newMemoryIndex(), constTagger{tag: "archive"})
	report, err := runner.Organize(context.Background(), root, organizer.ModeApply, true)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if _, err := os.Stat(readme); err != nil {
		t.Errorf("protected file moved: %v", err)
	}
	var protectedSkips int
	for _, entry := range report.Entries {
		if entry.Status == organizer.StatusSkipped && entry.Reason == organizer.SkipProtected {
			protectedSkips++
		}
	}
	if protectedSkips != 2 {
		t.Errorf("protected skips = %d, want 2 (both files under project/)", protectedSkips)
	}
	if report.Moved != 2 {
		t.Errorf("moved = %d, want the two notes files", report.Moved)
	}
}

func TestRunLockRejectsConcurrentRun(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "docs", "a.txt"), "x")

	cfg := testsupport.NewConfig(t)
	runner, err := workflow.NewRunner(cfg, newMemoryIndex(), dirTagger{}, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	held := flock.New(filepath.Join(cfg.Paths.DataDir, "curator.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: %v %v", locked, err)
	}
	defer func() { _ = held.Unlock() }()

	_, err = runner.Sync(context.Background(), root)
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation while lock held", err)
	}
}

func TestOrganizeApplyKeepsTagsThroughReindex(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "scans", "one.pdf"), "one")
	testsupport.WriteFile(t, filepath.Join(root, "scans", "two.pdf"), "two")

	idx := newMemoryIndex()
	runner := newRunner(t, idx, constTagger{tag: "archive"})
	if _, err := runner.Sync(context.Background(), root); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := runner.Organize(context.Background(), root, organizer.ModeApply, true); err != nil {
		t.Fatalf("Organize: %v", err)
	}

	snapshot, _ := idx.Snapshot(context.Background())
	if len(snapshot) != 2 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
	for _, doc := range snapshot {
		if len(doc.Tags) == 0 || doc.Tags[0] != "archive" {
			t.Errorf("document %s lost its tags during reindex: %v", doc.Path, doc.Tags)
		}
	}

	// The follow-up sync sees identical content hashes at the new paths, so
	// nothing is re-derived and the tags must already be in place.
	result, err := runner.Sync(context.Background(), root)
	if err != nil {
		t.Fatalf("follow-up Sync: %v", err)
	}
	if result.Counts.Unchanged != 2 || result.Counts.Updated != 0 || result.Counts.Added != 0 {
		t.Errorf("follow-up counts = %+v", result.Counts)
	}
	snapshot, _ = idx.Snapshot(context.Background())
	for _, doc := range snapshot {
		if len(doc.Tags) == 0 || doc.Tags[0] != "archive" {
			t.Errorf("document %s has no tags after follow-up sync: %v", doc.Path, doc.Tags)
		}
	}
}
