package workflow

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"curator/internal/config"
	"curator/internal/embed"
	"curator/internal/index"
	"curator/internal/logging"
	"curator/internal/organizer"
	"curator/internal/protect"
	"curator/internal/scanner"
	"curator/internal/services"
	"curator/internal/syncdiff"
	"curator/internal/tagger"
)

// Runner wires the pipeline stages together for sync and organize passes.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	index    index.Client
	tags     tagger.Provider
	embedder embed.Provider
	scanner  *scanner.Scanner
	detector *protect.Detector
}

// RunnerOption configures optional Runner behavior.
type RunnerOption func(*Runner)

// WithEmbedder enables embedding computation during sync. Without it
// documents are indexed tag-only.
func WithEmbedder(provider embed.Provider) RunnerOption {
	return func(r *Runner) {
		r.embedder = provider
	}
}

// NewRunner constructs the pipeline runner.
func NewRunner(cfg *config.Config, indexClient index.Client, tagProvider tagger.Provider, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	scan, err := scanner.New(cfg.Workflow.ScanWorkers, cfg.Paths.IgnoreFile, logger)
	if err != nil {
		return nil, err
	}
	runner := &Runner{
		cfg:      cfg,
		logger:   logger,
		index:    indexClient,
		tags:     tagProvider,
		scanner:  scan,
		detector: protect.NewDetector(cfg.Protection),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Root       string             `json:"root"`
	Counts     syncdiff.Counts    `json:"counts"`
	Degraded   int                `json:"degraded"`
	ScanErrors []scanner.ScanError `json:"scan_errors,omitempty"`
}

// Sync brings the index in line with the filesystem: scan, diff against the
// index snapshot, tag and embed the changed files with bounded concurrency,
// then upsert and delete. Provider failures degrade single files; an index
// connection failure fails the pass.
func (r *Runner) Sync(ctx context.Context, root string) (*SyncResult, error) {
	unlock, err := r.lockRun()
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = services.WithStage(services.WithRunID(ctx, uuid.NewString()), "sync")
	log := logging.WithContext(ctx, r.logger)

	scanResult, err := r.scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	snapshot, err := r.index.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	diff := syncdiff.Compute(scanResult.Records, snapshot)

	result := &SyncResult{Root: scanResult.Root, Counts: diff.Counts(), ScanErrors: scanResult.Errors}
	log.Info("sync diff computed",
		logging.String(logging.FieldComponent, "workflow"),
		logging.Int("added", result.Counts.Added),
		logging.Int("updated", result.Counts.Updated),
		logging.Int("removed", result.Counts.Removed),
		logging.Int("unchanged", result.Counts.Unchanged))

	if diff.Empty() {
		return result, nil
	}

	records := make(map[string]scanner.FileRecord, len(scanResult.Records))
	for _, record := range scanResult.Records {
		records[record.Path] = record
	}

	changed := append(append([]string(nil), diff.ToAdd...), diff.ToUpdate...)
	sort.Strings(changed)

	docs := make([]index.Document, len(changed))
	var degraded int
	var mu sync.Mutex

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(r.providerConcurrency())
	for i, path := range changed {
		grp.Go(func() error {
			record := records[path]
			tags, embedding, wasDegraded := r.describe(grpCtx, record)
			mu.Lock()
			docs[i] = index.FromRecord(record, tags, embedding)
			if wasDegraded {
				degraded++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return result, err
	}
	result.Degraded = degraded

	if err := r.index.Upsert(ctx, docs); err != nil {
		return result, err
	}
	if err := r.index.Delete(ctx, diff.ToRemove); err != nil {
		return result, err
	}
	return result, nil
}

// describe derives tags and an optional embedding for one file. Failures
// degrade the file rather than failing the batch: tagging falls back to an
// extension-only tag and embedding is simply omitted.
func (r *Runner) describe(ctx context.Context, record scanner.FileRecord) (tags []string, embedding []float32, degraded bool) {
	log := logging.WithContext(ctx, r.logger)
	weighted, err := r.tags.Tag(ctx, record.Path, "")
	if err != nil {
		degraded = true
		log.Warn("tagging degraded",
			logging.String(logging.FieldComponent, "workflow"),
			logging.String(logging.FieldPath, record.Path),
			logging.Error(err))
		if record.Extension != "" {
			weighted = []tagger.Tag{{Name: record.Extension, Weight: 1}}
		}
	}
	tags = tagger.Names(weighted)

	if r.embedder != nil {
		text := embedText(record.Path, tags)
		vector, err := r.embedder.Embed(ctx, text)
		if err != nil {
			degraded = true
			log.Warn("embedding degraded",
				logging.String(logging.FieldComponent, "workflow"),
				logging.String(logging.FieldPath, record.Path),
				logging.Error(err))
		} else {
			embedding = vector
		}
	}
	return tags, embedding, degraded
}

func embedText(path string, tags []string) string {
	parts := append(tagger.Tokenize(path), tags...)
	return strings.Join(parts, " ")
}

// Organize runs the reorganization pass: scan, detect protected zones, tag,
// cluster, name folders, plan, and hand the plan to the mover. Preview mode
// performs no filesystem mutation; Apply reindexes moved files afterwards.
func (r *Runner) Organize(ctx context.Context, root string, mode organizer.Mode, confirmed bool) (*organizer.Report, error) {
	unlock, err := r.lockRun()
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx = services.WithStage(services.WithRunID(ctx, uuid.NewString()), "organize")

	scanResult, err := r.scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	zones := r.detector.Detect(scanResult.Root, scanResult.Records)

	var unprotected []scanner.FileRecord
	for _, record := range scanResult.Records {
		if _, protected := zones.Protected(record.Path); !protected {
			unprotected = append(unprotected, record)
		}
	}

	files := make([]organizer.FileTags, len(unprotected))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(r.providerConcurrency())
	for i, record := range unprotected {
		grp.Go(func() error {
			weighted, err := r.tags.Tag(grpCtx, record.Path, "")
			if err != nil {
				weighted = nil
				if record.Extension != "" {
					weighted = []tagger.Tag{{Name: record.Extension, Weight: 1}}
				}
			}
			var embedding []float32
			if r.embedder != nil {
				if vector, err := r.embedder.Embed(grpCtx, embedText(record.Path, tagger.Names(weighted))); err == nil {
					embedding = vector
				}
			}
			files[i] = organizer.FileTags{Path: record.Path, Tags: weighted, Embedding: embedding}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	clusterer := organizer.NewClusterer(
		r.cfg.Organizer.MinClusterSize,
		r.cfg.Organizer.FallbackFolder,
		r.cfg.Organizer.SimilarityThreshold,
	)
	clusters := clusterer.Cluster(files)

	namer := organizer.NewNamer(r.cfg.Organizer.MaxFolderNameLength, r.cfg.Organizer.MaxDepth)
	folders := make(map[string]string)
	for _, cluster := range clusters {
		name := namer.Name(clusterTags(cluster, files)...)
		for _, path := range cluster.Paths {
			folders[path] = name
		}
	}

	paths := make([]string, 0, len(scanResult.Records))
	for _, record := range scanResult.Records {
		paths = append(paths, record.Path)
	}
	plan := organizer.NewPlanner(scanResult.Root, zones).Build(paths, folders)

	mover := organizer.NewMover(r.cfg.Organizer.MoveWorkers, r.logger)
	report, err := mover.Execute(ctx, plan, mode, confirmed)
	if err != nil {
		return report, err
	}

	if mode == organizer.ModeApply {
		if err := r.reindexMoves(ctx, report, scanResult.Records, files); err != nil {
			logging.WithContext(ctx, r.logger).Warn("reindex after move failed",
				logging.String(logging.FieldComponent, "workflow"),
				logging.Error(err))
		}
	}
	return report, nil
}

// clusterTags orders a cluster's aggregate tags by total weight for the
// namer: the dominant tag first, then the strongest secondary tags.
func clusterTags(cluster organizer.Cluster, files []organizer.FileTags) []string {
	weights := make(map[string]float64)
	for _, file := range files {
		for _, path := range cluster.Paths {
			if file.Path != path {
				continue
			}
			for _, tag := range file.Tags {
				weights[tag.Name] += tag.Weight
			}
		}
	}
	delete(weights, cluster.Tag)

	secondary := make([]string, 0, len(weights))
	for name := range weights {
		secondary = append(secondary, name)
	}
	sort.Slice(secondary, func(i, j int) bool {
		if weights[secondary[i]] != weights[secondary[j]] {
			return weights[secondary[i]] > weights[secondary[j]]
		}
		return secondary[i] < secondary[j]
	})
	return append([]string{cluster.Tag}, secondary...)
}

// reindexMoves updates the index for files the mover relocated: the old
// paths are deleted and the documents re-upserted under their new paths,
// keeping the tags and embeddings derived during this pass.
func (r *Runner) reindexMoves(ctx context.Context, report *organizer.Report, records []scanner.FileRecord, files []organizer.FileTags) error {
	byPath := make(map[string]scanner.FileRecord, len(records))
	for _, record := range records {
		byPath[record.Path] = record
	}
	described := make(map[string]organizer.FileTags, len(files))
	for _, file := range files {
		described[file.Path] = file
	}

	var moved []string
	var docs []index.Document
	for _, entry := range report.Entries {
		if entry.Status != organizer.StatusMoved {
			continue
		}
		moved = append(moved, entry.Source)
		record, ok := byPath[entry.Source]
		if !ok {
			continue
		}
		record.Path = entry.Destination
		file := described[entry.Source]
		docs = append(docs, index.FromRecord(record, tagger.Names(file.Tags), file.Embedding))
	}
	if len(moved) == 0 {
		return nil
	}
	if err := r.index.Delete(ctx, moved); err != nil {
		return err
	}
	return r.index.Upsert(ctx, docs)
}

func (r *Runner) providerConcurrency() int {
	if r.cfg.Workflow.ProviderConcurrency > 0 {
		return r.cfg.Workflow.ProviderConcurrency
	}
	return 4
}
