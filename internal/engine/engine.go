// Package engine runs publication cycles: it resolves configured sources,
// syncs and loads each one, aggregates the results, and publishes the new
// table atomically. It owns the published state for the process.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/git"
	"github.com/snipmux/snipmux/internal/logging"
	"github.com/snipmux/snipmux/internal/snippets"
	"github.com/snipmux/snipmux/internal/sources"
	"github.com/snipmux/snipmux/internal/status"
	"github.com/snipmux/snipmux/internal/telemetry"
)

// SettingsFunc returns the current configuration. The engine calls it at
// the start of every cycle so hot reloads take effect on the next run.
type SettingsFunc func() *config.Settings

// CycleOptions controls one publication cycle.
type CycleOptions struct {
	// Trigger records what started the cycle
	Trigger status.Trigger

	// AllowPull permits the per-source fast-forward pull
	AllowPull bool

	// Notify surfaces the outcome through the notifier
	Notify bool
}

/// OptionsFor returns the canonical cycle options for a trigger: file-change
// cycles skip the pull since the working copy just changed under us, and
// only explicitly requested cycles notify.
func OptionsFor(trigger status.Trigger) CycleOptions {
	opts := CycleOptions{Trigger: trigger, AllowPull: true}
	switch trigger {
	case status.TriggerFileChange:
		opts.AllowPull = false
	case status.TriggerManual, status.TriggerConfigChange:
		opts.Notify = true
	}
	return opts
}

// Engine runs publication cycles and owns the published state.
type Engine interface {
	// RunCycle executes one full cycle and returns its report. Concurrent
	// calls coalesce, they all receive the in-flight cycle's report.
	RunCycle(ctx context.Context, opts CycleOptions) (*status.CycleReport, error)

	// Descriptors resolves the currently configured sources
	Descriptors(ctx context.Context) ([]*sources.Descriptor, error)

	// Store returns the published state holder
	Store() *Store

	// Shutdown clears the published state
	Shutdown(ctx context.Context) error
}

// Option configures the default engine.
type Option func(*defaultEngine)

// WithGitClient overrides the git client.
func WithGitClient(client git.Client) Option {
	return func(e *defaultEngine) {
		e.gitClient = client
	}
}

// WithLoader overrides the snippet loader.
func WithLoader(loader snippets.Loader) Option {
	return func(e *defaultEngine) {
		e.loader = loader
	}
}

// WithResolver overrides the source resolver.
func WithResolver(resolver sources.Resolver) Option {
	return func(e *defaultEngine) {
		e.resolver = resolver
	}
}

// WithNotifier overrides the notifier.
func WithNotifier(notifier Notifier) Option {
	return func(e *defaultEngine) {
		e.notifier = notifier
	}
}

// WithSnapshotStore enables snapshot persistence after each publish.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(e *defaultEngine) {
		e.snapshots = store
	}
}

// WithCycleMetrics enables cycle metrics recording.
func WithCycleMetrics(metrics *telemetry.CycleMetrics) Option {
	return func(e *defaultEngine) {
		e.metrics = metrics
	}
}

// defaultEngine is the default Engine implementation.
type defaultEngine struct {
	settings  SettingsFunc
	resolver  sources.Resolver
	gitClient git.Client
	loader    snippets.Loader
	store     *Store
	snapshots SnapshotStore
	notifier  Notifier
	metrics   *telemetry.CycleMetrics
	group     singleflight.Group
}

var _ Engine = (*defaultEngine)(nil)

// New creates an Engine backed by the default collaborators unless
// overridden by options.
func New(settings SettingsFunc, opts ...Option) (Engine, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings provider is required")
	}

	e := &defaultEngine{
		settings:  settings,
		resolver:  sources.NewDefaultResolver(),
		gitClient: git.NewDefaultClient(),
		store:     NewStore(),
		notifier:  NewLogNotifier(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.loader == nil {
		loader, err := snippets.NewDefaultLoader()
		if err != nil {
			return nil, fmt.Errorf("failed to create snippet loader: %w", err)
		}
		e.loader = loader
	}

	return e, nil
}

// Store implements Engine.
func (e *defaultEngine) Store() *Store {
	return e.store
}

// Descriptors implements Engine.
func (e *defaultEngine) Descriptors(ctx context.Context) ([]*sources.Descriptor, error) {
	return e.resolver.Resolve(ctx, e.settings())
}

// Shutdown implements Engine.
func (e *defaultEngine) Shutdown(_ context.Context) error {
	e.store.Clear()
	return nil
}

// RunCycle implements Engine. Cycles are serialized: concurrent callers
// share the in-flight run instead of starting another.
func (e *defaultEngine) RunCycle(ctx context.Context, opts CycleOptions) (*status.CycleReport, error) {
	result, err, _ := e.group.Do("cycle", func() (any, error) {
		return e.runCycle(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	return result.(*status.CycleReport), nil
}

func (e *defaultEngine) runCycle(ctx context.Context, opts CycleOptions) (*status.CycleReport, error) {
	cycleID := uuid.NewString()
	ctx = logging.WithCycle(ctx, cycleID, string(opts.Trigger))
	start := time.Now()

	slog.InfoContext(ctx, "Starting sync cycle", "allow_pull", opts.AllowPull)

	descriptors, err := e.resolver.Resolve(ctx, e.settings())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sources: %w", err)
	}

	results := make([]aggregate.SourceResult, 0, len(descriptors))
	for _, d := range descriptors {
		results = append(results, e.processSource(ctx, d, opts.AllowPull))
	}

	table, statuses := aggregate.Build(results)
	report := &status.CycleReport{
		CycleID:   cycleID,
		Trigger:   opts.Trigger,
		StartedAt: start,
		Sources:   statuses,
	}
	report.Recount()
	report.Duration = time.Since(start)

	e.publish(ctx, table, statuses, report)

	if opts.Notify {
		if len(descriptors) == 0 {
			e.notifier.NoSourcesConfigured(ctx)
		} else {
			e.notifier.CycleCompleted(ctx, report)
		}
	}

	e.recordMetrics(ctx, opts, report)

	slog.InfoContext(ctx, "Sync cycle completed",
		"duration", report.Duration.String(),
		"total_snippets", report.TotalSnippets,
		"error_count", report.ErrorCount,
		"sources", len(statuses))

	return report, nil
}

// processSource runs the per-source pipeline: repository precondition,
// optional pull, folder check, load. Failures are recorded in the result,
// they never abort the cycle.
func (e *defaultEngine) processSource(ctx context.Context, d *sources.Descriptor, allowPull bool) aggregate.SourceResult {
	res := aggregate.SourceResult{Source: d}

	// The precondition is checked every cycle, even when pulling is off:
	// a source that is not a working copy is skipped wholesale.
	if err := e.gitClient.CheckRepository(d.Path); err != nil {
		slog.WarnContext(ctx, "Skipping source, not a git repository",
			"source", d.ID, "path", d.Path)
		res.Err = err
		return res
	}

	if allowPull && d.EnableGitPull {
		if err := e.gitClient.Pull(ctx, d.Path, d.Branch); err != nil {
			// The existing working copy is still loadable.
			slog.WarnContext(ctx, "Pull failed, loading existing working copy",
				"source", d.ID, "error", err)
			res.Err = err
		}
	}

	if head, err := e.gitClient.Head(d.Path); err == nil {
		res.Head = head.Describe()
	}

	dir := d.SnippetsDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.WarnContext(ctx, "Snippets folder missing", "source", d.ID, "dir", dir)
		res.Err = fmt.Errorf("snippets folder %s does not exist", dir)
		return res
	}

	loaded, err := e.loader.LoadFolder(ctx, dir, snippets.LoadOptions{
		SourceID:         d.ID,
		IncludeJSONFiles: d.IncludeJSONFiles,
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Buckets = loaded.Buckets
	res.Warnings = loaded.Warnings
	now := time.Now()
	res.SyncedAt = &now

	slog.InfoContext(ctx, "Loaded source",
		"source", d.ID,
		"snippets", loaded.Count,
		"files", loaded.Files,
		"warnings", len(loaded.Warnings))
	return res
}

// publish swaps the published state and persists the snapshot. Snapshot
// failures are logged, a cycle never fails after the swap.
func (e *defaultEngine) publish(ctx context.Context, table *aggregate.Table, statuses []status.SourceStatus, report *status.CycleReport) {
	e.store.Publish(table, statuses, report)

	if e.snapshots != nil {
		if err := e.snapshots.Write(ctx, table, report); err != nil {
			slog.ErrorContext(ctx, "Failed to persist snapshot", "error", err)
		}
	}
}

func (e *defaultEngine) recordMetrics(ctx context.Context, opts CycleOptions, report *status.CycleReport) {
	e.metrics.RecordCycle(ctx, string(opts.Trigger), report.Duration, report.HasErrors())
	e.metrics.RecordPublished(ctx, int64(report.TotalSnippets), int64(report.ErrorCount))
	for i := range report.Sources {
		e.metrics.RecordSourceSnippets(ctx, report.Sources[i].ID, int64(report.Sources[i].SnippetCount))
	}
}
