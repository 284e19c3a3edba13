package engine

import (
	"context"
	"log/slog"

	"github.com/snipmux/snipmux/internal/status"
)

// Notifier receives user-facing cycle outcomes. Cycles request
// notification explicitly, background runs stay quiet.
type Notifier interface {
	// CycleCompleted reports the outcome of a finished cycle
	CycleCompleted(ctx context.Context, report *status.CycleReport)

	// NoSourcesConfigured reports that a cycle found nothing to sync
	NoSourcesConfigured(ctx context.Context)
}

// logNotifier surfaces notifications through the structured log.
type logNotifier struct{}

var _ Notifier = (*logNotifier)(nil)

// NewLogNotifier creates a Notifier that writes to the structured log.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

// CycleCompleted implements Notifier.
func (*logNotifier) CycleCompleted(ctx context.Context, report *status.CycleReport) {
	if report.HasErrors() {
		slog.WarnContext(ctx, "Snippet sync completed with errors",
			"total_snippets", report.TotalSnippets,
			"error_count", report.ErrorCount)
		return
	}
	slog.InfoContext(ctx, "Snippet sync completed",
		"total_snippets", report.TotalSnippets,
		"sources", len(report.Sources))
}

// NoSourcesConfigured implements Notifier.
func (*logNotifier) NoSourcesConfigured(ctx context.Context) {
	slog.InfoContext(ctx, "No snippet sources configured, published an empty table")
}
