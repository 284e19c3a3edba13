package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/status"
)

// renderReport writes the outcome of one cycle as a summary line and a
// per-source table.
func renderReport(w io.Writer, report *status.CycleReport) error {
	fmt.Fprintf(w, "Cycle %s (%s) finished in %s: %d snippets, %d source errors\n\n",
		report.CycleID, report.Trigger, report.Duration.Round(time.Millisecond),
		report.TotalSnippets, report.ErrorCount)
	return renderSources(w, report.Sources)
}

// renderStatus writes the persisted report of the last completed cycle.
func renderStatus(w io.Writer, snap *engine.StatusSnapshot) error {
	report := snap.Report
	if report == nil {
		fmt.Fprintln(w, "Snapshot holds no cycle report.")
		return nil
	}
	fmt.Fprintf(w, "Last cycle %s (%s) at %s took %s: %d snippets, %d source errors\n\n",
		report.CycleID, report.Trigger,
		report.StartedAt.Local().Format("2006-01-02 15:04:05"),
		report.Duration.Round(time.Millisecond),
		report.TotalSnippets, report.ErrorCount)
	return renderSources(w, report.Sources)
}

func renderSources(w io.Writer, sources []status.SourceStatus) error {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No snippet sources configured.")
		return nil
	}

	table := tablewriter.NewTable(w)
	table.Header([]string{"Source", "Snippets", "Warnings", "Head", "Last Sync", "Error"})
	for _, src := range sources {
		lastSync := "-"
		if src.LastSync != nil {
			lastSync = src.LastSync.Local().Format("2006-01-02 15:04:05")
		}
		head := src.Head
		if head == "" {
			head = "-"
		}
		row := []string{
			src.DisplayName,
			strconv.Itoa(src.SnippetCount),
			strconv.Itoa(src.ParseWarnings),
			head,
			lastSync,
			src.LastError,
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to render source table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render source table: %w", err)
	}
	return nil
}
