package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/status"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one publication cycle and print the result",
	Long: `Run one publication cycle in-process: resolve the configured sources,
fast-forward pull each working copy, reload the snippet files, and
publish the merged table as a snapshot in the data directory.`,
	RunE: runSync,
}

// syncTimeout bounds one whole cycle, pulls across every source included.
const syncTimeout = 5 * time.Minute

func init() {
	syncCmd.Flags().Bool("no-pull", false, "Skip the git pull and load the working copies as they are")
	syncCmd.Flags().String("format", "", "Output format (table or json)")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	applyDebug(settings)

	eng, err := engine.New(func() *config.Settings { return settings },
		engine.WithSnapshotStore(engine.NewFileSnapshotStore(dataDir(settings))),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	opts := engine.OptionsFor(status.TriggerManual)
	if noPull, _ := cmd.Flags().GetBool("no-pull"); noPull {
		opts.AllowPull = false
	}
	// The report is printed below; a notification would duplicate it.
	opts.Notify = false

	report, err := eng.RunCycle(ctx, opts)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format == "json" {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if err := renderReport(os.Stdout, report); err != nil {
		return err
	}
	if report.HasErrors() {
		slog.Warn("Some sources finished with errors", "error_count", report.ErrorCount)
	}
	return nil
}
