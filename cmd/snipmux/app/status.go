package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/versions"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the result of the last publication cycle",
	Long: `Show the result of the last publication cycle, read from the snapshot
in the data directory. Works without a running daemon.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("format", "", "Output format (table or json)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	applyDebug(settings)

	store := engine.NewFileSnapshotStore(dataDir(settings))
	snap, err := store.ReadStatus(context.Background())
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println(`No snapshot published yet. Start the daemon or run "snipmux sync" first.`)
		return nil
	}
	if err != nil {
		return err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format == "json" {
		output, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render status: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	current := versions.GetVersionInfo().Version
	if versions.IsNewerVersion(snap.Version, current) {
		fmt.Printf("Note: snapshot was written by snipmux %s, this binary is %s\n\n",
			snap.Version, current)
	}

	return renderStatus(os.Stdout, snap)
}
