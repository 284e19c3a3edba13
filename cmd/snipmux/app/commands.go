// Package app provides the command-line interface of the snipmux daemon.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/logging"
	"github.com/snipmux/snipmux/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "snipmux",
	DisableAutoGenTag: true,
	Short:             "Snippet merge and refresh daemon",
	Long: `snipmux merges VSCode-style snippet files from one or more git working
copies into a single published table and keeps it fresh on a timer, on
folder changes, and on demand.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command of the snipmux CLI.
func NewRootCmd() *cobra.Command {
	// Flags shared by every subcommand. SNIPMUX_* environment variables
	// override unset flags (SNIPMUX_CONFIG, SNIPMUX_DATA_DIR, ...).
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory snapshots are published to (defaults to the configured dataDir)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			slog.Error("Error binding flag", "flag", f.Name, "error", err)
		}
	})

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// loadSettings loads the settings named by --config. Without a path the
// defaults apply, since running unconfigured is a valid state.
func loadSettings() (*config.Settings, error) {
	settings, err := config.LoadConfig(config.WithConfigPath(viper.GetString("config")))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return settings, nil
}

// applyDebug raises the default log level to debug when requested by flag
// or by the loaded settings. It never lowers an already verbose level.
func applyDebug(settings *config.Settings) {
	if viper.GetBool("debug") || settings.DebugEnabled() {
		slog.SetDefault(slog.New(logging.NewHandler(logging.WithLevel(slog.LevelDebug))))
	}
}

// dataDir resolves the snapshot directory, preferring the --data-dir flag
// over the configured value.
func dataDir(settings *config.Settings) string {
	if dir := viper.GetString("data-dir"); dir != "" {
		return dir
	}
	return settings.DataDir
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Println(string(output))
		} else {
			slog.Info("snipmux version",
				"version", info.Version,
				"commit", info.Commit,
				"built", info.BuildDate,
				"go", info.GoVersion,
				"platform", info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
