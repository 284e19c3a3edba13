// Package main is the entry point for the snipmux snippet daemon.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/snipmux/snipmux/cmd/snipmux/app"
	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/logging"
)

// getLogLevel parses the SNIPMUX_LOG_LEVEL environment variable and returns
// the corresponding slog.Level. Falls back to plain LOG_LEVEL, then to info.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	return logging.ParseLevel(levelStr)
}

func main() {
	// Log to stderr so stdout stays clean for commands that print data
	// (status --format json, version --format json).
	handler := logging.NewHandler(logging.WithLevel(getLogLevel()))
	slog.SetDefault(slog.New(handler))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
