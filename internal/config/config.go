// Package config provides configuration loading and hot reload for the
// snippet daemon.
//
// The settings surface is deliberately loose: it mirrors editor-style
// configuration where values may be missing or carry the wrong type.
// Wrong-typed scalars fall back to their documented defaults instead of
// failing the whole decode; anything past this package is strongly typed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snipmux/snipmux/internal/telemetry"
)

// EnvPrefix is the prefix for environment variable overrides (e.g.
// SNIPMUX_DEBUG, SNIPMUX_LOG_LEVEL).
const EnvPrefix = "SNIPMUX"

const (
	// DefaultBranch is the branch pulled when a source does not name one
	DefaultBranch = "main"

	// DefaultSnippetsDir is the folder scanned when a source does not name one
	DefaultSnippetsDir = "snippets"

	// DefaultDataDir is where published snapshots are written
	DefaultDataDir = "./data"

	// DefaultAddress is the HTTP listen address
	DefaultAddress = ":8080"
)

// Option defines the interface for configuration loading options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading settings
type loaderConfig struct {
	path string
}

// WithConfigPath loads settings from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Settings is the root configuration structure.
type Settings struct {
	// Sources is the list of snippet repositories to merge. When absent or
	// empty, the legacy flat fields below are consulted instead.
	Sources SourceList `yaml:"sources"`

	// AutoSyncIntervalMinutes is the periodic sync interval; 0 disables the timer
	AutoSyncIntervalMinutes LooseInt `yaml:"autoSyncIntervalMinutes"`

	// Debug gates verbose logging
	Debug LooseBool `yaml:"debug"`

	// WorkspaceRoots are the directories relative source paths resolve
	// against; the first entry wins, the process working directory is the
	// fallback
	WorkspaceRoots []string `yaml:"workspaceRoots,omitempty"`

	// DataDir is where published snapshots and the lock file live
	DataDir string `yaml:"dataDir,omitempty"`

	// Address is the HTTP listen address of the daemon
	Address string `yaml:"address,omitempty"`

	// Telemetry configures metrics export
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	// Legacy flat single-source fields, honored only when Sources is
	// absent or empty
	LocalRepoPath    LooseString `yaml:"localRepoPath"`
	Branch           LooseString `yaml:"branch"`
	SnippetsPath     LooseString `yaml:"snippetsPath"`
	IncludeJSONFiles LooseBool   `yaml:"includeJsonFiles"`
	EnableGitPull    LooseBool   `yaml:"enableGitPull"`
}

// SourceConfig defines a single snippet source entry as configured.
// Every field is loose; defaulting happens in the source resolver.
type SourceConfig struct {
	// Name is the optional explicit identifier for the source
	Name LooseString `yaml:"name"`

	// LocalRepoPath is the working-copy path; entries without one are
	// silently dropped
	LocalRepoPath LooseString `yaml:"localRepoPath"`

	// Branch is the branch pulled during sync (default "main")
	Branch LooseString `yaml:"branch"`

	// SnippetsPath is the folder scanned for snippet files, relative to
	// the repository root (default "snippets")
	SnippetsPath LooseString `yaml:"snippetsPath"`

	// IncludeJSONFiles also loads plain *.json files (default true)
	IncludeJSONFiles LooseBool `yaml:"includeJsonFiles"`

	// EnableGitPull runs the fast-forward pull before loading (default true)
	EnableGitPull LooseBool `yaml:"enableGitPull"`
}

// SourceList is a slice of SourceConfig that tolerates malformed entries.
// A list item that is not a mapping decodes to a zero entry, which the
// resolver drops for having a blank path.
type SourceList []SourceConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *SourceList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		*l = nil
		return nil
	}
	out := make(SourceList, 0, len(node.Content))
	for _, item := range node.Content {
		var sc SourceConfig
		if item.Kind == yaml.MappingNode {
			if err := item.Decode(&sc); err != nil {
				sc = SourceConfig{}
			}
		}
		out = append(out, sc)
	}
	*l = out
	return nil
}

// LoadConfig loads and parses settings from a YAML file. Without a path
// option it returns the defaults, since running with no configuration is
// a valid (empty-publish) state.
func LoadConfig(opts ...Option) (*Settings, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return Default(), nil
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	settings.applyDefaults()

	// Validate the settings
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &settings, nil
}

// Default returns the settings used when no config file is given.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	if s.Address == "" {
		s.Address = DefaultAddress
	}
}

// validate performs validation on the settings. The source entries are
// intentionally not validated here: per-entry defaulting and dropping is
// the resolver's contract.
func (s *Settings) validate() error {
	if s == nil {
		return fmt.Errorf("settings cannot be nil")
	}

	if s.AutoSyncIntervalMinutes.Or(0) < 0 {
		return fmt.Errorf("autoSyncIntervalMinutes must be zero or positive, got %d",
			s.AutoSyncIntervalMinutes.Or(0))
	}

	if s.Telemetry != nil {
		if err := s.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// SyncInterval returns the periodic sync interval, or zero when periodic
// sync is disabled.
func (s *Settings) SyncInterval() time.Duration {
	minutes := s.AutoSyncIntervalMinutes.Or(0)
	if minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// DebugEnabled reports whether verbose logging was requested.
func (s *Settings) DebugEnabled() bool {
	return s.Debug.Or(false)
}

// HasExplicitSources reports whether a non-empty source list is configured.
func (s *Settings) HasExplicitSources() bool {
	return len(s.Sources) > 0
}
