package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/snipmux/snipmux/internal/config"
)

// Resolver maps configuration settings to resolved source descriptors.
type Resolver interface {
	// Resolve applies defaults and path resolution to every configured
	// source. Entries without a repository path are dropped, not reported
	// as errors.
	Resolve(ctx context.Context, settings *config.Settings) ([]*Descriptor, error)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	workingDir string
}

// WithWorkingDir overrides the directory relative repository paths resolve
// against when no workspace root is configured.
func WithWorkingDir(dir string) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.workingDir = dir
	}
}

type defaultResolver struct {
	workingDir string
}

var _ Resolver = (*defaultResolver)(nil)

// NewDefaultResolver creates a Resolver with the given options.
func NewDefaultResolver(opts ...ResolverOption) Resolver {
	cfg := &resolverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &defaultResolver{workingDir: cfg.workingDir}
}

// Resolve implements Resolver.
func (r *defaultResolver) Resolve(ctx context.Context, settings *config.Settings) ([]*Descriptor, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	entries := settings.Sources
	if !settings.HasExplicitSources() {
		entries = legacyEntries(ctx, settings)
	}

	base, err := r.baseDir(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to determine base directory: %w", err)
	}

	descriptors := make([]*Descriptor, 0, len(entries))
	for i, entry := range entries {
		if entry.LocalRepoPath.IsBlank() {
			slog.DebugContext(ctx, "Skipping source without a repository path", "index", i)
			continue
		}
		descriptors = append(descriptors, describe(entry, i, base))
	}

	ensureUniqueIDs(descriptors)
	return descriptors, nil
}

// legacyEntries synthesizes a one-element source list from the flat
// single-repository settings. Returns nil when they are unset too.
func legacyEntries(ctx context.Context, settings *config.Settings) config.SourceList {
	if settings.LocalRepoPath.IsBlank() {
		return nil
	}

	slog.DebugContext(ctx, "Using legacy single-repository settings")
	return config.SourceList{{
		LocalRepoPath:    settings.LocalRepoPath,
		Branch:           settings.Branch,
		SnippetsPath:     settings.SnippetsPath,
		IncludeJSONFiles: settings.IncludeJSONFiles,
		EnableGitPull:    settings.EnableGitPull,
	}}
}

// baseDir picks the directory relative repository paths resolve against:
// the first workspace root when one is configured, the working directory
// otherwise.
func (r *defaultResolver) baseDir(settings *config.Settings) (string, error) {
	for _, root := range settings.WorkspaceRoots {
		if strings.TrimSpace(root) != "" {
			return root, nil
		}
	}
	if r.workingDir != "" {
		return r.workingDir, nil
	}
	return os.Getwd()
}

// describe builds the descriptor for one entry with all defaults applied.
func describe(entry config.SourceConfig, index int, base string) *Descriptor {
	rawPath := entry.LocalRepoPath.Value()

	path := rawPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	name := entry.Name.Value()
	id := name
	if id == "" {
		id = fmt.Sprintf("repo-%d", index+1)
	}

	// The display name keeps the configured path, the resolved one is in
	// the descriptor for anyone who needs it.
	displayName := name
	if displayName == "" {
		displayName = fmt.Sprintf("Repo %d (%s)", index+1, rawPath)
	}

	return &Descriptor{
		ID:               id,
		DisplayName:      displayName,
		RawPath:          rawPath,
		Path:             path,
		Branch:           entry.Branch.Or(config.DefaultBranch),
		SnippetsPath:     entry.SnippetsPath.Or(config.DefaultSnippetsDir),
		IncludeJSONFiles: entry.IncludeJSONFiles.Or(true),
		EnableGitPull:    entry.EnableGitPull.Or(true),
		Index:            index,
	}
}

// ensureUniqueIDs suffixes repeated IDs with the source's one-based
// position so two sources never publish under the same key.
func ensureUniqueIDs(descriptors []*Descriptor) {
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if seen[d.ID] {
			d.ID = fmt.Sprintf("%s-%d", d.ID, d.Index+1)
		}
		seen[d.ID] = true
	}
}
