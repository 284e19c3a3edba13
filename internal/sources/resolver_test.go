package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipmux/snipmux/internal/config"
)

func resolve(t *testing.T, settings *config.Settings, opts ...ResolverOption) []*Descriptor {
	t.Helper()
	descriptors, err := NewDefaultResolver(opts...).Resolve(context.Background(), settings)
	require.NoError(t, err)
	return descriptors
}

func TestResolveAppliesDefaults(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	settings := &config.Settings{
		Sources: config.SourceList{
			{LocalRepoPath: config.String("./team-snippets")},
		},
	}

	descriptors := resolve(t, settings, WithWorkingDir(base))
	require.Len(t, descriptors, 1)

	d := descriptors[0]
	assert.Equal(t, "repo-1", d.ID)
	assert.Equal(t, "Repo 1 (./team-snippets)", d.DisplayName)
	assert.Equal(t, "./team-snippets", d.RawPath)
	assert.Equal(t, filepath.Join(base, "team-snippets"), d.Path)
	assert.Equal(t, "main", d.Branch)
	assert.Equal(t, "snippets", d.SnippetsPath)
	assert.True(t, d.IncludeJSONFiles)
	assert.True(t, d.EnableGitPull)
	assert.Equal(t, 0, d.Index)
}

func TestResolveExplicitFields(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	repo := filepath.Join(base, "repo")
	settings := &config.Settings{
		Sources: config.SourceList{
			{
				Name:             config.String("team"),
				LocalRepoPath:    config.String(repo),
				Branch:           config.String("develop"),
				SnippetsPath:     config.String("vscode/snippets"),
				IncludeJSONFiles: config.Bool(false),
				EnableGitPull:    config.Bool(false),
			},
		},
	}

	descriptors := resolve(t, settings)
	require.Len(t, descriptors, 1)

	d := descriptors[0]
	assert.Equal(t, "team", d.ID)
	assert.Equal(t, "team", d.DisplayName)
	assert.Equal(t, repo, d.Path)
	assert.Equal(t, "develop", d.Branch)
	assert.Equal(t, "vscode/snippets", d.SnippetsPath)
	assert.False(t, d.IncludeJSONFiles)
	assert.False(t, d.EnableGitPull)

	assert.Equal(t, filepath.Join(repo, "vscode/snippets"), d.SnippetsDir())
	assert.Equal(t, filepath.Join(repo, ".git"), d.GitDir())
}

func TestResolveDropsEntriesWithoutPath(t *testing.T) {
	t.Parallel()

	settings := &config.Settings{
		Sources: config.SourceList{
			{LocalRepoPath: config.String("/srv/a")},
			{Name: config.String("no path here")},
			{LocalRepoPath: config.String("   ")},
			{LocalRepoPath: config.String("/srv/b")},
		},
	}

	descriptors := resolve(t, settings, WithWorkingDir(t.TempDir()))
	require.Len(t, descriptors, 2)

	// Dropped entries still consume their position.
	assert.Equal(t, "repo-1", descriptors[0].ID)
	assert.Equal(t, "repo-4", descriptors[1].ID)
	assert.Equal(t, 3, descriptors[1].Index)
}

func TestResolveDuplicateIDs(t *testing.T) {
	t.Parallel()

	settings := &config.Settings{
		Sources: config.SourceList{
			{Name: config.String("team"), LocalRepoPath: config.String("/srv/a")},
			{Name: config.String("team"), LocalRepoPath: config.String("/srv/b")},
			{Name: config.String("team"), LocalRepoPath: config.String("/srv/c")},
		},
	}

	descriptors := resolve(t, settings, WithWorkingDir(t.TempDir()))
	require.Len(t, descriptors, 3)
	assert.Equal(t, "team", descriptors[0].ID)
	assert.Equal(t, "team-2", descriptors[1].ID)
	assert.Equal(t, "team-3", descriptors[2].ID)

	// Display names keep the configured label even when IDs diverge.
	assert.Equal(t, "team", descriptors[1].DisplayName)
}

func TestResolveWorkspaceRootWins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cwd := t.TempDir()
	settings := &config.Settings{
		WorkspaceRoots: []string{root, "/somewhere/else"},
		Sources: config.SourceList{
			{LocalRepoPath: config.String("nested/repo")},
			{LocalRepoPath: config.String("/abs/repo")},
		},
	}

	descriptors := resolve(t, settings, WithWorkingDir(cwd))
	require.Len(t, descriptors, 2)
	assert.Equal(t, filepath.Join(root, "nested/repo"), descriptors[0].Path)
	assert.Equal(t, "/abs/repo", descriptors[1].Path)
}

func TestResolveLegacySettings(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	settings := &config.Settings{
		LocalRepoPath: config.String("old-style"),
		Branch:        config.String("trunk"),
		EnableGitPull: config.Bool(false),
	}

	descriptors := resolve(t, settings, WithWorkingDir(base))
	require.Len(t, descriptors, 1)

	d := descriptors[0]
	assert.Equal(t, "repo-1", d.ID)
	assert.Equal(t, filepath.Join(base, "old-style"), d.Path)
	assert.Equal(t, "trunk", d.Branch)
	assert.Equal(t, "snippets", d.SnippetsPath)
	assert.False(t, d.EnableGitPull)
}

func TestResolveLegacyIgnoredWithExplicitSources(t *testing.T) {
	t.Parallel()

	settings := &config.Settings{
		Sources: config.SourceList{
			{LocalRepoPath: config.String("/srv/new")},
		},
		LocalRepoPath: config.String("/srv/old"),
	}

	descriptors := resolve(t, settings, WithWorkingDir(t.TempDir()))
	require.Len(t, descriptors, 1)
	assert.Equal(t, "/srv/new", descriptors[0].Path)
}

func TestResolveEmptySettings(t *testing.T) {
	t.Parallel()

	descriptors := resolve(t, config.Default(), WithWorkingDir(t.TempDir()))
	assert.Empty(t, descriptors)
}

func TestResolveNilSettings(t *testing.T) {
	t.Parallel()

	_, err := NewDefaultResolver().Resolve(context.Background(), nil)
	require.Error(t, err)
}
