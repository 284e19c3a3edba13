//go:build e2e

package helpers

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// GitTestHelper manages git repositories for testing: upstream repositories
// that advance over time plus the working clones the daemon syncs from.
type GitTestHelper struct {
	ctx     context.Context
	tempDir string
}

// GitTestRepository represents one test repository on disk.
type GitTestRepository struct {
	Name string
	Path string
}

// NewGitTestHelper creates a new git test helper
func NewGitTestHelper(ctx context.Context) *GitTestHelper {
	tempDir, err := os.MkdirTemp("", "snipmux-git-repos-*")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &GitTestHelper{ctx: ctx, tempDir: tempDir}
}

// CreateUpstream creates a repository with an initial commit on main, so
// clones get a tracking branch to fast-forward from.
func (g *GitTestHelper) CreateUpstream(name string) *GitTestRepository {
	repoPath := filepath.Join(g.tempDir, name)
	err := os.MkdirAll(repoPath, 0o750)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	g.runGit(repoPath, "init", "--initial-branch=main")
	g.runGit(repoPath, "config", "user.name", "Test User")
	g.runGit(repoPath, "config", "user.email", "test@example.com")

	readme := filepath.Join(repoPath, "README.md")
	err = os.WriteFile(readme, []byte("# Snippet repository\n"), 0o600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	g.runGit(repoPath, "add", "README.md")
	g.runGit(repoPath, "commit", "-m", "Initial commit")

	return &GitTestRepository{Name: name, Path: repoPath}
}

// Clone clones the upstream into a working copy the daemon can pull.
func (g *GitTestHelper) Clone(upstream *GitTestRepository, name string) *GitTestRepository {
	clonePath := filepath.Join(g.tempDir, name)
	g.runGit(g.tempDir, "clone", upstream.Path, clonePath)
	g.runGit(clonePath, "config", "user.name", "Test User")
	g.runGit(clonePath, "config", "user.email", "test@example.com")

	return &GitTestRepository{Name: name, Path: clonePath}
}

// CommitSnippetFile writes a snippet file inside the repository and commits
// it. Parent directories are created as needed.
func (g *GitTestHelper) CommitSnippetFile(repo *GitTestRepository, relPath, content, message string) {
	WriteSnippetFile(repo.Path, relPath, content)
	g.runGit(repo.Path, "add", relPath)
	g.runGit(repo.Path, "commit", "-m", message)
}

// Head returns the full commit hash of the repository's HEAD.
func (g *GitTestHelper) Head(repo *GitTestRepository) string {
	return g.runGit(repo.Path, "rev-parse", "HEAD")
}

// Cleanup removes every repository the helper created.
func (g *GitTestHelper) Cleanup() error {
	return os.RemoveAll(g.tempDir)
}

// runGit runs a git command in dir and returns its trimmed output.
func (g *GitTestHelper) runGit(dir string, args ...string) string {
	cmd := exec.CommandContext(g.ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	gomega.Expect(err).NotTo(gomega.HaveOccurred(),
		"git command failed: git %s\nOutput: %s", strings.Join(args, " "), string(output))
	return strings.TrimSpace(string(output))
}
