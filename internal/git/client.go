// Package git wraps the local repository operations the sync cycle needs:
// checking that a configured path is a working copy, fast-forwarding it
// from its origin, and reading the current HEAD.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
)

// DefaultPullTimeout bounds one pull subprocess. A hung remote must not
// stall the whole sync cycle.
const DefaultPullTimeout = 60 * time.Second

// ErrNotARepository marks paths that exist but carry no .git entry.
var ErrNotARepository = errors.New("not a git repository")

// PullError carries the subprocess output of a failed pull so status
// surfaces can show the actual git message.
type PullError struct {
	Path   string
	Branch string
	Output string
	Err    error
}

// Error implements error.
func (e *PullError) Error() string {
	msg := fmt.Sprintf("failed to pull %s (branch %s): %v", e.Path, e.Branch, e.Err)
	if e.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	return msg
}

// Unwrap returns the underlying subprocess error.
func (e *PullError) Unwrap() error {
	return e.Err
}

// HeadInfo describes the current HEAD of a working copy.
type HeadInfo struct {
	// Commit is the full commit hash
	Commit string

	// Branch is the checked out branch name, empty on detached HEAD
	Branch string
}

// Describe returns a short human-readable form like "main@1a2b3c4d".
func (h *HeadInfo) Describe() string {
	short := h.Commit
	if len(short) > 8 {
		short = short[:8]
	}
	if h.Branch == "" {
		return short
	}
	return h.Branch + "@" + short
}

// Client defines the interface for local Git operations
type Client interface {
	// CheckRepository verifies that path is a git working copy
	CheckRepository(path string) error

	// Pull fast-forwards the working copy from origin
	Pull(ctx context.Context, path, branch string) error

	// Head reads the current HEAD of the working copy
	Head(path string) (*HeadInfo, error)
}

// ClientOption configures the default client.
type ClientOption func(*defaultClient)

// WithGitPath overrides the git executable used for pulls.
func WithGitPath(path string) ClientOption {
	return func(c *defaultClient) {
		c.gitPath = path
	}
}

// WithPullTimeout overrides the per-pull timeout.
func WithPullTimeout(d time.Duration) ClientOption {
	return func(c *defaultClient) {
		c.timeout = d
	}
}

// defaultClient shells out for pulls and uses go-git for inspection.
type defaultClient struct {
	gitPath string
	timeout time.Duration
}

var _ Client = (*defaultClient)(nil)

// NewDefaultClient creates a new defaultClient
func NewDefaultClient(opts ...ClientOption) Client {
	c := &defaultClient{
		gitPath: "git",
		timeout: DefaultPullTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckRepository verifies that path is a git working copy. The .git
// entry may be a directory or a file, worktrees use the latter.
func (*defaultClient) CheckRepository(path string) error {
	marker := filepath.Join(path, ".git")
	if _, err := os.Stat(marker); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrNotARepository)
		}
		return fmt.Errorf("failed to stat %s: %w", marker, err)
	}
	return nil
}

// Pull runs a fast-forward pull from origin in the working copy. The
// subprocess is used on purpose: it honors the user's git configuration,
// credential helpers included.
func (c *defaultClient) Pull(ctx context.Context, path, branch string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.gitPath, "pull", "--ff-only", "origin", branch)
	cmd.Dir = path
	// Never block on an interactive credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &PullError{
			Path:   path,
			Branch: branch,
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}

	slog.DebugContext(ctx, "Pulled repository",
		"path", path,
		"branch", branch,
		"duration", time.Since(start).String())
	return nil
}

// Head reads the current HEAD of the working copy.
func (*defaultClient) Head(path string) (*HeadInfo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotARepository)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	info := &HeadInfo{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}
	return info, nil
}
