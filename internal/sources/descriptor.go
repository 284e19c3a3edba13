package sources

import (
	"path/filepath"
)

// Descriptor is the fully resolved view of one configured snippet source.
// All defaulting and path resolution has already happened, consumers can
// use the fields as-is.
type Descriptor struct {
	// ID uniquely identifies the source across one configuration
	ID string `json:"id"`

	// DisplayName is the human-readable label used in logs and status
	DisplayName string `json:"displayName"`

	// RawPath is the repository path exactly as configured
	RawPath string `json:"rawPath"`

	// Path is the absolute repository path after resolution
	Path string `json:"path"`

	// Branch is the branch to pull, defaults to main
	Branch string `json:"branch"`

	// SnippetsPath is the snippets folder relative to the repository root
	SnippetsPath string `json:"snippetsPath"`

	// IncludeJSONFiles admits plain *.json files during loading
	IncludeJSONFiles bool `json:"includeJsonFiles"`

	// EnableGitPull allows the sync cycle to pull the repository
	EnableGitPull bool `json:"enableGitPull"`

	// Index is the zero-based position of the entry in the configuration
	Index int `json:"index"`
}

// SnippetsDir returns the absolute path of the source's snippets folder.
func (d *Descriptor) SnippetsDir() string {
	return filepath.Join(d.Path, d.SnippetsPath)
}

// GitDir returns the absolute path of the repository's .git marker.
func (d *Descriptor) GitDir() string {
	return filepath.Join(d.Path, ".git")
}
