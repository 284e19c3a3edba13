//go:build e2e

package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// GoSnippetsJSONC is a VSCode-style snippet file with comments and trailing
// commas, the shape editors actually save.
const GoSnippetsJSONC = `{
	// Logging helpers for Go files.
	"Log variable": {
		"prefix": "logv",
		"body": ["slog.Info(\"${1:msg}\", \"${2:key}\", ${3:value})"],
		"description": "Structured log line",
		"scope": "go",
	},
	"Wrap error": {
		"prefix": ["errw", "wraperr"],
		"body": "if err != nil {\n\treturn fmt.Errorf(\"${1:context}: %w\", err)\n}",
		"scope": "go",
	},
}`

// UpdatedGoSnippetsJSONC extends GoSnippetsJSONC with one more entry, used
// to verify that a pull picks up upstream changes.
const UpdatedGoSnippetsJSONC = `{
	"Log variable": {
		"prefix": "logv",
		"body": ["slog.Info(\"${1:msg}\", \"${2:key}\", ${3:value})"],
		"description": "Structured log line",
		"scope": "go",
	},
	"Wrap error": {
		"prefix": ["errw", "wraperr"],
		"body": "if err != nil {\n\treturn fmt.Errorf(\"${1:context}: %w\", err)\n}",
		"scope": "go",
	},
	"Table test": {
		"prefix": "ttest",
		"body": ["func Test${1:Name}(t *testing.T) {", "\t$0", "}"],
		"scope": "go",
	},
}`

// GlobalSnippetsJSON has no scope, so its entries land in the global bucket.
const GlobalSnippetsJSON = `{
	"Header comment": {
		"prefix": "hdr!",
		"body": ["// ------------------------------------", "// ${1:section}"]
	}
}`

// LocalOnlySnippetsJSON is written into a working copy without a commit to
// drive the folder watcher.
const LocalOnlySnippetsJSON = `{
	"Local only": {
		"prefix": "lcl",
		"body": "uncommitted",
		"scope": "go"
	}
}`

// WebSnippetsJSON targets two languages from a single entry.
const WebSnippetsJSON = `{
	"Console log": {
		"prefix": "clog",
		"body": "console.log('$1');",
		"scope": "javascript, typescript"
	}
}`

// WriteSnippetFile writes a snippet file under baseDir, creating parent
// directories as needed. No git interaction.
func WriteSnippetFile(baseDir, relPath, content string) {
	filePath := filepath.Join(baseDir, relPath)
	err := os.MkdirAll(filepath.Dir(filePath), 0o750)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	err = os.WriteFile(filePath, []byte(content), 0o600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
}

// SourceSpec describes one source entry for WriteConfigYAML.
type SourceSpec struct {
	Name          string
	LocalRepoPath string
	Branch        string
	SnippetsPath  string
	DisablePull   bool
}

// WriteConfigYAML writes a snipmux configuration file for the given sources
// and returns its path.
func WriteConfigYAML(dir, dataDir string, autoSyncMinutes int, sources ...SourceSpec) string {
	var b strings.Builder
	b.WriteString("sources:\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "  - localRepoPath: %s\n", src.LocalRepoPath)
		if src.Name != "" {
			fmt.Fprintf(&b, "    name: %s\n", src.Name)
		}
		if src.Branch != "" {
			fmt.Fprintf(&b, "    branch: %s\n", src.Branch)
		}
		if src.SnippetsPath != "" {
			fmt.Fprintf(&b, "    snippetsPath: %s\n", src.SnippetsPath)
		}
		if src.DisablePull {
			b.WriteString("    enableGitPull: false\n")
		}
	}
	fmt.Fprintf(&b, "autoSyncIntervalMinutes: %d\n", autoSyncMinutes)
	fmt.Fprintf(&b, "dataDir: %s\n", dataDir)

	configPath := filepath.Join(dir, "snipmux.yaml")
	err := os.WriteFile(configPath, []byte(b.String()), 0o600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}
