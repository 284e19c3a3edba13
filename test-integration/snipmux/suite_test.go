//go:build e2e

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipmux/snipmux/internal/logging"
)

var (
	ctx    context.Context
	cancel context.CancelFunc
)

func TestSnipmuxIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Snipmux Integration Suite")
}

var _ = BeforeSuite(func() {
	slog.SetDefault(slog.New(logging.NewHandler(
		logging.WithLevel(slog.LevelDebug),
		logging.WithFormat(logging.FormatText),
		logging.WithWriter(GinkgoWriter),
	)))

	ctx, cancel = context.WithCancel(context.TODO())
})

var _ = AfterSuite(func() {
	cancel()
})

// createTempDir creates a temporary directory for test files
func createTempDir(prefix string) string {
	dir, err := os.MkdirTemp("", prefix)
	Expect(err).NotTo(HaveOccurred())
	return dir
}

// cleanupTempDir removes a temporary directory
func cleanupTempDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		By(fmt.Sprintf("Warning: failed to cleanup temp dir %s: %v", dir, err))
	}
}

// snippetNames extracts the snippet names from a completions payload, in
// response order.
func snippetNames(payload map[string]any) []string {
	raw, _ := payload["snippets"].([]any)
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := entry["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// firstSource extracts the first source record from a status payload.
func firstSource(payload map[string]any) map[string]any {
	sources, ok := payload["sources"].([]any)
	Expect(ok).To(BeTrue(), "status payload carries no sources: %v", payload)
	Expect(sources).NotTo(BeEmpty())
	source, ok := sources[0].(map[string]any)
	Expect(ok).To(BeTrue())
	return source
}
