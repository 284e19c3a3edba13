//go:build e2e

package integration

import (
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/snipmux/snipmux/test-integration/snipmux/helpers"
)

var _ = Describe("Publication Cycles", Label("git"), func() {
	var (
		tempDir   string
		dataDir   string
		gitHelper *helpers.GitTestHelper
		daemon    *helpers.DaemonTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("snipmux-sync-test-")
		dataDir = filepath.Join(tempDir, "data")
		gitHelper = helpers.NewGitTestHelper(ctx)
	})

	AfterEach(func() {
		if daemon != nil {
			daemon.Stop()
			daemon = nil
		}
		if gitHelper != nil {
			_ = gitHelper.Cleanup()
		}
		cleanupTempDir(tempDir)
	})

	Context("Fast-forward pulls", func() {
		var (
			upstream *helpers.GitTestRepository
			clone    *helpers.GitTestRepository
		)

		BeforeEach(func() {
			upstream = gitHelper.CreateUpstream("team-snippets")
			gitHelper.CommitSnippetFile(upstream, "snippets/go.code-snippets", helpers.GoSnippetsJSONC, "Add Go snippets")
			clone = gitHelper.Clone(upstream, "team-snippets-clone")

			configPath := helpers.WriteConfigYAML(tempDir, dataDir, 0,
				helpers.SourceSpec{Name: "team", LocalRepoPath: clone.Path})
			daemon = helpers.StartDaemon(ctx, configPath)
			daemon.WaitForReady(30 * time.Second)
		})

		It("should serve the committed snippets after the startup cycle", func() {
			code, payload := daemon.GetJSON("/api/v0/completions/go")
			Expect(code).To(Equal(http.StatusOK))
			Expect(snippetNames(payload)).To(Equal([]string{"Log variable", "Wrap error"}))
		})

		It("should pick up upstream commits on a manual sync", func() {
			gitHelper.CommitSnippetFile(upstream, "snippets/go.code-snippets", helpers.UpdatedGoSnippetsJSONC, "Add table test snippet")
			upstreamHead := gitHelper.Head(upstream)

			report := daemon.TriggerSync()
			Expect(report["hasErrors"]).To(BeFalse())

			src := firstSource(report)
			Expect(src["displayName"]).To(Equal("team"))
			Expect(src["head"]).To(Equal("main@" + upstreamHead[:8]))
			Expect(src["snippetCount"]).To(BeNumerically("==", 3))

			_, payload := daemon.GetJSON("/api/v0/completions/go")
			Expect(snippetNames(payload)).To(ContainElement("Table test"))
		})

		It("should republish when a snippet file changes on disk", func() {
			// Rewrite the file on each poll so a write landing before the
			// watcher registers the snippets folder is not lost.
			Eventually(func() []string {
				helpers.WriteSnippetFile(clone.Path, "snippets/local.code-snippets", helpers.LocalOnlySnippetsJSON)
				_, payload := daemon.GetJSON("/api/v0/completions/go")
				return snippetNames(payload)
			}, 15*time.Second, 500*time.Millisecond).Should(ContainElement("Local only"))
		})
	})

	Context("Pull failures", func() {
		BeforeEach(func() {
			upstream := gitHelper.CreateUpstream("diverging-snippets")
			gitHelper.CommitSnippetFile(upstream, "snippets/go.code-snippets", helpers.GoSnippetsJSONC, "Add Go snippets")
			clone := gitHelper.Clone(upstream, "diverging-snippets-clone")

			// A commit on each side makes a fast-forward impossible.
			gitHelper.CommitSnippetFile(upstream, "snippets/global.code-snippets", helpers.GlobalSnippetsJSON, "Upstream change")
			gitHelper.CommitSnippetFile(clone, "snippets/local.code-snippets", helpers.LocalOnlySnippetsJSON, "Local change")

			configPath := helpers.WriteConfigYAML(tempDir, dataDir, 0,
				helpers.SourceSpec{Name: "diverged", LocalRepoPath: clone.Path})
			daemon = helpers.StartDaemon(ctx, configPath)
			daemon.WaitForReady(30 * time.Second)
		})

		It("should record the pull error and keep serving the working copy", func() {
			report := daemon.TriggerSync()
			Expect(report["hasErrors"]).To(BeTrue())
			Expect(report["errorCount"]).To(BeNumerically("==", 1))

			src := firstSource(report)
			Expect(src["lastError"]).To(ContainSubstring("failed to pull"))
			Expect(src["snippetCount"]).To(BeNumerically("==", 3))

			_, payload := daemon.GetJSON("/api/v0/completions/go")
			Expect(snippetNames(payload)).To(ContainElement("Local only"))
		})
	})

	Context("Non-repository sources", func() {
		BeforeEach(func() {
			plainDir := filepath.Join(tempDir, "plain")
			helpers.WriteSnippetFile(plainDir, "snippets/go.code-snippets", helpers.GoSnippetsJSONC)

			configPath := helpers.WriteConfigYAML(tempDir, dataDir, 0,
				helpers.SourceSpec{Name: "plain", LocalRepoPath: plainDir})
			daemon = helpers.StartDaemon(ctx, configPath)
			daemon.WaitForReady(30 * time.Second)
		})

		It("should mark the source failed without loading its files", func() {
			code, payload := daemon.GetJSON("/api/v0/status")
			Expect(code).To(Equal(http.StatusOK))
			Expect(payload["hasErrors"]).To(BeTrue())

			src := firstSource(payload)
			Expect(src["lastError"]).To(ContainSubstring("not a git repository"))
			Expect(src["snippetCount"]).To(BeNumerically("==", 0))

			code, completions := daemon.GetJSON("/api/v0/completions/go")
			Expect(code).To(Equal(http.StatusOK))
			Expect(completions["count"]).To(BeNumerically("==", 0))
		})
	})
})
