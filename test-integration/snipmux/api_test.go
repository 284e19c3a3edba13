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

var _ = Describe("HTTP API", func() {
	var (
		tempDir   string
		gitHelper *helpers.GitTestHelper
		daemon    *helpers.DaemonTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("snipmux-api-test-")
		gitHelper = helpers.NewGitTestHelper(ctx)

		repo := gitHelper.CreateUpstream("api-snippets")
		gitHelper.CommitSnippetFile(repo, "snippets/global.code-snippets", helpers.GlobalSnippetsJSON, "Add global snippets")
		gitHelper.CommitSnippetFile(repo, "snippets/go.code-snippets", helpers.GoSnippetsJSONC, "Add Go snippets")
		gitHelper.CommitSnippetFile(repo, "snippets/web.code-snippets", helpers.WebSnippetsJSON, "Add web snippets")

		// Pulling is disabled, the working copy itself is the fixture.
		configPath := helpers.WriteConfigYAML(tempDir, filepath.Join(tempDir, "data"), 0,
			helpers.SourceSpec{Name: "api", LocalRepoPath: repo.Path, DisablePull: true})
		daemon = helpers.StartDaemon(ctx, configPath)
		daemon.WaitForReady(30 * time.Second)
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

	It("should report liveness and build information", func() {
		code, health := daemon.GetJSON("/health")
		Expect(code).To(Equal(http.StatusOK))
		Expect(health["status"]).To(Equal("healthy"))

		code, version := daemon.GetJSON("/version")
		Expect(code).To(Equal(http.StatusOK))
		Expect(version).To(HaveKey("version"))
		Expect(version).To(HaveKey("go_version"))
		Expect(version).To(HaveKey("platform"))
	})

	It("should merge global entries ahead of language entries", func() {
		code, payload := daemon.GetJSON("/api/v0/completions/go")
		Expect(code).To(Equal(http.StatusOK))
		Expect(payload["language"]).To(Equal("go"))
		Expect(snippetNames(payload)).To(Equal([]string{"Header comment", "Log variable", "Wrap error"}))
		Expect(payload["count"]).To(BeNumerically("==", 3))
		Expect(payload["triggerCharacters"]).To(HaveExactElements("!", "v", "w", "r"))
	})

	It("should serve only the global bucket at the bare completions endpoint", func() {
		code, payload := daemon.GetJSON("/api/v0/completions")
		Expect(code).To(Equal(http.StatusOK))
		Expect(snippetNames(payload)).To(Equal([]string{"Header comment"}))
	})

	It("should normalize the requested language", func() {
		code, payload := daemon.GetJSON("/api/v0/completions/TypeScript")
		Expect(code).To(Equal(http.StatusOK))
		Expect(payload["language"]).To(Equal("typescript"))
		Expect(snippetNames(payload)).To(ContainElement("Console log"))
	})

	It("should fall back to global entries for unknown languages", func() {
		code, payload := daemon.GetJSON("/api/v0/completions/rust")
		Expect(code).To(Equal(http.StatusOK))
		Expect(snippetNames(payload)).To(Equal([]string{"Header comment"}))
	})

	It("should list languages with per-language counts", func() {
		code, payload := daemon.GetJSON("/api/v0/languages")
		Expect(code).To(Equal(http.StatusOK))
		Expect(payload["hasGlobal"]).To(BeTrue())
		Expect(payload["total"]).To(BeNumerically("==", 5))

		langs, ok := payload["languages"].([]any)
		Expect(ok).To(BeTrue(), "languages should be an array: %v", payload)

		counts := map[string]int{}
		for _, raw := range langs {
			info, ok := raw.(map[string]any)
			Expect(ok).To(BeTrue())
			name, ok := info["language"].(string)
			Expect(ok).To(BeTrue())
			count, ok := info["snippetCount"].(float64)
			Expect(ok).To(BeTrue())
			counts[name] = int(count)
		}
		Expect(counts).To(Equal(map[string]int{"go": 2, "javascript": 1, "typescript": 1}))
	})

	It("should expose the last cycle in the status payload", func() {
		code, payload := daemon.GetJSON("/api/v0/status")
		Expect(code).To(Equal(http.StatusOK))
		Expect(payload["hasErrors"]).To(BeFalse())
		Expect(payload["totalSnippets"]).To(BeNumerically("==", 5))

		src := firstSource(payload)
		Expect(src["displayName"]).To(Equal("api"))
		Expect(src["snippetCount"]).To(BeNumerically("==", 5))
		Expect(src["head"]).To(HavePrefix("main@"))

		cycle, ok := payload["cycle"].(map[string]any)
		Expect(ok).To(BeTrue(), "status should include the last cycle")
		Expect(cycle["trigger"]).To(Equal("startup"))
		Expect(cycle["id"]).NotTo(BeEmpty())
	})
})
