//go:build e2e

package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/onsi/gomega"

	"github.com/snipmux/snipmux/internal/api"
	"github.com/snipmux/snipmux/internal/config"
	"github.com/snipmux/snipmux/internal/engine"
	"github.com/snipmux/snipmux/internal/status"
	"github.com/snipmux/snipmux/internal/watch"
)

// watchDebounce keeps file-change specs fast without losing coalescing.
const watchDebounce = 100 * time.Millisecond

// DaemonTestHelper runs the daemon's engine, coordinator, folder watcher,
// and HTTP surface in-process against a configuration file, the same
// composition the serve command builds.
type DaemonTestHelper struct {
	cancel     context.CancelFunc
	mgr        config.Manager
	eng        engine.Engine
	coord      engine.Coordinator
	watcher    watch.Watcher
	server     *httptest.Server
	httpClient *http.Client
}

// StartDaemon builds and starts the in-process daemon for configPath.
func StartDaemon(parent context.Context, configPath string) *DaemonTestHelper {
	runCtx, cancel := context.WithCancel(parent)

	mgr, err := config.NewManager(configPath)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	eng, err := engine.New(mgr.Current,
		engine.WithSnapshotStore(engine.NewFileSnapshotStore(mgr.Current().DataDir)),
	)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	coord := engine.NewCoordinator(eng, func() time.Duration {
		return mgr.Current().SyncInterval()
	})

	watcher := watch.NewWatcher(
		func() []string {
			descriptors, err := eng.Descriptors(runCtx)
			if err != nil {
				return nil
			}
			paths := make([]string, 0, len(descriptors))
			for _, d := range descriptors {
				paths = append(paths, d.SnippetsDir())
			}
			return paths
		},
		func() {
			coord.Trigger(engine.OptionsFor(status.TriggerFileChange))
		},
		watch.WithDebounce(watchDebounce),
	)

	go func() { _ = coord.Start(runCtx) }()
	go func() { _ = watcher.Start(runCtx) }()

	server := httptest.NewServer(api.NewServer(eng))

	return &DaemonTestHelper{
		cancel:     cancel,
		mgr:        mgr,
		eng:        eng,
		coord:      coord,
		watcher:    watcher,
		server:     server,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Stop tears the daemon down in the serve command's shutdown order.
func (d *DaemonTestHelper) Stop() {
	_ = d.watcher.Stop()
	_ = d.coord.Stop()
	d.cancel()
	d.server.Close()
	_ = d.eng.Shutdown(context.Background())
	_ = d.mgr.Close()
}

// BaseURL returns the daemon's HTTP base URL.
func (d *DaemonTestHelper) BaseURL() string {
	return d.server.URL
}

// WaitForReady blocks until /readiness reports a published table.
func (d *DaemonTestHelper) WaitForReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := d.httpClient.Get(d.server.URL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Daemon should publish a first table")
}

// TriggerSync runs a manual cycle through the API and returns the decoded
// status payload of the finished cycle.
func (d *DaemonTestHelper) TriggerSync() map[string]any {
	resp, err := d.httpClient.Post(d.server.URL+"/api/v0/sync", "application/json", nil)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	return decodeBody(resp.Body)
}

// GetJSON fetches path and returns the status code with the decoded body.
func (d *DaemonTestHelper) GetJSON(path string) (int, map[string]any) {
	resp, err := d.httpClient.Get(d.server.URL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode, decodeBody(resp.Body)
}

func decodeBody(r io.Reader) map[string]any {
	data, err := io.ReadAll(r)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	var payload map[string]any
	gomega.Expect(json.Unmarshal(data, &payload)).To(gomega.Succeed(), "body: %s", string(data))
	return payload
}
