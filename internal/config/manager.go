package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager provides thread-safe settings with hot reload.
//
// The settings file is never written by the daemon; all updates come from
// the user or external tooling. Invalid updates are rejected and the last
// known good settings remain active.
type Manager interface {
	// Current safely retrieves the active settings
	Current() *Settings

	// Reload reads the latest settings from disk and applies them if valid
	Reload() error

	// Watch observes the settings file for external changes and reloads
	// on updates. Blocks until the context is cancelled.
	Watch(ctx context.Context) error

	// Close releases the file watcher resources
	Close() error
}

// defaultManager is the concrete implementation of Manager.
type defaultManager struct {
	mu         sync.RWMutex
	settings   *Settings
	configPath string
	onChange   func(*Settings)
	watcher    *fsnotify.Watcher
	watcherMu  sync.Mutex
}

var _ Manager = (*defaultManager)(nil)

// ManagerOption allows customizing Manager behavior
type ManagerOption func(*defaultManager)

// WithOnChange registers a callback invoked after settings are
// successfully reloaded. The callback receives the new settings.
func WithOnChange(fn func(*Settings)) ManagerOption {
	return func(m *defaultManager) {
		m.onChange = fn
	}
}

// NewManager creates a Manager for the given settings file path and loads
// the initial settings. An empty path yields the defaults and disables
// watching.
func NewManager(configPath string, opts ...ManagerOption) (Manager, error) {
	m := &defaultManager{
		configPath: configPath,
	}

	for _, opt := range opts {
		opt(m)
	}

	if configPath == "" {
		m.settings = Default()
		return m, nil
	}

	if err := m.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}

	return m, nil
}

// Current safely retrieves the active settings. Multiple goroutines can
// call this concurrently.
func (m *defaultManager) Current() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Shallow copy so callers cannot swap fields under readers
	settingsCopy := *m.settings
	return &settingsCopy
}

// Reload reads the settings file and applies it if valid. Invalid new
// content keeps the previous settings active.
func (m *defaultManager) Reload() error {
	newSettings, err := LoadConfig(WithConfigPath(m.configPath))
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.settings = newSettings
	m.mu.Unlock()

	slog.Info("Configuration reloaded", "path", m.configPath)

	if m.onChange != nil {
		m.onChange(newSettings)
	}
	return nil
}

// Watch observes the settings file for external changes. Blocks until the
// context is cancelled. Without a configured path it just waits for
// cancellation.
func (m *defaultManager) Watch(ctx context.Context) error {
	if m.configPath == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	m.watcherMu.Lock()
	if m.watcher != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("config watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher
	m.watcherMu.Unlock()

	if err := watcher.Add(m.configPath); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", m.configPath, err)
	}

	slog.Info("Started watching configuration file", "path", m.configPath)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stopping config file watcher")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Info("External config update detected, reloading")

				if err := m.Reload(); err != nil {
					// Previous settings remain active
					slog.Error("Failed to reload config", "error", err)
				}
			}

			// Editors often replace the file on save; re-arm the watch
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				slog.Debug("Config file replaced, re-watching")
				_ = watcher.Add(m.configPath)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// Close releases resources held by the manager.
func (m *defaultManager) Close() error {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
		m.watcher = nil
	}

	return nil
}
