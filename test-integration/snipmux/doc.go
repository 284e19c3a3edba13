//go:build e2e

// Package integration provides end-to-end tests for the snipmux daemon.
// These tests exercise complete publication cycles against real git
// repositories, the system git binary included: clone, fast-forward pull,
// snippet loading, folder watching, and the HTTP completion API.
package integration
