// Package sources turns raw configuration entries into resolved snippet
// source descriptors.
//
// The package defines the Resolver interface which applies per-source
// defaults, resolves relative repository paths against the workspace, and
// assigns every source a stable unique ID. Entries without a repository
// path are dropped here so the rest of the pipeline only ever sees
// complete descriptors.
//
// Architecture:
//   - Descriptor: Fully resolved view of one configured snippet source
//   - Resolver: Interface mapping configuration settings to descriptors
//
// Legacy single-repository settings are synthesized into a one-element
// source list when no explicit sources are configured, so old and new
// configuration shapes flow through the same path.
package sources
