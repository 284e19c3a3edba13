// Package status defines the per-source health records and the cycle
// report produced by each publication run.
package status

import "time"

// Trigger identifies what started a publication cycle.
type Trigger string

const (
	// TriggerStartup is the initial cycle run when the daemon starts
	TriggerStartup Trigger = "startup"

	// TriggerManual is a cycle requested explicitly (CLI or API)
	TriggerManual Trigger = "manual"

	// TriggerTimer is a cycle started by the periodic sync interval
	TriggerTimer Trigger = "timer"

	// TriggerFileChange is a cycle started by a snippet-folder change event
	TriggerFileChange Trigger = "file-change"

	// TriggerConfigChange is a cycle started by a configuration reload
	TriggerConfigChange Trigger = "config-change"
)

// SourceStatus is the health record for one configured source in one
// completed cycle. The full set is replaced wholesale each cycle; records
// are never merged across cycles.
type SourceStatus struct {
	// ID is the stable per-run source identifier
	ID string `json:"id"`

	// DisplayName is the human-readable source label
	DisplayName string `json:"displayName"`

	// LastSync is when the source last loaded successfully, if it did
	LastSync *time.Time `json:"lastSync,omitempty"`

	// LastError holds the source-level error for this cycle, empty when healthy.
	// File-level parse warnings do not set it.
	LastError string `json:"lastError,omitempty"`

	// SnippetCount is the number of loaded entries summed across the
	// source's language buckets (a multi-language snippet counts once
	// per language it targets)
	SnippetCount int `json:"snippetCount"`

	// ParseWarnings is the number of files skipped because their content
	// was not a valid snippet mapping
	ParseWarnings int `json:"parseWarnings,omitempty"`

	// Head is the commit hash the working copy was at after the sync
	// step, when it could be determined
	Head string `json:"head,omitempty"`
}

// CycleReport summarizes one full resolve-sync-load-aggregate-publish run.
type CycleReport struct {
	// CycleID identifies the run in logs and metrics
	CycleID string `json:"cycleId"`

	// Trigger records what started the cycle
	Trigger Trigger `json:"trigger"`

	// StartedAt is when the cycle began
	StartedAt time.Time `json:"startedAt"`

	// Duration is the wall-clock time of the whole cycle
	Duration time.Duration `json:"duration"`

	// TotalSnippets is the sum of SnippetCount over all sources
	TotalSnippets int `json:"totalSnippets"`

	// ErrorCount is the number of sources whose LastError is set
	ErrorCount int `json:"errorCount"`

	// Sources holds one status per configured source, in source order
	Sources []SourceStatus `json:"sources"`
}

// HasErrors reports whether any source finished the cycle in error.
func (r *CycleReport) HasErrors() bool {
	return r.ErrorCount > 0
}

// Recount recomputes TotalSnippets and ErrorCount from Sources.
func (r *CycleReport) Recount() {
	r.TotalSnippets = 0
	r.ErrorCount = 0
	for i := range r.Sources {
		r.TotalSnippets += r.Sources[i].SnippetCount
		if r.Sources[i].LastError != "" {
			r.ErrorCount++
		}
	}
}
