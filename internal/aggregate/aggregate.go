// Package aggregate merges per-source snippet buckets into the single
// published table and derives the per-source statuses of a cycle.
package aggregate

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/snipmux/snipmux/internal/snippets"
	"github.com/snipmux/snipmux/internal/sources"
	"github.com/snipmux/snipmux/internal/status"
)

// SourceResult is the outcome of processing one source during a cycle.
type SourceResult struct {
	// Source is the descriptor the result belongs to
	Source *sources.Descriptor

	// Buckets holds the loaded snippets, nil when the source failed
	Buckets snippets.Buckets

	// Warnings lists the files skipped during loading
	Warnings []snippets.Warning

	// SyncedAt is when the source finished loading, nil on failure
	SyncedAt *time.Time

	// Head describes the working copy HEAD, empty when unknown
	Head string

	// Err is the source-level failure, nil on success
	Err error
}

// Table is the aggregated snippet table: language key to ordered bucket.
// Bucket order is source order, then file order, then in-file order, so
// identical inputs always produce an identical table.
type Table struct {
	Buckets snippets.Buckets `json:"buckets"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{Buckets: snippets.Buckets{}}
}

// Build merges the per-source results in order into one table and derives
// one status per source. Failed sources contribute empty buckets and an
// error status, they never halt the merge.
func Build(results []SourceResult) (*Table, []status.SourceStatus) {
	table := NewTable()
	statuses := make([]status.SourceStatus, 0, len(results))

	for _, res := range results {
		st := status.SourceStatus{
			ID:            res.Source.ID,
			DisplayName:   res.Source.DisplayName,
			LastSync:      res.SyncedAt,
			ParseWarnings: len(res.Warnings),
			Head:          res.Head,
		}
		if res.Err != nil {
			st.LastError = res.Err.Error()
		}

		for lang, bucket := range res.Buckets {
			table.Buckets[lang] = append(table.Buckets[lang], bucket...)
			st.SnippetCount += len(bucket)
		}

		statuses = append(statuses, st)
	}

	return table, statuses
}

// MergedFor returns the completion sequence for a language: the global
// bucket followed by the language's own. The language key is normalized
// the same way scopes are. The returned slice is the caller's to keep.
func (t *Table) MergedFor(language string) []*snippets.Snippet {
	lang := strings.ToLower(strings.TrimSpace(language))
	global := t.Buckets[snippets.GlobalScope]

	var own []*snippets.Snippet
	if lang != "" && lang != snippets.GlobalScope {
		own = t.Buckets[lang]
	}

	merged := make([]*snippets.Snippet, 0, len(global)+len(own))
	merged = append(merged, global...)
	merged = append(merged, own...)
	return merged
}

// TriggerChars returns the distinct last characters of every prefix in the
// language's merged sequence, in first-appearance order.
func (t *Table) TriggerChars(language string) []string {
	seen := make(map[rune]bool)
	var chars []string

	for _, s := range t.MergedFor(language) {
		for _, prefix := range s.Prefixes {
			r, ok := lastRune(prefix)
			if !ok || seen[r] {
				continue
			}
			seen[r] = true
			chars = append(chars, string(r))
		}
	}

	return chars
}

func lastRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r, true
}

// Languages returns the sorted non-global language keys that have at least
// one snippet.
func (t *Table) Languages() []string {
	langs := make([]string, 0, len(t.Buckets))
	for lang, bucket := range t.Buckets {
		if lang == snippets.GlobalScope || len(bucket) == 0 {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// HasGlobal reports whether any snippet applies to every language.
func (t *Table) HasGlobal() bool {
	return len(t.Buckets[snippets.GlobalScope]) > 0
}

// Total returns the number of bucket entries across the table, counting a
// multi-language snippet once per language. It matches the sum of the
// per-source snippet counts.
func (t *Table) Total() int {
	return t.Buckets.Total()
}

// Empty reports whether the table holds no snippets at all.
func (t *Table) Empty() bool {
	return t.Total() == 0
}
