package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/snippets"
	"github.com/snipmux/snipmux/internal/status"
)

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewStore()
	assert.False(t, store.Ready())
	assert.True(t, store.Table().Empty())
	assert.Nil(t, store.Report())
	assert.Empty(t, store.Statuses())

	table := &aggregate.Table{Buckets: snippets.Buckets{
		"go": {{Name: "X", Prefixes: []string{"x"}, TargetLanguages: []string{"go"}}},
	}}
	statuses := []status.SourceStatus{{ID: "a", SnippetCount: 1}}
	report := &status.CycleReport{CycleID: "c1", TotalSnippets: 1, Sources: statuses}

	store.Publish(table, statuses, report)
	assert.True(t, store.Ready())
	assert.Same(t, table, store.Table())
	assert.Equal(t, "c1", store.Report().CycleID)

	got := store.Statuses()
	require.Len(t, got, 1)

	// Readers get a copy, mutating it does not leak back.
	got[0].SnippetCount = 99
	assert.Equal(t, 1, store.Statuses()[0].SnippetCount)

	// The next publish replaces everything as a unit.
	empty := aggregate.NewTable()
	store.Publish(empty, nil, &status.CycleReport{CycleID: "c2"})
	assert.Same(t, empty, store.Table())
	assert.Equal(t, "c2", store.Report().CycleID)
	assert.Empty(t, store.Statuses())

	store.Clear()
	assert.False(t, store.Ready())
	assert.True(t, store.Table().Empty())
	assert.Nil(t, store.Report())
}
