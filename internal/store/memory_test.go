package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("doc-%02d", n)
	}
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestMemoryQueryOrdersFiltersAndLimits(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(steppingClock(start)), WithIDGenerator(sequentialIDs()))

	for _, name := range []string{"ghost", "tool", "ghost", "opeth"} {
		_, err := m.Create(ctx, "reviews", Fields{"bandNameLower": name, "created": ServerTimestamp})
		require.NoError(t, err)
	}

	docs, err := m.Query(ctx, Query{Collection: "reviews", OrderBy: "created", Descending: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"doc-04", "doc-03", "doc-02"}, ids(docs))

	docs, err = m.Query(ctx, Query{Collection: "reviews"}.Where("bandNameLower", "ghost"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-01", "doc-03"}, ids(docs))
}

func TestMemoryFilterNeverMatchesMissingOrNull(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithIDGenerator(sequentialIDs()))

	_, err := m.Create(ctx, "reviews", Fields{"poster": nil})
	require.NoError(t, err)
	_, err = m.Create(ctx, "reviews", Fields{})
	require.NoError(t, err)
	_, err = m.Create(ctx, "reviews", Fields{"poster": "kim@example.com"})
	require.NoError(t, err)

	docs, err := m.Query(ctx, Query{Collection: "reviews"}.Where("poster", "kim@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-03"}, ids(docs))
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(WithClock(func() time.Time { return stamp }), WithIDGenerator(sequentialIDs()))

	id, err := m.Create(ctx, "reviews", Fields{"content": "ok", "rating": 2})
	require.NoError(t, err)

	require.NoError(t, m.Update(ctx, "reviews", id, Fields{"rating": 5, "updated": ServerTimestamp}))

	doc, err := m.Get(ctx, "reviews", id)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Fields["rating"])
	assert.Equal(t, "ok", doc.Fields["content"])
	assert.Equal(t, stamp, doc.Fields["updated"])

	doc.Fields["content"] = "mutated copy"
	again, err := m.Get(ctx, "reviews", id)
	require.NoError(t, err)
	assert.Equal(t, "ok", again.Fields["content"])

	require.NoError(t, m.Delete(ctx, "reviews", id))
	_, err = m.Get(ctx, "reviews", id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(m.Delete(ctx, "reviews", id), ErrNotFound))
	assert.True(t, errors.Is(m.Update(ctx, "reviews", id, Fields{"rating": 1}), ErrNotFound))
	assert.Equal(t, 0, m.Len("reviews"))
}

func TestMemoryRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Query(ctx, Query{Collection: "reviews"})
	assert.ErrorIs(t, err, context.Canceled)
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
