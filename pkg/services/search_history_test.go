package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchHistory(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	history := NewSearchHistory(repo)
	require.NoError(t, history.Load(ctx))
	assert.Empty(t, history.Entries())

	for _, q := range []string{"berserk", "  ", "one piece", "berserk"} {
		require.NoError(t, history.Add(ctx, q))
	}
	assert.Equal(t, []string{"one piece", "berserk"}, history.Entries())

	reloaded := NewSearchHistory(repo)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"one piece", "berserk"}, reloaded.Entries())

	require.NoError(t, history.Remove(ctx, "one piece"))
	assert.Equal(t, []string{"berserk"}, history.Entries())

	require.NoError(t, history.Clear(ctx))
	assert.Empty(t, history.Entries())
}

func TestSearchHistoryLimit(t *testing.T) {
	history := NewSearchHistory(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < maxSearchHistory+5; i++ {
		require.NoError(t, history.Add(ctx, fmt.Sprintf("query %d", i)))
	}

	entries := history.Entries()
	require.Len(t, entries, maxSearchHistory)
	assert.Equal(t, "query 5", entries[0])
	assert.Equal(t, fmt.Sprintf("query %d", maxSearchHistory+4), entries[len(entries)-1])
}
