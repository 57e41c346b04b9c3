package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/glance/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir() + "/conversations.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	turns := []types.Message{
		{Role: types.RoleUser, Content: "what is on my screen", Timestamp: base},
		{Role: types.RoleAssistant, Content: "a checkout page", Timestamp: base.Add(time.Second)},
		{Role: types.RoleUser, Content: "tell me more about that", Timestamp: base.Add(2 * time.Second)},
	}
	for _, msg := range turns {
		require.NoError(t, store.Append(ctx, "session-1", msg))
	}

	got, err := store.Recent(ctx, "session-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest first.
	assert.Equal(t, "what is on my screen", got[0].Content)
	assert.Equal(t, types.RoleAssistant, got[1].Role)
	assert.Equal(t, "tell me more about that", got[2].Content)
}

func TestRecentKeepsNewestWhenLimited(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		require.NoError(t, store.Append(ctx, "session-1", types.Message{
			Role:      types.RoleUser,
			Content:   fmt.Sprintf("turn %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := store.Recent(ctx, "session-1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "turn 5", got[0].Content)
	assert.Equal(t, "turn 7", got[2].Content)
}

func TestRecentIsolatesSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "session-a", types.Message{Role: types.RoleUser, Content: "hello a"}))
	require.NoError(t, store.Append(ctx, "session-b", types.Message{Role: types.RoleUser, Content: "hello b"}))

	got, err := store.Recent(ctx, "session-a", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello a", got[0].Content)
}

func TestRecentEmptySession(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Recent(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendFillsTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "session-1", types.Message{Role: types.RoleUser, Content: "no clock"}))

	got, err := store.Recent(ctx, "session-1", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Timestamp.IsZero())
}
