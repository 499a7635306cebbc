package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_DeletesOnlyStalePending(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	for _, id := range []string{"old", "fresh", "done"} {
		_, err := store.CreatePending(id)
		require.NoError(t, err)
	}
	old := now.Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(store.PendingPath("old"), old, old))
	fresh := now.Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(store.PendingPath("fresh"), fresh, fresh))
	_, err := store.Promote(context.Background(), "done")
	require.NoError(t, err)

	sweeper := NewSweeper(store, time.Hour, clock, zerolog.Nop())
	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, []string{"old"}, result.Deleted)
	assert.Empty(t, result.Failed)
	assert.NoDirExists(t, store.PendingPath("old"))
	assert.DirExists(t, store.PendingPath("fresh"))
	assert.DirExists(t, store.PersistedPath("done"))
}

func TestSweeper_AdvancingClockSweepsLater(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()
	clock := clockwork.NewFakeClockAt(now)

	_, err := store.CreatePending("abc")
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(store.PendingPath("abc"), now, now))

	sweeper := NewSweeper(store, time.Hour, clock, zerolog.Nop())

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)

	clock.Advance(2 * time.Hour)
	result, err = sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, result.Deleted)
}

func TestSweeper_Defaults(t *testing.T) {
	sweeper := NewSweeper(setupTestStore(t), 0, nil, zerolog.Nop())
	assert.Equal(t, DefaultSweepAge, sweeper.MaxAge())
}

func TestSweeper_RunRejectsBadSchedule(t *testing.T) {
	sweeper := NewSweeper(setupTestStore(t), time.Hour, nil, zerolog.Nop())
	err := sweeper.Run(context.Background(), "not a schedule")
	assert.Error(t, err)
}

func TestSweeper_RunStopsWithContext(t *testing.T) {
	sweeper := NewSweeper(setupTestStore(t), time.Hour, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx, "@hourly") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
