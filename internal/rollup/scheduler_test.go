package rollup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
)

func TestScheduler_RunPending_OncePerElapsedDay(t *testing.T) {
	log := &memEventLog{}
	seedRollupDay(log)
	store := &recordingStatsStore{}
	engine := NewEngine(log, store, 0)

	now := rollupDay.Add(24*time.Hour + 2*time.Hour) // 02:00 the day after
	sched := NewScheduler(engine, time.Hour, []string{v1.StatTypeGeneral, "page_view"})
	sched.nowFn = func() time.Time { return now }

	ctx := context.Background()

	// First check produces yesterday's rows, one per stat type.
	sched.runPending(ctx)
	require.Len(t, store.upserts, 2)

	types := map[string]bool{}
	for _, row := range store.upserts {
		assert.Equal(t, rollupDay, row.StatDate)
		types[row.StatType] = true
	}
	assert.True(t, types[v1.StatTypeGeneral])
	assert.True(t, types["page_view"])

	// Further checks within the same day are no-ops.
	sched.runPending(ctx)
	sched.runPending(ctx)
	assert.Len(t, store.upserts, 2)

	// Once a new day has elapsed the scheduler fires again.
	now = now.Add(24 * time.Hour)
	sched.runPending(ctx)
	assert.Len(t, store.upserts, 4)
}

func TestScheduler_RunPending_RetriesAfterFailure(t *testing.T) {
	log := &memEventLog{}
	seedRollupDay(log)
	store := &recordingStatsStore{upsertErr: errors.New("disk full")}
	engine := NewEngine(log, store, 0)

	sched := NewScheduler(engine, time.Hour, nil)
	sched.nowFn = func() time.Time { return rollupDay.Add(26 * time.Hour) }

	ctx := context.Background()

	// Failed run leaves the day marked pending.
	sched.runPending(ctx)
	assert.Empty(t, store.upserts)

	// Next check retries and succeeds once the store recovers.
	store.upsertErr = nil
	sched.runPending(ctx)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, v1.StatTypeGeneral, store.upserts[0].StatType)
	assert.Equal(t, rollupDay, store.upserts[0].StatDate)
}

func TestScheduler_Start_StopsOnContextCancel(t *testing.T) {
	log := &memEventLog{}
	store := &recordingStatsStore{}
	sched := NewScheduler(NewEngine(log, store, 0), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	// The catch-up run on start still produced yesterday's row.
	assert.Len(t, store.upserts, 1)
}
