package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

const defaultBatchSize = 5000

// ErrAggregation marks a rollup run that could not complete. No partial row
// is written; the prior row, if any, survives until a successful rerun.
var ErrAggregation = errors.New("daily rollup failed")

// Engine recomputes one daily_statistics row from the raw event log.
//
// It never reads the incremental per-user counters: the event log is the
// ground truth, which is what makes rollup runs idempotent and lets them
// correct any drift the incremental path accumulated.
type Engine struct {
	events    storage.EventStore
	stats     storage.StatsStore
	batchSize int
}

// NewEngine creates a rollup engine. batchSize bounds how many events one
// range-scan batch fetches.
func NewEngine(events storage.EventStore, stats storage.StatsStore, batchSize int) *Engine {
	if events == nil {
		panic("rollup: event store must not be nil")
	}
	if stats == nil {
		panic("rollup: stats store must not be nil")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{
		events:    events,
		stats:     stats,
		batchSize: batchSize,
	}
}

// Run recomputes and upserts the daily row for (date, statType).
//
// Events are scanned over [date 00:00, date+1 00:00) in seq-cursor batches.
// statType "general" counts every event; any other value counts only events
// of that type. A day with zero matching events still writes a zero row.
func (e *Engine) Run(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error) {
	dayStart := date.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	slog.Info("[Rollup] Starting daily rollup",
		"stat_date", dayStart.Format(v1.DateFormat),
		"stat_type", statType,
		"batch_size", e.batchSize)

	var (
		totalEvents int64
		users       = make(map[string]struct{})
		sessions    = make(map[string]struct{})
		cursor      int64
	)

	for {
		events, err := e.events.RetrieveEventsInRange(ctx, dayStart, dayEnd, cursor, e.batchSize)
		if err != nil {
			return nil, fmt.Errorf("%w: scan events for %s/%s: %w",
				ErrAggregation, dayStart.Format(v1.DateFormat), statType, err)
		}
		if len(events) == 0 {
			break
		}

		for _, evt := range events {
			if statType != v1.StatTypeGeneral && evt.EventType != statType {
				continue
			}

			totalEvents++
			users[evt.UserID] = struct{}{}
			if evt.SessionID != "" {
				sessions[evt.SessionID] = struct{}{}
			}
		}

		cursor = events[len(events)-1].Seq
		if len(events) < e.batchSize {
			break
		}
	}

	row := &v1.DailyStatistics{
		StatDate:      dayStart,
		StatType:      statType,
		TotalEvents:   totalEvents,
		UniqueUsers:   int64(len(users)),
		TotalSessions: int64(len(sessions)),
	}

	if err := e.stats.UpsertDailyStats(ctx, row); err != nil {
		return nil, fmt.Errorf("%w: write daily row for %s/%s: %w",
			ErrAggregation, dayStart.Format(v1.DateFormat), statType, err)
	}

	slog.Info("[Rollup] Daily rollup complete",
		"stat_date", dayStart.Format(v1.DateFormat),
		"stat_type", statType,
		"total_events", totalEvents,
		"unique_users", len(users),
		"total_sessions", len(sessions))

	return row, nil
}
