package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
)

// ErrNotFound is returned when a lookup misses (event, user row, daily row).
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an event with a client-supplied id already exists.
var ErrDuplicate = errors.New("event already exists")

// ErrSerialization is returned when a write lost a race with a concurrent
// transaction (SQLSTATE 40001/40P01). Callers may retry the whole operation.
var ErrSerialization = errors.New("concurrent write conflict")

// EventStore is the durable append-only event log.
// Events are never mutated or deleted once appended.
type EventStore interface {
	// AppendEvent persists the event atomically and populates event.Seq
	// from the database sequence. Returns ErrDuplicate if the id is taken.
	AppendEvent(ctx context.Context, event *v1.Event) error

	// GetEvent returns the event with the given id, or ErrNotFound.
	GetEvent(ctx context.Context, id string) (*v1.Event, error)

	// ListEventsByUser returns one page of a user's events ordered newest
	// first, plus the total number of events for that user.
	ListEventsByUser(ctx context.Context, userID string, page, size int) ([]*v1.Event, int64, error)

	// ListEvents is ListEventsByUser without the user filter.
	ListEvents(ctx context.Context, page, size int) ([]*v1.Event, int64, error)

	// RetrieveEventsInRange fetches events with created_at in [start, end)
	// and seq > afterSeq, ordered by seq ASC. The seq cursor lets the rollup
	// engine scan a day in batches without missing or repeating events.
	RetrieveEventsInRange(ctx context.Context, start, end time.Time, afterSeq int64, limit int) ([]*v1.Event, error)

	// CountEvents returns the total number of stored events.
	CountEvents(ctx context.Context) (int64, error)

	// CountEventsInRange counts events with created_at in [start, end).
	CountEventsInRange(ctx context.Context, start, end time.Time) (int64, error)

	// CountDistinctUsersInRange counts distinct user ids among events with
	// created_at in [start, end).
	CountDistinctUsersInRange(ctx context.Context, start, end time.Time) (int64, error)
}

// UserStatsDelta is the incremental effect of one event on a user's counters.
type UserStatsDelta struct {
	UserID     string
	Events     int64
	PageViews  int64
	Sessions   int64
	OccurredAt time.Time
}

// StatsStore owns the aggregate rows: user_statistics, user_sessions and
// daily_statistics. No other component mutates them directly.
type StatsStore interface {
	// ApplyUserStatsDelta applies a delta to the user's row as one atomic
	// upsert: the increments happen inside the database so concurrent deltas
	// for the same user never lose an update. first_seen_at is set only on
	// row creation; last_active_at only ever moves forward.
	// Returns ErrSerialization when the statement lost a concurrency race.
	ApplyUserStatsDelta(ctx context.Context, delta UserStatsDelta) error

	// RecordSession registers a (user, session) pair in the session index.
	// Reports true only the first time the pair is seen.
	RecordSession(ctx context.Context, userID, sessionID string, seenAt time.Time) (bool, error)

	// GetUserStats returns the user's aggregate row, or ErrNotFound if the
	// user has no events yet.
	GetUserStats(ctx context.Context, userID string) (*v1.UserStatistics, error)

	// UpsertDailyStats overwrites the row keyed by (stat_date, stat_type)
	// with the given recomputed values. Safe to repeat.
	UpsertDailyStats(ctx context.Context, stats *v1.DailyStatistics) error

	// GetDailyStats returns the daily row for (date, statType), or ErrNotFound.
	GetDailyStats(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error)

	// ListDailyStatsRange returns daily rows with stat_date in [start, end],
	// newest first.
	ListDailyStatsRange(ctx context.Context, start, end time.Time) ([]*v1.DailyStatistics, error)

	// CountUsers returns the number of user_statistics rows.
	CountUsers(ctx context.Context) (int64, error)
}
