package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

// Postgres SQLSTATE codes that indicate a lost concurrency race.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// StatsAdapter implements storage.StatsStore using PostgreSQL.
// Counter updates are single-statement upserts so the read-modify-write is
// atomic inside the database, never in application code.
type StatsAdapter struct {
	db *sql.DB
}

// NewStatsAdapter creates a StatsAdapter sharing the given connection.
func NewStatsAdapter(db *sql.DB) *StatsAdapter {
	return &StatsAdapter{db: db}
}

// ApplyUserStatsDelta applies one event's effect to the user's counter row.
// Insert path seeds the row (first_seen_at = last_active_at = OccurredAt);
// update path increments in the database and advances last_active_at with
// GREATEST. Returns storage.ErrSerialization on SQLSTATE 40001/40P01 so the
// updater can retry.
func (a *StatsAdapter) ApplyUserStatsDelta(ctx context.Context, delta storage.UserStatsDelta) error {
	now := time.Now().UTC()

	_, err := a.db.ExecContext(ctx, queryApplyUserStatsDelta,
		uuid.NewString(),
		delta.UserID,
		delta.Events,
		delta.PageViews,
		delta.Sessions,
		delta.OccurredAt,
		now,
	)
	if err != nil {
		if isRetryableConflict(err) {
			return fmt.Errorf("apply user stats delta for %s: %w: %w", delta.UserID, storage.ErrSerialization, err)
		}
		return fmt.Errorf("apply user stats delta for %s: %w", delta.UserID, err)
	}

	slog.Debug("[StatsAdapter] Applied user stats delta",
		"user_id", delta.UserID,
		"events", delta.Events,
		"page_views", delta.PageViews,
		"sessions", delta.Sessions)
	return nil
}

// RecordSession registers a (user, session) pair in the session index.
// Reports true only when the pair was not known before.
func (a *StatsAdapter) RecordSession(ctx context.Context, userID, sessionID string, seenAt time.Time) (bool, error) {
	result, err := a.db.ExecContext(ctx, queryRecordSession, userID, sessionID, seenAt)
	if err != nil {
		if isRetryableConflict(err) {
			return false, fmt.Errorf("record session %s/%s: %w: %w", userID, sessionID, storage.ErrSerialization, err)
		}
		return false, fmt.Errorf("record session %s/%s: %w", userID, sessionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record session %s/%s: rows affected: %w", userID, sessionID, err)
	}
	return affected > 0, nil
}

// GetUserStats returns the user's aggregate row, or storage.ErrNotFound.
func (a *StatsAdapter) GetUserStats(ctx context.Context, userID string) (*v1.UserStatistics, error) {
	var stats v1.UserStatistics
	err := a.db.QueryRowContext(ctx, queryGetUserStats, userID).Scan(
		&stats.ID,
		&stats.UserID,
		&stats.TotalEvents,
		&stats.TotalPageViews,
		&stats.TotalSessions,
		&stats.FirstSeenAt,
		&stats.LastActiveAt,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user stats for %s: %w", userID, err)
	}
	return &stats, nil
}

// UpsertDailyStats overwrites the daily row keyed by (stat_date, stat_type)
// with freshly recomputed values. Repeating the call with the same input
// yields an identical row.
func (a *StatsAdapter) UpsertDailyStats(ctx context.Context, stats *v1.DailyStatistics) error {
	now := time.Now().UTC()

	_, err := a.db.ExecContext(ctx, queryUpsertDailyStats,
		uuid.NewString(),
		stats.StatDate,
		stats.StatType,
		stats.TotalEvents,
		stats.UniqueUsers,
		stats.TotalSessions,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert daily stats %s/%s: %w",
			stats.StatDate.Format(v1.DateFormat), stats.StatType, err)
	}

	slog.Info("[StatsAdapter] Upserted daily statistics",
		"stat_date", stats.StatDate.Format(v1.DateFormat),
		"stat_type", stats.StatType,
		"total_events", stats.TotalEvents,
		"unique_users", stats.UniqueUsers,
		"total_sessions", stats.TotalSessions)
	return nil
}

// GetDailyStats returns the daily row for (date, statType), or storage.ErrNotFound.
func (a *StatsAdapter) GetDailyStats(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error) {
	var stats v1.DailyStatistics
	err := a.db.QueryRowContext(ctx, queryGetDailyStats, date, statType).Scan(
		&stats.ID,
		&stats.StatDate,
		&stats.StatType,
		&stats.TotalEvents,
		&stats.UniqueUsers,
		&stats.TotalSessions,
		&stats.CreatedAt,
		&stats.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily stats %s/%s: %w", date.Format(v1.DateFormat), statType, err)
	}
	return &stats, nil
}

// ListDailyStatsRange returns daily rows with stat_date in [start, end], newest first.
func (a *StatsAdapter) ListDailyStatsRange(ctx context.Context, start, end time.Time) ([]*v1.DailyStatistics, error) {
	rows, err := a.db.QueryContext(ctx, queryListDailyStatsRange, start, end)
	if err != nil {
		return nil, fmt.Errorf("list daily stats range: %w", err)
	}
	defer rows.Close()

	var results []*v1.DailyStatistics
	for rows.Next() {
		var stats v1.DailyStatistics
		if err := rows.Scan(
			&stats.ID,
			&stats.StatDate,
			&stats.StatType,
			&stats.TotalEvents,
			&stats.UniqueUsers,
			&stats.TotalSessions,
			&stats.CreatedAt,
			&stats.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("list daily stats range: scan row: %w", err)
		}
		results = append(results, &stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list daily stats range: iterate rows: %w", err)
	}

	return results, nil
}

// CountUsers returns the number of user_statistics rows.
func (a *StatsAdapter) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	if err := a.db.QueryRowContext(ctx, queryCountUsers).Scan(&total); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// isRetryableConflict reports whether err is a serialization failure or
// deadlock, i.e. a race the caller may win on retry.
func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqSerializationFailure || string(pqErr.Code) == pqDeadlockDetected
}
