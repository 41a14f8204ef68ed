package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

// RollupRunner recomputes one daily statistics row from the raw event log.
// Implemented by rollup.Engine; declared here so the on-demand trigger can be
// mocked without pulling in the engine.
type RollupRunner interface {
	Run(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error)
}

// Service serves the statistics read API: per-user lifetime counters, daily
// rollup rows, and the live summary snapshot.
type Service struct {
	stats  storage.StatsStore
	events storage.EventStore
	rollup RollupRunner
	nowFn  func() time.Time
}

// NewService creates the statistics query service. rollup may be nil when the
// on-demand recompute endpoint is not wanted (it then returns 500).
func NewService(stats storage.StatsStore, events storage.EventStore, rollup RollupRunner) *Service {
	if stats == nil {
		panic("stats: stats store must not be nil")
	}
	if events == nil {
		panic("stats: event store must not be nil")
	}
	return &Service{
		stats:  stats,
		events: events,
		rollup: rollup,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// UserStatistics returns the lifetime counters for one user.
// Returns storage.ErrNotFound when the user has no events yet.
func (s *Service) UserStatistics(ctx context.Context, userID string) (*v1.UserStatistics, error) {
	return s.stats.GetUserStats(ctx, userID)
}

// DailyStatistics returns the rolled-up row for (date, statType).
// Returns storage.ErrNotFound when the rollup has not produced one yet.
func (s *Service) DailyStatistics(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error) {
	return s.stats.GetDailyStats(ctx, date, statType)
}

// DailyStatisticsRange returns the daily rows for dates in [start, end], newest first.
func (s *Service) DailyStatisticsRange(ctx context.Context, start, end time.Time) ([]*v1.DailyStatistics, error) {
	return s.stats.ListDailyStatsRange(ctx, start, end)
}

// Summary computes the live platform snapshot: total users and events over
// all time, plus today's event and active-user counts straight from the
// event log (not from rollup rows, which only exist for completed days).
func (s *Service) Summary(ctx context.Context) (*v1.SummaryStatistics, error) {
	totalUsers, err := s.stats.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: count users: %w", err)
	}

	totalEvents, err := s.events.CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: count events: %w", err)
	}

	today := s.nowFn().Truncate(24 * time.Hour)
	tomorrow := today.Add(24 * time.Hour)

	todayEvents, err := s.events.CountEventsInRange(ctx, today, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("summary: count today's events: %w", err)
	}

	activeUsers, err := s.events.CountDistinctUsersInRange(ctx, today, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("summary: count active users: %w", err)
	}

	slog.Debug("[Stats] Generated summary statistics",
		"total_users", totalUsers,
		"total_events", totalEvents,
		"today_events", todayEvents,
		"active_users_today", activeUsers)

	return &v1.SummaryStatistics{
		TotalUsers:       totalUsers,
		TotalEvents:      totalEvents,
		TodayEvents:      todayEvents,
		ActiveUsersToday: activeUsers,
	}, nil
}

// RecomputeDaily triggers an on-demand rollup run for (date, statType).
// Used for backfill and for correcting drifted rows.
func (s *Service) RecomputeDaily(ctx context.Context, date time.Time, statType string) (*v1.DailyStatistics, error) {
	if s.rollup == nil {
		return nil, fmt.Errorf("rollup engine not configured")
	}
	return s.rollup.Run(ctx, date, statType)
}
