package v1

import "time"

// StatTypeGeneral is the catch-all daily stat type covering every event type.
const StatTypeGeneral = "general"

// DateFormat is the wire format for calendar dates (daily statistics keys).
const DateFormat = "2006-01-02"

// UserStatistics is the per-user lifetime aggregate row.
// Exactly one row exists per user, created lazily on the user's first event.
type UserStatistics struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	TotalEvents    int64 `json:"total_events"`
	TotalPageViews int64 `json:"total_page_views"`
	TotalSessions  int64 `json:"total_sessions"`

	// FirstSeenAt is set by the user's first event and never changes.
	FirstSeenAt time.Time `json:"first_seen_at"`

	// LastActiveAt advances monotonically; out-of-order events never move it back.
	LastActiveAt time.Time `json:"last_active_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyStatistics is the per-(date, stat type) aggregate row.
// It is produced exclusively by the rollup engine, never patched incrementally,
// so it can always be rebuilt from the raw event log.
type DailyStatistics struct {
	ID       string    `json:"id"`
	StatDate time.Time `json:"stat_date"`
	StatType string    `json:"stat_type"`

	TotalEvents   int64 `json:"total_events"`
	UniqueUsers   int64 `json:"unique_users"`
	TotalSessions int64 `json:"total_sessions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SummaryStatistics is the live snapshot served by GET /api/v1/statistics/summary.
type SummaryStatistics struct {
	TotalUsers       int64 `json:"total_users"`
	TotalEvents      int64 `json:"total_events"`
	TodayEvents      int64 `json:"today_events"`
	ActiveUsersToday int64 `json:"active_users_today"`
}
