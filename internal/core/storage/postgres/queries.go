package postgres

// SQL statements for the event log and aggregate stores.

const (
	// queryAppendEvent inserts an event and returns the database-assigned seq.
	// The primary key rejects client-supplied ids that already exist; the
	// ON CONFLICT DO NOTHING turns that into sql.ErrNoRows for the caller.
	queryAppendEvent = `
		INSERT INTO events (
			id, user_id, event_type, event_name,
			properties, session_id, ip_address, user_agent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq
	`

	queryGetEvent = `
		SELECT
			id, user_id, event_type, event_name,
			properties, session_id, ip_address, user_agent, created_at, seq
		FROM events
		WHERE id = $1
	`

	// queryListEventsByUser pages a user's events newest first. seq breaks
	// ties between events sharing a created_at so page boundaries are stable.
	queryListEventsByUser = `
		SELECT
			id, user_id, event_type, event_name,
			properties, session_id, ip_address, user_agent, created_at, seq
		FROM events
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`

	queryCountEventsByUser = `SELECT COUNT(*) FROM events WHERE user_id = $1`

	queryListEvents = `
		SELECT
			id, user_id, event_type, event_name,
			properties, session_id, ip_address, user_agent, created_at, seq
		FROM events
		ORDER BY created_at DESC, seq DESC
		LIMIT $1 OFFSET $2
	`

	queryCountEvents = `SELECT COUNT(*) FROM events`

	// queryRetrieveEventsInRange scans one day's events in seq order.
	// The seq cursor prevents batch-boundary loss or double-reads while the
	// rollup engine pages through the window.
	queryRetrieveEventsInRange = `
		SELECT
			id, user_id, event_type, event_name,
			properties, session_id, ip_address, user_agent, created_at, seq
		FROM events
		WHERE created_at >= $1
		  AND created_at < $2
		  AND seq > $3
		ORDER BY seq ASC
		LIMIT $4
	`

	queryCountEventsInRange = `
		SELECT COUNT(*) FROM events
		WHERE created_at >= $1 AND created_at < $2
	`

	queryCountDistinctUsersInRange = `
		SELECT COUNT(DISTINCT user_id) FROM events
		WHERE created_at >= $1 AND created_at < $2
	`
)

const (
	// queryApplyUserStatsDelta is the race-safe counter update. The whole
	// read-modify-write happens inside one statement: Postgres resolves the
	// conflict row under lock, so two concurrent deltas for the same user
	// both land. first_seen_at is only written on insert; GREATEST keeps
	// last_active_at from moving backwards on out-of-order events.
	queryApplyUserStatsDelta = `
		INSERT INTO user_statistics (
			id, user_id, total_events, total_page_views, total_sessions,
			first_seen_at, last_active_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			total_events     = user_statistics.total_events + EXCLUDED.total_events,
			total_page_views = user_statistics.total_page_views + EXCLUDED.total_page_views,
			total_sessions   = user_statistics.total_sessions + EXCLUDED.total_sessions,
			last_active_at   = GREATEST(user_statistics.last_active_at, EXCLUDED.last_active_at),
			updated_at       = EXCLUDED.updated_at
	`

	// queryRecordSession registers a (user, session) pair. Zero rows affected
	// means the pair was already known.
	queryRecordSession = `
		INSERT INTO user_sessions (user_id, session_id, first_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, session_id) DO NOTHING
	`

	queryGetUserStats = `
		SELECT
			id, user_id, total_events, total_page_views, total_sessions,
			first_seen_at, last_active_at, created_at, updated_at
		FROM user_statistics
		WHERE user_id = $1
	`

	queryCountUsers = `SELECT COUNT(*) FROM user_statistics`

	// queryUpsertDailyStats overwrites the derived daily row. The rollup
	// engine recomputes every value from the event log, so the update is a
	// plain replacement rather than an increment.
	queryUpsertDailyStats = `
		INSERT INTO daily_statistics (
			id, stat_date, stat_type, total_events, unique_users, total_sessions,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (stat_date, stat_type) DO UPDATE SET
			total_events   = EXCLUDED.total_events,
			unique_users   = EXCLUDED.unique_users,
			total_sessions = EXCLUDED.total_sessions,
			updated_at     = EXCLUDED.updated_at
	`

	queryGetDailyStats = `
		SELECT
			id, stat_date, stat_type, total_events, unique_users, total_sessions,
			created_at, updated_at
		FROM daily_statistics
		WHERE stat_date = $1 AND stat_type = $2
	`

	queryListDailyStatsRange = `
		SELECT
			id, stat_date, stat_type, total_events, unique_users, total_sessions,
			created_at, updated_at
		FROM daily_statistics
		WHERE stat_date >= $1 AND stat_date <= $2
		ORDER BY stat_date DESC, stat_type ASC
	`
)
