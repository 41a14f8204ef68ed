package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

const defaultMaxRetryAttempts = 5

// ErrContention is returned when a counter update lost the concurrency race
// on every bounded retry attempt. The event itself is already durable when
// this surfaces; the daily rollup heals the resulting drift.
var ErrContention = errors.New("counter update lost concurrent write race")

// Updater applies a single event's incremental effect to exactly one
// user_statistics row, exactly once.
//
// The atomicity of the read-modify-write lives in the store (a one-statement
// conditional upsert), so the updater itself holds no locks and users never
// contend with each other. The updater's job is the session-distinctness
// policy and the bounded retry loop around retryable store conflicts.
type Updater struct {
	store       storage.StatsStore
	maxAttempts int
}

// NewUpdater creates a counter updater. maxAttempts bounds the retries on
// storage.ErrSerialization before surfacing ErrContention.
func NewUpdater(store storage.StatsStore, maxAttempts int) *Updater {
	if store == nil {
		panic("stats: store must not be nil")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxRetryAttempts
	}
	return &Updater{
		store:       store,
		maxAttempts: maxAttempts,
	}
}

// Apply folds one event into the user's lifetime counters:
// total_events always increments by 1, total_page_views only for "page_view"
// events, and total_sessions only the first time a non-empty session id is
// seen for this user. last_active_at never moves backwards when events
// arrive out of wall-clock order.
func (u *Updater) Apply(ctx context.Context, userID, eventType, sessionID string, occurredAt time.Time) error {
	sessions, err := u.sessionDelta(ctx, userID, sessionID, occurredAt)
	if err != nil {
		return err
	}

	delta := storage.UserStatsDelta{
		UserID:     userID,
		Events:     1,
		Sessions:   sessions,
		OccurredAt: occurredAt.UTC(),
	}
	if eventType == v1.EventTypePageView {
		delta.PageViews = 1
	}

	return u.applyWithRetry(ctx, delta)
}

// sessionDelta resolves the total_sessions increment: 1 when sessionID is a
// new (user, session) pair, 0 otherwise. Distinctness is delegated to the
// session index table rather than an in-process window, so restarts and
// concurrent replicas agree on what counts as new.
func (u *Updater) sessionDelta(ctx context.Context, userID, sessionID string, seenAt time.Time) (int64, error) {
	if sessionID == "" {
		return 0, nil
	}

	for attempt := 1; ; attempt++ {
		isNew, err := u.store.RecordSession(ctx, userID, sessionID, seenAt.UTC())
		if err == nil {
			if isNew {
				return 1, nil
			}
			return 0, nil
		}
		if !errors.Is(err, storage.ErrSerialization) {
			return 0, fmt.Errorf("record session: %w", err)
		}
		if attempt >= u.maxAttempts {
			return 0, fmt.Errorf("record session after %d attempts: %w", attempt, ErrContention)
		}

		slog.Warn("[Updater] Session record conflicted, retrying",
			"user_id", userID,
			"attempt", attempt,
			"error", err)
	}
}

func (u *Updater) applyWithRetry(ctx context.Context, delta storage.UserStatsDelta) error {
	for attempt := 1; ; attempt++ {
		err := u.store.ApplyUserStatsDelta(ctx, delta)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrSerialization) {
			return fmt.Errorf("apply counter update: %w", err)
		}
		if attempt >= u.maxAttempts {
			return fmt.Errorf("apply counter update after %d attempts: %w", attempt, ErrContention)
		}

		slog.Warn("[Updater] Counter update conflicted, retrying",
			"user_id", delta.UserID,
			"attempt", attempt,
			"error", err)
	}
}
