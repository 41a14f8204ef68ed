package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

// ErrValidation marks rejected input. Nothing is persisted when it surfaces.
var ErrValidation = errors.New("invalid event input")

// CounterUpdater applies one event's effect to the user's lifetime counters.
// Implemented by stats.Updater.
type CounterUpdater interface {
	Apply(ctx context.Context, userID, eventType, sessionID string, occurredAt time.Time) error
}

// Service is the single entry point for event ingestion: it persists the
// event and then applies the dependent counter update.
type Service struct {
	store            storage.EventStore
	updater          CounterUpdater
	maxBodySizeBytes int
	nowFn            func() time.Time
	idFn             func() string
}

// NewService creates the ingestion orchestrator.
func NewService(store storage.EventStore, updater CounterUpdater, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if updater == nil {
		panic("ingestion: updater must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		updater:          updater,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
		idFn: uuid.NewString,
	}
}

// Track validates the input, appends the event, then applies the counter
// update using the stored event's assigned timestamp and type.
//
// The event is durable before the counter update is attempted. If the update
// fails the event is NOT rolled back: the raw log is the source of truth and
// the daily rollup exists to heal aggregate drift, so availability of the
// ingest path wins over immediate counter consistency. The failure is logged
// at Error level so operators can detect the drift.
func (s *Service) Track(ctx context.Context, input v1.TrackEventInput) (*v1.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	id := input.ID
	if id == "" {
		id = s.idFn()
	}

	evt := &v1.Event{
		ID:         id,
		UserID:     input.UserID,
		EventType:  input.EventType,
		EventName:  input.EventName,
		Properties: input.Properties,
		SessionID:  input.SessionID,
		IPAddress:  input.IPAddress,
		UserAgent:  input.UserAgent,
		CreatedAt:  s.nowFn(),
	}

	if err := s.store.AppendEvent(ctx, evt); err != nil {
		return nil, err
	}

	if err := s.updater.Apply(ctx, evt.UserID, evt.EventType, evt.SessionID, evt.CreatedAt); err != nil {
		slog.Error("Counter update failed after durable event write - user statistics are stale until rollup",
			"event_id", evt.ID,
			"user_id", evt.UserID,
			"event_type", evt.EventType,
			"error", err)
	}

	return evt, nil
}
