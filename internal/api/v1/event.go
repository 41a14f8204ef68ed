package v1

import (
	"fmt"
	"time"
)

// EventTypePageView is the event type that feeds the page-view counter.
const EventTypePageView = "page_view"

// Event is an immutable record of a single user action.
// Once appended to the store it is never mutated or deleted.
type Event struct {
	// ID is the unique event identifier. Assigned by the server at ingestion
	// when the client does not provide one; clients that retry a request with
	// an unknown outcome may supply their own id to make the retry idempotent.
	ID string `json:"id"`

	// UserID identifies the user the event belongs to.
	// This is the primary dimension for statistics attribution.
	UserID string `json:"user_id"`

	// EventType is the category tag (e.g. "page_view", "click").
	EventType string `json:"event_type"`

	// EventName is a free-form label for the action (e.g. "homepage_visit").
	EventName string `json:"event_name"`

	// Properties is an optional structured property bag.
	Properties map[string]interface{} `json:"properties,omitempty"`

	// SessionID ties the event to a client session. Optional.
	SessionID string `json:"session_id,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// CreatedAt is the ingestion timestamp, assigned by the server (UTC).
	CreatedAt time.Time `json:"created_at"`

	// Seq is a monotonic sequence number assigned by the database (BIGSERIAL).
	// It gives range scans a strict total order. Not exposed in the public API.
	Seq int64 `json:"-"`
}

// TrackEventInput is the request body for POST /api/v1/events.
type TrackEventInput struct {
	// ID is optional. Clients retrying a request with an unknown outcome may
	// supply one; a repeated id is rejected as a duplicate instead of being
	// counted twice.
	ID         string                 `json:"id,omitempty"`
	UserID     string                 `json:"userId"`
	EventType  string                 `json:"eventType"`
	EventName  string                 `json:"eventName"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	SessionID  string                 `json:"sessionId,omitempty"`
	IPAddress  string                 `json:"ipAddress,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
}

// Validate ensures all required fields are present.
func (in *TrackEventInput) Validate() error {
	if in.UserID == "" {
		return fmt.Errorf("userId is required")
	}

	if in.EventType == "" {
		return fmt.Errorf("eventType is required")
	}

	if in.EventName == "" {
		return fmt.Errorf("eventName is required")
	}

	return nil
}
