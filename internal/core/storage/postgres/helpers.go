package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
)

// marshalProperties marshals an event's property bag to JSON.
// Nil or empty properties produce nil (SQL NULL) rather than a "null" string.
func marshalProperties(event *v1.Event) ([]byte, error) {
	if len(event.Properties) == 0 {
		return nil, nil
	}

	propertiesJSON, err := json.Marshal(event.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return propertiesJSON, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var propertiesJSON []byte
	var sessionID, ipAddress, userAgent sql.NullString

	err := row.Scan(
		&evt.ID,
		&evt.UserID,
		&evt.EventType,
		&evt.EventName,
		&propertiesJSON,
		&sessionID,
		&ipAddress,
		&userAgent,
		&evt.CreatedAt,
		&evt.Seq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &evt.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	evt.SessionID = sessionID.String
	evt.IPAddress = ipAddress.String
	evt.UserAgent = userAgent.String

	return &evt, nil
}

// nullString maps "" to SQL NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
