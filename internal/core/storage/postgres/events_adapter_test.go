package postgres

import (
	"context"
	"database/sql"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/khaledhawil/DevSecOps-Project/internal/api/v1"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage"
)

func TestAdapter_AppendEvent(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      *v1.Event
		mockResult func(mock sqlmock.Sqlmock, event *v1.Event)
		assertions func(t *testing.T, event *v1.Event, err error)
	}{
		{
			name: "success sets seq",
			event: &v1.Event{
				ID:         "evt-1",
				UserID:     "u1",
				EventType:  "page_view",
				EventName:  "homepage_visit",
				Properties: map[string]interface{}{"path": "/"},
				SessionID:  "sess-1",
				IPAddress:  "203.0.113.9",
				UserAgent:  "Mozilla/5.0",
				CreatedAt:  now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WithArgs(
						event.ID,
						event.UserID,
						event.EventType,
						event.EventName,
						sqlmock.AnyArg(),
						nullString(event.SessionID),
						nullString(event.IPAddress),
						nullString(event.UserAgent),
						event.CreatedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(42)))
			},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.NoError(t, err)
				require.Equal(t, int64(42), event.Seq)
			},
		},
		{
			name: "duplicate id maps to ErrDuplicate",
			event: &v1.Event{
				ID:        "evt-dup",
				UserID:    "u1",
				EventType: "click",
				EventName: "buy_button",
				CreatedAt: now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryAppendEvent)).
					WithArgs(
						event.ID,
						event.UserID,
						event.EventType,
						event.EventName,
						sqlmock.AnyArg(),
						nullString(""),
						nullString(""),
						nullString(""),
						event.CreatedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"seq"}))
			},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
				require.Equal(t, int64(0), event.Seq)
			},
		},
		{
			name: "marshal error short-circuits",
			event: &v1.Event{
				ID:         "evt-bad",
				UserID:     "u1",
				EventType:  "click",
				EventName:  "buy_button",
				Properties: map[string]interface{}{"value": math.NaN()},
				CreatedAt:  now,
			},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.Error(t, err)
				require.ErrorContains(t, err, "failed to marshal properties")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.event)
			}

			err := adapter.AppendEvent(context.Background(), tc.event)
			tc.assertions(t, tc.event, err)

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_GetEvent(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryGetEvent)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow(
				"evt-1",
				"u1",
				"page_view",
				"homepage_visit",
				[]byte(`{"path":"/"}`),
				"sess-1",
				"203.0.113.9",
				"Mozilla/5.0",
				createdAt,
				int64(7),
			),
		).RowsWillBeClosed()

	evt, err := adapter.GetEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Equal(t, "evt-1", evt.ID)
	require.Equal(t, "u1", evt.UserID)
	require.Equal(t, "page_view", evt.EventType)
	require.Equal(t, "/", evt.Properties["path"])
	require.Equal(t, "sess-1", evt.SessionID)
	require.Equal(t, int64(7), evt.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_GetEvent_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryGetEvent)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(eventRowColumns()))

	evt, err := adapter.GetEvent(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Nil(t, evt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_ListEventsByUser(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	createdAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountEventsByUser)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	mock.ExpectQuery(regexp.QuoteMeta(queryListEventsByUser)).
		WithArgs("u1", 10, 0).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow("evt-3", "u1", "page_view", "pricing_visit", nil, nil, nil, nil, createdAt.Add(2*time.Minute), int64(3)).
			AddRow("evt-2", "u1", "click", "buy_button", nil, nil, nil, nil, createdAt.Add(time.Minute), int64(2)).
			AddRow("evt-1", "u1", "page_view", "homepage_visit", nil, nil, nil, nil, createdAt, int64(1)),
		).RowsWillBeClosed()

	events, total, err := adapter.ListEventsByUser(context.Background(), "u1", 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, events, 3)
	require.Equal(t, "evt-3", events[0].ID)
	require.Equal(t, "evt-1", events[2].ID)
	require.Empty(t, events[0].SessionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RetrieveEventsInRange(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveEventsInRange)).
		WithArgs(start, end, int64(10), 500).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow("evt-11", "u1", "page_view", "homepage_visit", nil, "sess-1", nil, nil, start.Add(time.Hour), int64(11)).
			AddRow("evt-12", "u2", "click", "buy_button", nil, nil, nil, nil, start.Add(2*time.Hour), int64(12)),
		).RowsWillBeClosed()

	events, err := adapter.RetrieveEventsInRange(context.Background(), start, end, 10, 500)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(11), events[0].Seq)
	require.Equal(t, "sess-1", events[0].SessionID)
	require.Equal(t, int64(12), events[1].Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RangeCounts(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountEventsInRange)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(120)))

	mock.ExpectQuery(regexp.QuoteMeta(queryCountDistinctUsersInRange)).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(17)))

	inRange, err := adapter.CountEventsInRange(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, int64(120), inRange)

	distinct, err := adapter.CountDistinctUsersInRange(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, int64(17), distinct)

	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                db,
		stmtAppendEvent:   mustPrepareStmt(t, db, mock, queryAppendEvent),
		stmtGetEvent:      mustPrepareStmt(t, db, mock, queryGetEvent),
		stmtListByUser:    mustPrepareStmt(t, db, mock, queryListEventsByUser),
		stmtCountByUser:   mustPrepareStmt(t, db, mock, queryCountEventsByUser),
		stmtListEvents:    mustPrepareStmt(t, db, mock, queryListEvents),
		stmtCountEvents:   mustPrepareStmt(t, db, mock, queryCountEvents),
		stmtRetrieveRange: mustPrepareStmt(t, db, mock, queryRetrieveEventsInRange),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func eventRowColumns() []string {
	return []string{
		"id",
		"user_id",
		"event_type",
		"event_name",
		"properties",
		"session_id",
		"ip_address",
		"user_agent",
		"created_at",
		"seq",
	}
}
