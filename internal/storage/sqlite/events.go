package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/kernelfinder/internal/events"
)

// StoreEvent stores a new registry event in the database
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.RegistryEvent) error {
	if !event.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", event.Type)
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if event.Data == nil {
		dataJSON = []byte("{}")
	}

	query := `
		INSERT INTO registry_events (
			id, type, timestamp, session_id, finder_id, severity, message, data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.Timestamp.UTC(),
		event.SessionID,
		event.FinderID,
		event.Severity,
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store registry event (type=%s, finder=%s): %w", event.Type, event.FinderID, err)
	}

	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RegistryEvent, error) {
	query := `
		SELECT id, type, timestamp, session_id, finder_id, severity, message, data
		FROM registry_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime.UTC())
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// RecentEvents retrieves the most recent events up to the specified limit
func (s *SQLiteStorage) RecentEvents(ctx context.Context, limit int) ([]*events.RegistryEvent, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be at least 1 (got %d)", limit)
	}
	return s.GetEvents(ctx, events.EventFilter{Limit: limit})
}

// CountEvents returns the number of stored events per type
func (s *SQLiteStorage) CountEvents(ctx context.Context) (map[events.EventType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM registry_events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count registry events: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.EventType]int)
	for rows.Next() {
		var typ events.EventType
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event counts: %w", err)
	}
	return counts, nil
}

func scanEvents(rows *sql.Rows) ([]*events.RegistryEvent, error) {
	var result []*events.RegistryEvent

	for rows.Next() {
		var event events.RegistryEvent
		var dataJSON string
		var timestamp time.Time

		err := rows.Scan(
			&event.ID,
			&event.Type,
			&timestamp,
			&event.SessionID,
			&event.FinderID,
			&event.Severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registry event: %w", err)
		}
		event.Timestamp = timestamp

		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registry event rows: %w", err)
	}

	return result, nil
}
