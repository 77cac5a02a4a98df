package database

import (
	"context"
	"fmt"
	"time"

	"smartq/internal/models"
)

// CreateEvent stores a new announcement.
func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now()
	result, err := db.db.ExecContext(ctx,
		`INSERT INTO events (title, organization, date, time, location, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		event.Title,
		event.Organization,
		event.Date,
		event.Time,
		event.Location,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.CreatedAt = now
	return nil
}

// ListEvents returns all announcements, newest first.
func (db *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, title, organization, date, time, location, created_at
         FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Organization,
			&event.Date,
			&event.Time,
			&event.Location,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
