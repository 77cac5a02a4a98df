package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"smartq/internal/models"

	"github.com/google/uuid"
)

// QueueFilter narrows counting queries over queue entries. Zero fields are
// ignored.
type QueueFilter struct {
	Service       string
	Status        string
	CreatedBefore time.Time
}

// QueuePatch describes a partial update of a queue entry. Nil fields are
// left untouched.
type QueuePatch struct {
	Status             *string
	StartedAt          *time.Time
	CompletedAt        *time.Time
	WaitingTimeMinutes *int
	ServiceTimeMinutes *int
	NoShow             *bool
}

const queueColumns = `id, token, service, status, position_in_queue, waiting_time_minutes,
        service_time_minutes, joined_at, started_at, completed_at, no_show,
        day_of_week, hour_of_day, created_at, updated_at`

// CreateQueueEntry inserts a new entry, assigning its token from the
// sequence table and its position from the current waiting count for the
// same service. Both reads happen inside the insert transaction, so two
// concurrent joins can never observe the same counter values.
func (db *DB) CreateQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE token_seq SET value = value + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to bump token sequence: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM token_seq WHERE id = 1`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read token sequence: %w", err)
	}

	var waiting int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE service = ? AND status = ?`,
		entry.Service, models.StatusWaiting,
	).Scan(&waiting)
	if err != nil {
		return fmt.Errorf("failed to count waiting entries: %w", err)
	}

	now := time.Now()
	entry.ID = uuid.NewString()
	entry.Token = fmt.Sprintf("%s%d", models.TokenPrefix, seq)
	entry.PositionInQueue = waiting + 1
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = models.StatusWaiting
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO queue_entries (
            id, token, service, status, position_in_queue, waiting_time_minutes,
            service_time_minutes, joined_at, started_at, completed_at, no_show,
            day_of_week, hour_of_day, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Token,
		entry.Service,
		entry.Status,
		entry.PositionInQueue,
		entry.WaitingTimeMinutes,
		entry.ServiceTimeMinutes,
		entry.JoinedAt,
		entry.StartedAt,
		entry.CompletedAt,
		entry.NoShow,
		entry.DayOfWeek,
		entry.HourOfDay,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue entry: %w", err)
	}
	return nil
}

// CountQueue counts entries matching the filter.
func (db *DB) CountQueue(ctx context.Context, filter QueueFilter) (int, error) {
	query := `SELECT COUNT(*) FROM queue_entries WHERE 1=1`
	var args []any

	if filter.Service != "" {
		query += ` AND service = ?`
		args = append(args, filter.Service)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.CreatedBefore.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.CreatedBefore)
	}

	var count int
	if err := db.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

// GetQueueEntry returns the entry with the given id, or ErrNotFound.
func (db *DB) GetQueueEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = ?`
	return db.scanQueueEntry(db.db.QueryRowContext(ctx, query, id))
}

// GetQueueEntryByToken returns the entry with the given token, or ErrNotFound.
func (db *DB) GetQueueEntryByToken(ctx context.Context, token string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE token = ?`
	return db.scanQueueEntry(db.db.QueryRowContext(ctx, query, token))
}

// UpdateQueueEntry applies the patch to the entry with the given id and
// returns the updated row.
func (db *DB) UpdateQueueEntry(ctx context.Context, id string, patch QueuePatch) (*models.QueueEntry, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now()}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *patch.CompletedAt)
	}
	if patch.WaitingTimeMinutes != nil {
		sets = append(sets, "waiting_time_minutes = ?")
		args = append(args, *patch.WaitingTimeMinutes)
	}
	if patch.ServiceTimeMinutes != nil {
		sets = append(sets, "service_time_minutes = ?")
		args = append(args, *patch.ServiceTimeMinutes)
	}
	if patch.NoShow != nil {
		sets = append(sets, "no_show = ?")
		args = append(args, *patch.NoShow)
	}

	args = append(args, id)
	query := `UPDATE queue_entries SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update queue entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return db.GetQueueEntry(ctx, id)
}

// ListQueue returns all entries ordered by creation time ascending, the
// FIFO view used by admins.
func (db *DB) ListQueue(ctx context.Context) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries ORDER BY created_at ASC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanQueueEntry(row *sql.Row) (*models.QueueEntry, error) {
	entry, err := scanQueueRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return entry, err
}

func scanQueueRow(row rowScanner) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.Token,
		&entry.Service,
		&entry.Status,
		&entry.PositionInQueue,
		&entry.WaitingTimeMinutes,
		&entry.ServiceTimeMinutes,
		&entry.JoinedAt,
		&startedAt,
		&completedAt,
		&entry.NoShow,
		&entry.DayOfWeek,
		&entry.HourOfDay,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	if startedAt.Valid {
		t := startedAt.Time
		entry.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		entry.CompletedAt = &t
	}
	return &entry, nil
}
