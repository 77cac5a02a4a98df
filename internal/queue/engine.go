package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"smartq/internal/database"
	"smartq/internal/events"
	"smartq/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrServiceRequired is returned when a join request names no service.
	ErrServiceRequired = errors.New("service is required")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the entry's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Ticket is what a customer receives after joining the queue.
type Ticket struct {
	Token           string `json:"token"`
	PositionInQueue int    `json:"positionInQueue"`
}

// Engine owns token issuance, position computation and the lifecycle
// state machine for queue entries.
type Engine struct {
	db     *database.DB
	bus    *events.EventBus
	logger *zerolog.Logger
	now    func() time.Time
}

// NewEngine builds the lifecycle engine. bus may be nil when no one
// listens for lifecycle events.
func NewEngine(db *database.DB, bus *events.EventBus, logger *zerolog.Logger) *Engine {
	return &Engine{db: db, bus: bus, logger: logger, now: time.Now}
}

// SetClock replaces the engine's time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Join creates a new waiting entry for the given service and returns its
// ticket. The token and position are assigned atomically by the store.
func (e *Engine) Join(ctx context.Context, service string) (*Ticket, error) {
	if service == "" {
		return nil, ErrServiceRequired
	}

	now := e.now()
	entry := &models.QueueEntry{
		Service:   service,
		Status:    models.StatusWaiting,
		JoinedAt:  now,
		DayOfWeek: int(now.Weekday()),
		HourOfDay: now.Hour(),
	}

	if err := e.db.CreateQueueEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("join queue: %w", err)
	}

	e.logger.Info().
		Str("token", entry.Token).
		Str("service", service).
		Int("position", entry.PositionInQueue).
		Msg("customer joined queue")

	_ = e.bus.PublishJSON(events.EventTokenIssued, events.QueueEventPayload{
		EntryID:         entry.ID,
		Token:           entry.Token,
		Service:         entry.Service,
		Status:          entry.Status,
		PositionInQueue: entry.PositionInQueue,
	})

	return &Ticket{Token: entry.Token, PositionInQueue: entry.PositionInQueue}, nil
}

// Start moves an entry into In Progress and records its waiting time.
// Calling it again on the same entry reuses the already-set start
// timestamp, so the computed waiting time does not change.
func (e *Engine) Start(ctx context.Context, id string) (*models.QueueEntry, error) {
	entry, err := e.db.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	startedAt := e.now()
	if entry.StartedAt != nil {
		startedAt = *entry.StartedAt
	}

	joinedAt := firstNonZero(entry.JoinedAt, entry.CreatedAt)
	waiting := roundMinutes(startedAt.Sub(joinedAt))

	status := models.StatusInProgress
	updated, err := e.db.UpdateQueueEntry(ctx, id, database.QueuePatch{
		Status:             &status,
		StartedAt:          &startedAt,
		WaitingTimeMinutes: &waiting,
	})
	if err != nil {
		return nil, err
	}

	_ = e.bus.PublishJSON(events.EventServiceStarted, events.QueueEventPayload{
		EntryID:            updated.ID,
		Token:              updated.Token,
		Service:            updated.Service,
		Status:             updated.Status,
		WaitingTimeMinutes: updated.WaitingTimeMinutes,
	})
	return updated, nil
}

// Complete moves an entry into Completed and records its service time.
// The duration base is the first of startedAt, joinedAt, createdAt that
// is set. First-write-wins on completedAt.
func (e *Engine) Complete(ctx context.Context, id string) (*models.QueueEntry, error) {
	entry, err := e.db.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	completedAt := e.now()
	if entry.CompletedAt != nil {
		completedAt = *entry.CompletedAt
	}

	var started time.Time
	if entry.StartedAt != nil {
		started = *entry.StartedAt
	}
	base := firstNonZero(started, entry.JoinedAt, entry.CreatedAt)
	serviceTime := roundMinutes(completedAt.Sub(base))

	status := models.StatusCompleted
	updated, err := e.db.UpdateQueueEntry(ctx, id, database.QueuePatch{
		Status:             &status,
		CompletedAt:        &completedAt,
		ServiceTimeMinutes: &serviceTime,
	})
	if err != nil {
		return nil, err
	}

	_ = e.bus.PublishJSON(events.EventServiceCompleted, events.QueueEventPayload{
		EntryID:            updated.ID,
		Token:              updated.Token,
		Service:            updated.Service,
		Status:             updated.Status,
		ServiceTimeMinutes: updated.ServiceTimeMinutes,
	})
	return updated, nil
}

// MarkNoShow flags a waiting entry as a no-show. The transition is an
// explicit admin action, never time-derived.
func (e *Engine) MarkNoShow(ctx context.Context, id string) (*models.QueueEntry, error) {
	entry, err := e.db.GetQueueEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.StatusWaiting {
		return nil, fmt.Errorf("%w: cannot mark %s entry as no-show", ErrInvalidTransition, entry.Status)
	}

	status := models.StatusNoShow
	noShow := true
	updated, err := e.db.UpdateQueueEntry(ctx, id, database.QueuePatch{
		Status: &status,
		NoShow: &noShow,
	})
	if err != nil {
		return nil, err
	}

	_ = e.bus.PublishJSON(events.EventNoShowMarked, events.QueueEventPayload{
		EntryID: updated.ID,
		Token:   updated.Token,
		Service: updated.Service,
		Status:  updated.Status,
	})
	return updated, nil
}

// List returns the full queue in FIFO order.
func (e *Engine) List(ctx context.Context) ([]models.QueueEntry, error) {
	return e.db.ListQueue(ctx)
}

// FindByToken looks up an entry by its ticket token.
func (e *Engine) FindByToken(ctx context.Context, token string) (*models.QueueEntry, error) {
	return e.db.GetQueueEntryByToken(ctx, token)
}

// LivePosition recomputes the entry's position against the current queue
// depth: waiting entries for the same service created strictly before it,
// plus one. This differs from the persisted position, which reflects the
// depth at join time.
func (e *Engine) LivePosition(ctx context.Context, entry *models.QueueEntry) (int, error) {
	count, err := e.db.CountQueue(ctx, database.QueueFilter{
		Service:       entry.Service,
		Status:        models.StatusWaiting,
		CreatedBefore: entry.CreatedAt,
	})
	if err != nil {
		return 0, fmt.Errorf("live position: %w", err)
	}
	return count + 1, nil
}

// TrainingData exports every stored entry as a training record, with
// durations recomputed from raw timestamps rather than read back from the
// persisted derived fields.
func (e *Engine) TrainingData(ctx context.Context) ([]models.TrainingRecord, error) {
	entries, err := e.db.ListQueue(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.TrainingRecord, 0, len(entries))
	for _, entry := range entries {
		joinedAt := firstNonZero(entry.JoinedAt, entry.CreatedAt)

		waiting := 0
		if entry.StartedAt != nil {
			waiting = roundMinutes(entry.StartedAt.Sub(joinedAt))
		}
		serviceTime := 0
		if entry.CompletedAt != nil && entry.StartedAt != nil {
			serviceTime = roundMinutes(entry.CompletedAt.Sub(*entry.StartedAt))
		}

		record := models.TrainingRecord{
			Service:            entry.Service,
			Status:             entry.Status,
			WaitingTimeMinutes: waiting,
			ServiceTimeMinutes: serviceTime,
			PositionInQueue:    entry.PositionInQueue,
			NoShow:             entry.NoShow,
			JoinedAt:           joinedAt.Format(time.RFC3339),
			DayOfWeek:          int(joinedAt.Weekday()),
			HourOfDay:          joinedAt.Hour(),
			Month:              int(joinedAt.Month()),
			DayOfMonth:         joinedAt.Day(),
		}
		if entry.StartedAt != nil {
			s := entry.StartedAt.Format(time.RFC3339)
			record.StartedAt = &s
		}
		if entry.CompletedAt != nil {
			c := entry.CompletedAt.Format(time.RFC3339)
			record.CompletedAt = &c
		}
		records = append(records, record)
	}
	return records, nil
}

// firstNonZero resolves an ordered list of candidate timestamps to the
// first one that is set.
func firstNonZero(candidates ...time.Time) time.Time {
	for _, t := range candidates {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

// roundMinutes converts a duration to whole minutes, rounding half up and
// clamping at zero.
func roundMinutes(d time.Duration) int {
	minutes := int(math.Round(d.Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}
