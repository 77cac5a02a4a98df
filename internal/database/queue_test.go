package database

import (
	"context"
	"os"
	"testing"
	"time"

	"smartq/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newWaitingEntry(service string, joinedAt time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		Service:   service,
		Status:    models.StatusWaiting,
		JoinedAt:  joinedAt,
		DayOfWeek: int(joinedAt.Weekday()),
		HourOfDay: joinedAt.Hour(),
	}
}

func TestCreateQueueEntryAssignsSequentialTokens(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	first := newWaitingEntry("Dental", now)
	require.NoError(t, db.CreateQueueEntry(ctx, first))
	assert.Equal(t, "T1", first.Token)
	assert.Equal(t, 1, first.PositionInQueue)
	assert.NotEmpty(t, first.ID)

	second := newWaitingEntry("Dental", now)
	require.NoError(t, db.CreateQueueEntry(ctx, second))
	assert.Equal(t, "T2", second.Token)
	assert.Equal(t, 2, second.PositionInQueue)

	// Token numbering is global, position is per service.
	other := newWaitingEntry("Optometry", now)
	require.NoError(t, db.CreateQueueEntry(ctx, other))
	assert.Equal(t, "T3", other.Token)
	assert.Equal(t, 1, other.PositionInQueue)
}

func TestTokenUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		entry := newWaitingEntry("General", time.Now())
		require.NoError(t, db.CreateQueueEntry(ctx, entry))
		require.False(t, seen[entry.Token], "duplicate token %s", entry.Token)
		seen[entry.Token] = true
	}
}

func TestPositionIgnoresNonWaitingEntries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	first := newWaitingEntry("Dental", now)
	require.NoError(t, db.CreateQueueEntry(ctx, first))

	status := models.StatusCompleted
	_, err := db.UpdateQueueEntry(ctx, first.ID, QueuePatch{Status: &status})
	require.NoError(t, err)

	second := newWaitingEntry("Dental", now)
	require.NoError(t, db.CreateQueueEntry(ctx, second))
	assert.Equal(t, 1, second.PositionInQueue)
}

func TestCountQueueFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, service := range []string{"Dental", "Dental", "Optometry"} {
		require.NoError(t, db.CreateQueueEntry(ctx, newWaitingEntry(service, now)))
	}

	count, err := db.CountQueue(ctx, QueueFilter{Service: "Dental", Status: models.StatusWaiting})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = db.CountQueue(ctx, QueueFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = db.CountQueue(ctx, QueueFilter{Status: models.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetQueueEntryNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetQueueEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetQueueEntryByToken(context.Background(), "T99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateQueueEntry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	entry := newWaitingEntry("Dental", time.Now())
	require.NoError(t, db.CreateQueueEntry(ctx, entry))

	startedAt := time.Now().Add(10 * time.Minute)
	status := models.StatusInProgress
	waiting := 10

	updated, err := db.UpdateQueueEntry(ctx, entry.ID, QueuePatch{
		Status:             &status,
		StartedAt:          &startedAt,
		WaitingTimeMinutes: &waiting,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, 10, updated.WaitingTimeMinutes)
	require.NotNil(t, updated.StartedAt)
	assert.WithinDuration(t, startedAt, *updated.StartedAt, time.Second)

	// Untouched fields survive partial updates.
	assert.Equal(t, entry.Token, updated.Token)
	assert.Equal(t, entry.PositionInQueue, updated.PositionInQueue)
	assert.Nil(t, updated.CompletedAt)
}

func TestUpdateQueueEntryNotFound(t *testing.T) {
	db := setupTestDB(t)

	status := models.StatusCompleted
	_, err := db.UpdateQueueEntry(context.Background(), "missing", QueuePatch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListQueueFIFO(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.CreateQueueEntry(ctx, newWaitingEntry("General", time.Now())))
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := db.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "T1", entries[0].Token)
	assert.Equal(t, "T2", entries[1].Token)
	assert.Equal(t, "T3", entries[2].Token)
}
