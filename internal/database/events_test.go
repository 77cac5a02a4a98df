package database

import (
	"context"
	"testing"
	"time"

	"smartq/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndListEvents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &models.Event{
		Title:        "Free dental checkup",
		Organization: "City Clinic",
		Date:         "2026-09-12",
		Time:         "10:00",
		Location:     "Main hall",
	}
	require.NoError(t, db.CreateEvent(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	time.Sleep(5 * time.Millisecond)

	second := &models.Event{Title: "Blood donation drive"}
	require.NoError(t, db.CreateEvent(ctx, second))

	events, err := db.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "Blood donation drive", events[0].Title)
	assert.Equal(t, "Free dental checkup", events[1].Title)
}
