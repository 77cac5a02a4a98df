// Package features turns queue state into the canonical records consumed
// by the prediction client. Everything here is pure: callers resolve the
// current time and pass it in.
package features

import (
	"time"

	"smartq/internal/models"
)

// Stub is the minimal input for feature derivation. It is built either
// from a persisted queue entry or from scratch for hypothetical arrivals
// that have not joined yet.
type Stub struct {
	Service  string
	JoinedAt time.Time
	Position int
}

// FromEntry builds a stub from a persisted queue entry.
func FromEntry(entry *models.QueueEntry) Stub {
	return Stub{
		Service:  entry.Service,
		JoinedAt: entry.JoinedAt,
		Position: entry.PositionInQueue,
	}
}

// Derive flattens a stub into a feature record. Missing fields fall back
// to defaults: service "General", position 1, and now for the timestamp.
// A position set on the stub wins over the entry-derived one, letting
// callers force a computed live position without mutating the entry.
func Derive(stub Stub, now time.Time) models.FeatureRecord {
	joinedAt := stub.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}

	service := stub.Service
	if service == "" {
		service = models.DefaultService
	}

	position := stub.Position
	if position < 1 {
		position = 1
	}

	return models.FeatureRecord{
		Service:         service,
		DayOfWeek:       int(joinedAt.Weekday()),
		HourOfDay:       joinedAt.Hour(),
		Month:           int(joinedAt.Month()),
		DayOfMonth:      joinedAt.Day(),
		PositionInQueue: position,
	}
}

// ForDate builds the position-less feature record used by queue-length
// and peak-hours predictions. A negative hour means "use the date's own
// hour".
func ForDate(service string, date time.Time, hour int) models.FeatureRecord {
	if service == "" {
		service = models.DefaultService
	}
	if hour < 0 {
		hour = date.Hour()
	}

	return models.FeatureRecord{
		Service:    service,
		DayOfWeek:  int(date.Weekday()),
		HourOfDay:  hour,
		Month:      int(date.Month()),
		DayOfMonth: date.Day(),
	}
}
