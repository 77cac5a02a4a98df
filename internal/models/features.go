package models

import "time"

// FeatureRecord is the flattened set of temporal and categorical fields
// sent to the prediction service. It is built on demand and never stored.
// PositionInQueue is omitted for capabilities that do not use it
// (queue-length, peak-hours).
type FeatureRecord struct {
	Service         string `json:"service"`
	DayOfWeek       int    `json:"dayOfWeek"`
	HourOfDay       int    `json:"hourOfDay"`
	Month           int    `json:"month"`
	DayOfMonth      int    `json:"dayOfMonth"`
	PositionInQueue int    `json:"positionInQueue,omitempty"`
}

// WithHour returns a copy with the hour of day replaced.
func (f FeatureRecord) WithHour(hour int) FeatureRecord {
	f.HourOfDay = hour
	return f
}

// WithPosition returns a copy with the queue position replaced.
func (f FeatureRecord) WithPosition(position int) FeatureRecord {
	f.PositionInQueue = position
	return f
}

// TrainingRecord is one row of the training-data export. Durations are
// recomputed from raw timestamps at export time rather than read from the
// persisted derived fields.
type TrainingRecord struct {
	Service            string  `json:"service"`
	Status             string  `json:"status"`
	WaitingTimeMinutes int     `json:"waitingTimeMinutes"`
	ServiceTimeMinutes int     `json:"serviceTimeMinutes"`
	PositionInQueue    int     `json:"positionInQueue"`
	NoShow             bool    `json:"noShow"`
	JoinedAt           string  `json:"joinedAt"`
	StartedAt          *string `json:"startedAt"`
	CompletedAt        *string `json:"completedAt"`
	DayOfWeek          int     `json:"dayOfWeek"`
	HourOfDay          int     `json:"hourOfDay"`
	Month              int     `json:"month"`
	DayOfMonth         int     `json:"dayOfMonth"`
}

// Event is an announcement shown to customers. Pure CRUD, no lifecycle.
type Event struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"createdAt"`
}
