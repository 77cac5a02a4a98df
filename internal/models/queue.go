package models

import "time"

// QueueEntry is one customer's ticket in the service queue.
type QueueEntry struct {
	ID                 string     `json:"id"`
	Token              string     `json:"token"`
	Service            string     `json:"service"`
	Status             string     `json:"status"`
	PositionInQueue    int        `json:"positionInQueue"`
	WaitingTimeMinutes int        `json:"waitingTimeMinutes"`
	ServiceTimeMinutes int        `json:"serviceTimeMinutes"`
	JoinedAt           time.Time  `json:"joinedAt"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	NoShow             bool       `json:"noShow"`
	DayOfWeek          int        `json:"dayOfWeek"`
	HourOfDay          int        `json:"hourOfDay"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// IsTerminal reports whether the entry has left the queue for good.
func (e *QueueEntry) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusNoShow
}
