package models

// Queue entry statuses. Waiting is the initial state, Completed and
// No-Show are terminal.
const (
	StatusWaiting    = "Waiting"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusNoShow     = "No-Show"
)

const (
	// DefaultService is substituted when a caller asks for a prediction
	// without naming a service category.
	DefaultService = "General"

	// TokenPrefix is prepended to the sequence number of every ticket.
	TokenPrefix = "T"

	// Business window scanned for peak hours, [BusinessOpenHour, BusinessCloseHour).
	BusinessOpenHour  = 9
	BusinessCloseHour = 18
)
