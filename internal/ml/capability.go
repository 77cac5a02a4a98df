package ml

import "time"

// Capability identifies one remote prediction endpoint. Each capability
// carries its own endpoint path, timeout and fallback payload, selected at
// the call site rather than inferred from a path string.
type Capability int

const (
	CapWaitingTime Capability = iota
	CapQueueLength
	CapNoShow
	CapPeakHours
	CapBestTime
	CapTrain
	CapHealth
)

func (c Capability) String() string {
	switch c {
	case CapWaitingTime:
		return "waiting-time"
	case CapQueueLength:
		return "queue-length"
	case CapNoShow:
		return "no-show"
	case CapPeakHours:
		return "peak-hours"
	case CapBestTime:
		return "best-time"
	case CapTrain:
		return "train"
	case CapHealth:
		return "health"
	}
	return "unknown"
}

// Path is the endpoint path on the prediction service.
func (c Capability) Path() string {
	switch c {
	case CapWaitingTime:
		return "/predict/waiting-time"
	case CapQueueLength:
		return "/predict/queue-length"
	case CapNoShow:
		return "/predict/no-show"
	case CapPeakHours:
		return "/predict/peak-hours"
	case CapBestTime:
		return "/suggest/best-time"
	case CapTrain:
		return "/train"
	case CapHealth:
		return "/health"
	}
	return ""
}

// Timeout bounds a single remote call. Training gets a longer budget, the
// health probe a shorter one.
func (c Capability) Timeout() time.Duration {
	switch c {
	case CapTrain:
		return 30 * time.Second
	case CapHealth:
		return 2 * time.Second
	default:
		return 5 * time.Second
	}
}

// Fallback is the deterministic payload substituted when the remote call
// fails. Train and health have none: their failures are surfaced, not
// masked.
func (c Capability) Fallback() map[string]any {
	switch c {
	case CapWaitingTime:
		return map[string]any{"waitingTimeMinutes": 15, "unit": "minutes"}
	case CapQueueLength:
		return map[string]any{"queueLength": 10}
	case CapNoShow:
		return map[string]any{"noShowProbability": 0.15, "percentage": 15}
	case CapPeakHours:
		return map[string]any{"queueDensity": 20, "isPeak": false}
	case CapBestTime:
		return map[string]any{}
	}
	return nil
}

// Cacheable reports whether successful responses may be served from the
// short-TTL cache. Only the purely date-keyed capabilities qualify.
func (c Capability) Cacheable() bool {
	return c == CapQueueLength || c == CapPeakHours
}
