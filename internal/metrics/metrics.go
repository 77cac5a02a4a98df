package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartq",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	queueJoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartq",
			Name:      "queue_joins_total",
			Help:      "Customers that joined the queue.",
		},
	)

	predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartq",
			Name:      "predictions_total",
			Help:      "Prediction calls by capability and outcome (ok or fallback).",
		},
		[]string{"capability", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, queueJoins, predictions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncJoin increments the queue join counter.
func IncJoin() {
	queueJoins.Inc()
}

// IncPrediction records one prediction call outcome.
func IncPrediction(capability, outcome string) {
	predictions.WithLabelValues(capability, outcome).Inc()
}
