package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smartq/internal/config"
	"smartq/internal/database"
	"smartq/internal/events"
	"smartq/internal/ml"
	"smartq/internal/models"
	"smartq/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mlBaseURL string, rateLimit config.RateLimitConfig) *HTTPServer {
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine := queue.NewEngine(db, events.NewEventBus(), &logger)
	client := ml.NewClient(mlBaseURL, nil, &logger)
	scanner := ml.NewScanner(client)

	cfg := &config.Config{RateLimit: rateLimit}
	cfg.Server.Port = 0

	return NewHTTPServer(cfg, db, engine, client, scanner, &logger)
}

func doRequest(srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestQueueLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Dental"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	joined := decodeBody(t, rec)
	assert.Equal(t, "T1", joined["token"])
	assert.Equal(t, float64(1), joined["positionInQueue"])
	assert.Equal(t, "Joined queue successfully", joined["message"])

	rec = doRequest(srv, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.QueueEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	id := entries[0].ID

	rec = doRequest(srv, http.MethodPut, "/api/queue/"+id+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusInProgress, decodeBody(t, rec)["status"])

	rec = doRequest(srv, http.MethodPut, "/api/queue/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusCompleted, decodeBody(t, rec)["status"])
}

func TestJoinRejectsEmptyService(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueEntryNotFound(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPut, "/api/queue/nonexistent/start", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "queue entry not found", decodeBody(t, rec)["error"])
}

func TestNoShowConflict(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Dental"}`)

	rec := doRequest(srv, http.MethodGet, "/api/queue", "")
	var entries []models.QueueEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	id := entries[0].ID

	rec = doRequest(srv, http.MethodPut, "/api/queue/"+id+"/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPut, "/api/queue/"+id+"/no-show", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQueueListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTrainWithEmptyQueue(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/train", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No training data available. Please add queue entries first.",
		decodeBody(t, rec)["error"])
}

func TestTrainForwardsQueueEntries(t *testing.T) {
	var trained int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/train", r.URL.Path)
		var body struct {
			Data []models.TrainingRecord `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		trained = len(body.Data)
		_, _ = w.Write([]byte(`{"results":{}}`))
	}))
	defer backend.Close()

	srv := newTestServer(t, backend.URL, config.RateLimitConfig{})
	doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Dental"}`)
	doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Optometry"}`)

	rec := doRequest(srv, http.MethodPost, "/api/ml/train", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, trained)
	assert.Equal(t, float64(2), decodeBody(t, rec)["dataPoints"])
}

func TestMLStatusDisconnected(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodGet, "/api/ml/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decodeBody(t, rec)["mlService"])
}

func TestPredictWaitingTimeRequiresTokenOrService(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/predict/waiting-time", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "token or service is required", decodeBody(t, rec)["error"])
}

func TestPredictWaitingTimeFallback(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/predict/waiting-time", `{"service":"Dental"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(15), payload["waitingTimeMinutes"])
	assert.Equal(t, "minutes", payload["unit"])

	feats, ok := payload["features"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Dental", feats["service"])
}

func TestPredictWaitingTimeByToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"waitingTime":8,"unit":"minutes"}`))
	}))
	defer backend.Close()

	srv := newTestServer(t, backend.URL, config.RateLimitConfig{})
	doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Dental"}`)

	rec := doRequest(srv, http.MethodPost, "/api/ml/predict/waiting-time", `{"token":"T1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(8), payload["waitingTime"])

	feats, ok := payload["features"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Dental", feats["service"])
	assert.Equal(t, float64(1), feats["positionInQueue"])
}

func TestPredictQueueLengthValidatesInput(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/predict/queue-length", `{"date":"not-a-date"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/ml/predict/queue-length", `{"hour":24}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/ml/predict/queue-length", `{"date":"2026-09-01","hour":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(10), decodeBody(t, rec)["queueLength"])
}

func TestPeakHoursEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/predict/peak-hours", `{"service":"Dental"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	hourly, ok := payload["hourlyPredictions"].([]any)
	require.True(t, ok)
	assert.Len(t, hourly, models.BusinessCloseHour-models.BusinessOpenHour)
}

func TestSuggestBestTimeEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/ml/suggest/best-time", `{"service":"Dental","dayOfWeek":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, "Dental", payload["service"])
	assert.Equal(t, float64(2), payload["dayOfWeek"])
}

func TestEventsEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodPost, "/api/events", `{"organization":"City Clinic"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/events", `{"title":"Free checkup","organization":"City Clinic"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Free checkup", listed[0].Title)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})
	doRequest(srv, http.MethodPost, "/api/queue/join", `{"service":"Dental"}`)

	rec := doRequest(srv, http.MethodGet, "/api/queue/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestRateLimiter(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{RPS: 1, Burst: 1})

	first := doRequest(srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, first.Code)

	second := doRequest(srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", config.RateLimitConfig{})

	rec := doRequest(srv, http.MethodGet, "/api/queue/join", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/ml/predict/no-show", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
