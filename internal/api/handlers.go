package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"smartq/internal/database"
	"smartq/internal/features"
	"smartq/internal/metrics"
	"smartq/internal/ml"
	"smartq/internal/models"
	"smartq/internal/queue"
)

// writeDomainError maps domain failures to transport status codes.
// Validation problems are the caller's fault, missing entries are 404,
// upstream training failures are 502, anything else is a server error.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrServiceRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "queue entry not found")
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ml.ErrNoTrainingData):
		writeError(w, http.StatusBadRequest, "No training data available. Please add queue entries first.")
	case errors.Is(err, ml.ErrUpstream):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.count("queue_join")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Service string `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ticket, err := s.engine.Join(r.Context(), strings.TrimSpace(body.Service))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	metrics.IncJoin()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":         "Joined queue successfully",
		"token":           ticket.Token,
		"positionInQueue": ticket.PositionInQueue,
	})
}

func (s *HTTPServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	s.count("queue_list")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.engine.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleQueueEntry routes PUT /api/queue/{id}/{start|complete|no-show}.
func (s *HTTPServer) handleQueueEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, action := parts[0], parts[1]

	var entry *models.QueueEntry
	var err error
	switch action {
	case "start":
		s.count("queue_start")
		entry, err = s.engine.Start(r.Context(), id)
	case "complete":
		s.count("queue_complete")
		entry, err = s.engine.Complete(r.Context(), id)
	case "no-show":
		s.count("queue_no_show")
		entry, err = s.engine.MarkNoShow(r.Context(), id)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	s.count("queue_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="queue_export.xlsx"`)
	if err := s.db.ExportQueueXLSX(r.Context(), w); err != nil {
		s.logger.Error().Err(err).Msg("queue export failed")
	}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.count("events")
	switch r.Method {
	case http.MethodGet:
		events, err := s.db.ListEvents(r.Context())
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if events == nil {
			events = []models.Event{}
		}
		writeJSON(w, http.StatusOK, events)

	case http.MethodPost:
		var event models.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(event.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		if err := s.db.CreateEvent(r.Context(), &event); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "Event created successfully",
			"event":   event,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type predictRequest struct {
	Token           string `json:"token"`
	Service         string `json:"service"`
	PositionInQueue int    `json:"positionInQueue"`
	Date            string `json:"date"`
	Hour            *int   `json:"hour"`
	DayOfWeek       *int   `json:"dayOfWeek"`
}

func (s *HTTPServer) decodePredictRequest(w http.ResponseWriter, r *http.Request) (*predictRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	var req predictRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return nil, false
		}
	}
	return &req, true
}

// resolveEntryFeatures builds features for a token-or-service prediction
// request. A missing token is not an error as long as a service is named:
// the prediction is then made for a hypothetical new arrival.
func (s *HTTPServer) resolveEntryFeatures(r *http.Request, req *predictRequest, wantLivePosition bool) (models.FeatureRecord, error) {
	var entry *models.QueueEntry
	if req.Token != "" {
		found, err := s.engine.FindByToken(r.Context(), req.Token)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return models.FeatureRecord{}, err
		}
		entry = found
	}

	if entry == nil && req.Service == "" {
		return models.FeatureRecord{}, queue.ErrServiceRequired
	}

	position := req.PositionInQueue
	if position == 0 && wantLivePosition && entry != nil {
		live, err := s.engine.LivePosition(r.Context(), entry)
		if err != nil {
			return models.FeatureRecord{}, err
		}
		position = live
	}

	var stub features.Stub
	if entry != nil {
		stub = features.FromEntry(entry)
	} else {
		stub = features.Stub{Service: req.Service}
	}
	stub.Position = position

	return features.Derive(stub, s.now()), nil
}

func (s *HTTPServer) handlePredictWaitingTime(w http.ResponseWriter, r *http.Request) {
	s.count("predict_waiting_time")
	req, ok := s.decodePredictRequest(w, r)
	if !ok {
		return
	}

	feats, err := s.resolveEntryFeatures(r, req, true)
	if err != nil {
		if errors.Is(err, queue.ErrServiceRequired) {
			writeError(w, http.StatusBadRequest, "token or service is required")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.client.PredictWaitingTime(r.Context(), feats))
}

func (s *HTTPServer) handlePredictNoShow(w http.ResponseWriter, r *http.Request) {
	s.count("predict_no_show")
	req, ok := s.decodePredictRequest(w, r)
	if !ok {
		return
	}

	var entry *models.QueueEntry
	if req.Token != "" {
		found, err := s.engine.FindByToken(r.Context(), req.Token)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			s.writeDomainError(w, err)
			return
		}
		entry = found
	}

	var stub features.Stub
	if entry != nil {
		stub = features.FromEntry(entry)
	} else {
		stub = features.Stub{Service: req.Service}
	}
	stub.Position = req.PositionInQueue

	feats := features.Derive(stub, s.now())
	writeJSON(w, http.StatusOK, s.client.PredictNoShow(r.Context(), feats))
}

func (s *HTTPServer) handlePredictQueueLength(w http.ResponseWriter, r *http.Request) {
	s.count("predict_queue_length")
	req, ok := s.decodePredictRequest(w, r)
	if !ok {
		return
	}

	date, hour, ok := s.resolveDateHour(w, req)
	if !ok {
		return
	}

	feats := features.ForDate(req.Service, date, hour)
	writeJSON(w, http.StatusOK, s.client.PredictQueueLength(r.Context(), feats))
}

func (s *HTTPServer) handlePredictPeakHours(w http.ResponseWriter, r *http.Request) {
	s.count("predict_peak_hours")
	req, ok := s.decodePredictRequest(w, r)
	if !ok {
		return
	}

	date, hour, ok := s.resolveDateHour(w, req)
	if !ok {
		return
	}

	feats := features.ForDate(req.Service, date, hour)
	writeJSON(w, http.StatusOK, s.scanner.ScanPeakHours(r.Context(), feats))
}

func (s *HTTPServer) handleSuggestBestTime(w http.ResponseWriter, r *http.Request) {
	s.count("suggest_best_time")
	req, ok := s.decodePredictRequest(w, r)
	if !ok {
		return
	}

	dayOfWeek := int(s.now().Weekday())
	if req.DayOfWeek != nil {
		dayOfWeek = *req.DayOfWeek
	}

	writeJSON(w, http.StatusOK, s.client.SuggestBestTime(r.Context(), req.Service, dayOfWeek))
}

func (s *HTTPServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	s.count("train")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records, err := s.engine.TrainingData(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	result, err := s.client.Train(r.Context(), records)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.count("ml_status")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.client.Health(r.Context()))
}

// resolveDateHour parses the optional date and hour of a prediction
// request. Missing values default to the current date and the date's own
// hour.
func (s *HTTPServer) resolveDateHour(w http.ResponseWriter, req *predictRequest) (time.Time, int, bool) {
	date := s.now()
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD or RFC3339")
			return time.Time{}, 0, false
		}
		date = parsed
	}

	hour := -1
	if req.Hour != nil {
		if *req.Hour < 0 || *req.Hour > 23 {
			writeError(w, http.StatusBadRequest, "hour must be between 0 and 23")
			return time.Time{}, 0, false
		}
		hour = *req.Hour
	}
	return date, hour, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
