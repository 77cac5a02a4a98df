package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"smartq/internal/metrics"
	"smartq/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrUpstream marks a failed or timed-out call to the prediction service.
	ErrUpstream = errors.New("prediction service unavailable")

	// ErrNoTrainingData is returned when training is requested against an
	// empty store. The remote call is never attempted in that case.
	ErrNoTrainingData = errors.New("no training data available")
)

// Client talks to the remote prediction service. Every prediction call is
// bounded by its capability's timeout and degrades to the capability's
// fallback payload on any failure: network error, non-2xx response or
// timeout. The caller is never blocked by a dead backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	logger     *zerolog.Logger
}

// NewClient builds a prediction client. cache may be nil to disable
// response caching.
func NewClient(baseURL string, cache *Cache, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		cache:      cache,
		logger:     logger,
	}
}

// PredictWaitingTime returns the expected wait for the given features,
// echoing the features back with the result.
func (c *Client) PredictWaitingTime(ctx context.Context, features models.FeatureRecord) map[string]any {
	return c.predict(ctx, CapWaitingTime, features)
}

// PredictQueueLength returns the expected queue depth for the given
// date-keyed features.
func (c *Client) PredictQueueLength(ctx context.Context, features models.FeatureRecord) map[string]any {
	return c.predict(ctx, CapQueueLength, features)
}

// PredictNoShow returns the no-show probability for the given features.
func (c *Client) PredictNoShow(ctx context.Context, features models.FeatureRecord) map[string]any {
	return c.predict(ctx, CapNoShow, features)
}

// PredictPeakHours returns the crowd density prediction for one hour.
func (c *Client) PredictPeakHours(ctx context.Context, features models.FeatureRecord) map[string]any {
	return c.predict(ctx, CapPeakHours, features)
}

// SuggestBestTime asks for the least busy visiting times on a weekday.
// There is no documented fallback: on failure the empty result is
// propagated, annotated with the request fields.
func (c *Client) SuggestBestTime(ctx context.Context, service string, dayOfWeek int) map[string]any {
	if service == "" {
		service = models.DefaultService
	}
	payload := map[string]any{"service": service, "dayOfWeek": dayOfWeek}

	result, err := c.post(ctx, CapBestTime, payload)
	if err != nil {
		c.logFailure(CapBestTime, err)
		metrics.IncPrediction(CapBestTime.String(), "fallback")
		result = CapBestTime.Fallback()
	} else {
		metrics.IncPrediction(CapBestTime.String(), "ok")
	}

	result["service"] = service
	result["dayOfWeek"] = dayOfWeek
	return result
}

// Train ships the full training-data export to the prediction service.
// Unlike the prediction endpoints, failures here are surfaced: masking a
// broken training pipeline would hide a problem the operator must act on.
func (c *Client) Train(ctx context.Context, records []models.TrainingRecord) (map[string]any, error) {
	if len(records) == 0 {
		return nil, ErrNoTrainingData
	}

	result, err := c.post(ctx, CapTrain, map[string]any{"data": records})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"message":    "Models trained successfully",
		"dataPoints": len(records),
		"results":    result["results"],
	}, nil
}

// Health probes the prediction service and reports its status. A failed
// probe is reported as disconnected, never returned as an error.
func (c *Client) Health(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, CapHealth.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+CapHealth.Path(), nil)
	if err != nil {
		return map[string]any{"mlService": "disconnected", "error": err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return map[string]any{"mlService": "disconnected", "error": err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return map[string]any{
			"mlService": "disconnected",
			"error":     fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	payload := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return map[string]any{"mlService": "disconnected", "error": err.Error()}
	}

	payload["mlService"] = "connected"
	return payload
}

// predict runs one prediction call, substituting the capability fallback
// on any failure and echoing the features into the result either way.
func (c *Client) predict(ctx context.Context, capability Capability, features models.FeatureRecord) map[string]any {
	if cached, ok := c.cacheGet(ctx, capability, features); ok {
		cached["features"] = features
		return cached
	}

	result, err := c.post(ctx, capability, features)
	if err != nil {
		c.logFailure(capability, err)
		metrics.IncPrediction(capability.String(), "fallback")
		result = capability.Fallback()
	} else {
		metrics.IncPrediction(capability.String(), "ok")
		c.cacheSet(ctx, capability, features, result)
	}

	result["features"] = features
	return result
}

func (c *Client) post(ctx context.Context, capability Capability, payload any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, capability.Timeout())
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", capability, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+capability.Path(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrUpstream, capability.Path(), resp.StatusCode, snippet)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return result, nil
}

func (c *Client) cacheGet(ctx context.Context, capability Capability, features models.FeatureRecord) (map[string]any, bool) {
	if c.cache == nil || !capability.Cacheable() {
		return nil, false
	}
	result, ok := c.cache.Get(ctx, capability, features)
	return result, ok
}

func (c *Client) cacheSet(ctx context.Context, capability Capability, features models.FeatureRecord, result map[string]any) {
	if c.cache == nil || !capability.Cacheable() {
		return
	}
	c.cache.Set(ctx, capability, features, result)
}

func (c *Client) logFailure(capability Capability, err error) {
	c.logger.Warn().
		Err(err).
		Str("capability", capability.String()).
		Msg("prediction call failed, using fallback")
}
