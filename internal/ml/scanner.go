package ml

import (
	"context"

	"smartq/internal/models"
)

// HourlyPrediction is one hour of the business-day sweep.
type HourlyPrediction struct {
	Hour         int     `json:"hour"`
	QueueDensity float64 `json:"queueDensity"`
	IsPeak       bool    `json:"isPeak"`
}

// PeakHoursReport aggregates a full business-day sweep: the prediction
// for the requested hour, one entry per hour of the business window in
// ascending order, and the subsequence of hours flagged as peaks.
type PeakHoursReport struct {
	Current           map[string]any     `json:"current"`
	HourlyPredictions []HourlyPrediction `json:"hourlyPredictions"`
	PeakHours         []int              `json:"peakHours"`
}

// Scanner sweeps the fixed business window with per-hour peak predictions.
type Scanner struct {
	client *Client
}

func NewScanner(client *Client) *Scanner {
	return &Scanner{client: client}
}

// ScanPeakHours issues one peak-hours prediction for the base features,
// then one per hour of the business window with only the hour overridden.
// Every call applies the fallback policy independently, so a single slow
// or failing hour never aborts the sweep.
func (s *Scanner) ScanPeakHours(ctx context.Context, base models.FeatureRecord) *PeakHoursReport {
	report := &PeakHoursReport{
		Current:           s.client.PredictPeakHours(ctx, base),
		HourlyPredictions: make([]HourlyPrediction, 0, models.BusinessCloseHour-models.BusinessOpenHour),
		PeakHours:         []int{},
	}

	for hour := models.BusinessOpenHour; hour < models.BusinessCloseHour; hour++ {
		prediction := s.client.PredictPeakHours(ctx, base.WithHour(hour))
		hourly := HourlyPrediction{
			Hour:         hour,
			QueueDensity: numberOr(prediction["queueDensity"], 20),
			IsPeak:       boolOr(prediction["isPeak"], false),
		}
		report.HourlyPredictions = append(report.HourlyPredictions, hourly)
		if hourly.IsPeak {
			report.PeakHours = append(report.PeakHours, hour)
		}
	}

	return report
}

// numberOr extracts a numeric JSON value that may decode as float64 or
// arrive as a Go int from a fallback payload.
func numberOr(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}
