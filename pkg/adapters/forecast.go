package adapters

import (
	"context"
	"fmt"
	"time"
)

// ForecastPoint is one cell of the cyclone probability product: strike
// probabilities for the coming forecast period at a fixed location.
type ForecastPoint struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	TrackProbability float64 `json:"track_probability"`
	Wind34Kt         float64 `json:"wind_34kt_probability"`
	Wind50Kt         float64 `json:"wind_50kt_probability"`
	Wind64Kt         float64 `json:"wind_64kt_probability"`
	ThreatLevel      string  `json:"threat_level"`
}

// ForecastAdapter fetches the real-time cyclone track/probability
// product.
type ForecastAdapter struct {
	client *httpClient
}

// NewForecastAdapter builds the adapter for the given product base URL.
func NewForecastAdapter(baseURL string, timeout time.Duration) *ForecastAdapter {
	return &ForecastAdapter{client: newHTTPClient("cyclone-forecast", baseURL, timeout)}
}

func (a *ForecastAdapter) Name() string { return "cyclone-forecast" }

// Fetch returns the forecast points valid for the window. The product is
// published per init time, so the same window always resolves to the
// same file and the same points.
func (a *ForecastAdapter) Fetch(ctx context.Context, w Window) ([]ForecastPoint, error) {
	if a.client.base == "" {
		return nil, fmt.Errorf("cyclone-forecast provider not configured")
	}

	// Init times are 6-hourly; round the window end down.
	init := w.End.UTC().Truncate(6 * time.Hour)
	path := fmt.Sprintf("/cyclone_probability_%s.json", init.Format("2006-01-02T15"))

	var payload struct {
		Points []ForecastPoint `json:"points"`
	}
	if err := a.client.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}

	valid := payload.Points[:0]
	for _, p := range payload.Points {
		if p.TrackProbability < 0 || p.TrackProbability > 1 {
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}
