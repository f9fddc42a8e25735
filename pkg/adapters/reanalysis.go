package adapters

import (
	"context"
	"fmt"
	"time"
)

// GridField is a gridded surface analysis: mean-sea-level pressure in Pa
// and 10 m wind components in m/s, indexed [lat][lon].
type GridField struct {
	ValidTime time.Time   `json:"valid_time"`
	Lats      []float64   `json:"lats"`
	Lons      []float64   `json:"lons"`
	MSL       [][]float64 `json:"msl"`
	U10       [][]float64 `json:"u10"`
	V10       [][]float64 `json:"v10"`
}

// Validate checks the field dimensions are consistent.
func (g *GridField) Validate() error {
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return fmt.Errorf("grid field has empty axes")
	}
	for name, grid := range map[string][][]float64{"msl": g.MSL, "u10": g.U10, "v10": g.V10} {
		if len(grid) != len(g.Lats) {
			return fmt.Errorf("grid field %s has %d rows, expected %d", name, len(grid), len(g.Lats))
		}
		for i, row := range grid {
			if len(row) != len(g.Lons) {
				return fmt.Errorf("grid field %s row %d has %d cols, expected %d", name, i, len(row), len(g.Lons))
			}
		}
	}
	return nil
}

// ReanalysisAdapter fetches the retrospective gridded pressure/wind
// field. Grid files are large, so this adapter runs on the bulk timeout.
type ReanalysisAdapter struct {
	client *httpClient
}

// NewReanalysisAdapter builds the adapter for the given archive base URL.
func NewReanalysisAdapter(baseURL string, bulkTimeout time.Duration) *ReanalysisAdapter {
	return &ReanalysisAdapter{client: newHTTPClient("reanalysis-grid", baseURL, bulkTimeout)}
}

func (a *ReanalysisAdapter) Name() string { return "reanalysis-grid" }

// Fetch returns the latest field inside the window.
func (a *ReanalysisAdapter) Fetch(ctx context.Context, w Window) (*GridField, error) {
	if a.client.base == "" {
		return nil, fmt.Errorf("reanalysis provider not configured")
	}

	analysis := w.End.UTC().Truncate(6 * time.Hour)
	path := fmt.Sprintf("/surface_%s.json", analysis.Format("2006-01-02T15"))

	var field GridField
	if err := a.client.getJSON(ctx, path, &field); err != nil {
		return nil, err
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("reanalysis grid rejected: %w", err)
	}
	if field.ValidTime.IsZero() {
		field.ValidTime = analysis
	}
	return &field, nil
}
