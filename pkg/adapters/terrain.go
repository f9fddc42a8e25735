package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

// TerrainCell is one grid cell of slope plus accumulated 24 h rainfall.
type TerrainCell struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	SlopeDeg   float64 `json:"slope_deg"`
	RainfallMM float64 `json:"rainfall_mm"`
}

// TerrainAdapter fetches the DEM slope + rainfall accumulation product
// over a bounding box.
type TerrainAdapter struct {
	client *httpClient
	bbox   hazard.BBox
}

// NewTerrainAdapter builds the adapter for the given product URL and
// area of interest.
func NewTerrainAdapter(baseURL string, bbox hazard.BBox, bulkTimeout time.Duration) *TerrainAdapter {
	return &TerrainAdapter{client: newHTTPClient("dem-rainfall", baseURL, bulkTimeout), bbox: bbox}
}

func (a *TerrainAdapter) Name() string { return "dem-rainfall" }

// Fetch returns the per-cell slope and rainfall values for the window.
func (a *TerrainAdapter) Fetch(ctx context.Context, w Window) ([]TerrainCell, error) {
	if a.client.base == "" {
		return nil, fmt.Errorf("dem-rainfall provider not configured")
	}

	path := fmt.Sprintf("/terrain?bbox=%.2f,%.2f,%.2f,%.2f&date=%s",
		a.bbox.MinLon, a.bbox.MinLat, a.bbox.MaxLon, a.bbox.MaxLat,
		w.End.UTC().Format("2006-01-02"))

	var payload struct {
		Cells []TerrainCell `json:"cells"`
	}
	if err := a.client.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Cells, nil
}
