package detectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

func newTestLandslideDetector(maxZones int) *LandslideDetector {
	return NewLandslideDetector(
		adapters.NewTerrainAdapter("", testBasin, time.Second),
		"african-basin",
		testBasin,
		maxZones,
	)
}

func TestRiskScore(t *testing.T) {
	tests := []struct {
		name    string
		slope   float64
		rain    float64
		want    float64
		level   hazard.RiskLevel
	}{
		{"flat and dry", 5, 10, 0, hazard.RiskMinimal},
		{"moderate slope, heavy rain boundary", 15, 100, 0.5, hazard.RiskHigh},
		{"just below both thresholds", 14.9, 99.9, 0.2, hazard.RiskLow},
		{"extreme everything", 40, 450, 1.0, hazard.RiskExtreme},
		{"steep but dry", 40, 10, 0, hazard.RiskMinimal},
		{"soaked but flat", 5, 450, 0, hazard.RiskMinimal},
		{"steep slope, very heavy rain", 30, 250, 0.8, hazard.RiskExtreme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := RiskScore(tt.slope, tt.rain)
			assert.InDelta(t, tt.want, score, 1e-9)
			assert.Equal(t, tt.level, RiskLevelForScore(score))
		})
	}
}

func TestLandslideDetectKeepsOnlyHighAndExtreme(t *testing.T) {
	d := newTestLandslideDetector(50)
	now := time.Now().UTC()

	d.cells = []adapters.TerrainCell{
		{Lat: -19.5, Lon: 34.2, SlopeDeg: 35, RainfallMM: 420}, // extreme
		{Lat: -15.0, Lon: 40.0, SlopeDeg: 15, RainfallMM: 100}, // high
		{Lat: -16.0, Lon: 42.0, SlopeDeg: 12, RainfallMM: 120}, // medium, dropped
		{Lat: -17.0, Lon: 44.0, SlopeDeg: 5, RainfallMM: 20},   // minimal, dropped
		{Lat: -18.0, Lon: 46.0, SlopeDeg: -1, RainfallMM: 50},  // invalid, dropped
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 2)

	first, ok := hazards[0].(*hazard.LandslideRisk)
	require.True(t, ok)
	assert.Equal(t, hazard.RiskExtreme, first.RiskLevel)
	assert.InDelta(t, 1.0, first.RiskScore, 1e-9)
	assert.Contains(t, first.Reason, "very steep slope")
	assert.NotEmpty(t, first.RecommendedAction)

	second := hazards[1].(*hazard.LandslideRisk)
	assert.Equal(t, hazard.RiskHigh, second.RiskLevel)
	assert.InDelta(t, 0.5, second.RiskScore, 1e-9)
}

func TestLandslideClusteringKeepsStrongest(t *testing.T) {
	d := newTestLandslideDetector(50)
	now := time.Now().UTC()

	// Three cells inside half a degree of each other; only the
	// strongest survives.
	d.cells = []adapters.TerrainCell{
		{Lat: -19.50, Lon: 34.20, SlopeDeg: 35, RainfallMM: 420},
		{Lat: -19.60, Lon: 34.30, SlopeDeg: 30, RainfallMM: 250},
		{Lat: -19.40, Lon: 34.10, SlopeDeg: 25, RainfallMM: 210},
		// A distinct zone far away.
		{Lat: -13.9, Lon: 33.7, SlopeDeg: 35, RainfallMM: 220},
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 2)

	r := hazards[0].(*hazard.LandslideRisk)
	assert.Equal(t, hazard.Point{Lat: -19.50, Lon: 34.20}, r.Location)
}

func TestLandslideTopNAndOrdering(t *testing.T) {
	d := newTestLandslideDetector(3)
	now := time.Now().UTC()

	// Ten distinct high-risk zones, scores varying with rainfall.
	cells := make([]adapters.TerrainCell, 0, 10)
	for i := 0; i < 10; i++ {
		cells = append(cells, adapters.TerrainCell{
			Lat:        -10 - float64(i)*2,
			Lon:        30 + float64(i)*3,
			SlopeDeg:   35,
			RainfallMM: 100 + float64(i)*40,
		})
	}
	d.cells = cells

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 3)

	prev := 2.0
	for _, h := range hazards {
		r := h.(*hazard.LandslideRisk)
		assert.LessOrEqual(t, r.RiskScore, prev)
		prev = r.RiskScore
	}
}
