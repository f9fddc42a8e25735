package detectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

func newTestFloodDetector() *FloodDetector {
	return NewFloodDetector(
		adapters.NewSARFloodAdapter("", time.Second),
		"african-basin",
		testBasin,
		0.1,
	)
}

func beiraRing() [][2]float64 {
	return [][2]float64{
		{39.2, -19.8}, {39.4, -19.8}, {39.4, -20.0}, {39.2, -20.0}, {39.2, -19.8},
	}
}

func TestFloodDetect(t *testing.T) {
	d := newTestFloodDetector()
	now := time.Now().UTC()
	observed := now.Add(-2 * time.Hour)

	d.features = []adapters.FloodFeature{
		{Ring: beiraRing(), AreaKm2: 45.3, WaterFraction: 0.85, ObservedAt: observed},
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	f, ok := hazards[0].(*hazard.Flood)
	require.True(t, ok)
	assert.InDelta(t, 45.3, f.AreaKm2, 1e-9)
	assert.InDelta(t, -19.9, f.Location.Lat, 1e-9)
	assert.InDelta(t, 39.3, f.Location.Lon, 1e-9)
	assert.Equal(t, hazard.FloodMajor, f.Severity, "water fraction above 0.8 maps to major")
	assert.True(t, f.DetectionTime.Equal(observed.UTC()))
}

func TestFloodDetectClosesOpenRing(t *testing.T) {
	d := newTestFloodDetector()
	now := time.Now().UTC()

	open := beiraRing()[:4]
	d.features = []adapters.FloodFeature{
		{Ring: open, AreaKm2: 12, WaterFraction: 0.5, ObservedAt: now.Add(-time.Hour)},
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	f := hazards[0].(*hazard.Flood)
	assert.Equal(t, f.Polygon[0], f.Polygon[len(f.Polygon)-1])
}

func TestFloodDetectRejectsSmallAndDegenerate(t *testing.T) {
	d := newTestFloodDetector()
	now := time.Now().UTC()

	tiny := [][2]float64{
		{39.20, -19.80}, {39.201, -19.80}, {39.201, -19.801}, {39.20, -19.801}, {39.20, -19.80},
	}
	d.features = []adapters.FloodFeature{
		{Ring: tiny, ObservedAt: now},                             // below the area floor
		{Ring: [][2]float64{{39.2, -19.8}}, ObservedAt: now},      // degenerate
		{Ring: beiraRing(), AreaKm2: 45, ObservedAt: now.Add(-1)}, // kept
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	assert.Len(t, hazards, 1)
}

func TestFloodDetectComputesMissingArea(t *testing.T) {
	d := newTestFloodDetector()
	now := time.Now().UTC()

	d.features = []adapters.FloodFeature{
		{Ring: beiraRing(), ObservedAt: now.Add(-time.Hour)},
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	f := hazards[0].(*hazard.Flood)
	assert.InDelta(t, 0.04*111*111, f.AreaKm2, 0.1)
}

func TestFloodSeverityMapping(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		area     float64
		wf       float64
		want     hazard.FloodSeverity
	}{
		{"provider label wins", "catastrophic", 5, 0.1, hazard.FloodCatastrophic},
		{"unknown label falls through", "biblical", 5, 0.1, hazard.FloodMinor},
		{"huge extent", "", 600, 0.2, hazard.FloodCatastrophic},
		{"very high water fraction", "", 5, 0.95, hazard.FloodCatastrophic},
		{"large extent", "", 150, 0.2, hazard.FloodMajor},
		{"moderate extent", "", 20, 0.2, hazard.FloodModerate},
		{"small", "", 1, 0.2, hazard.FloodMinor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, floodSeverity(tt.provided, tt.area, tt.wf))
		})
	}
}

func TestFloodNormalizesPercentWaterFraction(t *testing.T) {
	d := newTestFloodDetector()
	now := time.Now().UTC()

	d.features = []adapters.FloodFeature{
		{Ring: beiraRing(), AreaKm2: 45, WaterFraction: 92.0, ObservedAt: now.Add(-time.Hour)},
	}

	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	f := hazards[0].(*hazard.Flood)
	assert.InDelta(t, 0.92, f.WaterFraction, 1e-9)
}
