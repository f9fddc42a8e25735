package detectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

var testBasin = hazard.BBox{MinLat: -35, MaxLat: 0, MinLon: 20, MaxLon: 80}

func newTestCycloneDetector() *CycloneDetector {
	return NewCycloneDetector(
		adapters.NewReanalysisAdapter("", time.Second),
		adapters.NewForecastAdapter("", time.Second),
		testBasin,
		1005,
		17,
	)
}

// testGrid builds a small field with ambient conditions and one deep low
// at (-19.85, 34.84).
func testGrid(minPressurePa, maxWindMS float64) *adapters.GridField {
	lats := []float64{-19.35, -19.60, -19.85, -20.10, -20.35}
	lons := []float64{34.34, 34.59, 34.84, 35.09, 35.34}

	field := &adapters.GridField{
		ValidTime: time.Date(2019, 3, 10, 0, 0, 0, 0, time.UTC),
		Lats:      lats,
		Lons:      lons,
	}
	for range lats {
		mslRow := make([]float64, len(lons))
		uRow := make([]float64, len(lons))
		vRow := make([]float64, len(lons))
		for j := range lons {
			mslRow[j] = 101300
			uRow[j] = 5
			vRow[j] = 2
		}
		field.MSL = append(field.MSL, mslRow)
		field.U10 = append(field.U10, uRow)
		field.V10 = append(field.V10, vRow)
	}

	field.MSL[2][2] = minPressurePa
	field.U10[1][2] = maxWindMS // strongest wind on the eyewall
	field.V10[1][2] = 0
	return field
}

func TestDetectFromGrid(t *testing.T) {
	d := newTestCycloneDetector()

	c := d.DetectFromGrid(testGrid(95500, 45))
	require.NotNil(t, c)

	assert.Equal(t, hazard.Point{Lat: -19.85, Lon: 34.84}, c.Location)
	assert.InDelta(t, 955, c.MinPressureHPa, 1e-9)
	assert.InDelta(t, 45*hazard.KnotsPerMS, c.MaxWindKt, 1e-9)
	assert.Equal(t, hazard.ThreatCat2, c.ThreatLevel)
	assert.InDelta(t, 1.0, c.Confidence, 1e-9)
	assert.Equal(t, "reanalysis-grid", c.Source)

	// Same field, same id: re-running a cycle is idempotent.
	again := d.DetectFromGrid(testGrid(95500, 45))
	require.NotNil(t, again)
	assert.Equal(t, c.ID, again.ID)
}

func TestDetectFromGridRejections(t *testing.T) {
	d := newTestCycloneDetector()

	t.Run("pressure above threshold", func(t *testing.T) {
		assert.Nil(t, d.DetectFromGrid(testGrid(100600, 45)))
	})

	t.Run("wind below threshold", func(t *testing.T) {
		assert.Nil(t, d.DetectFromGrid(testGrid(95500, 10)))
	})

	t.Run("minimum outside basin", func(t *testing.T) {
		field := testGrid(95500, 45)
		for i := range field.Lats {
			field.Lats[i] += 25 // shift north of the basin
		}
		assert.Nil(t, d.DetectFromGrid(field))
	})
}

func TestDetectFromForecastPeaks(t *testing.T) {
	d := newTestCycloneDetector()
	now := time.Date(2024, 1, 15, 7, 30, 0, 0, time.UTC)

	d.points = []adapters.ForecastPoint{
		// One system: three neighbouring cells, strongest kept.
		{Lat: -15.2, Lon: 42.5, TrackProbability: 0.95, Wind34Kt: 0.9, Wind50Kt: 0.6},
		{Lat: -15.4, Lon: 42.6, TrackProbability: 0.80, Wind34Kt: 0.8},
		{Lat: -15.0, Lon: 42.3, TrackProbability: 0.75, Wind34Kt: 0.7},
		// A second, distinct system.
		{Lat: -22.0, Lon: 55.0, TrackProbability: 0.85, Wind34Kt: 0.9, Wind50Kt: 0.7, Wind64Kt: 0.6},
		// Below threshold.
		{Lat: -10.0, Lon: 60.0, TrackProbability: 0.30},
		// Outside basin.
		{Lat: 10.0, Lon: 42.0, TrackProbability: 0.99, Wind34Kt: 0.9},
	}

	cyclones := d.detectFromForecast(now)
	require.Len(t, cyclones, 2)

	var strong, weak *hazard.Cyclone
	for _, c := range cyclones {
		if c.Location.Lat == -22.0 {
			strong = c
		} else {
			weak = c
		}
	}
	require.NotNil(t, strong)
	require.NotNil(t, weak)

	assert.Equal(t, hazard.ThreatCat1, strong.ThreatLevel)
	assert.Equal(t, hazard.ThreatTS, weak.ThreatLevel)
	assert.Equal(t, hazard.Point{Lat: -15.2, Lon: 42.5}, weak.Location)
	assert.InDelta(t, 0.95, weak.TrackProbability, 1e-9)
}

func TestNearestTrackProbability(t *testing.T) {
	d := newTestCycloneDetector()
	center := hazard.Point{Lat: -19.85, Lon: 34.84}

	assert.Equal(t, 0.0, d.nearestTrackProbability(center), "no forecast coverage")

	d.points = []adapters.ForecastPoint{
		{Lat: -19.5, Lon: 35.0, TrackProbability: 0.8},
		{Lat: -30.0, Lon: 60.0, TrackProbability: 0.99}, // far away
	}
	assert.InDelta(t, 0.8, d.nearestTrackProbability(center), 1e-9)
}

func TestCycloneDetectValidates(t *testing.T) {
	d := newTestCycloneDetector()
	now := time.Date(2019, 3, 10, 6, 0, 0, 0, time.UTC)

	d.field = testGrid(95500, 45)
	hazards, err := d.Detect(now)
	require.NoError(t, err)
	require.Len(t, hazards, 1)

	c, ok := hazards[0].(*hazard.Cyclone)
	require.True(t, ok)
	assert.Equal(t, hazard.KindCyclone, c.HazardKind())
}
