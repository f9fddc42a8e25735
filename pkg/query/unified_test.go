package query

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/convergence"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

type fakeOutbreaks struct {
	set    []hazard.Outbreak
	err    error
	fetches int
}

func (f *fakeOutbreaks) Fetch(ctx context.Context, w adapters.Window) ([]hazard.Outbreak, error) {
	f.fetches++
	return f.set, f.err
}

func newTestService(t *testing.T, outbreaks *fakeOutbreaks) (*Service, *store.Store, *time.Time) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "query.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(st, outbreaks, convergence.NewEngine(500), 300*time.Second)

	clock := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return clock })
	return svc, st, &clock
}

func seedCyclone(t *testing.T, st *store.Store, id string, at time.Time, loc hazard.Point) {
	t.Helper()
	_, err := st.InsertDetection(&hazard.Cyclone{
		Base: hazard.Base{
			ID:            id,
			Kind:          hazard.KindCyclone,
			Location:      loc,
			DetectionTime: at,
			Source:        "reanalysis-grid",
			Confidence:    0.9,
		},
		ThreatLevel:      hazard.ThreatTS,
		MaxWindKt:        45,
		TrackProbability: 1.0,
	})
	require.NoError(t, err)
}

func seedFlood(t *testing.T, st *store.Store, id string, at time.Time, wf float64) {
	t.Helper()
	ring := [][2]float64{{39.2, -19.8}, {39.4, -19.8}, {39.4, -20.0}, {39.2, -20.0}, {39.2, -19.8}}
	_, err := st.InsertDetection(&hazard.Flood{
		Base: hazard.Base{
			ID:            id,
			Kind:          hazard.KindFlood,
			Location:      hazard.RingCentroid(ring),
			DetectionTime: at,
			Source:        "sar-flood",
			Confidence:    0.85,
		},
		Polygon:       ring,
		AreaKm2:       45.3,
		Severity:      hazard.FloodMajor,
		WaterFraction: wf,
	})
	require.NoError(t, err)
}

func TestRealtimeSnapshot(t *testing.T) {
	outbreaks := &fakeOutbreaks{set: []hazard.Outbreak{{
		ID:       "outbreak-cholera",
		Disease:  "Cholera",
		Country:  "Madagascar",
		Location: hazard.Point{Lat: -18.9, Lon: 47.5},
		Cases:    156,
		Severity: hazard.OutbreakHigh,
	}}}
	svc, st, clock := newTestService(t, outbreaks)

	seedCyclone(t, st, "cyc-a", clock.Add(-2*time.Hour), hazard.Point{Lat: -19.5, Lon: 47.25})
	seedFlood(t, st, "flood-a", clock.Add(-36*time.Hour), 0.92)

	snap, err := svc.Realtime(context.Background(), 24, nil)
	require.NoError(t, err)

	assert.Len(t, snap.Cyclones, 1)
	assert.Len(t, snap.Floods, 1, "48 h flood window includes the 36 h old polygon")
	assert.Len(t, snap.Waterlogged, 1, "high water fraction derives a waterlogged record")
	assert.Equal(t, hazard.KindWaterlogged, snap.Waterlogged[0].Kind)
	require.Len(t, snap.Convergences, 1)
	assert.InDelta(t, 71.4, snap.Convergences[0].DistanceKm, 0.5)

	assert.Equal(t, 1, snap.Summary.Cyclones)
	assert.Equal(t, "TS", snap.Summary.HighestThreat)
	assert.Equal(t, 4, snap.Summary.TotalActive)
}

func TestRealtimeCacheTTL(t *testing.T) {
	outbreaks := &fakeOutbreaks{}
	svc, st, clock := newTestService(t, outbreaks)
	seedCyclone(t, st, "cyc-a", clock.Add(-2*time.Hour), hazard.Point{Lat: -19.5, Lon: 47.25})

	first, err := svc.Realtime(context.Background(), 24, nil)
	require.NoError(t, err)

	// A new detection lands, but 60 s later the cache still answers.
	seedCyclone(t, st, "cyc-b", clock.Add(-time.Hour), hazard.Point{Lat: -12.0, Lon: 60.0})
	*clock = clock.Add(60 * time.Second)

	cached, err := svc.Realtime(context.Background(), 24, nil)
	require.NoError(t, err)
	assert.Same(t, first, cached, "fresh cache entry served as-is")

	// Past the TTL a fresh query runs.
	*clock = clock.Add(300 * time.Second)
	refreshed, err := svc.Realtime(context.Background(), 24, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed)
	assert.Len(t, refreshed.Cyclones, 2)
}

func TestConvergenceDegradesWhenOutbreakFeedDown(t *testing.T) {
	outbreaks := &fakeOutbreaks{err: fmt.Errorf("bulletin unreachable")}
	svc, st, clock := newTestService(t, outbreaks)
	seedCyclone(t, st, "cyc-a", clock.Add(-2*time.Hour), hazard.Point{Lat: -19.5, Lon: 47.25})

	snap, err := svc.Realtime(context.Background(), 24, nil)
	require.NoError(t, err, "a dead surveillance feed must not fail the whole feed")
	assert.Empty(t, snap.Convergences)
	assert.Len(t, snap.Cyclones, 1)
}

func TestDedupByLocation(t *testing.T) {
	outbreaks := &fakeOutbreaks{}
	svc, st, clock := newTestService(t, outbreaks)

	// Two cyclones 0.3 degrees apart collapse to the newest one.
	seedCyclone(t, st, "cyc-new", clock.Add(-1*time.Hour), hazard.Point{Lat: -19.5, Lon: 47.25})
	seedCyclone(t, st, "cyc-echo", clock.Add(-3*time.Hour), hazard.Point{Lat: -19.7, Lon: 47.45})
	// A distinct system survives.
	seedCyclone(t, st, "cyc-far", clock.Add(-2*time.Hour), hazard.Point{Lat: -12.0, Lon: 60.0})

	cyclones, err := svc.Cyclones(context.Background(), 24)
	require.NoError(t, err)
	require.Len(t, cyclones, 2)
	assert.Equal(t, "cyc-new", cyclones[0].ID)
}

func TestBBoxFilter(t *testing.T) {
	outbreaks := &fakeOutbreaks{}
	svc, st, clock := newTestService(t, outbreaks)

	seedCyclone(t, st, "cyc-moz", clock.Add(-time.Hour), hazard.Point{Lat: -19.8, Lon: 34.9})
	seedCyclone(t, st, "cyc-mad", clock.Add(-time.Hour), hazard.Point{Lat: -18.9, Lon: 47.5})

	moz := hazard.BBox{MinLat: -27, MaxLat: -10, MinLon: 30, MaxLon: 41}
	snap, err := svc.Realtime(context.Background(), 24, &moz)
	require.NoError(t, err)
	require.Len(t, snap.Cyclones, 1)
	assert.Equal(t, "cyc-moz", snap.Cyclones[0].ID)
}
