// Package query aggregates the current hazard state for downstream
// consumers: the fused feed, per-kind views and the summary snapshot.
package query

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/convergence"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// Default lookback windows per kind.
const (
	DefaultCycloneHours     = 24
	DefaultFloodHours       = 48
	DefaultWaterloggedHours = 72
)

// waterloggedFraction is the water-fraction cutoff above which a flood
// counts as persistent waterlogging.
const waterloggedFraction = 0.7

// dedupDeg collapses same-kind hazards within this many degrees on both
// axes.
const dedupDeg = 0.5

// OutbreakSource supplies the current outbreak set for on-demand
// convergence recomputation.
type OutbreakSource interface {
	Fetch(ctx context.Context, w adapters.Window) ([]hazard.Outbreak, error)
}

// Summary is the counts snapshot.
type Summary struct {
	Cyclones      int    `json:"cyclones"`
	Floods        int    `json:"floods"`
	Landslides    int    `json:"landslides"`
	Waterlogged   int    `json:"waterlogged"`
	Convergences  int    `json:"convergences"`
	TotalActive   int    `json:"totalActive"`
	HighestThreat string `json:"highest_threat"`
}

// Snapshot is the composite feed response.
type Snapshot struct {
	Cyclones     []*hazard.Cyclone       `json:"cyclones"`
	Floods       []*hazard.Flood         `json:"floods"`
	Landslides   []*hazard.LandslideRisk `json:"landslides"`
	Waterlogged  []*hazard.Flood         `json:"waterlogged"`
	Convergences []*hazard.Convergence   `json:"convergences"`
	Summary      Summary                 `json:"summary"`
	LastUpdated  time.Time               `json:"lastUpdated"`
}

type cacheEntry struct {
	snapshot *Snapshot
	storedAt time.Time
}

// Service serves read traffic over the persisted detections. A single
// time-based cache keyed on (kind, window) absorbs the polling load;
// stale entries are served only after the underlying query fails.
type Service struct {
	store     *store.Store
	outbreaks OutbreakSource
	engine    *convergence.Engine
	ttl       time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

// NewService wires the query layer.
func NewService(st *store.Store, outbreaks OutbreakSource, engine *convergence.Engine, ttl time.Duration) *Service {
	return &Service{
		store:     st,
		outbreaks: outbreaks,
		engine:    engine,
		ttl:       ttl,
		cache:     make(map[string]cacheEntry),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Realtime returns the fused feed over the lookback windows. hours
// scales the cyclone/landslide/convergence window; floods and
// waterlogging keep their longer defaults unless hours exceeds them.
func (s *Service) Realtime(ctx context.Context, hours int, bbox *hazard.BBox) (*Snapshot, error) {
	if hours <= 0 {
		hours = DefaultCycloneHours
	}
	key := fmt.Sprintf("realtime|%d|%s", hours, bboxKey(bbox))

	return s.cached(key, func() (*Snapshot, error) {
		return s.build(ctx, hours, bbox)
	})
}

// Cyclones returns the cyclone-only view.
func (s *Service) Cyclones(ctx context.Context, hours int) ([]*hazard.Cyclone, error) {
	if hours <= 0 {
		hours = DefaultCycloneHours
	}
	snap, err := s.cached(fmt.Sprintf("cyclones|%d", hours), func() (*Snapshot, error) {
		cyclones, err := s.loadCyclones(hours, nil)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Cyclones: cyclones, LastUpdated: s.now()}, nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Cyclones, nil
}

// Floods returns the flood-only view over a day-based window.
func (s *Service) Floods(ctx context.Context, days int, bbox *hazard.BBox) ([]*hazard.Flood, error) {
	hours := days * 24
	if hours <= 0 {
		hours = DefaultFloodHours
	}
	snap, err := s.cached(fmt.Sprintf("floods|%d|%s", hours, bboxKey(bbox)), func() (*Snapshot, error) {
		floods, err := s.loadFloods(hours, bbox)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Floods: floods, LastUpdated: s.now()}, nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Floods, nil
}

// Landslides returns the landslide-only view.
func (s *Service) Landslides(ctx context.Context, bbox *hazard.BBox) ([]*hazard.LandslideRisk, error) {
	snap, err := s.cached(fmt.Sprintf("landslides|%d|%s", DefaultCycloneHours, bboxKey(bbox)), func() (*Snapshot, error) {
		landslides, err := s.loadLandslides(DefaultCycloneHours, bbox)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Landslides: landslides, LastUpdated: s.now()}, nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Landslides, nil
}

// Convergences recomputes the active convergence set on demand from the
// current cyclones and the live outbreak feed.
func (s *Service) Convergences(ctx context.Context, hours int) ([]*hazard.Convergence, error) {
	if hours <= 0 {
		hours = DefaultCycloneHours
	}
	snap, err := s.cached(fmt.Sprintf("convergences|%d", hours), func() (*Snapshot, error) {
		convs, err := s.loadConvergences(ctx, hours)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Convergences: convs, LastUpdated: s.now()}, nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Convergences, nil
}

// Summarize returns the counts snapshot over the default windows.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	snap, err := s.Realtime(ctx, DefaultCycloneHours, nil)
	if err != nil {
		return Summary{}, err
	}
	return snap.Summary, nil
}

// cached runs load under the TTL cache. A fresh entry short-circuits;
// a load failure falls back to whatever stale entry exists.
func (s *Service) cached(key string, load func() (*Snapshot, error)) (*Snapshot, error) {
	now := s.now()

	s.mu.Lock()
	entry, ok := s.cache[key]
	s.mu.Unlock()
	if ok && now.Sub(entry.storedAt) < s.ttl {
		return entry.snapshot, nil
	}

	snap, err := load()
	if err != nil {
		if ok {
			zap.S().Warnf("Query %s failed, serving stale cache: %v", key, err)
			return entry.snapshot, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{snapshot: snap, storedAt: now}
	s.mu.Unlock()
	return snap, nil
}

func (s *Service) build(ctx context.Context, hours int, bbox *hazard.BBox) (*Snapshot, error) {
	cyclones, err := s.loadCyclones(hours, bbox)
	if err != nil {
		return nil, err
	}

	floodHours := DefaultFloodHours
	if hours > floodHours {
		floodHours = hours
	}
	floods, err := s.loadFloods(floodHours, bbox)
	if err != nil {
		return nil, err
	}

	landslides, err := s.loadLandslides(hours, bbox)
	if err != nil {
		return nil, err
	}

	waterHours := DefaultWaterloggedHours
	if hours > waterHours {
		waterHours = hours
	}
	waterlogged, err := s.loadWaterlogged(waterHours, bbox)
	if err != nil {
		return nil, err
	}

	// Convergence recompute uses the live outbreak set; an unreachable
	// surveillance feed degrades to an empty set rather than failing the
	// whole feed.
	convs := make([]*hazard.Convergence, 0)
	if loaded, err := s.recomputeConvergences(ctx, cyclones); err != nil {
		zap.S().Warnf("Convergence recompute degraded: %v", err)
	} else {
		convs = loaded
	}

	snap := &Snapshot{
		Cyclones:     cyclones,
		Floods:       floods,
		Landslides:   landslides,
		Waterlogged:  waterlogged,
		Convergences: convs,
		LastUpdated:  s.now(),
	}
	snap.Summary = summarize(snap)
	return snap, nil
}

func (s *Service) loadCyclones(hours int, bbox *hazard.BBox) ([]*hazard.Cyclone, error) {
	rows, err := s.store.ListDetections(hazard.KindCyclone, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	out := make([]*hazard.Cyclone, 0, len(rows))
	for _, row := range rows {
		c := store.CycloneFromRow(row)
		if bbox != nil && !bbox.Contains(c.Location) {
			continue
		}
		out = append(out, c)
	}
	return dedupByLocation(out, func(c *hazard.Cyclone) hazard.Point { return c.Location }), nil
}

func (s *Service) loadFloods(hours int, bbox *hazard.BBox) ([]*hazard.Flood, error) {
	rows, err := s.store.ListDetections(hazard.KindFlood, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	out := make([]*hazard.Flood, 0, len(rows))
	for _, row := range rows {
		f := store.FloodFromRow(row)
		if bbox != nil && !bbox.Contains(f.Location) {
			continue
		}
		out = append(out, f)
	}
	return dedupByLocation(out, func(f *hazard.Flood) hazard.Point { return f.Location }), nil
}

func (s *Service) loadLandslides(hours int, bbox *hazard.BBox) ([]*hazard.LandslideRisk, error) {
	rows, err := s.store.ListDetections(hazard.KindLandslide, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	out := make([]*hazard.LandslideRisk, 0, len(rows))
	for _, row := range rows {
		l := store.LandslideFromRow(row)
		if bbox != nil && !bbox.Contains(l.Location) {
			continue
		}
		out = append(out, l)
	}
	return dedupByLocation(out, func(l *hazard.LandslideRisk) hazard.Point { return l.Location }), nil
}

// loadWaterlogged derives persistent waterlogging from floods with a
// high water fraction over the longer window.
func (s *Service) loadWaterlogged(hours int, bbox *hazard.BBox) ([]*hazard.Flood, error) {
	floods, err := s.loadFloods(hours, bbox)
	if err != nil {
		return nil, err
	}
	out := make([]*hazard.Flood, 0)
	for _, f := range floods {
		if f.WaterFraction <= waterloggedFraction {
			continue
		}
		w := *f
		w.Kind = hazard.KindWaterlogged
		out = append(out, &w)
	}
	return out, nil
}

func (s *Service) loadConvergences(ctx context.Context, hours int) ([]*hazard.Convergence, error) {
	cyclones, err := s.loadCyclones(hours, nil)
	if err != nil {
		return nil, err
	}
	return s.recomputeConvergences(ctx, cyclones)
}

func (s *Service) recomputeConvergences(ctx context.Context, cyclones []*hazard.Cyclone) ([]*hazard.Convergence, error) {
	if len(cyclones) == 0 {
		return []*hazard.Convergence{}, nil
	}
	now := s.now()
	outbreaks, err := s.outbreaks.Fetch(ctx, adapters.WindowEnding(now, 30*24*time.Hour))
	if err != nil {
		return nil, err
	}
	return s.engine.Detect(cyclones, outbreaks, now), nil
}

func summarize(snap *Snapshot) Summary {
	highest := ""
	best := -1
	for _, c := range snap.Cyclones {
		if r := c.ThreatLevel.Rank(); r > best {
			best = r
			highest = string(c.ThreatLevel)
		}
	}
	total := len(snap.Cyclones) + len(snap.Floods) + len(snap.Landslides) + len(snap.Waterlogged) + len(snap.Convergences)
	return Summary{
		Cyclones:      len(snap.Cyclones),
		Floods:        len(snap.Floods),
		Landslides:    len(snap.Landslides),
		Waterlogged:   len(snap.Waterlogged),
		Convergences:  len(snap.Convergences),
		TotalActive:   total,
		HighestThreat: highest,
	}
}

// dedupByLocation collapses same-kind hazards whose locations are within
// half a degree on both axes, keeping the first (newest) one.
func dedupByLocation[T any](items []T, at func(T) hazard.Point) []T {
	kept := make([]T, 0, len(items))
	points := make([]hazard.Point, 0, len(items))
	for _, item := range items {
		p := at(item)
		dup := false
		for _, q := range points {
			if math.Abs(p.Lat-q.Lat) <= dedupDeg && math.Abs(p.Lon-q.Lon) <= dedupDeg {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, item)
			points = append(points, p)
		}
	}
	return kept
}

func bboxKey(b *hazard.BBox) string {
	if b == nil {
		return "all"
	}
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}
