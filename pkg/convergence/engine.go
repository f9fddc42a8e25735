// Package convergence joins active cyclones with disease outbreaks by
// geodesic proximity and scores the combined risk.
package convergence

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

// highPriorityDistanceKm is the cutoff below which a convergence is
// escalated.
const highPriorityDistanceKm = 200

// Engine computes convergences from the current active sets.
// Convergences are content-addressed by (cyclone id, outbreak id) and
// recomputed on demand rather than persisted.
type Engine struct {
	maxDistanceKm float64
}

// NewEngine builds an engine with the given distance threshold in km.
func NewEngine(maxDistanceKm float64) *Engine {
	return &Engine{maxDistanceKm: maxDistanceKm}
}

// Detect pairs every cyclone with every outbreak and keeps pairs inside
// the distance threshold. The result is deduplicated by content address.
func (e *Engine) Detect(cyclones []*hazard.Cyclone, outbreaks []hazard.Outbreak, now time.Time) []*hazard.Convergence {
	seen := make(map[string]bool)
	out := make([]*hazard.Convergence, 0)

	for _, c := range cyclones {
		for i := range outbreaks {
			o := outbreaks[i]
			distance := hazard.Haversine(c.Location, o.Location)
			if distance >= e.maxDistanceKm {
				continue
			}

			conv := &hazard.Convergence{
				Base: hazard.Base{
					ID:            "conv-" + c.ID + "-" + o.ID,
					Kind:          hazard.KindConvergence,
					Location:      o.Location,
					DetectionTime: now.UTC(),
					Source:        "convergence-engine",
				},
				CycloneID:  c.ID,
				OutbreakID: o.ID,
				Cyclone:    c,
				Outbreak:   &o,
				DistanceKm: distance,
				RiskScore:  RiskScore(c, &o, distance),
				Priority:   PriorityForDistance(distance),
			}
			conv.Confidence = conv.RiskScore

			if seen[conv.Key()] {
				continue
			}
			seen[conv.Key()] = true
			out = append(out, conv)

			zap.S().Warnf("CONVERGENCE: %s in %s + cyclone %s (%s), %.0f km apart, risk %.2f",
				o.Disease, o.Country, c.ID, c.ThreatLevel, distance, conv.RiskScore)
		}
	}
	return out
}

// RiskScore blends proximity, outbreak severity, track probability and
// outbreak size into a 0-1 score.
func RiskScore(c *hazard.Cyclone, o *hazard.Outbreak, distanceKm float64) float64 {
	score := 0.0

	score += math.Max(0, 1-distanceKm/500) * 0.3
	score += severityScore(o.Severity) * 0.3
	score += c.TrackProbability * 0.2
	score += math.Min(float64(o.Cases)/200, 1) * 0.2

	return math.Round(score*1000) / 1000
}

func severityScore(s hazard.OutbreakSeverity) float64 {
	switch s {
	case hazard.OutbreakHigh:
		return 0.8
	case hazard.OutbreakMedium:
		return 0.5
	case hazard.OutbreakLow:
		return 0.2
	default:
		return 0.5
	}
}

// PriorityForDistance escalates close approaches.
func PriorityForDistance(distanceKm float64) hazard.AlertPriority {
	if distanceKm < highPriorityDistanceKm {
		return hazard.PriorityHigh
	}
	return hazard.PriorityMedium
}
