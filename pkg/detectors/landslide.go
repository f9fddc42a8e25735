package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// clusterRadiusDeg collapses nearby cells to the strongest
// representative.
const clusterRadiusDeg = 0.5

// LandslideDetector scores slope x rainfall cells and keeps the highest
// risk zones.
type LandslideDetector struct {
	adapter  *adapters.TerrainAdapter
	region   string
	bbox     hazard.BBox
	maxZones int

	// per-cycle payload
	cells []adapters.TerrainCell
}

// NewLandslideDetector wires the DEM + rainfall provider.
func NewLandslideDetector(a *adapters.TerrainAdapter, region string, bbox hazard.BBox, maxZones int) *LandslideDetector {
	return &LandslideDetector{adapter: a, region: region, bbox: bbox, maxZones: maxZones}
}

func (d *LandslideDetector) Name() string { return "landslide" }

func (d *LandslideDetector) Fetch(ctx context.Context, w adapters.Window) error {
	d.cells = nil
	cells, err := d.adapter.Fetch(ctx, w)
	if err != nil {
		return err
	}
	d.cells = cells
	return nil
}

// Detect scores every cell, keeps HIGH and EXTREME zones, clusters them
// and retains the top N by score.
func (d *LandslideDetector) Detect(now time.Time) ([]hazard.Hazard, error) {
	risks := make([]*hazard.LandslideRisk, 0)

	for _, cell := range d.cells {
		if cell.SlopeDeg < 0 || cell.RainfallMM < 0 {
			zap.S().Warnf("Dropping terrain cell (%.2f, %.2f): negative slope or rainfall", cell.Lat, cell.Lon)
			continue
		}

		score := RiskScore(cell.SlopeDeg, cell.RainfallMM)
		level := RiskLevelForScore(score)
		if level != hazard.RiskHigh && level != hazard.RiskExtreme {
			continue
		}

		point := hazard.Point{Lat: cell.Lat, Lon: cell.Lon}
		r := &hazard.LandslideRisk{
			Base: hazard.Base{
				ID:            landslideID(now, point),
				Kind:          hazard.KindLandslide,
				Location:      point,
				DetectionTime: now.UTC(),
				Source:        d.adapter.Name(),
				Confidence:    score,
			},
			RiskLevel:         level,
			RiskScore:         score,
			SlopeDeg:          cell.SlopeDeg,
			RainfallMM:        cell.RainfallMM,
			Reason:            riskReason(cell.SlopeDeg, cell.RainfallMM),
			RecommendedAction: recommendedAction(level),
		}
		if err := r.Validate(now); err != nil {
			zap.S().Warnf("Dropping landslide cell: %v", err)
			continue
		}
		risks = append(risks, r)
	}

	sortRisks(risks)
	clustered := clusterRisks(risks)
	if len(clustered) > d.maxZones {
		clustered = clustered[:d.maxZones]
	}

	out := make([]hazard.Hazard, 0, len(clustered))
	for _, r := range clustered {
		out = append(out, r)
	}
	return out, nil
}

// Persist writes the individual detections plus the per-cycle aggregate.
func (d *LandslideDetector) Persist(st *store.Store, hazards []hazard.Hazard) error {
	if err := persistDetections(st, hazards); err != nil {
		return err
	}
	if len(hazards) == 0 {
		return nil
	}

	var maxRain float64
	highRisk := 0
	points := make([]hazard.Point, 0, len(hazards))
	var latest time.Time
	for _, h := range hazards {
		r, ok := h.(*hazard.LandslideRisk)
		if !ok {
			continue
		}
		if r.RainfallMM > maxRain {
			maxRain = r.RainfallMM
		}
		if r.RiskLevel == hazard.RiskHigh || r.RiskLevel == hazard.RiskExtreme {
			highRisk++
		}
		points = append(points, r.Location)
		if r.DetectionTime.After(latest) {
			latest = r.DetectionTime
		}
	}

	bboxJSON, _ := json.Marshal(d.bbox)
	geo, _ := json.Marshal(pointFeatureCollection(points))

	// Each zone stands for roughly one grid cell (~0.25 deg).
	areaAtRisk := float64(len(points)) * 27.75 * 27.75

	return st.SaveLandslideAssessment(&models.LandslideAssessment{
		AssessmentTime: latest,
		Region:         d.region,
		BBoxJSON:       string(bboxJSON),
		RainfallMM:     maxRain,
		TotalZones:     len(points),
		HighRiskZones:  highRisk,
		AreaAtRiskKm2:  areaAtRisk,
		GeoJSON:        string(geo),
	})
}

// RiskScore combines the slope and rainfall factors with a geometric
// mean so only jointly high values score high.
func RiskScore(slopeDeg, rainfallMM float64) float64 {
	return math.Sqrt(slopeFactor(slopeDeg) * rainFactor(rainfallMM))
}

func slopeFactor(deg float64) float64 {
	switch {
	case deg >= 35:
		return 1.0
	case deg >= 25:
		return 0.8
	case deg >= 15:
		return 0.5
	case deg >= 10:
		return 0.2
	default:
		return 0.0
	}
}

func rainFactor(mm float64) float64 {
	switch {
	case mm >= 400:
		return 1.0
	case mm >= 200:
		return 0.8
	case mm >= 100:
		return 0.5
	case mm >= 50:
		return 0.2
	default:
		return 0.0
	}
}

// RiskLevelForScore maps a score onto the risk scale.
func RiskLevelForScore(score float64) hazard.RiskLevel {
	switch {
	case score >= 0.8:
		return hazard.RiskExtreme
	case score >= 0.5:
		return hazard.RiskHigh
	case score >= 0.3:
		return hazard.RiskMedium
	case score >= 0.1:
		return hazard.RiskLow
	default:
		return hazard.RiskMinimal
	}
}

// sortRisks orders by score descending; ties break on higher confidence
// then lexicographically smaller id.
func sortRisks(risks []*hazard.LandslideRisk) {
	sort.Slice(risks, func(i, j int) bool {
		if risks[i].RiskScore != risks[j].RiskScore {
			return risks[i].RiskScore > risks[j].RiskScore
		}
		if risks[i].Confidence != risks[j].Confidence {
			return risks[i].Confidence > risks[j].Confidence
		}
		return risks[i].ID < risks[j].ID
	})
}

// clusterRisks keeps the strongest representative of each neighbourhood.
// Input must already be sorted strongest first.
func clusterRisks(risks []*hazard.LandslideRisk) []*hazard.LandslideRisk {
	kept := make([]*hazard.LandslideRisk, 0, len(risks))
	for _, r := range risks {
		absorbed := false
		for _, k := range kept {
			if math.Abs(r.Location.Lat-k.Location.Lat) <= clusterRadiusDeg &&
				math.Abs(r.Location.Lon-k.Location.Lon) <= clusterRadiusDeg {
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, r)
		}
	}
	return kept
}

func riskReason(slopeDeg, rainfallMM float64) string {
	parts := make([]string, 0, 2)
	switch {
	case rainfallMM >= 400:
		parts = append(parts, "extreme rainfall")
	case rainfallMM >= 200:
		parts = append(parts, "very heavy rainfall")
	case rainfallMM >= 100:
		parts = append(parts, "heavy rainfall")
	}
	switch {
	case slopeDeg >= 35:
		parts = append(parts, "very steep slope")
	case slopeDeg >= 25:
		parts = append(parts, "steep slope")
	case slopeDeg >= 15:
		parts = append(parts, "moderate slope")
	}
	if len(parts) == 0 {
		return "combined slope and rainfall loading"
	}
	return strings.Join(parts, ", ")
}

func recommendedAction(level hazard.RiskLevel) string {
	switch level {
	case hazard.RiskExtreme:
		return "Evacuate slopes and drainage channels immediately"
	case hazard.RiskHigh:
		return "Prepare evacuation routes; avoid slopes during rainfall"
	default:
		return "Monitor conditions"
	}
}

func landslideID(t time.Time, p hazard.Point) string {
	return fmt.Sprintf("landslide-%s-%s", t.UTC().Format("20060102"), cellRef(p))
}

func pointFeatureCollection(points []hazard.Point) geoCollection {
	features := make([]geoFeature, 0, len(points))
	for _, p := range points {
		features = append(features, geoFeature{
			Type: "Feature",
			Geometry: map[string]interface{}{
				"type":        "Point",
				"coordinates": []float64{p.Lon, p.Lat},
			},
			Properties: map[string]interface{}{},
		})
	}
	return geoCollection{Type: "FeatureCollection", Features: features}
}
