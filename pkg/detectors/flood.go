package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// FloodDetector aggregates provider polygons into flood hazards and a
// per-cycle assessment row.
type FloodDetector struct {
	adapter    *adapters.SARFloodAdapter
	region     string
	bbox       hazard.BBox
	minAreaKm2 float64

	// per-cycle payload
	features []adapters.FloodFeature
}

// NewFloodDetector wires the SAR/optical flood provider.
func NewFloodDetector(a *adapters.SARFloodAdapter, region string, bbox hazard.BBox, minAreaKm2 float64) *FloodDetector {
	return &FloodDetector{adapter: a, region: region, bbox: bbox, minAreaKm2: minAreaKm2}
}

func (d *FloodDetector) Name() string { return "flood" }

func (d *FloodDetector) Fetch(ctx context.Context, w adapters.Window) error {
	d.features = nil
	features, err := d.adapter.Fetch(ctx, w)
	if err != nil {
		return err
	}
	d.features = features
	return nil
}

// Detect validates each provider polygon, computes missing areas and
// maps severity.
func (d *FloodDetector) Detect(now time.Time) ([]hazard.Hazard, error) {
	out := make([]hazard.Hazard, 0, len(d.features))

	for _, feat := range d.features {
		ring := closeRing(feat.Ring)
		if len(ring) < 4 {
			zap.S().Warnf("Dropping flood polygon: ring has %d vertices", len(feat.Ring))
			continue
		}

		area := feat.AreaKm2
		if area <= 0 {
			area = hazard.RingAreaKm2(ring)
		}
		if area < d.minAreaKm2 {
			continue
		}

		wf := feat.WaterFraction
		if wf > 1 { // some providers report percent
			wf /= 100
		}

		centroid := hazard.RingCentroid(ring)
		f := &hazard.Flood{
			Base: hazard.Base{
				ID:            floodID(feat.ObservedAt, centroid),
				Kind:          hazard.KindFlood,
				Location:      centroid,
				DetectionTime: feat.ObservedAt.UTC(),
				Source:        d.adapter.Name(),
				Confidence:    floodConfidence(area, wf),
			},
			Polygon:       ring,
			AreaKm2:       area,
			Severity:      floodSeverity(feat.Severity, area, wf),
			WaterFraction: wf,
		}
		if err := f.Validate(now); err != nil {
			zap.S().Warnf("Dropping flood polygon: %v", err)
			continue
		}
		out = append(out, f)
	}

	return out, nil
}

// Persist writes the individual detections plus the per-cycle aggregate.
func (d *FloodDetector) Persist(st *store.Store, hazards []hazard.Hazard) error {
	if err := persistDetections(st, hazards); err != nil {
		return err
	}
	if len(hazards) == 0 {
		return nil
	}

	totalArea := 0.0
	maxSeverity := hazard.FloodMinor
	rings := make([][][2]float64, 0, len(hazards))
	var latest time.Time
	for _, h := range hazards {
		f, ok := h.(*hazard.Flood)
		if !ok {
			continue
		}
		totalArea += f.AreaKm2
		if severityRank(f.Severity) > severityRank(maxSeverity) {
			maxSeverity = f.Severity
		}
		rings = append(rings, f.Polygon)
		if f.DetectionTime.After(latest) {
			latest = f.DetectionTime
		}
	}

	bboxJSON, _ := json.Marshal(d.bbox)
	geo, _ := json.Marshal(ringFeatureCollection(rings))

	return st.SaveFloodEvent(&models.FloodEvent{
		DetectionTime:     latest,
		Region:            d.region,
		BBoxJSON:          string(bboxJSON),
		TotalFloodedAreas: len(rings),
		TotalAreaKm2:      totalArea,
		MaxSeverity:       string(maxSeverity),
		GeoJSON:           string(geo),
	})
}

// closeRing appends the first vertex when the provider left the ring
// open.
func closeRing(ring [][2]float64) [][2]float64 {
	if len(ring) < 3 {
		return ring
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// floodSeverity uses the provider's label when present, otherwise
// infers it from extent and water fraction.
func floodSeverity(provided string, areaKm2, waterFraction float64) hazard.FloodSeverity {
	switch hazard.FloodSeverity(provided) {
	case hazard.FloodMinor, hazard.FloodModerate, hazard.FloodMajor, hazard.FloodCatastrophic:
		return hazard.FloodSeverity(provided)
	}
	switch {
	case areaKm2 >= 500 || waterFraction > 0.9:
		return hazard.FloodCatastrophic
	case areaKm2 >= 100 || waterFraction > 0.8:
		return hazard.FloodMajor
	case areaKm2 >= 10 || waterFraction > 0.6:
		return hazard.FloodModerate
	default:
		return hazard.FloodMinor
	}
}

func severityRank(s hazard.FloodSeverity) int {
	switch s {
	case hazard.FloodCatastrophic:
		return 3
	case hazard.FloodMajor:
		return 2
	case hazard.FloodModerate:
		return 1
	default:
		return 0
	}
}

// floodConfidence grows with extent and water fraction; SAR returns are
// unambiguous for large standing water.
func floodConfidence(areaKm2, waterFraction float64) float64 {
	conf := 0.6
	if areaKm2 >= 10 {
		conf += 0.15
	}
	if waterFraction > 0.8 {
		conf += 0.15
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

func floodID(t time.Time, centroid hazard.Point) string {
	return fmt.Sprintf("flood-%s-%s", t.UTC().Format("20060102"), cellRef(centroid))
}

type geoFeature struct {
	Type       string                 `json:"type"`
	Geometry   map[string]interface{} `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

func ringFeatureCollection(rings [][][2]float64) geoCollection {
	features := make([]geoFeature, 0, len(rings))
	for _, ring := range rings {
		coords := make([][]float64, 0, len(ring))
		for _, v := range ring {
			coords = append(coords, []float64{v[0], v[1]})
		}
		features = append(features, geoFeature{
			Type: "Feature",
			Geometry: map[string]interface{}{
				"type":        "Polygon",
				"coordinates": [][][]float64{coords},
			},
			Properties: map[string]interface{}{},
		})
	}
	return geoCollection{Type: "FeatureCollection", Features: features}
}
