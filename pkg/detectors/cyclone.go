package detectors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// forecastStrikeThreshold is the minimum track probability for a
// forecast-product cell to stand on its own as a detection.
const forecastStrikeThreshold = 0.7

// CycloneDetector finds tropical cyclones two ways: a pressure/wind
// minimum search over the reanalysis grid, and probability peaks in the
// real-time forecast product. The forecast product also enriches grid
// detections with a track probability.
type CycloneDetector struct {
	reanalysis *adapters.ReanalysisAdapter
	forecast   *adapters.ForecastAdapter

	basin          hazard.BBox
	minPressureHPa float64
	minWindMS      float64

	// per-cycle payloads
	field  *adapters.GridField
	points []adapters.ForecastPoint
}

// NewCycloneDetector wires the two cyclone providers and the detection
// thresholds.
func NewCycloneDetector(re *adapters.ReanalysisAdapter, fc *adapters.ForecastAdapter, basin hazard.BBox, minPressureHPa, minWindMS float64) *CycloneDetector {
	return &CycloneDetector{
		reanalysis:     re,
		forecast:       fc,
		basin:          basin,
		minPressureHPa: minPressureHPa,
		minWindMS:      minWindMS,
	}
}

func (d *CycloneDetector) Name() string { return "cyclone" }

// Fetch pulls both providers. One provider failing does not block the
// other; the joined error is recorded in the run log by the scheduler.
func (d *CycloneDetector) Fetch(ctx context.Context, w adapters.Window) error {
	d.field = nil
	d.points = nil

	var errs []error

	field, err := d.reanalysis.Fetch(ctx, w)
	if err != nil {
		errs = append(errs, fmt.Errorf("reanalysis: %w", err))
	} else {
		d.field = field
	}

	points, err := d.forecast.Fetch(ctx, w)
	if err != nil {
		errs = append(errs, fmt.Errorf("forecast: %w", err))
	} else {
		d.points = points
	}

	return errors.Join(errs...)
}

// Detect runs both detection paths over the fetched payloads.
func (d *CycloneDetector) Detect(now time.Time) ([]hazard.Hazard, error) {
	var out []hazard.Hazard

	if d.field != nil {
		if c := d.detectFromGrid(d.field); c != nil {
			if err := c.Validate(now); err != nil {
				zap.S().Warnf("Dropping grid cyclone: %v", err)
			} else {
				out = append(out, c)
			}
		}
	}

	for _, c := range d.detectFromForecast(now) {
		if err := c.Validate(now); err != nil {
			zap.S().Warnf("Dropping forecast cyclone: %v", err)
			continue
		}
		out = append(out, c)
	}

	return out, nil
}

func (d *CycloneDetector) Persist(st *store.Store, hazards []hazard.Hazard) error {
	return persistDetections(st, hazards)
}

// DetectFromGrid exposes the grid search for the reanalysis-driven
// validation runs.
func (d *CycloneDetector) DetectFromGrid(field *adapters.GridField) *hazard.Cyclone {
	return d.detectFromGrid(field)
}

// detectFromGrid finds the global pressure minimum and checks it against
// the intensity thresholds and the basin bounds.
func (d *CycloneDetector) detectFromGrid(field *adapters.GridField) *hazard.Cyclone {
	minPressure := math.Inf(1)
	minI, minJ := -1, -1
	for i := range field.MSL {
		for j := range field.MSL[i] {
			hpa := field.MSL[i][j] / 100
			if hpa < minPressure {
				minPressure = hpa
				minI, minJ = i, j
			}
		}
	}
	if minI < 0 || minPressure >= d.minPressureHPa {
		return nil
	}

	maxWindMS := 0.0
	for i := range field.U10 {
		for j := range field.U10[i] {
			speed := math.Sqrt(field.U10[i][j]*field.U10[i][j] + field.V10[i][j]*field.V10[i][j])
			if speed > maxWindMS {
				maxWindMS = speed
			}
		}
	}
	if maxWindMS < d.minWindMS {
		return nil
	}

	center := hazard.Point{Lat: field.Lats[minI], Lon: field.Lons[minJ]}
	if !d.basin.Contains(center) {
		return nil
	}

	maxWindKt := maxWindMS * hazard.KnotsPerMS
	c := &hazard.Cyclone{
		Base: hazard.Base{
			ID:            gridCycloneID(field.ValidTime, center),
			Kind:          hazard.KindCyclone,
			Location:      center,
			DetectionTime: field.ValidTime.UTC(),
			Source:        d.reanalysis.Name(),
			Confidence:    hazard.CycloneConfidence(minPressure, maxWindMS),
		},
		ThreatLevel:    hazard.ClassifyWindKt(maxWindKt),
		MaxWindKt:      maxWindKt,
		MinPressureHPa: minPressure,
	}
	c.TrackProbability = d.nearestTrackProbability(center)
	return c
}

// nearestTrackProbability looks for a forecast cell close to the grid
// center. Zero when the forecast product did not cover the system.
func (d *CycloneDetector) nearestTrackProbability(center hazard.Point) float64 {
	best := 0.0
	bestDist := 2.5 // degrees
	for _, p := range d.points {
		dist := math.Max(math.Abs(p.Lat-center.Lat), math.Abs(p.Lon-center.Lon))
		if dist < bestDist {
			bestDist = dist
			best = p.TrackProbability
		}
	}
	return best
}

// detectFromForecast emits cyclones at strike-probability peaks. Cells
// within half a degree of a stronger cell belong to the same system.
func (d *CycloneDetector) detectFromForecast(now time.Time) []*hazard.Cyclone {
	candidates := make([]adapters.ForecastPoint, 0)
	for _, p := range d.points {
		if p.TrackProbability < forecastStrikeThreshold {
			continue
		}
		if !d.basin.Contains(hazard.Point{Lat: p.Lat, Lon: p.Lon}) {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TrackProbability != candidates[j].TrackProbability {
			return candidates[i].TrackProbability > candidates[j].TrackProbability
		}
		// deterministic order for equal probabilities
		if candidates[i].Lat != candidates[j].Lat {
			return candidates[i].Lat < candidates[j].Lat
		}
		return candidates[i].Lon < candidates[j].Lon
	})

	var peaks []adapters.ForecastPoint
	for _, c := range candidates {
		absorbed := false
		for _, p := range peaks {
			if math.Abs(c.Lat-p.Lat) <= 0.5 && math.Abs(c.Lon-p.Lon) <= 0.5 {
				absorbed = true
				break
			}
		}
		if !absorbed {
			peaks = append(peaks, c)
		}
	}

	cyclones := make([]*hazard.Cyclone, 0, len(peaks))
	for _, p := range peaks {
		windKt := representativeWindKt(p)
		center := hazard.Point{Lat: p.Lat, Lon: p.Lon}
		cyclones = append(cyclones, &hazard.Cyclone{
			Base: hazard.Base{
				ID:            forecastCycloneID(now, center),
				Kind:          hazard.KindCyclone,
				Location:      center,
				DetectionTime: now.UTC().Truncate(6 * time.Hour),
				Source:        d.forecast.Name(),
				Confidence:    p.TrackProbability,
			},
			ThreatLevel:      hazard.ClassifyWindKt(windKt),
			MaxWindKt:        windKt,
			TrackProbability: p.TrackProbability,
		})
	}
	return cyclones
}

// representativeWindKt estimates sustained wind from the strike
// probability ladder: the strongest wind class the ensemble gives even
// odds of reaching.
func representativeWindKt(p adapters.ForecastPoint) float64 {
	switch {
	case p.Wind64Kt >= 0.5:
		return 64
	case p.Wind50Kt >= 0.5:
		return 50
	case p.Wind34Kt >= 0.5:
		return 34
	default:
		return 20
	}
}

func gridCycloneID(t time.Time, p hazard.Point) string {
	return fmt.Sprintf("cyc-%s-%s", t.UTC().Format("2006010215"), cellRef(p))
}

func forecastCycloneID(t time.Time, p hazard.Point) string {
	return fmt.Sprintf("cycfc-%s-%s", t.UTC().Truncate(6*time.Hour).Format("2006010215"), cellRef(p))
}

// cellRef renders a point as a compact, sortable grid reference.
func cellRef(p hazard.Point) string {
	return fmt.Sprintf("%+07.2f%+08.2f", p.Lat, p.Lon)
}
