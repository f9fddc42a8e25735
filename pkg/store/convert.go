package store

import (
	"encoding/json"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
)

// CycloneFromRow rebuilds the canonical cyclone from a detection row.
func CycloneFromRow(row models.Detection) *hazard.Cyclone {
	c := &hazard.Cyclone{
		Base: hazard.Base{
			ID:            row.HazardID,
			Kind:          hazard.KindCyclone,
			Location:      hazard.Point{Lat: row.Lat, Lon: row.Lon},
			DetectionTime: row.DetectionTime,
			Source:        row.Source,
			Confidence:    row.Confidence,
		},
	}
	if row.ThreatLevel != nil {
		c.ThreatLevel = hazard.ThreatLevel(*row.ThreatLevel)
	}
	if row.MaxWindKt != nil {
		c.MaxWindKt = *row.MaxWindKt
	}
	if row.MinPressureHPa != nil {
		c.MinPressureHPa = *row.MinPressureHPa
	}
	if row.TrackProbability != nil {
		c.TrackProbability = *row.TrackProbability
	}
	if row.PayloadJSON != "" {
		var track []hazard.TrackPoint
		if err := json.Unmarshal([]byte(row.PayloadJSON), &track); err == nil {
			c.Track = track
		}
	}
	return c
}

// FloodFromRow rebuilds the canonical flood from a detection row.
func FloodFromRow(row models.Detection) *hazard.Flood {
	f := &hazard.Flood{
		Base: hazard.Base{
			ID:            row.HazardID,
			Kind:          hazard.KindFlood,
			Location:      hazard.Point{Lat: row.Lat, Lon: row.Lon},
			DetectionTime: row.DetectionTime,
			Source:        row.Source,
			Confidence:    row.Confidence,
		},
	}
	if row.Severity != nil {
		f.Severity = hazard.FloodSeverity(*row.Severity)
	}
	if row.AreaKm2 != nil {
		f.AreaKm2 = *row.AreaKm2
	}
	if row.WaterFraction != nil {
		f.WaterFraction = *row.WaterFraction
	}
	if row.PayloadJSON != "" {
		var ring [][2]float64
		if err := json.Unmarshal([]byte(row.PayloadJSON), &ring); err == nil {
			f.Polygon = ring
		}
	}
	return f
}

// LandslideFromRow rebuilds the canonical landslide risk from a
// detection row.
func LandslideFromRow(row models.Detection) *hazard.LandslideRisk {
	l := &hazard.LandslideRisk{
		Base: hazard.Base{
			ID:            row.HazardID,
			Kind:          hazard.KindLandslide,
			Location:      hazard.Point{Lat: row.Lat, Lon: row.Lon},
			DetectionTime: row.DetectionTime,
			Source:        row.Source,
			Confidence:    row.Confidence,
		},
	}
	if row.RiskLevel != nil {
		l.RiskLevel = hazard.RiskLevel(*row.RiskLevel)
	}
	if row.RiskScore != nil {
		l.RiskScore = *row.RiskScore
	}
	if row.SlopeDeg != nil {
		l.SlopeDeg = *row.SlopeDeg
	}
	if row.RainfallMM != nil {
		l.RainfallMM = *row.RainfallMM
	}
	if row.PayloadJSON != "" {
		var payload map[string]string
		if err := json.Unmarshal([]byte(row.PayloadJSON), &payload); err == nil {
			l.Reason = payload["reason"]
			l.RecommendedAction = payload["recommended_action"]
		}
	}
	return l
}
