package models

import "time"

// FloodEvent is the per-cycle flood assessment aggregate. Individual
// flood polygons live in detections; this row summarizes one pass over a
// region of interest.
type FloodEvent struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	DetectionTime     time.Time `json:"detection_time" gorm:"index;type:timestamp"`
	Region            string    `json:"region" gorm:"index;type:varchar(64)"`
	BBoxJSON          string    `json:"bbox_json" gorm:"type:text"`
	TotalFloodedAreas int       `json:"total_flooded_areas"`
	TotalAreaKm2      float64   `json:"total_area_km2"`
	MaxSeverity       string    `json:"max_severity" gorm:"type:varchar(20)"`
	GeoJSON           string    `json:"geojson" gorm:"type:text"`
}

func (f *FloodEvent) TableName() string {
	return "floods"
}
