package models

import "time"

// LandslideAssessment is the per-cycle landslide risk aggregate.
type LandslideAssessment struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AssessmentTime time.Time `json:"assessment_time" gorm:"index;type:timestamp"`
	Region         string    `json:"region" gorm:"index;type:varchar(64)"`
	BBoxJSON       string    `json:"bbox_json" gorm:"type:text"`
	RainfallMM     float64   `json:"rainfall_mm"`
	TotalZones     int       `json:"total_zones"`
	HighRiskZones  int       `json:"high_risk_zones"`
	AreaAtRiskKm2  float64   `json:"area_at_risk_km2"`
	GeoJSON        string    `json:"geojson" gorm:"type:text"`
}

func (l *LandslideAssessment) TableName() string {
	return "landslide_risks"
}
