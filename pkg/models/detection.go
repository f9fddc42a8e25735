package models

import (
	"time"
)

// Detection is one persisted hazard record. Optional columns are nil for
// kinds that do not carry them.
type Detection struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	HazardID       string    `json:"hazard_id" gorm:"index:idx_detections_hazard,unique;type:varchar(128)"`
	Kind           string    `json:"kind" gorm:"index;type:varchar(20)"`
	Timestamp      time.Time `json:"timestamp" gorm:"type:timestamp"`
	DetectionTime  time.Time `json:"detection_time" gorm:"index;type:timestamp"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	MinPressureHPa *float64  `json:"min_pressure_hpa,omitempty"`
	MaxWindMS      *float64  `json:"max_wind_ms,omitempty"`
	MaxWindKt      *float64  `json:"max_wind_kt,omitempty"`
	Confidence     float64   `json:"confidence"`
	Source         string    `json:"source" gorm:"type:varchar(64)"`
	TrackProbability *float64 `json:"track_probability,omitempty"`
	ThreatLevel    *string   `json:"threat_level,omitempty" gorm:"type:varchar(10)"`
	Severity       *string   `json:"severity,omitempty" gorm:"type:varchar(20)"`
	RiskLevel      *string   `json:"risk_level,omitempty" gorm:"type:varchar(10)"`
	RiskScore      *float64  `json:"risk_score,omitempty"`
	SlopeDeg       *float64  `json:"slope_deg,omitempty"`
	RainfallMM     *float64  `json:"rainfall_mm,omitempty"`
	AreaKm2        *float64  `json:"area_km2,omitempty"`
	WaterFraction  *float64  `json:"water_fraction,omitempty"`
	PayloadJSON    string    `json:"-" gorm:"type:text"`
}

func (d *Detection) TableName() string {
	return "detections"
}
