package models

import "time"

// Run status values. Skipped marks a tick that fired while the previous
// cycle was still running.
const (
	RunSuccess = "success"
	RunError   = "error"
	RunSkipped = "skipped"
)

// MonitorRun is the append-only log of scheduler cycles.
type MonitorRun struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	RunTime         time.Time `json:"run_time" gorm:"index;type:timestamp"`
	DataSource      string    `json:"data_source" gorm:"type:varchar(255)"`
	DetectionsCount int       `json:"detections_count"`
	AlertsSent      int       `json:"alerts_sent"`
	DurationSeconds float64   `json:"duration_seconds"`
	Status          string    `json:"status" gorm:"index;type:varchar(10)"`
	Error           *string   `json:"error,omitempty" gorm:"type:text"`
}

func (m *MonitorRun) TableName() string {
	return "monitor_runs"
}
