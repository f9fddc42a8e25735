package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/afrostorm/hazard-monitor/pkg/helpers"
)

// SentAlert records one alert dispatched for a (hazard, country) pair.
// Per-recipient outcomes are stored as JSON in RecipientsJSON.
type SentAlert struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	AlertID         string     `json:"alert_id" gorm:"uniqueIndex;type:varchar(32)"`
	HazardType      string     `json:"hazard_type" gorm:"type:varchar(20)"`
	HazardID        string     `json:"hazard_id" gorm:"index;type:varchar(128)"`
	Country         string     `json:"country" gorm:"index;type:varchar(64)"`
	RecipientsJSON  string     `json:"recipients_json" gorm:"type:text"`
	Subject         string     `json:"subject" gorm:"type:text"`
	SentAt          time.Time  `json:"sent_at" gorm:"index;type:timestamp"`
	TrackingPixelID string     `json:"tracking_pixel_id" gorm:"index;type:char(16)"`
	OpenedAt        *time.Time `json:"opened_at,omitempty" gorm:"type:timestamp"`
	Validated       bool       `json:"validated"`
	ValidationNotes *string    `json:"validation_notes,omitempty" gorm:"type:text"`
}

func (a *SentAlert) TableName() string {
	return "sent_alerts"
}

// BeforeCreate assigns a ULID-based alert id when the caller left it empty.
func (a *SentAlert) BeforeCreate(tx *gorm.DB) (err error) {
	if a.AlertID == "" {
		a.AlertID = "AL-" + helpers.NewULID()
	}
	return nil
}

// TrackingOpen is one tracking-pixel hit.
type TrackingOpen struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TrackingID string    `json:"tracking_id" gorm:"index;type:char(16)"`
	OpenedAt   time.Time `json:"opened_at" gorm:"type:timestamp"`
	IP         string    `json:"ip,omitempty" gorm:"type:varchar(64)"`
	UserAgent  string    `json:"ua,omitempty" gorm:"type:text"`
}

func (t *TrackingOpen) TableName() string {
	return "tracking_opens"
}

// ValidationEvent reconciles an alert with a ground-truth outcome.
type ValidationEvent struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AlertID       string    `json:"alert_id" gorm:"index;type:varchar(32)"`
	EventType     string    `json:"event_type" gorm:"type:varchar(32)"`
	EventDate     time.Time `json:"event_date" gorm:"type:timestamp"`
	ActualImpact  *string   `json:"actual_impact,omitempty" gorm:"type:text"`
	LeadTimeHours *float64  `json:"lead_time_hours,omitempty"`
	AccuracyNotes *string   `json:"accuracy_notes,omitempty" gorm:"type:text"`
}

func (v *ValidationEvent) TableName() string {
	return "validation_events"
}
