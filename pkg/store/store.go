// Package store owns all persisted state. Every other component holds
// only transient views obtained by query.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the embedded database with the operations the pipeline
// needs. Writes are short transactions per record.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and runs
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		return nil, err
	}
	return st, nil
}

// New wraps an existing gorm handle (used by tests).
func New(db *gorm.DB) (*Store, error) {
	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&models.Detection{},
		&models.FloodEvent{},
		&models.LandslideAssessment{},
		&models.SentAlert{},
		&models.TrackingOpen{},
		&models.ValidationEvent{},
		&models.MonitorRun{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for read-only queries in controllers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InsertDetection persists one hazard record and returns the generated
// row id. Re-inserting a hazard id already present is a no-op returning
// the existing row id, which makes cycle re-runs idempotent.
func (s *Store) InsertDetection(h hazard.Hazard) (uint, error) {
	var existing models.Detection
	err := s.db.Where("hazard_id = ?", h.HazardID()).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to check detection %s: %w", h.HazardID(), err)
	}

	row, err := detectionRow(h)
	if err != nil {
		return 0, err
	}
	if err := s.db.Create(row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert detection %s: %w", h.HazardID(), err)
	}
	return row.ID, nil
}

func detectionRow(h hazard.Hazard) (*models.Detection, error) {
	loc := h.Where()
	row := &models.Detection{
		HazardID:      h.HazardID(),
		Kind:          string(h.HazardKind()),
		Timestamp:     time.Now().UTC(),
		DetectionTime: h.When(),
		Lat:           loc.Lat,
		Lon:           loc.Lon,
		Confidence:    h.Score(),
		Source:        h.Provider(),
	}

	switch v := h.(type) {
	case *hazard.Cyclone:
		threat := string(v.ThreatLevel)
		windKt := v.MaxWindKt
		windMS := v.MaxWindKt / hazard.KnotsPerMS
		pressure := v.MinPressureHPa
		prob := v.TrackProbability
		row.ThreatLevel = &threat
		row.MaxWindKt = &windKt
		row.MaxWindMS = &windMS
		row.MinPressureHPa = &pressure
		row.TrackProbability = &prob
		if len(v.Track) > 0 {
			raw, err := json.Marshal(v.Track)
			if err != nil {
				return nil, fmt.Errorf("failed to encode track for %s: %w", v.ID, err)
			}
			row.PayloadJSON = string(raw)
		}
	case *hazard.Flood:
		severity := string(v.Severity)
		area := v.AreaKm2
		wf := v.WaterFraction
		row.Severity = &severity
		row.AreaKm2 = &area
		row.WaterFraction = &wf
		raw, err := json.Marshal(v.Polygon)
		if err != nil {
			return nil, fmt.Errorf("failed to encode polygon for %s: %w", v.ID, err)
		}
		row.PayloadJSON = string(raw)
	case *hazard.LandslideRisk:
		level := string(v.RiskLevel)
		score := v.RiskScore
		slope := v.SlopeDeg
		rain := v.RainfallMM
		row.RiskLevel = &level
		row.RiskScore = &score
		row.SlopeDeg = &slope
		row.RainfallMM = &rain
		raw, err := json.Marshal(map[string]string{
			"reason":             v.Reason,
			"recommended_action": v.RecommendedAction,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode landslide payload for %s: %w", v.ID, err)
		}
		row.PayloadJSON = string(raw)
	default:
		return nil, fmt.Errorf("unsupported hazard type %T", h)
	}

	return row, nil
}

// ListDetections returns all detections of kind with detection_time
// after since, newest first.
func (s *Store) ListDetections(kind hazard.Kind, since time.Time) ([]models.Detection, error) {
	var rows []models.Detection
	err := s.db.Where("kind = ? AND detection_time > ?", string(kind), since).
		Order("detection_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s detections: %w", kind, err)
	}
	return rows, nil
}

// ListRecentDetections returns all kinds newer than since, newest first.
func (s *Store) ListRecentDetections(since time.Time) ([]models.Detection, error) {
	var rows []models.Detection
	err := s.db.Where("detection_time > ?", since).
		Order("detection_time DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	return rows, nil
}

// InsertAlert writes one alert row and returns its alert id.
func (s *Store) InsertAlert(a *models.SentAlert) (string, error) {
	if err := s.db.Create(a).Error; err != nil {
		return "", fmt.Errorf("failed to insert alert for %s/%s: %w", a.HazardID, a.Country, err)
	}
	return a.AlertID, nil
}

// AlertedWithin reports whether an alert for (hazardID, country) exists
// inside the sliding dedup window ending at now.
func (s *Store) AlertedWithin(hazardID, country string, window time.Duration, now time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.SentAlert{}).
		Where("hazard_id = ? AND country = ? AND sent_at > ?", hazardID, country, now.Add(-window)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check alert dedup for %s/%s: %w", hazardID, country, err)
	}
	return count > 0, nil
}

// RecordOpen inserts a tracking-pixel open event and idempotently sets
// the alert's first opened_at.
func (s *Store) RecordOpen(trackingID string, at time.Time, ip, ua string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		open := models.TrackingOpen{
			TrackingID: trackingID,
			OpenedAt:   at,
			IP:         ip,
			UserAgent:  ua,
		}
		if err := tx.Create(&open).Error; err != nil {
			return fmt.Errorf("failed to record open for %s: %w", trackingID, err)
		}
		err := tx.Model(&models.SentAlert{}).
			Where("tracking_pixel_id = ? AND opened_at IS NULL", trackingID).
			Update("opened_at", at).Error
		if err != nil {
			return fmt.Errorf("failed to mark alert opened for %s: %w", trackingID, err)
		}
		return nil
	})
}

// RecordValidation appends a validation event and marks the alert
// validated.
func (s *Store) RecordValidation(alertID string, ev *models.ValidationEvent) error {
	var alert models.SentAlert
	if err := s.db.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
		}
		return fmt.Errorf("failed to load alert %s: %w", alertID, err)
	}

	ev.AlertID = alertID
	if ev.LeadTimeHours == nil {
		lead := ev.EventDate.Sub(alert.SentAt).Hours()
		ev.LeadTimeHours = &lead
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("failed to insert validation event for %s: %w", alertID, err)
		}
		updates := map[string]interface{}{"validated": true}
		if ev.AccuracyNotes != nil {
			updates["validation_notes"] = *ev.AccuracyNotes
		}
		if err := tx.Model(&models.SentAlert{}).Where("alert_id = ?", alertID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark alert %s validated: %w", alertID, err)
		}
		return nil
	})
}

// Stats are the aggregate alert counters.
type Stats struct {
	TotalAlerts       int64   `json:"total_alerts"`
	OpenedAlerts      int64   `json:"opened_alerts"`
	ValidatedAlerts   int64   `json:"validated_alerts"`
	MeanLeadTimeHours float64 `json:"mean_lead_time_hours"`
}

// AlertStats returns the aggregate counters over all sent alerts.
func (s *Store) AlertStats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&models.SentAlert{}).Count(&st.TotalAlerts).Error; err != nil {
		return st, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := s.db.Model(&models.SentAlert{}).Where("opened_at IS NOT NULL").Count(&st.OpenedAlerts).Error; err != nil {
		return st, fmt.Errorf("failed to count opened alerts: %w", err)
	}
	if err := s.db.Model(&models.SentAlert{}).Where("validated = ?", true).Count(&st.ValidatedAlerts).Error; err != nil {
		return st, fmt.Errorf("failed to count validated alerts: %w", err)
	}

	var mean *float64
	err := s.db.Model(&models.ValidationEvent{}).
		Select("AVG(lead_time_hours)").
		Where("lead_time_hours IS NOT NULL").
		Scan(&mean).Error
	if err != nil {
		return st, fmt.Errorf("failed to compute mean lead time: %w", err)
	}
	if mean != nil {
		st.MeanLeadTimeHours = *mean
	}
	return st, nil
}

// ListAlerts returns the most recent alerts, newest first.
func (s *Store) ListAlerts(limit int) ([]models.SentAlert, error) {
	var rows []models.SentAlert
	q := s.db.Order("sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return rows, nil
}

// GetAlert loads one alert by alert id.
func (s *Store) GetAlert(alertID string) (*models.SentAlert, error) {
	var alert models.SentAlert
	if err := s.db.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load alert %s: %w", alertID, err)
	}
	return &alert, nil
}

// SaveFloodEvent writes the per-cycle flood aggregate.
func (s *Store) SaveFloodEvent(ev *models.FloodEvent) error {
	if err := s.db.Create(ev).Error; err != nil {
		return fmt.Errorf("failed to insert flood event: %w", err)
	}
	return nil
}

// SaveLandslideAssessment writes the per-cycle landslide aggregate.
func (s *Store) SaveLandslideAssessment(a *models.LandslideAssessment) error {
	if err := s.db.Create(a).Error; err != nil {
		return fmt.Errorf("failed to insert landslide assessment: %w", err)
	}
	return nil
}

// InsertMonitorRun appends one run-log row.
func (s *Store) InsertMonitorRun(run *models.MonitorRun) error {
	if err := s.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to insert monitor run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]models.MonitorRun, error) {
	var rows []models.MonitorRun
	q := s.db.Order("run_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return rows, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		zap.S().Warnf("Error closing database: %v", err)
		return err
	}
	return nil
}
