// Package validation reconciles emitted alerts with ground-truth
// outcomes and publishes lead-time statistics.
package validation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// Ledger attaches ground-truth events to alerts. The alert row itself is
// the pending stub: it is written unvalidated at dispatch and flipped
// here on reconciliation.
type Ledger struct {
	store *store.Store
}

// NewLedger wires the ledger to the store.
func NewLedger(st *store.Store) *Ledger {
	return &Ledger{store: st}
}

// Reconcile attaches one ground-truth event to an alert. The lead time
// is the gap between the alert's dispatch and the observed event.
func (l *Ledger) Reconcile(alertID, eventType string, eventDate time.Time, actualImpact, notes string) (*models.ValidationEvent, error) {
	ev := &models.ValidationEvent{
		EventType: eventType,
		EventDate: eventDate.UTC(),
	}
	if actualImpact != "" {
		ev.ActualImpact = &actualImpact
	}
	if notes != "" {
		ev.AccuracyNotes = &notes
	}

	if err := l.store.RecordValidation(alertID, ev); err != nil {
		return nil, err
	}

	if ev.LeadTimeHours != nil {
		zap.S().Infof("Alert %s validated: %s observed with %.1f h lead time", alertID, eventType, *ev.LeadTimeHours)
	}
	return ev, nil
}

// Stats are the published accuracy aggregates.
type Stats struct {
	TotalAlerts       int64   `json:"total_alerts"`
	OpenRate          float64 `json:"open_rate"`
	ValidatedRate     float64 `json:"validated_rate"`
	MeanLeadTimeHours float64 `json:"mean_lead_time_hours"`
}

// Stats computes open rate, validated rate and mean lead time.
func (l *Ledger) Stats() (Stats, error) {
	raw, err := l.store.AlertStats()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute validation stats: %w", err)
	}

	st := Stats{
		TotalAlerts:       raw.TotalAlerts,
		MeanLeadTimeHours: raw.MeanLeadTimeHours,
	}
	if raw.TotalAlerts > 0 {
		st.OpenRate = float64(raw.OpenedAlerts) / float64(raw.TotalAlerts)
		st.ValidatedRate = float64(raw.ValidatedAlerts) / float64(raw.TotalAlerts)
	}
	return st, nil
}

// ReferenceCyclone is one historical storm the system is benchmarked
// against.
type ReferenceCyclone struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Year      int     `json:"year"`
	Basin     string  `json:"basin"`
	Landfall  string  `json:"landfall"`
	LandfallT string  `json:"landfall_time"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Deaths    int     `json:"deaths"`
}

// ReferenceCyclones lists the historical storms available for
// benchmarking.
func ReferenceCyclones() []ReferenceCyclone {
	return []ReferenceCyclone{
		{
			ID: "idai-2019", Name: "Idai", Year: 2019, Basin: "SWIO",
			Landfall: "Beira, Mozambique", LandfallT: "2019-03-14T21:00:00Z",
			Lat: -19.8314, Lon: 34.8370, Deaths: 1303,
		},
		{
			ID: "kenneth-2019", Name: "Kenneth", Year: 2019, Basin: "SWIO",
			Landfall: "Cabo Delgado, Mozambique", LandfallT: "2019-04-25T17:00:00Z",
			Lat: -12.25, Lon: 40.55, Deaths: 52,
		},
		{
			ID: "freddy-2023", Name: "Freddy", Year: 2023, Basin: "SWIO",
			Landfall: "Quelimane, Mozambique", LandfallT: "2023-03-11T21:00:00Z",
			Lat: -17.88, Lon: 36.89, Deaths: 1434,
		},
	}
}
