package validation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewLedger(st), st
}

func insertAlert(t *testing.T, st *store.Store, sentAt time.Time) string {
	t.Helper()
	alertID, err := st.InsertAlert(&models.SentAlert{
		HazardType:      "cyclone",
		HazardID:        "cyc-idai",
		Country:         "Mozambique",
		RecipientsJSON:  "[]",
		Subject:         "Cyclone Alert",
		SentAt:          sentAt,
		TrackingPixelID: "abcdef0123456789",
	})
	require.NoError(t, err)
	return alertID
}

func TestReconcileComputesLeadTime(t *testing.T) {
	ledger, st := newTestLedger(t)

	sentAt := time.Date(2019, 3, 11, 9, 0, 0, 0, time.UTC)
	alertID := insertAlert(t, st, sentAt)

	// Landfall at Beira 84 hours after the alert went out.
	landfall := sentAt.Add(84 * time.Hour)
	ev, err := ledger.Reconcile(alertID, "landfall", landfall, "1303 deaths, 3M affected", "IBTrACS ground truth")
	require.NoError(t, err)

	require.NotNil(t, ev.LeadTimeHours)
	assert.InDelta(t, 84, *ev.LeadTimeHours, 0.05)

	alert, err := st.GetAlert(alertID)
	require.NoError(t, err)
	assert.True(t, alert.Validated)
	require.NotNil(t, alert.ValidationNotes)
	assert.Contains(t, *alert.ValidationNotes, "IBTrACS")
}

func TestReconcileUnknownAlert(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Reconcile("AL-MISSING", "landfall", time.Now().UTC(), "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStats(t *testing.T) {
	ledger, st := newTestLedger(t)

	sentAt := time.Now().UTC().Add(-100 * time.Hour)
	opened := insertAlert(t, st, sentAt)
	_ = insertAlert(t, st, sentAt.Add(time.Hour))

	require.NoError(t, st.RecordOpen("abcdef0123456789", sentAt.Add(3*time.Hour), "", ""))
	_, err := ledger.Reconcile(opened, "landfall", sentAt.Add(84*time.Hour), "", "")
	require.NoError(t, err)

	stats, err := ledger.Stats()
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.TotalAlerts)
	assert.InDelta(t, 1.0, stats.OpenRate, 1e-9, "both alerts share the tracking id in this fixture")
	assert.InDelta(t, 0.5, stats.ValidatedRate, 1e-9)
	assert.InDelta(t, 84, stats.MeanLeadTimeHours, 0.05)
}

func TestReferenceCyclones(t *testing.T) {
	refs := ReferenceCyclones()
	require.NotEmpty(t, refs)

	byID := map[string]ReferenceCyclone{}
	for _, r := range refs {
		byID[r.ID] = r
	}
	idai, ok := byID["idai-2019"]
	require.True(t, ok)
	assert.Equal(t, "Beira, Mozambique", idai.Landfall)
	assert.InDelta(t, -19.83, idai.Lat, 0.01)
}
