package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "hazards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testCyclone(id string, detected time.Time) *hazard.Cyclone {
	return &hazard.Cyclone{
		Base: hazard.Base{
			ID:            id,
			Kind:          hazard.KindCyclone,
			Location:      hazard.Point{Lat: -19.85, Lon: 34.84},
			DetectionTime: detected,
			Source:        "reanalysis-grid",
			Confidence:    0.9,
		},
		ThreatLevel:      hazard.ThreatCat2,
		MaxWindKt:        87.5,
		MinPressureHPa:   955,
		TrackProbability: 0.8,
	}
}

func TestInsertDetectionIdempotent(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	id1, err := st.InsertDetection(testCyclone("cyc-a", now))
	require.NoError(t, err)
	assert.NotZero(t, id1)

	// Same hazard id again: same row, no duplicate.
	id2, err := st.InsertDetection(testCyclone("cyc-a", now))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	rows, err := st.ListDetections(hazard.KindCyclone, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestListDetectionsWindowAndOrder(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	_, err := st.InsertDetection(testCyclone("cyc-old", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = st.InsertDetection(testCyclone("cyc-mid", now.Add(-12*time.Hour)))
	require.NoError(t, err)
	_, err = st.InsertDetection(testCyclone("cyc-new", now.Add(-1*time.Hour)))
	require.NoError(t, err)

	rows, err := st.ListDetections(hazard.KindCyclone, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cyc-new", rows[0].HazardID, "newest first")
	assert.Equal(t, "cyc-mid", rows[1].HazardID)
}

func TestCycloneRowRoundTrip(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	c := testCyclone("cyc-rt", now.Add(-time.Hour))
	c.Track = []hazard.TrackPoint{
		{Time: now.Add(-12 * time.Hour), Lat: -18, Lon: 36, WindKt: 60, PressureHPa: 980},
		{Time: now.Add(-6 * time.Hour), Lat: -19, Lon: 35, WindKt: 85, PressureHPa: 958},
	}
	_, err := st.InsertDetection(c)
	require.NoError(t, err)

	rows, err := st.ListDetections(hazard.KindCyclone, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := CycloneFromRow(rows[0])
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.ThreatLevel, got.ThreatLevel)
	assert.InDelta(t, c.MaxWindKt, got.MaxWindKt, 1e-9)
	assert.InDelta(t, c.MinPressureHPa, got.MinPressureHPa, 1e-9)
	assert.InDelta(t, c.TrackProbability, got.TrackProbability, 1e-9)
	require.Len(t, got.Track, 2)
	assert.InDelta(t, 85.0, got.Track[1].WindKt, 1e-9)
}

func TestAlertLifecycle(t *testing.T) {
	st := newTestStore(t)
	sentAt := time.Now().UTC().Add(-84 * time.Hour).Truncate(time.Second)

	alertID, err := st.InsertAlert(&models.SentAlert{
		HazardType:      "cyclone",
		HazardID:        "cyc-a",
		Country:         "Mozambique",
		RecipientsJSON:  "[]",
		Subject:         "Cyclone Alert",
		SentAt:          sentAt,
		TrackingPixelID: "abcdef0123456789",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, alertID)

	// Tracking pixel opened twice: only the first open sets opened_at.
	firstOpen := sentAt.Add(2 * time.Hour)
	require.NoError(t, st.RecordOpen("abcdef0123456789", firstOpen, "196.28.0.1", "curl/8"))
	require.NoError(t, st.RecordOpen("abcdef0123456789", firstOpen.Add(time.Hour), "196.28.0.2", "curl/8"))

	alert, err := st.GetAlert(alertID)
	require.NoError(t, err)
	require.NotNil(t, alert.OpenedAt)
	assert.True(t, alert.OpenedAt.Equal(firstOpen))
	assert.False(t, alert.OpenedAt.Before(alert.SentAt), "opens never precede dispatch")

	// Ground truth arrives 84 h after dispatch.
	landfall := sentAt.Add(84 * time.Hour)
	require.NoError(t, st.RecordValidation(alertID, &models.ValidationEvent{
		EventType: "landfall",
		EventDate: landfall,
	}))

	alert, err = st.GetAlert(alertID)
	require.NoError(t, err)
	assert.True(t, alert.Validated)

	stats, err := st.AlertStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalAlerts)
	assert.Equal(t, int64(1), stats.OpenedAlerts)
	assert.Equal(t, int64(1), stats.ValidatedAlerts)
	assert.InDelta(t, 84, stats.MeanLeadTimeHours, 0.05)
}

func TestRecordValidationUnknownAlert(t *testing.T) {
	st := newTestStore(t)

	err := st.RecordValidation("AL-MISSING", &models.ValidationEvent{
		EventType: "landfall",
		EventDate: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlertedWithin(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	_, err := st.InsertAlert(&models.SentAlert{
		HazardType:      "cyclone",
		HazardID:        "cyc-a",
		Country:         "Mozambique",
		RecipientsJSON:  "[]",
		SentAt:          now.Add(-time.Hour),
		TrackingPixelID: "0123456789abcdef",
	})
	require.NoError(t, err)

	hit, err := st.AlertedWithin("cyc-a", "Mozambique", 6*time.Hour, now)
	require.NoError(t, err)
	assert.True(t, hit)

	miss, err := st.AlertedWithin("cyc-a", "Madagascar", 6*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, miss)

	expired, err := st.AlertedWithin("cyc-a", "Mozambique", 6*time.Hour, now.Add(7*time.Hour))
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestMonitorRunLog(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	note := "sar-flood: provider not configured"
	require.NoError(t, st.InsertMonitorRun(&models.MonitorRun{
		RunTime:         now.Add(-time.Hour),
		DataSource:      "cyclone,flood,landslide,outbreak-surveillance",
		DetectionsCount: 3,
		AlertsSent:      1,
		DurationSeconds: 12.5,
		Status:          models.RunSuccess,
		Error:           &note,
	}))
	require.NoError(t, st.InsertMonitorRun(&models.MonitorRun{
		RunTime: now,
		Status:  models.RunSkipped,
	}))

	runs, err := st.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, models.RunSkipped, runs[0].Status)
	assert.Equal(t, models.RunSuccess, runs[1].Status)
	require.NotNil(t, runs[1].Error)
	assert.Contains(t, *runs[1].Error, "sar-flood")
}

func TestAlertIDAssignedOnCreate(t *testing.T) {
	st := newTestStore(t)

	alert := &models.SentAlert{
		HazardType:      "flood",
		HazardID:        "flood-a",
		Country:         "Malawi",
		RecipientsJSON:  "[]",
		SentAt:          time.Now().UTC(),
		TrackingPixelID: "fedcba9876543210",
	}
	alertID, err := st.InsertAlert(alert)
	require.NoError(t, err)
	assert.Regexp(t, `^AL-[0-9A-Z]{26}$`, alertID)
}
