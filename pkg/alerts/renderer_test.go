package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

func TestEnglishRendererCyclone(t *testing.T) {
	r, err := NewEnglishRenderer("https://alerts.example.org/t")
	require.NoError(t, err)

	content := BuildContent(&hazard.Cyclone{
		Base: hazard.Base{
			ID:       "cyc-test",
			Kind:     hazard.KindCyclone,
			Location: hazard.Point{Lat: -19.85, Lon: 34.84},
		},
		ThreatLevel:    hazard.ThreatCat2,
		MaxWindKt:      87.5,
		MinPressureHPa: 955,
	})
	content.TrackingID = "abcdef0123456789"

	msg, err := r.Render(content, "en")
	require.NoError(t, err)

	assert.Contains(t, msg.Plain, "CYCLONE ALERT - CAT2")
	assert.Contains(t, msg.Plain, "88 kt")
	assert.Contains(t, msg.Plain, "955 hPa")
	assert.NotEmpty(t, msg.Subject)

	// The HTML variant embeds the 1x1 tracking pixel.
	assert.Contains(t, msg.HTML, `<img src="https://alerts.example.org/t/abcdef0123456789.png" width="1" height="1"`)
}

func TestEnglishRendererConvergence(t *testing.T) {
	r, err := NewEnglishRenderer("http://localhost:8080/t")
	require.NoError(t, err)

	content := BuildContent(&hazard.Convergence{
		Base: hazard.Base{
			ID:       "conv-test",
			Kind:     hazard.KindConvergence,
			Location: hazard.Point{Lat: -18.9, Lon: 47.5},
		},
		Outbreak:   &hazard.Outbreak{Disease: "Cholera", Country: "Madagascar", Cases: 156, Severity: hazard.OutbreakHigh},
		DistanceKm: 71.4,
		RiskScore:  0.853,
		Priority:   hazard.PriorityHigh,
	})

	msg, err := r.Render(content, "")
	require.NoError(t, err)

	assert.Contains(t, msg.Plain, "CONVERGENCE")
	assert.Contains(t, msg.Plain, "Madagascar")
	assert.Contains(t, msg.Plain, "71 km apart")
	assert.Contains(t, msg.Subject, "Cholera")
}

func TestEnglishRendererRejectsUnknown(t *testing.T) {
	r, err := NewEnglishRenderer("http://localhost:8080/t")
	require.NoError(t, err)

	_, err = r.Render(Content{Type: "meteorite"}, "en")
	assert.Error(t, err)

	_, err = r.Render(Content{Type: "cyclone"}, "sw")
	assert.Error(t, err, "non-English locales come from the pluggable renderer")
}

func TestEnglishRendererNoPixelWithoutTrackingID(t *testing.T) {
	r, err := NewEnglishRenderer("http://localhost:8080/t")
	require.NoError(t, err)

	msg, err := r.Render(Content{Type: "flood", Title: "Flood Alert", Fields: map[string]string{
		"severity": "major", "position": "-19.90, 39.30", "area_km2": "45.3",
	}}, "en")
	require.NoError(t, err)

	assert.NotContains(t, msg.HTML, "<img")
}
