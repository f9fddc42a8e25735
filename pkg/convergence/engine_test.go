package convergence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

func madagascarCyclone() *hazard.Cyclone {
	return &hazard.Cyclone{
		Base: hazard.Base{
			ID:            "cyc-2024011500-test",
			Kind:          hazard.KindCyclone,
			Location:      hazard.Point{Lat: -19.5, Lon: 47.25},
			DetectionTime: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Source:        "cyclone-forecast",
			Confidence:    0.9,
		},
		ThreatLevel:      hazard.ThreatTS,
		MaxWindKt:        45,
		TrackProbability: 1.0,
	}
}

func choleraOutbreak() hazard.Outbreak {
	return hazard.Outbreak{
		ID:       "outbreak-cholera-madagascar-antananarivo-20240114",
		Disease:  "Cholera",
		Country:  "Madagascar",
		Location: hazard.Point{Lat: -18.9, Lon: 47.5},
		Cases:    156,
		Deaths:   22,
		Severity: hazard.OutbreakHigh,
		Date:     time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetectConvergence(t *testing.T) {
	engine := NewEngine(500)
	now := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)

	convs := engine.Detect([]*hazard.Cyclone{madagascarCyclone()}, []hazard.Outbreak{choleraOutbreak()}, now)
	require.Len(t, convs, 1)

	conv := convs[0]
	assert.InDelta(t, 71.4, conv.DistanceKm, 0.5)
	assert.Equal(t, hazard.PriorityHigh, conv.Priority)

	// 0.3*(1-71.4/500) + 0.3*0.8 + 0.2*1.0 + 0.2*min(156/200,1)
	assert.InDelta(t, 0.853, conv.RiskScore, 0.005)

	assert.Equal(t, "cyc-2024011500-test", conv.CycloneID)
	assert.Equal(t, choleraOutbreak().ID, conv.OutbreakID)
}

func TestDetectRespectsDistanceThreshold(t *testing.T) {
	engine := NewEngine(500)
	now := time.Now().UTC()

	far := choleraOutbreak()
	far.Location = hazard.Point{Lat: -4.325, Lon: 15.322} // Kinshasa, thousands of km away

	convs := engine.Detect([]*hazard.Cyclone{madagascarCyclone()}, []hazard.Outbreak{far}, now)
	assert.Empty(t, convs)
}

func TestDetectContentAddressing(t *testing.T) {
	engine := NewEngine(500)
	now := time.Now().UTC()

	// The same outbreak twice must collapse to one convergence.
	convs := engine.Detect(
		[]*hazard.Cyclone{madagascarCyclone()},
		[]hazard.Outbreak{choleraOutbreak(), choleraOutbreak()},
		now,
	)
	assert.Len(t, convs, 1)
}

func TestPriorityForDistanceBoundary(t *testing.T) {
	assert.Equal(t, hazard.PriorityMedium, PriorityForDistance(200.0))
	assert.Equal(t, hazard.PriorityHigh, PriorityForDistance(199.9))
	assert.Equal(t, hazard.PriorityMedium, PriorityForDistance(499.0))
}

func TestRiskScoreSeverityWeights(t *testing.T) {
	c := madagascarCyclone()

	low := choleraOutbreak()
	low.Severity = hazard.OutbreakLow
	high := choleraOutbreak()

	assert.Greater(t, RiskScore(c, &high, 100), RiskScore(c, &low, 100))

	// Case load saturates at 200.
	big := choleraOutbreak()
	big.Cases = 10000
	capped := choleraOutbreak()
	capped.Cases = 200
	assert.Equal(t, RiskScore(c, &capped, 100), RiskScore(c, &big, 100))
}
