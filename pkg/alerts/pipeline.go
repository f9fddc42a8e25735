package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// DedupWindow is the sliding window inside which a (hazard, country)
// pair alerts at most once.
const DedupWindow = 6 * time.Hour

const maxSendAttempts = 3

// RecipientOutcome is the per-recipient delivery record stored in the
// alert row.
type RecipientOutcome struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Channel   string `json:"channel"`
	Priority  int    `json:"priority"`
	Status    string `json:"status"` // sent, failed, no_provider
	Error     string `json:"error,omitempty"`
	AttemptID string `json:"attempt_id"`
}

// CountryAlert is the outcome of one (hazard, country) dispatch.
type CountryAlert struct {
	AlertID    string             `json:"alert_id"`
	Country    string             `json:"country"`
	TrackingID string             `json:"tracking_id"`
	Deduped    bool               `json:"deduped"`
	Recipients []RecipientOutcome `json:"recipients"`
}

// Pipeline routes hazards to countries, renders messages and dispatches
// them over the configured channels.
type Pipeline struct {
	store    *store.Store
	renderer MessageRenderer
	channels map[string]Channel
	timeouts map[string]time.Duration

	// backoff is injectable so tests do not sleep.
	backoff func(attempt int) time.Duration
}

// NewPipeline wires the pipeline. channels maps channel type to
// implementation; a missing type downgrades recipients to no_provider.
func NewPipeline(st *store.Store, renderer MessageRenderer, channels map[string]Channel, timeouts map[string]time.Duration) *Pipeline {
	return &Pipeline{
		store:    st,
		renderer: renderer,
		channels: channels,
		timeouts: timeouts,
		backoff: func(attempt int) time.Duration {
			if attempt <= 1 {
				return time.Second
			}
			return 5 * time.Second
		},
	}
}

// SetBackoff overrides the retry backoff (tests).
func (p *Pipeline) SetBackoff(f func(int) time.Duration) { p.backoff = f }

// Renderer exposes the message renderer for preview endpoints.
func (p *Pipeline) Renderer() MessageRenderer { return p.renderer }

// Dispatch fans one hazard out to its affected countries. One alert row
// is written per (hazard, country) regardless of per-recipient success.
// Pairs already alerted inside the dedup window are skipped.
func (p *Pipeline) Dispatch(ctx context.Context, h hazard.Hazard, now time.Time) ([]CountryAlert, error) {
	routes := RouteCountries(h.Where())
	if len(routes) == 0 {
		zap.S().Debugf("Hazard %s outside all routes, no alert dispatched", h.HazardID())
		return nil, nil
	}

	results := make([]CountryAlert, 0, len(routes))
	for _, country := range routes {
		deduped, err := p.store.AlertedWithin(h.HazardID(), country, DedupWindow, now)
		if err != nil {
			return results, err
		}
		if deduped {
			zap.S().Infof("Alert for %s/%s suppressed by dedup window", h.HazardID(), country)
			results = append(results, CountryAlert{Country: country, Deduped: true})
			continue
		}

		ca, err := p.dispatchCountry(ctx, h, country, now)
		if err != nil {
			return results, err
		}
		results = append(results, *ca)
	}
	return results, nil
}

func (p *Pipeline) dispatchCountry(ctx context.Context, h hazard.Hazard, country string, now time.Time) (*CountryAlert, error) {
	trackingID := NewTrackingID(h.HazardID(), country, now)

	content := BuildContent(h)
	content.TrackingID = trackingID

	msg, err := p.renderer.Render(content, "en")
	if err != nil {
		return nil, fmt.Errorf("failed to render alert for %s/%s: %w", h.HazardID(), country, err)
	}

	recipients := RecipientsFor(country)
	outcomes := make([]RecipientOutcome, 0, len(recipients))
	for _, r := range recipients {
		outcomes = append(outcomes, p.deliver(ctx, r, msg))
	}

	raw, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipient outcomes: %w", err)
	}

	alert := &models.SentAlert{
		HazardType:      string(h.HazardKind()),
		HazardID:        h.HazardID(),
		Country:         country,
		RecipientsJSON:  string(raw),
		Subject:         msg.Subject,
		SentAt:          now.UTC(),
		TrackingPixelID: trackingID,
	}
	alertID, err := p.store.InsertAlert(alert)
	if err != nil {
		return nil, err
	}

	sent := 0
	for _, o := range outcomes {
		if o.Status == "sent" {
			sent++
		}
	}
	zap.S().Infof("Alert %s: %d/%d recipients reached for %s (%s)", alertID, sent, len(outcomes), country, h.HazardKind())

	return &CountryAlert{
		AlertID:    alertID,
		Country:    country,
		TrackingID: trackingID,
		Recipients: outcomes,
	}, nil
}

// deliver sends to one recipient with up to two retries and exponential
// backoff inside the current dispatch.
func (p *Pipeline) deliver(ctx context.Context, r Recipient, msg Message) RecipientOutcome {
	outcome := RecipientOutcome{
		Name:      r.Name,
		Address:   r.Address,
		Channel:   r.Channel,
		Priority:  r.Priority,
		AttemptID: uuid.NewString(),
	}

	ch, ok := p.channels[r.Channel]
	if !ok {
		outcome.Status = "no_provider"
		return outcome
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		err := p.sendOnce(ctx, ch, r, msg)
		if err == nil {
			outcome.Status = "sent"
			return outcome
		}
		if errors.Is(err, ErrNoProvider) {
			outcome.Status = "no_provider"
			return outcome
		}

		lastErr = err
		zap.S().Warnf("Send to %s via %s failed (attempt %d/%d): %v", r.Address, r.Channel, attempt, maxSendAttempts, err)
		if attempt < maxSendAttempts {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				outcome.Status = "failed"
				outcome.Error = ctx.Err().Error()
				return outcome
			}
		}
	}

	outcome.Status = "failed"
	if lastErr != nil {
		outcome.Error = lastErr.Error()
	}
	return outcome
}

// sendOnce applies the per-channel timeout around a single attempt.
func (p *Pipeline) sendOnce(ctx context.Context, ch Channel, r Recipient, msg Message) error {
	if timeout, ok := p.timeouts[r.Channel]; ok && timeout > 0 {
		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ch.Send(sendCtx, r.Address, msg)
	}
	return ch.Send(ctx, r.Address, msg)
}

// BuildContent maps a hazard onto its renderer content.
func BuildContent(h hazard.Hazard) Content {
	loc := h.Where()
	position := fmt.Sprintf("%.2f, %.2f", loc.Lat, loc.Lon)

	switch v := h.(type) {
	case *hazard.Cyclone:
		return Content{
			Type:  "cyclone",
			Title: fmt.Sprintf("Cyclone Alert: %s system near %s", v.ThreatLevel, position),
			Fields: map[string]string{
				"threat_level":     string(v.ThreatLevel),
				"position":         position,
				"max_wind_kt":      fmt.Sprintf("%.0f", v.MaxWindKt),
				"min_pressure_hpa": fmt.Sprintf("%.0f", v.MinPressureHPa),
			},
		}
	case *hazard.Flood:
		return Content{
			Type:  "flood",
			Title: fmt.Sprintf("Flood Alert: %s flooding near %s", v.Severity, position),
			Fields: map[string]string{
				"severity": string(v.Severity),
				"position": position,
				"area_km2": fmt.Sprintf("%.1f", v.AreaKm2),
			},
		}
	case *hazard.LandslideRisk:
		return Content{
			Type:  "landslide",
			Title: fmt.Sprintf("Landslide Risk: %s at %s", v.RiskLevel, position),
			Fields: map[string]string{
				"risk_level":         string(v.RiskLevel),
				"position":           position,
				"rainfall_mm":        fmt.Sprintf("%.0f", v.RainfallMM),
				"slope_deg":          fmt.Sprintf("%.0f", v.SlopeDeg),
				"reason":             v.Reason,
				"recommended_action": v.RecommendedAction,
			},
		}
	case *hazard.Convergence:
		place := position
		if v.Outbreak != nil {
			place = v.Outbreak.Country
		}
		return Content{
			Type:  "convergence",
			Title: fmt.Sprintf("Critical Convergence: cyclone + %s outbreak in %s", outbreakDisease(v), place),
			Fields: map[string]string{
				"place":       place,
				"distance_km": fmt.Sprintf("%.0f", v.DistanceKm),
				"risk_score":  fmt.Sprintf("%.2f", v.RiskScore),
			},
		}
	default:
		return Content{
			Type:   "outbreak",
			Title:  fmt.Sprintf("Hazard Alert near %s", position),
			Fields: map[string]string{"position": position},
		}
	}
}

func outbreakDisease(c *hazard.Convergence) string {
	if c.Outbreak != nil {
		return c.Outbreak.Disease
	}
	return "disease"
}
