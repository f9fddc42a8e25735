package alerts

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	alertpipe "github.com/afrostorm/hazard-monitor/pkg/alerts"
	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	traits "github.com/afrostorm/hazard-monitor/pkg/traits/controller-traits"
)

var alertTypes = map[string]bool{
	"cyclone":     true,
	"flood":       true,
	"landslide":   true,
	"outbreak":    true,
	"convergence": true,
}

// Test renders a synthetic alert without dispatching it.
func Test(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
			Language    string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}

		content := alertpipe.BuildContent(sampleCyclone())
		msg, err := app.Pipeline.Renderer().Render(content, req.Language)
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		traits.WriteResponse(w, map[string]interface{}{
			"success": true,
			"preview": msg.Plain,
		})
	}
}

// Send dispatches a real alert built from the request payload.
func Send(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req struct {
			AlertType string          `json:"alert_type"`
			Data      json.RawMessage `json:"data"`
			Language  string          `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !alertTypes[req.AlertType] {
			traits.WriteErrorResponse(w, http.StatusNotFound, "unknown alert type: "+req.AlertType)
			return
		}

		h, err := hazardFromRequest(req.AlertType, req.Data)
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := app.Pipeline.Dispatch(r.Context(), h, time.Now().UTC())
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}

		sent, failed := 0, 0
		alertID := ""
		for _, res := range results {
			if res.AlertID != "" && alertID == "" {
				alertID = res.AlertID
			}
			for _, rec := range res.Recipients {
				switch rec.Status {
				case "sent":
					sent++
				case "failed":
					failed++
				}
			}
		}

		content := alertpipe.BuildContent(h)
		msg, _ := app.Pipeline.Renderer().Render(content, "en")

		traits.WriteResponse(w, map[string]interface{}{
			"alert_id": alertID,
			"sent":     sent,
			"failed":   failed,
			"preview":  msg.Plain,
		})
	}
}

// History lists the alert log.
func History(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		rows, err := app.Store.ListAlerts(100)
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"total_alerts": len(rows),
			"alerts":       rows,
		})
	}
}

// Preview dry-run renders an alert type.
func Preview(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		alertType := p.ByName("alert_type")
		if !alertTypes[alertType] {
			traits.WriteErrorResponse(w, http.StatusNotFound, "unknown alert type: "+alertType)
			return
		}

		h := sampleHazard(alertType)
		content := alertpipe.BuildContent(h)
		msg, err := app.Pipeline.Renderer().Render(content, r.URL.Query().Get("language"))
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"message": msg.Plain,
		})
	}
}

// hazardFromRequest shapes the request payload into a canonical hazard.
func hazardFromRequest(alertType string, data json.RawMessage) (hazard.Hazard, error) {
	now := time.Now().UTC()
	switch alertType {
	case "cyclone":
		c := &hazard.Cyclone{}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, err
		}
		c.Kind = hazard.KindCyclone
		c.DetectionTime = now
		c.ThreatLevel = hazard.ClassifyWindKt(c.MaxWindKt)
		if err := c.Validate(now); err != nil {
			return nil, err
		}
		return c, nil
	case "flood":
		f := &hazard.Flood{}
		if err := json.Unmarshal(data, f); err != nil {
			return nil, err
		}
		f.Kind = hazard.KindFlood
		f.DetectionTime = now
		if err := f.Validate(now); err != nil {
			return nil, err
		}
		return f, nil
	case "landslide":
		l := &hazard.LandslideRisk{}
		if err := json.Unmarshal(data, l); err != nil {
			return nil, err
		}
		l.Kind = hazard.KindLandslide
		l.DetectionTime = now
		if err := l.Validate(now); err != nil {
			return nil, err
		}
		return l, nil
	default:
		c := &hazard.Convergence{}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, err
		}
		c.Kind = hazard.KindConvergence
		c.DetectionTime = now
		if err := c.ValidateBase(now); err != nil {
			return nil, err
		}
		return c, nil
	}
}

func sampleHazard(alertType string) hazard.Hazard {
	switch alertType {
	case "flood":
		return &hazard.Flood{
			Base: hazard.Base{
				ID:       "preview-flood",
				Kind:     hazard.KindFlood,
				Location: hazard.Point{Lat: -19.9, Lon: 34.9},
			},
			AreaKm2:  45.3,
			Severity: hazard.FloodMajor,
		}
	case "landslide":
		return &hazard.LandslideRisk{
			Base: hazard.Base{
				ID:       "preview-landslide",
				Kind:     hazard.KindLandslide,
				Location: hazard.Point{Lat: -19.5, Lon: 34.2},
			},
			RiskLevel:         hazard.RiskExtreme,
			RiskScore:         0.89,
			SlopeDeg:          35,
			RainfallMM:        220,
			Reason:            "very heavy rainfall, very steep slope",
			RecommendedAction: "Evacuate slopes and drainage channels immediately",
		}
	case "convergence":
		out := &hazard.Outbreak{Disease: "Cholera", Country: "Madagascar", Cases: 156, Severity: hazard.OutbreakHigh}
		return &hazard.Convergence{
			Base: hazard.Base{
				ID:       "preview-convergence",
				Kind:     hazard.KindConvergence,
				Location: hazard.Point{Lat: -18.9, Lon: 47.5},
			},
			Outbreak:   out,
			DistanceKm: 71.4,
			RiskScore:  0.85,
			Priority:   hazard.PriorityHigh,
		}
	default:
		return sampleCyclone()
	}
}

func sampleCyclone() hazard.Hazard {
	return &hazard.Cyclone{
		Base: hazard.Base{
			ID:       "preview-cyclone",
			Kind:     hazard.KindCyclone,
			Location: hazard.Point{Lat: -19.85, Lon: 34.84},
		},
		ThreatLevel:    hazard.ThreatCat2,
		MaxWindKt:      87.5,
		MinPressureHPa: 955,
	}
}
