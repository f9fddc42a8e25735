package hazards

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/afrostorm/hazard-monitor/pkg/alerts"
	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	traits "github.com/afrostorm/hazard-monitor/pkg/traits/controller-traits"
)

// parseBBox parses "minLon,minLat,maxLon,maxLat". Nil means unfiltered.
func parseBBox(raw string) (*hazard.BBox, bool) {
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		vals[i] = f
	}
	return &hazard.BBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, true
}

func parsePositiveInt(raw string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Realtime serves the unified hazard feed.
func Realtime(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		hours, ok := parsePositiveInt(r.URL.Query().Get("hours"), 24)
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		bbox, ok := parseBBox(r.URL.Query().Get("bbox"))
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid bbox parameter")
			return
		}

		snap, err := app.Query.Realtime(r.Context(), hours, bbox)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, snap)
	}
}

// Cyclones serves the cyclone-only view.
func Cyclones(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		hours, ok := parsePositiveInt(r.URL.Query().Get("hours"), 24)
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}

		cyclones, err := app.Query.Cyclones(r.Context(), hours)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"count":    len(cyclones),
			"cyclones": cyclones,
		})
	}
}

// Floods serves the flood-only view.
func Floods(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		days, ok := parsePositiveInt(r.URL.Query().Get("days"), 2)
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		bbox, ok := parseBBox(r.URL.Query().Get("bbox"))
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid bbox parameter")
			return
		}

		floods, err := app.Query.Floods(r.Context(), days, bbox)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"count":  len(floods),
			"floods": floods,
		})
	}
}

// Landslides serves the landslide risk view.
func Landslides(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		bbox, ok := parseBBox(r.URL.Query().Get("bbox"))
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid bbox parameter")
			return
		}

		landslides, err := app.Query.Landslides(r.Context(), bbox)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"count":      len(landslides),
			"landslides": landslides,
		})
	}
}

// Convergences serves the recomputed convergence set.
func Convergences(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		hours, ok := parsePositiveInt(r.URL.Query().Get("hours"), 24)
		if !ok {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}

		convs, err := app.Query.Convergences(r.Context(), hours)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"convergences": convs,
		})
	}
}

// Summary serves the counts snapshot.
func Summary(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		summary, err := app.Query.Summarize(r.Context())
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, summary)
	}
}

// ByRegion serves the feed filtered to a named region box.
func ByRegion(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		region := p.ByName("region")
		box, ok := alerts.RegionBox(region)
		if !ok {
			traits.WriteErrorResponse(w, http.StatusNotFound, "unknown region: "+region)
			return
		}

		snap, err := app.Query.Realtime(r.Context(), 24, &box)
		if err != nil {
			traits.WriteUnavailableResponse(w, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"region":       region,
			"bounds":       box,
			"cyclones":     snap.Cyclones,
			"floods":       snap.Floods,
			"landslides":   snap.Landslides,
			"waterlogged":  snap.Waterlogged,
			"convergences": snap.Convergences,
			"summary":      snap.Summary,
			"lastUpdated":  snap.LastUpdated,
		})
	}
}

// Health serves the liveness probe.
func Health(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		traits.WriteResponse(w, map[string]interface{}{
			"status":              "healthy",
			"detectors_available": true,
			"timestamp":           time.Now().UTC(),
		})
	}
}
