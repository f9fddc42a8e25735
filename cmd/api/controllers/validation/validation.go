package validation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/store"
	traits "github.com/afrostorm/hazard-monitor/pkg/traits/controller-traits"
	"github.com/afrostorm/hazard-monitor/pkg/validation"
)

// Cyclones lists the historical storms available for benchmarking.
func Cyclones(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		traits.WriteResponse(w, validation.ReferenceCyclones())
	}
}

// Reconcile attaches a ground-truth event to an alert.
func Reconcile(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req struct {
			AlertID      string    `json:"alert_id"`
			EventType    string    `json:"event_type"`
			EventDate    time.Time `json:"event_date"`
			ActualImpact string    `json:"actual_impact"`
			Notes        string    `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AlertID == "" || req.EventType == "" || req.EventDate.IsZero() {
			traits.WriteErrorResponse(w, http.StatusBadRequest, "alert_id, event_type and event_date are required")
			return
		}

		ev, err := app.Ledger.Reconcile(req.AlertID, req.EventType, req.EventDate, req.ActualImpact, req.Notes)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				traits.WriteErrorResponse(w, http.StatusNotFound, err.Error())
				return
			}
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		traits.WriteResponse(w, ev)
	}
}

// Stats publishes the accuracy aggregates.
func Stats(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		stats, err := app.Ledger.Stats()
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		traits.WriteResponse(w, stats)
	}
}
