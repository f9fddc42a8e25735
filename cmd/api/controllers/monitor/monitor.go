package monitor

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/afrostorm/hazard-monitor/pkg/application"
	traits "github.com/afrostorm/hazard-monitor/pkg/traits/controller-traits"
)

// Run triggers one cycle synchronously; an overlapping trigger is
// skipped and recorded like any other tick.
func Run(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		run, err := app.Monitor.RunOnce(r.Context())
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		traits.WriteResponse(w, run)
	}
}

// Runs lists the recent run log.
func Runs(app *application.Application) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		rows, err := app.Store.ListRuns(50)
		if err != nil {
			traits.WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		traits.WriteResponse(w, map[string]interface{}{
			"total": len(rows),
			"runs":  rows,
		})
	}
}
