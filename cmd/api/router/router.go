package router

import (
	"github.com/julienschmidt/httprouter"

	alertsctl "github.com/afrostorm/hazard-monitor/cmd/api/controllers/alerts"
	"github.com/afrostorm/hazard-monitor/cmd/api/controllers/hazards"
	monitorctl "github.com/afrostorm/hazard-monitor/cmd/api/controllers/monitor"
	"github.com/afrostorm/hazard-monitor/cmd/api/controllers/tracking"
	validationctl "github.com/afrostorm/hazard-monitor/cmd/api/controllers/validation"
	"github.com/afrostorm/hazard-monitor/pkg/application"
)

func Api(app *application.Application) *httprouter.Router {
	mux := httprouter.New()

	// Unified hazard feed
	mux.GET("/hazards/realtime", hazards.Realtime(app))
	mux.GET("/hazards/cyclones", hazards.Cyclones(app))
	mux.GET("/hazards/floods", hazards.Floods(app))
	mux.GET("/hazards/landslides", hazards.Landslides(app))
	mux.GET("/hazards/convergences", hazards.Convergences(app))
	mux.GET("/hazards/summary", hazards.Summary(app))
	mux.GET("/hazards/by-region/:region", hazards.ByRegion(app))
	mux.GET("/hazards/health", hazards.Health(app))

	// Alerts
	mux.POST("/alerts/test", alertsctl.Test(app))
	mux.POST("/alerts/send", alertsctl.Send(app))
	mux.GET("/alerts/history", alertsctl.History(app))
	mux.GET("/alerts/preview/:alert_type", alertsctl.Preview(app))

	// Tracking pixel
	mux.GET("/t/:file", tracking.Open(app))

	// Validation ledger
	mux.GET("/validation/cyclones", validationctl.Cyclones(app))
	mux.POST("/validation/reconcile", validationctl.Reconcile(app))
	mux.GET("/validation/stats", validationctl.Stats(app))

	// Administrative triggers
	mux.POST("/monitor/run", monitorctl.Run(app))
	mux.GET("/monitor/runs", monitorctl.Runs(app))

	return mux
}
