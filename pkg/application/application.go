package application

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/alerts"
	"github.com/afrostorm/hazard-monitor/pkg/config"
	"github.com/afrostorm/hazard-monitor/pkg/convergence"
	"github.com/afrostorm/hazard-monitor/pkg/detectors"
	"github.com/afrostorm/hazard-monitor/pkg/logger"
	"github.com/afrostorm/hazard-monitor/pkg/monitor"
	"github.com/afrostorm/hazard-monitor/pkg/query"
	"github.com/afrostorm/hazard-monitor/pkg/store"
	"github.com/afrostorm/hazard-monitor/pkg/validation"
)

// Application is the dependency container created at startup and torn
// down on the shutdown signal.
type Application struct {
	Cfg      *config.Config
	Store    *store.Store
	Monitor  *monitor.Monitor
	Query    *query.Service
	Pipeline *alerts.Pipeline
	Ledger   *validation.Ledger

	Outbreaks *adapters.OutbreakAdapter

	cancelJobs context.CancelFunc
	jobs       sync.WaitGroup
}

// Start loads configuration, opens the store and wires every component.
func Start() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel, cfg.LogFile)
	zap.S().Info("Starting AFRO Storm hazard monitor")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	basin := cfg.Basin()

	reanalysis := adapters.NewReanalysisAdapter(cfg.ReanalysisURL, cfg.BulkTimeout)
	forecast := adapters.NewForecastAdapter(cfg.ForecastURL, cfg.FetchTimeout)
	sarflood := adapters.NewSARFloodAdapter(cfg.FloodURL, cfg.FetchTimeout)
	terrain := adapters.NewTerrainAdapter(cfg.TerrainURL, basin, cfg.BulkTimeout)
	outbreaks := adapters.NewOutbreakAdapter(cfg.OutbreakURL, cfg.FetchTimeout)

	dets := []detectors.Detector{
		detectors.NewCycloneDetector(reanalysis, forecast, basin, cfg.MinPressureHPa, cfg.MinWindMS),
		detectors.NewFloodDetector(sarflood, "african-basin", basin, cfg.MinFloodAreaKm2),
		detectors.NewLandslideDetector(terrain, "african-basin", basin, cfg.MaxLandslideZones),
	}

	engine := convergence.NewEngine(cfg.ConvergenceDistanceKm)

	renderer, err := alerts.NewEnglishRenderer(cfg.TrackingPixelBase)
	if err != nil {
		return nil, err
	}
	channels := map[string]alerts.Channel{
		"webhook": &alerts.WebhookChannel{Client: &http.Client{Timeout: cfg.WebhookTimeout}},
	}
	if cfg.EmailConfigured() {
		channels["email"] = &alerts.EmailChannel{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
		}
	}
	if cfg.SMSConfigured() {
		channels["sms"] = &alerts.SMSChannel{
			APIURL: cfg.SMSAPIURL,
			APIKey: cfg.SMSAPIKey,
			Client: &http.Client{Timeout: cfg.WebhookTimeout},
		}
	}
	timeouts := map[string]time.Duration{
		"email":   cfg.SMTPTimeout,
		"webhook": cfg.WebhookTimeout,
		"sms":     cfg.WebhookTimeout,
	}
	pipeline := alerts.NewPipeline(st, renderer, channels, timeouts)

	mon := monitor.New(cfg.CheckInterval(), dets, outbreaks, engine, pipeline, st)
	qs := query.NewService(st, outbreaks, engine, cfg.CacheTTL())
	ledger := validation.NewLedger(st)

	return &Application{
		Cfg:       cfg,
		Store:     st,
		Monitor:   mon,
		Query:     qs,
		Pipeline:  pipeline,
		Ledger:    ledger,
		Outbreaks: outbreaks,
	}, nil
}

// StartBackgroundJobs launches the continuous monitor daemon.
func (app *Application) StartBackgroundJobs() {
	ctx, cancel := context.WithCancel(context.Background())
	app.cancelJobs = cancel

	app.jobs.Add(1)
	go func() {
		defer app.jobs.Done()
		app.Monitor.RunContinuous(ctx)
	}()
}

// StopBackgroundJobs signals the daemon and waits for the in-flight
// cycle to reach persistence quiescence.
func (app *Application) StopBackgroundJobs() {
	if app.cancelJobs != nil {
		app.cancelJobs()
	}
	app.jobs.Wait()
}

// Close releases held resources.
func (app *Application) Close() {
	if err := app.Store.Close(); err != nil {
		zap.S().Warnf("Error closing store: %v", err)
	}
}
