package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

// Config holds the full runtime configuration, loaded once from the
// environment at startup.
type Config struct {
	// Scheduler
	CheckIntervalHours int `validate:"min=1,max=24"`

	// Cyclone detection basin and thresholds
	BasinNorth     float64 `validate:"gte=-90,lte=90"`
	BasinSouth     float64 `validate:"gte=-90,lte=90"`
	BasinWest      float64 `validate:"gte=-180,lte=180"`
	BasinEast      float64 `validate:"gte=-180,lte=180"`
	MinPressureHPa float64 `validate:"gt=0"`
	MinWindMS      float64 `validate:"gte=0"`

	// Flood and landslide thresholds
	MinFloodAreaKm2   float64 `validate:"gte=0"`
	MaxLandslideZones int     `validate:"min=1"`

	// Convergence
	ConvergenceDistanceKm float64 `validate:"gt=0"`

	// Persistence
	DBPath string `validate:"required"`

	// Alerting
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPFrom         string
	SMSAPIURL        string
	SMSAPIKey        string
	TrackingPixelBase string

	// Query cache
	CacheTTLSeconds int `validate:"min=1"`

	// Upstream providers
	ForecastURL  string
	ReanalysisURL string
	FloodURL     string
	TerrainURL   string
	OutbreakURL  string

	// Timeouts
	FetchTimeout   time.Duration
	BulkTimeout    time.Duration
	SMTPTimeout    time.Duration
	WebhookTimeout time.Duration

	// HTTP server
	APIPort string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment and validates it.
// Missing channel credentials are not an error; they downgrade the
// channel at dispatch time.
func Load() (*Config, error) {
	cfg := &Config{
		CheckIntervalHours:    getint("CHECK_INTERVAL_HOURS", 6),
		BasinNorth:            getfloat("BASIN_N", 0),
		BasinSouth:            getfloat("BASIN_S", -35),
		BasinWest:             getfloat("BASIN_W", 20),
		BasinEast:             getfloat("BASIN_E", 80),
		MinPressureHPa:        getfloat("MIN_PRESSURE_HPA", 1005),
		MinWindMS:             getfloat("MIN_WIND_MS", 17),
		MinFloodAreaKm2:       getfloat("MIN_FLOOD_AREA_KM2", 0.1),
		MaxLandslideZones:     getint("MAX_LANDSLIDE_ZONES", 50),
		ConvergenceDistanceKm: getfloat("CONVERGENCE_DISTANCE_KM", 500),
		DBPath:                getenv("DB_PATH", "./data/hazards.db"),
		SMTPHost:              getenv("SMTP_HOST", ""),
		SMTPPort:              getint("SMTP_PORT", 587),
		SMTPUser:              getenv("SMTP_USER", ""),
		SMTPPassword:          getenv("SMTP_PASSWORD", ""),
		SMTPFrom:              getenv("SMTP_FROM", ""),
		SMSAPIURL:             getenv("SMS_API_URL", ""),
		SMSAPIKey:             getenv("SMS_API_KEY", ""),
		TrackingPixelBase:     getenv("TRACKING_PIXEL_BASE", "http://localhost:8080/t"),
		CacheTTLSeconds:       getint("CACHE_TTL_SECONDS", 300),
		ForecastURL:           getenv("FORECAST_URL", "https://storage.googleapis.com/weathernext-public"),
		ReanalysisURL:         getenv("REANALYSIS_URL", ""),
		FloodURL:              getenv("FLOOD_URL", ""),
		TerrainURL:            getenv("TERRAIN_URL", ""),
		OutbreakURL:           getenv("OUTBREAK_URL", ""),
		FetchTimeout:          time.Duration(getint("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		BulkTimeout:           time.Duration(getint("BULK_TIMEOUT_SECONDS", 300)) * time.Second,
		SMTPTimeout:           time.Duration(getint("SMTP_TIMEOUT_SECONDS", 15)) * time.Second,
		WebhookTimeout:        time.Duration(getint("WEBHOOK_TIMEOUT_SECONDS", 10)) * time.Second,
		APIPort:               getenv("API_PORT", ":8080"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFile:               getenv("LOG_FILE", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.BasinSouth >= cfg.BasinNorth {
		return nil, fmt.Errorf("invalid configuration: basin south %.1f must be below north %.1f", cfg.BasinSouth, cfg.BasinNorth)
	}
	if cfg.BasinWest >= cfg.BasinEast {
		return nil, fmt.Errorf("invalid configuration: basin west %.1f must be below east %.1f", cfg.BasinWest, cfg.BasinEast)
	}

	return cfg, nil
}

// Basin returns the cyclone detection bounding box.
func (c *Config) Basin() hazard.BBox {
	return hazard.BBox{
		MinLat: c.BasinSouth,
		MaxLat: c.BasinNorth,
		MinLon: c.BasinWest,
		MaxLon: c.BasinEast,
	}
}

// CheckInterval returns the scheduler cadence.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalHours) * time.Hour
}

// CacheTTL returns the unified query cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// EmailConfigured reports whether the SMTP channel has credentials.
func (c *Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// SMSConfigured reports whether the SMS channel has credentials.
func (c *Config) SMSConfigured() bool {
	return c.SMSAPIURL != "" && c.SMSAPIKey != ""
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getint(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
