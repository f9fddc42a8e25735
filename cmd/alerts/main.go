package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/afrostorm/hazard-monitor/pkg/alerts"
	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
)

func main() {
	test := flag.String("test", "", "dry-run the alert fanout for a country")
	stats := flag.Bool("stats", false, "print validation statistics")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file loaded: %v\n", err)
	}

	app, err := application.Start()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case *test != "":
		os.Exit(dryRun(app, *test))
	case *stats:
		os.Exit(printStats(app))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// dryRun shows who would receive an alert for the country and what the
// message would look like. Nothing is sent or persisted.
func dryRun(app *application.Application, country string) int {
	recipients := alerts.RecipientsFor(country)
	if len(recipients) == 0 {
		fmt.Fprintf(os.Stderr, "Unknown country: %s\n", country)
		return 1
	}

	content := alerts.BuildContent(&hazard.Cyclone{
		Base: hazard.Base{
			ID:       "dry-run-cyclone",
			Kind:     hazard.KindCyclone,
			Location: hazard.Point{Lat: -19.85, Lon: 34.84},
		},
		ThreatLevel:    hazard.ThreatCat2,
		MaxWindKt:      87.5,
		MinPressureHPa: 955,
	})
	msg, err := app.Pipeline.Renderer().Render(content, "en")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		return 1
	}

	printJSON(map[string]interface{}{
		"country":    country,
		"recipients": recipients,
		"subject":    msg.Subject,
		"preview":    msg.Plain,
	})
	return 0
}

func printStats(app *application.Application) int {
	stats, err := app.Ledger.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats unavailable: %v\n", err)
		return 1
	}
	printJSON(stats)
	return 0
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
