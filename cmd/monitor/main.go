package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/models"
)

func main() {
	once := flag.Bool("once", false, "run a single detection cycle and exit")
	daemon := flag.Bool("daemon", false, "run continuously at the configured cadence")
	status := flag.Bool("status", false, "print the current hazard snapshot")
	recent := flag.Int("recent", 0, "print detections from the last N hours")
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
	case *once:
		os.Exit(runOnce(app))
	case *daemon:
		runDaemon(app)
	case *status:
		os.Exit(printStatus(app))
	case *recent > 0:
		os.Exit(printRecent(app, *recent))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runOnce(app *application.Application) int {
	run, err := app.Monitor.RunOnce(context.Background())
	if err != nil {
		zap.S().Errorf("Cycle failed: %v", err)
	}
	printJSON(run)
	if err != nil || run.Status == models.RunError {
		return 1
	}
	return 0
}

func runDaemon(app *application.Application) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Monitor.RunContinuous(ctx)
	zap.S().Info("Monitor stopped")
}

func printStatus(app *application.Application) int {
	summary, err := app.Query.Summarize(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status unavailable: %v\n", err)
		return 1
	}

	runs, err := app.Store.ListRuns(1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run log unavailable: %v\n", err)
		return 1
	}

	out := map[string]interface{}{"summary": summary}
	if len(runs) > 0 {
		out["last_run"] = runs[0]
	}
	printJSON(out)
	return 0
}

func printRecent(app *application.Application, hours int) int {
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := app.Store.ListRecentDetections(since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		return 1
	}
	printJSON(map[string]interface{}{
		"since":      since,
		"count":      len(rows),
		"detections": rows,
	})
	return 0
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
