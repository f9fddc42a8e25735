package main

import (
	"fmt"
	"runtime"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/afrostorm/hazard-monitor/cmd/api/router"
	"github.com/afrostorm/hazard-monitor/pkg/application"
	"github.com/afrostorm/hazard-monitor/pkg/exithandler"
	"github.com/afrostorm/hazard-monitor/pkg/server"
)

func main() {
	var cpuCount = runtime.NumCPU()
	if cpuCount > 1 {
		runtime.GOMAXPROCS(cpuCount)
	}

	// load .env
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
		fmt.Println("Please ensure you load correct environment variables")
	}

	// start application
	app, err := application.Start()
	if err != nil {
		zap.S().Fatal(err.Error())
	}

	srv := server.
		Get().
		WithAddr(app.Cfg.APIPort).
		WithRouter(router.Api(app)).
		WithErrLogger(zap.S())

	// Start background jobs (periodic detection cycles)
	app.StartBackgroundJobs()

	// start the api server
	go func() {
		zap.S().Info("starting api server at ", app.Cfg.APIPort)

		if err := srv.Start(); err != nil {
			zap.S().Warn(err.Error())
		}
	}()

	exithandler.Init(func() {
		zap.S().Info("Closing Application")
		zap.S().Info("Waiting for all the processes to finish")

		// Stop background jobs; the in-flight cycle finishes persistence
		app.StopBackgroundJobs()

		if err := srv.Close(); err != nil {
			zap.S().Error(err.Error())
		}

		app.Close()
		zap.S().Info("Application Closed")
	})

	zap.S().Info("Bye!")
}
