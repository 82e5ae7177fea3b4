package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsekit/pulseboard/internal/setup"
	"github.com/pulsekit/pulseboard/internal/worker/core"
	"github.com/pulsekit/pulseboard/internal/worker/maintenance"
	"github.com/urfave/cli/v3"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// MaintenanceWorker trims stale data and runs the cycle reset.
	MaintenanceWorker = "maintenance"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start a pulseboard worker",
		Commands: []*cli.Command{
			{
				Name:  MaintenanceWorker,
				Usage: "Start the maintenance worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runMaintenance(ctx)
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runMaintenance(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	// Workers log into their own file inside the current session directory
	workerLogger := setup.GetWorkerLogger(MaintenanceWorker, WorkerLogDir, app.Config.Common.Debug.LogLevel)

	reporter := core.NewStatusReporter(app.StatusClient, MaintenanceWorker, workerLogger)
	worker := maintenance.New(app.DB, reporter, app.Config, workerLogger)

	// Stop the loop on interrupt so cleanup still runs
	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	worker.Start(runCtx)

	return nil
}
