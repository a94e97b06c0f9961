// The worker command runs a Temporal worker hosting the story pipeline
// workflow and its stage activities. Configuration comes from an optional
// YAML file plus the environment; secrets are environment-only, so a .env
// file next to the binary is enough for local runs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/jatlaoui/ines/internal/config"
	"github.com/jatlaoui/ines/internal/worker"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to the worker config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration load failed", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	rt, err := worker.Setup(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Temporal.MaxConcurrentActivities,
	})
	worker.RegisterAll(w, rt.Activities)

	logger.Info("worker starting",
		"task_queue", cfg.Temporal.TaskQueue,
		"namespace", cfg.Temporal.Namespace,
		"provider", cfg.LLM.Provider,
		"artifact_backend", cfg.Artifacts.Backend,
	)
	return w.Run(sdkworker.InterruptCh())
}
