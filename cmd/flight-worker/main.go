package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/FlightBox/config"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	namespace := cfg.FlightBox.MetricsNamespace
	if namespace == "" {
		namespace = "flightbox"
	}
	zl := logger.New(cfg.FlightBox.LogLevel)
	defer zl.Sync()
	log := zl.With("service", "flight-worker")
	m := metrics.New(namespace, prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunFlightWorker(ctx, cfg, defaultWorkerFactories(), log, m); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
