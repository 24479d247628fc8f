package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	flightsapi "github.com/BearBump/FlightBox/internal/api/flights_api"
	"github.com/BearBump/FlightBox/internal/broker/kafka"
	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type flightAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type verifiedApplier interface {
	ApplyVerified(ctx context.Context, msg messages.FlightVerified) error
}

type flightAPIDeps struct {
	api      *flightsapi.FlightsAPI
	applier  verifiedApplier
	consumer kafkaConsumer
	gatherer prometheus.Gatherer
	log      logger.Logger
}

func runFlightAPI(ctx context.Context, opts flightAPIOpts, deps flightAPIDeps) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}
	if deps.log == nil {
		deps.log = logger.Nop()
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- serveHTTP(ctx, lis, opts.swaggerPath, deps)
	}()

	if deps.consumer != nil && deps.applier != nil {
		go func() {
			deps.log.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			err := deps.consumer.Consume(ctx, flightVerifiedHandler(ctx, deps.applier))
			if err != nil && ctx.Err() == nil {
				deps.log.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

// flightVerifiedHandler decodes worker results. Payloads that can never be applied are
// marked malformed so the consumer skips them.
func flightVerifiedHandler(ctx context.Context, applier verifiedApplier) func(key, value []byte) error {
	return func(_ []byte, value []byte) error {
		var m messages.FlightVerified
		if err := json.Unmarshal(value, &m); err != nil {
			return errors.Wrap(kafka.ErrMalformed, err.Error())
		}
		if m.CheckID == 0 || m.EventID == 0 {
			return errors.Wrap(kafka.ErrMalformed, "missing check_id or event_id")
		}
		return applier.ApplyVerified(ctx, m)
	}
}

func serveHTTP(ctx context.Context, lis net.Listener, swaggerPath string, deps flightAPIDeps) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	gatherer := deps.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	if deps.api != nil {
		deps.api.Register(r)
	}

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	deps.log.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
