package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/FlightBox/config"
	"github.com/BearBump/FlightBox/internal/services/poller"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	poller   *poller.Poller
	cfg      *config.Config
	gatherer prometheus.Gatherer
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.gatherer == nil {
		opts.gatherer = prometheus.DefaultGatherer
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.poller == nil {
			_, _ = w.Write([]byte(`{"error":"poller not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.poller.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// operational settings only, no credentials
		fb := opts.cfg.FlightBox
		out := map[string]any{
			"pollIntervalSeconds":     fb.WorkerPollIntervalSeconds,
			"batchSize":               fb.WorkerBatchSize,
			"concurrency":             fb.WorkerConcurrency,
			"leaseSeconds":            fb.WorkerLeaseSeconds,
			"nodeId":                  fb.WorkerNodeID,
			"scheduleCallsPerMinute":  fb.WorkerScheduleCallsPerMinute,
			"liveCallsPerMinute":      fb.WorkerLiveCallsPerMinute,
			"realtimeIntervalSeconds": fb.RealtimeIntervalSeconds,
			"fiveDailyWindowDays":     fb.FiveDailyWindowDays,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.poller == nil {
			_, _ = w.Write([]byte(`{"error":"poller not wired"}`))
			return
		}
		opts.poller.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(opts.gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
