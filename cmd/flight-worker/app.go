package main

import (
	"context"
	"time"

	"github.com/BearBump/FlightBox/config"
	"github.com/BearBump/FlightBox/internal/bootstrap"
	"github.com/BearBump/FlightBox/internal/broker/kafka"
	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/cache/rediscache"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/services/poller"
	"github.com/BearBump/FlightBox/internal/storage/pgflights"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo poller.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) poller.Producer
	newRateLimiter func(cfg *config.Config) poller.RateLimiter
	newVerifier    func(cfg *config.Config, log logger.Logger, m *metrics.Metrics) poller.Verifier
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (poller.Repository, func(), error) {
			st, err := pgflights.New(cfg.Database.DSN())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer([]string{cfg.Kafka.Broker()})
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(bootstrap.RedisOptions(cfg))
		},
		newVerifier: func(cfg *config.Config, log logger.Logger, m *metrics.Metrics) poller.Verifier {
			return bootstrap.NewStack(cfg, rediscache.New(bootstrap.RedisOptions(cfg)), log, m).Verifier
		},
	}
}

// buildPoller wires the recheck loop from config. Zero settings keep the poller defaults.
func buildPoller(cfg *config.Config, repo poller.Repository, verifier poller.Verifier, producer poller.Producer, rl poller.RateLimiter, log logger.Logger) (*poller.Poller, error) {
	topic := cfg.Kafka.FlightVerifiedTopicName
	if topic == "" {
		topic = messages.TopicFlightVerified
	}
	fb := cfg.FlightBox

	p := poller.New(repo, verifier, producer, rl, topic, log).
		WithSettings(
			time.Duration(fb.WorkerPollIntervalSeconds)*time.Second,
			fb.WorkerBatchSize,
			fb.WorkerConcurrency,
			time.Duration(fb.WorkerLeaseSeconds)*time.Second,
		).
		WithRateLimits(int64(fb.WorkerScheduleCallsPerMinute), int64(fb.WorkerLiveCallsPerMinute)).
		WithPlanner(bootstrap.NewPlanner(cfg))

	if fb.WorkerNodeID > 0 {
		return p.WithNodeID(fb.WorkerNodeID)
	}
	return p, nil
}

func RunFlightWorker(ctx context.Context, cfg *config.Config, f workerFactories, log logger.Logger, m *metrics.Metrics) error {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	p, err := buildPoller(cfg, repo, f.newVerifier(cfg, log, m), f.newProducer(cfg), f.newRateLimiter(cfg), log)
	if err != nil {
		return err
	}

	if addr := cfg.FlightBox.WorkerHTTPAddr; addr != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{httpAddr: addr, poller: p, cfg: cfg})
			if err != nil && ctx.Err() == nil {
				log.Error("worker http server stopped", "error", err.Error())
			}
		}()
	}

	log.Info("flight worker started", "node_id", cfg.FlightBox.WorkerNodeID)
	return p.Run(ctx)
}
