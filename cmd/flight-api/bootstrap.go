package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FlightBox/config"
	flightsapi "github.com/BearBump/FlightBox/internal/api/flights_api"
	"github.com/BearBump/FlightBox/internal/bootstrap"
	"github.com/BearBump/FlightBox/internal/broker/kafka"
	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/cache/rediscache"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/services/checks"
	"github.com/BearBump/FlightBox/internal/storage/pgflights"
	"github.com/prometheus/client_golang/prometheus"
)

const currentCheckTTL = 2 * time.Minute

type flightAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   flightAPIOpts
	deps   flightAPIDeps
	log    *logger.ZapLogger

	consumer *kafka.Consumer
	redis    *rediscache.RedisCache
	closeDB  func()
}

func mustBootstrapFlightAPI() *flightAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.FlightBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.FlightBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "flight-api"
	}
	topic := cfg.Kafka.FlightVerifiedTopicName
	if topic == "" {
		topic = messages.TopicFlightVerified
	}
	namespace := cfg.FlightBox.MetricsNamespace
	if namespace == "" {
		namespace = "flightbox"
	}

	zl := logger.New(cfg.FlightBox.LogLevel)
	log := zl.With("service", "flight-api")
	m := metrics.New(namespace, prometheus.DefaultRegisterer)

	st := mustOpenPostgresWithRetry(cfg.Database.DSN(), 60*time.Second)
	rc := rediscache.New(bootstrap.RedisOptions(cfg))

	stack := bootstrap.NewStack(cfg, rc, log, m)
	checkSvc := checks.New(st, rc, currentCheckTTL, log).WithResultInvalidator(stack.Verifier)

	api := flightsapi.New(stack.Verifier, stack.Planner, stack.Live, checkSvc)
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker()}, topic, consumerGroup, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	log.Info("flight-api bootstrapped",
		"http_addr", httpAddr, "schedule_providers", stack.Chain.Providers(), "topic", topic)

	return &flightAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: flightAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		deps: flightAPIDeps{
			api:      api,
			applier:  checkSvc,
			consumer: consumer,
			gatherer: prometheus.DefaultGatherer,
			log:      log,
		},
		log:      zl,
		consumer: consumer,
		redis:    rc,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgflights.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgflights.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *flightAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
	if a.log != nil {
		a.log.Sync()
	}
}

func (a *flightAPIApp) Run() error {
	return runFlightAPI(a.ctx, a.opts, a.deps)
}
