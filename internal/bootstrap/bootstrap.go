// Package bootstrap turns a loaded config into the verification stack shared by
// the API and the worker.
package bootstrap

import (
	"time"

	"github.com/BearBump/FlightBox/config"
	"github.com/BearBump/FlightBox/internal/cache"
	"github.com/BearBump/FlightBox/internal/cache/rediscache"
	"github.com/BearBump/FlightBox/internal/integrations/opensky"
	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/integrations/schedule/amadeus"
	"github.com/BearBump/FlightBox/internal/integrations/schedule/aviationstack"
	"github.com/BearBump/FlightBox/internal/integrations/schedule/mock"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/services/flights"
	"github.com/BearBump/FlightBox/internal/services/livetracking"
	"github.com/BearBump/FlightBox/internal/services/poller"
)

const defaultProviderTimeout = 15 * time.Second

// Stack is everything needed to verify flights.
type Stack struct {
	Planner  *poller.Planner
	Chain    *schedule.Chain
	Live     *livetracking.Service
	Verifier *flights.Service
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func NewPlanner(cfg *config.Config) *poller.Planner {
	fb := cfg.FlightBox
	return poller.NewPlanner(poller.PlannerConfig{
		RealtimeInterval:    seconds(fb.RealtimeIntervalSeconds),
		FiveDailyInterval:   seconds(fb.FiveDailyIntervalSeconds),
		TwiceDailyInterval:  seconds(fb.TwiceDailyIntervalSeconds),
		FiveDailyWindowDays: fb.FiveDailyWindowDays,
		Backoff1:            seconds(fb.WorkerBackoff1Seconds),
		Backoff2:            seconds(fb.WorkerBackoff2Seconds),
		Backoff3:            seconds(fb.WorkerBackoff3Seconds),
		Backoff4:            seconds(fb.WorkerBackoff4Seconds),
	}, nil)
}

// NewScheduleChain orders providers primary first. Providers without credentials
// are skipped by the chain; the mock always answers last.
func NewScheduleChain(cfg *config.Config, log logger.Logger, m *metrics.Metrics) *schedule.Chain {
	p := cfg.Providers

	amadeusURL := p.AmadeusBaseURL
	if amadeusURL == "" {
		amadeusURL = amadeus.BaseURLFor(p.AmadeusEnv)
	}
	timeout := seconds(p.ProviderTimeoutSeconds)
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	return schedule.NewChain(log, m,
		amadeus.New(amadeusURL, p.AmadeusClientID, p.AmadeusClientSecret),
		aviationstack.New(p.AviationStackBaseURL, p.AviationStackAPIKey),
		mock.New(),
	).WithTimeout(timeout)
}

// NewLiveTracking shares one snapshot cache between single, batch and verification lookups.
func NewLiveTracking(cfg *config.Config, log logger.Logger, m *metrics.Metrics) *livetracking.Service {
	ttl := seconds(cfg.Providers.OpenSkySnapshotTTLSecs)
	if ttl <= 0 {
		ttl = opensky.DefaultSnapshotTTL
	}
	client := opensky.New(cfg.Providers.OpenSkyBaseURL)
	snapshots := opensky.NewSnapshotCache(client, ttl, m)
	return livetracking.New(snapshots, log).WithAirportFeed(client, ttl)
}

func VerifierConfig(cfg *config.Config) flights.Config {
	fb := cfg.FlightBox
	return flights.Config{
		MismatchThresholdMinutes: fb.MismatchThresholdMinutes,
		ScheduleCallDelay:        time.Duration(fb.ScheduleCallDelayMillis) * time.Millisecond,
		RealtimeCallDelay:        time.Duration(fb.RealtimeCallDelayMillis) * time.Millisecond,
		Unpaced:                  fb.UnpacedCalls,
		CacheResults:             fb.CacheResults,
	}
}

// NewStack builds the verification stack. c may be nil, which disables result caching.
func NewStack(cfg *config.Config, c cache.BytesCache, log logger.Logger, m *metrics.Metrics) *Stack {
	planner := NewPlanner(cfg)
	chain := NewScheduleChain(cfg, log, m)
	live := NewLiveTracking(cfg, log, m)

	verifier := flights.New(planner, chain, live, log, m).WithConfig(VerifierConfig(cfg))
	if c != nil {
		verifier = verifier.WithCache(c)
	}
	return &Stack{Planner: planner, Chain: chain, Live: live, Verifier: verifier}
}

func RedisOptions(cfg *config.Config) rediscache.Options {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "flightbox:"
	}
	return rediscache.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   prefix,
	}
}
