package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/FlightBox/internal/cache"
	"github.com/BearBump/FlightBox/internal/flighttime"
	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/BearBump/FlightBox/internal/services/livetracking"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/BearBump/FlightBox/internal/services/flights")

type Planner interface {
	DaysUntil(flightDate time.Time) int
	Frequency(flightDate time.Time) models.Frequency
	Interval(f models.Frequency) time.Duration
}

type ScheduleLookup interface {
	Lookup(ctx context.Context, q schedule.Query) schedule.Result
}

type LiveTracker interface {
	GetLiveFlightStatus(ctx context.Context, flightNumber string) models.ProviderResponse[models.LiveFlightStatus]
}

type Config struct {
	MismatchThresholdMinutes int           // default: 30
	ScheduleCallDelay        time.Duration // default: 1s
	RealtimeCallDelay        time.Duration // default: 100ms
	// Unpaced drops the delay between sequential calls in VerifyAllFlights.
	Unpaced bool
	// CacheResults stores finished results in the BytesCache for one polling interval.
	CacheResults bool
}

func DefaultConfig() Config {
	return Config{
		MismatchThresholdMinutes: flighttime.DefaultThreshold,
		ScheduleCallDelay:        time.Second,
		RealtimeCallDelay:        100 * time.Millisecond,
	}
}

// Service verifies guest flights: schedule providers while the flight is days away,
// live position on the day itself.
type Service struct {
	planner  Planner
	schedule ScheduleLookup
	live     LiveTracker
	cache    cache.BytesCache
	log      logger.Logger
	m        *metrics.Metrics
	cfg      Config
	now      func() time.Time

	scheduleLimiter *rate.Limiter
	liveLimiter     *rate.Limiter
}

func New(planner Planner, sched ScheduleLookup, live LiveTracker, log logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	s := &Service{planner: planner, schedule: sched, live: live, log: log, m: m, now: time.Now}
	return s.WithConfig(DefaultConfig())
}

func (s *Service) WithConfig(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MismatchThresholdMinutes <= 0 {
		cfg.MismatchThresholdMinutes = def.MismatchThresholdMinutes
	}
	if cfg.ScheduleCallDelay <= 0 {
		cfg.ScheduleCallDelay = def.ScheduleCallDelay
	}
	if cfg.RealtimeCallDelay <= 0 {
		cfg.RealtimeCallDelay = def.RealtimeCallDelay
	}
	s.cfg = cfg
	s.scheduleLimiter = pacer(cfg.ScheduleCallDelay, cfg.Unpaced)
	s.liveLimiter = pacer(cfg.RealtimeCallDelay, cfg.Unpaced)
	return s
}

// Config returns the effective configuration, defaults applied.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) WithCache(c cache.BytesCache) *Service {
	s.cache = c
	return s
}

// pacer allows one call immediately and then one per delay.
func pacer(delay time.Duration, unpaced bool) *rate.Limiter {
	if unpaced {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func (s *Service) VerifyFlight(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult {
	if res, ok := s.cached(ctx, f); ok {
		return res
	}
	return s.verify(ctx, f)
}

// VerifyAllFlights verifies every flight exactly once, keyed by FlightToTrack.Key.
// Schedule lookups run first, then live lookups, each group sequential in input order
// and paced so the upstream per-minute caps are not tripped.
func (s *Service) VerifyAllFlights(ctx context.Context, flights []models.FlightToTrack) map[string]models.FlightVerificationResult {
	out := make(map[string]models.FlightVerificationResult, len(flights))

	var scheduled, realtime []models.FlightToTrack
	for _, f := range flights {
		if _, dup := out[f.Key()]; dup {
			continue
		}
		out[f.Key()] = models.FlightVerificationResult{}
		if s.planner.DaysUntil(f.FlightDate) <= 0 {
			realtime = append(realtime, f)
		} else {
			scheduled = append(scheduled, f)
		}
	}

	s.runPaced(ctx, scheduled, s.scheduleLimiter, out)
	s.runPaced(ctx, realtime, s.liveLimiter, out)

	s.log.Info("batch verification finished", "flights", len(out), "schedule", len(scheduled), "realtime", len(realtime))
	return out
}

func (s *Service) runPaced(ctx context.Context, group []models.FlightToTrack, lim *rate.Limiter, out map[string]models.FlightVerificationResult) {
	for _, f := range group {
		if res, ok := s.cached(ctx, f); ok {
			out[f.Key()] = res
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			out[f.Key()] = s.failed(f, err.Error())
			continue
		}
		out[f.Key()] = s.verify(ctx, f)
	}
}

func (s *Service) verify(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult {
	ctx, span := tracer.Start(ctx, "flights.VerifyFlight")
	defer span.End()
	span.SetAttributes(attribute.String("flight.key", f.Key()))

	start := s.now()
	var res models.FlightVerificationResult
	if s.planner.DaysUntil(f.FlightDate) <= 0 {
		res = s.verifyLive(ctx, f)
	} else {
		res = s.verifySchedule(ctx, f)
	}

	s.m.Verifications.WithLabelValues(string(res.Status)).Inc()
	s.m.VerificationSeconds.Observe(s.now().Sub(start).Seconds())
	span.SetAttributes(attribute.String("flight.status", string(res.Status)), attribute.String("flight.source", string(res.Source)))
	if res.Status == models.VerificationError {
		span.SetStatus(codes.Error, res.Error)
		s.log.Warn("flight verification failed", "flight", f.Key(), "error", res.Error)
	} else {
		s.store(ctx, f, res)
	}
	return res
}

func (s *Service) verifySchedule(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult {
	res := s.base(f)

	r := s.schedule.Lookup(ctx, schedule.Query{FlightNumber: f.FlightNumber, Date: f.FlightDate})
	res.Source = r.Source
	switch {
	case r.Success:
		info := *r.Data
		res.ScheduledInfo = &info
		res.ScheduledTime = info.TimeFor(f.Direction)
		res.Status = models.VerificationVerified
		if diff, ok := flighttime.DifferenceMinutes(f.ExpectedTime, res.ScheduledTime); ok {
			mismatch := flighttime.HasTimeMismatch(f.ExpectedTime, res.ScheduledTime, s.cfg.MismatchThresholdMinutes)
			res.TimeMismatch = &mismatch
			res.TimeDifference = flighttime.FormatTimeDifference(diff)
			if mismatch {
				res.Status = models.VerificationChanged
			}
		}
	case r.NotFound:
		res.Status = models.VerificationNotFound
		res.Error = r.Error
	default:
		res.Status = models.VerificationError
		res.Error = r.Error
	}
	return res
}

func (s *Service) verifyLive(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult {
	res := s.base(f)
	res.Source = models.SourceOpenSky

	r := s.live.GetLiveFlightStatus(ctx, f.FlightNumber)
	switch {
	case r.Success:
		res.Status = models.VerificationVerified
		res.LiveStatus = r.Data
	case r.Error == livetracking.ErrNotTracked:
		res.Status = models.VerificationNotFound
		res.Error = r.Error
	default:
		res.Status = models.VerificationError
		res.Error = r.Error
	}
	return res
}

func (s *Service) base(f models.FlightToTrack) models.FlightVerificationResult {
	return models.FlightVerificationResult{
		FlightNumber:  f.FlightNumber,
		FlightDate:    f.FlightDate,
		Direction:     f.Direction,
		ExpectedTime:  f.ExpectedTime,
		LastCheckedAt: s.now().UTC(),
	}
}

func (s *Service) failed(f models.FlightToTrack, msg string) models.FlightVerificationResult {
	res := s.base(f)
	res.Status = models.VerificationError
	res.Error = msg
	s.m.Verifications.WithLabelValues(string(res.Status)).Inc()
	return res
}

func resultKey(f models.FlightToTrack) string {
	return fmt.Sprintf("flight:%s:result", f.Key())
}

func (s *Service) cached(ctx context.Context, f models.FlightToTrack) (models.FlightVerificationResult, bool) {
	if s.cache == nil || !s.cfg.CacheResults {
		return models.FlightVerificationResult{}, false
	}
	b, ok, err := s.cache.Get(ctx, resultKey(f))
	if err != nil || !ok {
		return models.FlightVerificationResult{}, false
	}
	var res models.FlightVerificationResult
	if json.Unmarshal(b, &res) != nil {
		return models.FlightVerificationResult{}, false
	}
	// the expected time is the caller's, not the cached one
	if res.ExpectedTime != f.ExpectedTime {
		return models.FlightVerificationResult{}, false
	}
	return res, true
}

func (s *Service) store(ctx context.Context, f models.FlightToTrack, res models.FlightVerificationResult) {
	if s.cache == nil || !s.cfg.CacheResults {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	ttl := s.planner.Interval(s.planner.Frequency(f.FlightDate))
	if err := s.cache.Set(ctx, resultKey(f), b, ttl); err != nil {
		s.log.Warn("cache flight result", "flight", f.Key(), "error", err.Error())
	}
}

// Invalidate drops a cached result, e.g. after a guest edits their flight.
func (s *Service) Invalidate(ctx context.Context, f models.FlightToTrack) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, resultKey(f))
}
