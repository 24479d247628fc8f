package poller

import (
	"fmt"
	"math"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
)

type PlannerConfig struct {
	RealtimeInterval   time.Duration // default: 5 minutes
	FiveDailyInterval  time.Duration // default: 24h/5
	TwiceDailyInterval time.Duration // default: 12 hours

	// Flights at most this many days away are checked five times a day.
	FiveDailyWindowDays int // default: 7

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		RealtimeInterval:    5 * time.Minute,
		FiveDailyInterval:   24 * time.Hour / 5,
		TwiceDailyInterval:  12 * time.Hour,
		FiveDailyWindowDays: 7,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner decides how often a flight is re-verified based on how far away it is.
// It is a pure function of the flight date and the injected clock.
type Planner struct {
	cfg PlannerConfig
	now func() time.Time
}

func NewPlanner(cfg PlannerConfig, now func() time.Time) *Planner {
	def := DefaultPlannerConfig()
	if cfg.RealtimeInterval <= 0 {
		cfg.RealtimeInterval = def.RealtimeInterval
	}
	if cfg.FiveDailyInterval <= 0 {
		cfg.FiveDailyInterval = def.FiveDailyInterval
	}
	if cfg.TwiceDailyInterval <= 0 {
		cfg.TwiceDailyInterval = def.TwiceDailyInterval
	}
	if cfg.FiveDailyWindowDays <= 0 {
		cfg.FiveDailyWindowDays = def.FiveDailyWindowDays
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if now == nil {
		now = time.Now
	}
	return &Planner{cfg: cfg, now: now}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

// DaysUntil counts calendar days (UTC) from today to flightDate. Time of day is ignored
// on both sides, so a flight tomorrow at 00:05 and one at 23:55 are both one day away.
func (p *Planner) DaysUntil(flightDate time.Time) int {
	d := models.CivilDate(flightDate).Sub(models.CivilDate(p.now().UTC()))
	return int(math.Ceil(d.Hours() / 24))
}

func (p *Planner) Frequency(flightDate time.Time) models.Frequency {
	return p.frequencyFor(p.DaysUntil(flightDate))
}

func (p *Planner) frequencyFor(daysAway int) models.Frequency {
	switch {
	case daysAway <= 0:
		return models.FrequencyRealtime
	case daysAway <= p.cfg.FiveDailyWindowDays:
		return models.FrequencyFiveDaily
	default:
		return models.FrequencyTwiceDaily
	}
}

// Interval is the spacing between checks for a frequency.
func (p *Planner) Interval(f models.Frequency) time.Duration {
	switch f {
	case models.FrequencyRealtime:
		return p.cfg.RealtimeInterval
	case models.FrequencyFiveDaily:
		return p.cfg.FiveDailyInterval
	default:
		return p.cfg.TwiceDailyInterval
	}
}

func (p *Planner) GetPollingSchedule(flightDate time.Time) models.PollingSchedule {
	now := p.now().UTC()
	days := p.DaysUntil(flightDate)
	freq := p.frequencyFor(days)

	ps := models.PollingSchedule{
		Frequency:   freq,
		NextCheckAt: now.Add(p.Interval(freq)),
	}
	switch freq {
	case models.FrequencyRealtime:
		ps.ChecksRemaining = -1
		ps.Reason = "Flight is today - tracking live position every few minutes"
	case models.FrequencyFiveDaily:
		ps.ChecksRemaining = days * 5
		ps.Reason = fmt.Sprintf("Flight in %d day(s) - checking schedule 5 times a day", days)
	default:
		ps.ChecksRemaining = days * 2
		ps.Reason = fmt.Sprintf("Flight in %d days - checking schedule twice a day", days)
	}
	return ps
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
