package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// Checks whose flight is more than a day in the past are parked this far ahead.
const parkedDelay = 365 * 24 * time.Hour

type Repository interface {
	ClaimDueChecks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.FlightCheck, error)
}

type Verifier interface {
	VerifyFlight(ctx context.Context, f models.FlightToTrack) models.FlightVerificationResult
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller is the background recheck loop: it claims due flight checks, verifies
// them and publishes the outcome for the API side to persist.
type Poller struct {
	repo     Repository
	verifier Verifier
	producer Producer
	rl       RateLimiter
	log      logger.Logger
	ids      *snowflake.Node

	topic string

	planner *Planner

	pollInterval           time.Duration
	batchSize              int
	concurrency            int
	lease                  time.Duration
	scheduleCallsPerMinute int64
	liveCallsPerMinute     int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalDeferred       atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, verifier Verifier, producer Producer, rl RateLimiter, topic string, log logger.Logger) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	node, _ := snowflake.NewNode(1)
	return &Poller{
		repo: repo, verifier: verifier, producer: producer, rl: rl, topic: topic, log: log,
		ids:                    node,
		planner:                DefaultPlanner(),
		pollInterval:           30 * time.Second,
		batchSize:              50,
		concurrency:            1,
		lease:                  5 * time.Minute,
		scheduleCallsPerMinute: 30,
		liveCallsPerMinute:     600,
		triggerCh:              make(chan struct{}, 1),
		startedAtUnixNano:      time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	return p
}

// WithRateLimits sets the per-minute ceilings shared by all workers through Redis.
func (p *Poller) WithRateLimits(schedulePerMin, livePerMin int64) *Poller {
	if schedulePerMin > 0 {
		p.scheduleCallsPerMinute = schedulePerMin
	}
	if livePerMin > 0 {
		p.liveCallsPerMinute = livePerMin
	}
	return p
}

func (p *Poller) WithPlanner(pl *Planner) *Poller {
	if pl != nil {
		p.planner = pl
	}
	return p
}

// WithNodeID sets the snowflake node so that event ids stay unique across worker replicas.
func (p *Poller) WithNodeID(id int64) (*Poller, error) {
	node, err := snowflake.NewNode(id)
	if err != nil {
		return nil, errors.Wrap(err, "snowflake node")
	}
	p.ids = node
	return p, nil
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalDeferred  int64      `json:"totalDeferred"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalDeferred:  p.totalDeferred.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueChecks(ctx, now, p.batchSize, p.lease)
	if err != nil {
		p.log.Error("claim due checks", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, fc := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, fc); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				p.log.Error("process flight check", "check_id", fc.ID, "flight", fc.FlightNumber, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) processOne(ctx context.Context, fc *models.FlightCheck) error {
	now := time.Now().UTC()
	freq := p.planner.Frequency(fc.FlightDate)

	if p.rl != nil {
		allowed, n, err := p.allow(ctx, freq, now)
		if err != nil {
			return err
		}
		if !allowed {
			// leave the claim to expire; the check comes back after the lease
			p.totalDeferred.Add(1)
			p.log.Warn("rate limit exceeded, deferring check", "flight", fc.FlightNumber, "frequency", freq, "count", n)
			return nil
		}
	}

	res := p.verifier.VerifyFlight(ctx, fc.Flight())

	msg := messages.FlightVerified{
		EventID:        p.ids.Generate().Int64(),
		CheckID:        fc.ID,
		CheckedAt:      now,
		FlightNumber:   fc.FlightNumber,
		FlightDate:     fc.FlightDate.Format(models.DateLayout),
		Direction:      string(fc.Direction),
		Status:         string(res.Status),
		Source:         string(res.Source),
		ScheduledTime:  res.ScheduledTime,
		TimeMismatch:   res.TimeMismatch,
		TimeDifference: res.TimeDifference,
	}
	switch {
	case res.Status == models.VerificationError:
		e := res.Error
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(fc.CheckFailCount + 1))
	case p.planner.DaysUntil(fc.FlightDate) < 0:
		msg.NextCheckAt = now.Add(parkedDelay)
	default:
		msg.NextCheckAt = p.planner.GetPollingSchedule(fc.FlightDate).NextCheckAt
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	key := []byte(fmt.Sprintf("%d", fc.ID))
	// Kafka may not be ready right after the compose stack starts.
	var pubErr error
	for i := 0; i < 10; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, b); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(pubErr, "publish")
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return errors.Wrap(pubErr, "publish")
}

func (p *Poller) allow(ctx context.Context, freq models.Frequency, now time.Time) (bool, int64, error) {
	path, limit := "schedule", p.scheduleCallsPerMinute
	if freq == models.FrequencyRealtime {
		path, limit = "live", p.liveCallsPerMinute
	}
	if limit <= 0 {
		return true, 0, nil
	}
	minuteKey := fmt.Sprintf("rl:verify:%s:%s", path, now.Format("200601021504"))
	return p.rl.Allow(ctx, minuteKey, limit, 70*time.Second)
}
