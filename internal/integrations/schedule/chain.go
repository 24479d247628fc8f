package schedule

import (
	"context"
	"time"

	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
)

// Result is the chain outcome: the normalized envelope plus whether the flight was
// confirmed absent (as opposed to found).
type Result struct {
	models.ProviderResponse[models.ScheduledFlight]
	NotFound bool
}

// Chain asks providers in order until one gives a definitive answer. Transient failures
// (transport errors, 5xx, 429, bad payloads) advance to the next provider.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	log       logger.Logger
	m         *metrics.Metrics
}

func NewChain(log logger.Logger, m *metrics.Metrics, providers ...Provider) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Chain{providers: providers, log: log, m: m}
}

// WithTimeout bounds every single provider call.
func (c *Chain) WithTimeout(d time.Duration) *Chain {
	c.timeout = d
	return c
}

// Providers returns the sources that will actually be consulted, in order.
func (c *Chain) Providers() []models.Source {
	out := make([]models.Source, 0, len(c.providers))
	for _, p := range c.providers {
		if !enabled(p) {
			continue
		}
		out = append(out, p.Name())
	}
	return out
}

func (c *Chain) Lookup(ctx context.Context, q Query) Result {
	var lastErr error
	var lastSource models.Source

	for _, p := range c.providers {
		if !enabled(p) {
			continue
		}
		name := p.Name()
		lastSource = name

		flight, err := c.call(ctx, p, q)
		switch {
		case err == nil:
			c.m.ProviderCalls.WithLabelValues(string(name), "success").Inc()
			return Result{ProviderResponse: models.ProviderResponse[models.ScheduledFlight]{
				Success: true,
				Data:    &flight,
				Source:  name,
			}}
		case IsDefinitive(err):
			c.m.ProviderCalls.WithLabelValues(string(name), "not_found").Inc()
			msg := ErrNotFound.Error()
			if errors.Is(err, ErrIncomplete) {
				msg = "Incomplete flight data"
			}
			return Result{
				ProviderResponse: models.ProviderResponse[models.ScheduledFlight]{Error: msg, Source: name},
				NotFound:         true,
			}
		default:
			outcome := "error"
			if errors.Is(err, ErrRateLimited) {
				outcome = "rate_limited"
			}
			c.m.ProviderCalls.WithLabelValues(string(name), outcome).Inc()
			c.log.Warn("schedule provider failed, falling through",
				"source", name, "flight", q.FlightNumber, "date", q.Date.Format(models.DateLayout), "error", err.Error())
			lastErr = err
		}

		if ctx.Err() != nil {
			break
		}
	}

	msg := "no schedule provider available"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return Result{ProviderResponse: models.ProviderResponse[models.ScheduledFlight]{Error: msg, Source: lastSource}}
}

func (c *Chain) call(ctx context.Context, p Provider, q Query) (models.ScheduledFlight, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return p.Lookup(ctx, q)
}

func enabled(p Provider) bool {
	if cp, ok := p.(Configurable); ok {
		return cp.Configured()
	}
	return true
}
