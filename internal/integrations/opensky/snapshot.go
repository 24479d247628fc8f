package opensky

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/pkg/errors"
)

const DefaultSnapshotTTL = 30 * time.Second

type StatesFetcher interface {
	GetAllStates(ctx context.Context, bbox *BoundingBox) ([]StateVector, error)
}

type Snapshot struct {
	States    []StateVector
	Timestamp time.Time
}

type SnapshotResult struct {
	Success   bool
	States    []StateVector
	Error     string
	Err       error
	FromCache bool
	Timestamp time.Time
}

// SnapshotCache keeps the whole live feed for a fixed TTL so that any number of
// lookups inside the window cost one upstream call. The snapshot is replaced
// wholesale; the lock is not held during the fetch, so concurrent misses may
// refetch twice.
type SnapshotCache struct {
	fetcher StatesFetcher
	bbox    *BoundingBox
	ttl     time.Duration
	now     func() time.Time
	m       *metrics.Metrics

	mu   sync.Mutex
	snap *Snapshot

	fetches atomic.Int64
}

func NewSnapshotCache(fetcher StatesFetcher, ttl time.Duration, m *metrics.Metrics) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &SnapshotCache{fetcher: fetcher, ttl: ttl, now: time.Now, m: m}
}

// WithBoundingBox restricts the cached feed to one area (e.g. around an airport).
func (c *SnapshotCache) WithBoundingBox(bbox BoundingBox) *SnapshotCache {
	c.bbox = &bbox
	return c
}

// WithClock is used by tests to move time.
func (c *SnapshotCache) WithClock(now func() time.Time) *SnapshotCache {
	c.now = now
	return c
}

func (c *SnapshotCache) Snapshot(ctx context.Context) SnapshotResult {
	now := c.now()

	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()
	if snap != nil && now.Sub(snap.Timestamp) < c.ttl {
		return SnapshotResult{Success: true, States: snap.States, FromCache: true, Timestamp: snap.Timestamp}
	}

	c.fetches.Add(1)
	states, err := c.fetcher.GetAllStates(ctx, c.bbox)
	if err != nil {
		outcome := "error"
		msg := err.Error()
		if errors.Is(err, ErrRateLimited) {
			outcome = "rate_limited"
			msg = "Rate limit exceeded"
		}
		c.m.SnapshotFetches.WithLabelValues(outcome).Inc()
		return SnapshotResult{Error: msg, Err: err}
	}
	c.m.SnapshotFetches.WithLabelValues("success").Inc()

	fresh := &Snapshot{States: states, Timestamp: now}
	c.mu.Lock()
	c.snap = fresh
	c.mu.Unlock()

	return SnapshotResult{Success: true, States: states, Timestamp: now}
}

// Last returns the most recent snapshot regardless of age, for callers that prefer stale data
// over none when the feed is rate limited.
func (c *SnapshotCache) Last() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return Snapshot{}, false
	}
	return *c.snap, true
}

// Fetches counts upstream calls made so far.
func (c *SnapshotCache) Fetches() int64 {
	return c.fetches.Load()
}
