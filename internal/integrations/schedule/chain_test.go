package schedule_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/integrations/schedule/mock"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       models.Source
	configured bool
	res        models.ScheduledFlight
	err        error
	calls      int
}

func (p *fakeProvider) Name() models.Source { return p.name }
func (p *fakeProvider) Configured() bool    { return p.configured }

func (p *fakeProvider) Lookup(ctx context.Context, q schedule.Query) (models.ScheduledFlight, error) {
	p.calls++
	return p.res, p.err
}

func q() schedule.Query {
	return schedule.Query{FlightNumber: "SQ238", Date: time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)}
}

func TestChain_UnconfiguredPrimaryIsSkipped(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: false}
	secondary := &fakeProvider{name: models.SourceAviationStack, configured: true, err: fmt.Errorf("http 503")}
	c := schedule.NewChain(nil, nil, primary, secondary, mock.New())

	res := c.Lookup(context.Background(), q())
	require.True(t, res.Success)
	require.False(t, res.NotFound)
	require.Equal(t, models.SourceMock, res.Source)
	require.Equal(t, "15:15", res.Data.ScheduledArrival)
	require.Equal(t, 0, primary.calls)
	require.Equal(t, 1, secondary.calls)
	require.Equal(t, []models.Source{models.SourceAviationStack, models.SourceMock}, c.Providers())
}

func TestChain_PrimarySuccessStops(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: true, res: models.ScheduledFlight{FlightNumber: "SQ238", ScheduledArrival: "15:20"}}
	secondary := &fakeProvider{name: models.SourceAviationStack, configured: true}
	c := schedule.NewChain(nil, nil, primary, secondary, mock.New())

	res := c.Lookup(context.Background(), q())
	require.True(t, res.Success)
	require.Equal(t, models.SourceAmadeus, res.Source)
	require.Equal(t, "15:20", res.Data.ScheduledArrival)
	require.Equal(t, 0, secondary.calls)
}

func TestChain_DefinitiveNotFoundStops(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: true, err: schedule.ErrNotFound}
	secondary := &fakeProvider{name: models.SourceAviationStack, configured: true}
	c := schedule.NewChain(nil, nil, primary, secondary, mock.New())

	res := c.Lookup(context.Background(), q())
	require.False(t, res.Success)
	require.True(t, res.NotFound)
	require.Nil(t, res.Data)
	require.Equal(t, models.SourceAmadeus, res.Source)
	require.Equal(t, 0, secondary.calls)
}

func TestChain_IncompleteIsNotFound(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: true, err: fmt.Errorf("wrapped: %w", schedule.ErrIncomplete)}
	c := schedule.NewChain(nil, nil, primary, mock.New())

	res := c.Lookup(context.Background(), q())
	require.True(t, res.NotFound)
	require.Equal(t, "Incomplete flight data", res.Error)
}

func TestChain_RateLimitFallsThroughToMock(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: true, err: fmt.Errorf("http 500")}
	secondary := &fakeProvider{name: models.SourceAviationStack, configured: true, err: schedule.ErrRateLimited}
	c := schedule.NewChain(nil, nil, primary, secondary, mock.New())

	res := c.Lookup(context.Background(), q())
	require.True(t, res.Success)
	require.Equal(t, models.SourceMock, res.Source)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestChain_NoTerminalProviderReportsLastError(t *testing.T) {
	primary := &fakeProvider{name: models.SourceAmadeus, configured: true, err: fmt.Errorf("boom")}
	c := schedule.NewChain(nil, nil, primary)

	res := c.Lookup(context.Background(), q())
	require.False(t, res.Success)
	require.False(t, res.NotFound)
	require.Equal(t, "boom", res.Error)
}

func TestChain_TimeoutIsAppliedPerCall(t *testing.T) {
	slow := &deadlineProvider{}
	c := schedule.NewChain(nil, nil, slow, mock.New()).WithTimeout(50 * time.Millisecond)

	res := c.Lookup(context.Background(), q())
	require.True(t, slow.hadDeadline)
	require.Equal(t, models.SourceMock, res.Source)
}

type deadlineProvider struct {
	hadDeadline bool
}

func (p *deadlineProvider) Name() models.Source { return models.SourceAviationStack }

func (p *deadlineProvider) Lookup(ctx context.Context, q schedule.Query) (models.ScheduledFlight, error) {
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return models.ScheduledFlight{}, ctx.Err()
}
