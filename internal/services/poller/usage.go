package poller

import (
	"time"

	"github.com/BearBump/FlightBox/internal/models"
)

// Free-tier ceilings of the upstream APIs.
const (
	SecondaryMonthlyLimit = 100
	PrimaryMonthlyLimit   = 2000
	LiveDailyLimit        = 4000
)

// EstimateAPIUsage sums the calls a set of flights will cost until they depart.
// Schedule calls are one per remaining check of every flight not yet in its
// realtime window. Live calls are batched, so every realtime flight on the same
// day shares one snapshot per interval.
func (p *Planner) EstimateAPIUsage(flights []models.FlightToTrack) models.APIUsageEstimate {
	var est models.APIUsageEstimate
	liveDays := map[string]struct{}{}

	for _, f := range flights {
		ps := p.GetPollingSchedule(f.FlightDate)
		if ps.Frequency == models.FrequencyRealtime {
			liveDays[models.CivilDate(f.FlightDate).Format(models.DateLayout)] = struct{}{}
			continue
		}
		est.ScheduleProviderCalls += ps.ChecksRemaining
	}

	// one batched snapshot per realtime interval
	perDay := int(24 * time.Hour / p.cfg.RealtimeInterval)
	est.LiveProviderCalls = len(liveDays) * perDay

	est.WithinFreeTier = est.ScheduleProviderCalls <= PrimaryMonthlyLimit+SecondaryMonthlyLimit &&
		perDay <= LiveDailyLimit
	return est
}
