package poller

import (
	"testing"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite

	now     time.Time
	planner *Planner
}

func (s *PlannerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 10, 15, 30, 0, 0, time.UTC)
	s.planner = NewPlanner(PlannerConfig{}, func() time.Time { return s.now })
}

func (s *PlannerSuite) day(offset int) time.Time {
	return time.Date(2026, 1, 10+offset, 0, 0, 0, 0, time.UTC)
}

func (s *PlannerSuite) TestDaysUntil_IgnoresTimeOfDay() {
	s.Equal(0, s.planner.DaysUntil(s.day(0)))
	s.Equal(0, s.planner.DaysUntil(s.day(0).Add(23*time.Hour)))
	s.Equal(1, s.planner.DaysUntil(s.day(1).Add(5*time.Minute)))
	s.Equal(-1, s.planner.DaysUntil(s.day(-1)))
}

func (s *PlannerSuite) TestBoundaries() {
	cases := []struct {
		days int
		want models.Frequency
	}{
		{-3, models.FrequencyRealtime},
		{0, models.FrequencyRealtime},
		{1, models.FrequencyFiveDaily},
		{7, models.FrequencyFiveDaily},
		{8, models.FrequencyTwiceDaily},
		{60, models.FrequencyTwiceDaily},
	}
	for _, c := range cases {
		s.Equal(c.want, s.planner.GetPollingSchedule(s.day(c.days)).Frequency, "days=%d", c.days)
	}
}

func (s *PlannerSuite) TestRealtimeSchedule() {
	ps := s.planner.GetPollingSchedule(s.day(0))
	s.Equal(-1, ps.ChecksRemaining)
	s.Equal(s.now.Add(5*time.Minute), ps.NextCheckAt)
	s.NotEmpty(ps.Reason)
}

func (s *PlannerSuite) TestFiveDailySchedule() {
	ps := s.planner.GetPollingSchedule(s.day(3))
	s.Equal(15, ps.ChecksRemaining)
	s.Equal(s.now.Add(24*time.Hour/5), ps.NextCheckAt)
	s.Contains(ps.Reason, "3 day")
}

func (s *PlannerSuite) TestTwiceDailySchedule() {
	ps := s.planner.GetPollingSchedule(s.day(10))
	s.Equal(20, ps.ChecksRemaining)
	s.Equal(s.now.Add(12*time.Hour), ps.NextCheckAt)
}

func (s *PlannerSuite) TestDeterministic() {
	a := s.planner.GetPollingSchedule(s.day(5))
	b := s.planner.GetPollingSchedule(s.day(5))
	s.Equal(a, b)
}

func (s *PlannerSuite) TestCustomIntervals() {
	p := NewPlanner(PlannerConfig{RealtimeInterval: time.Minute, FiveDailyWindowDays: 3}, func() time.Time { return s.now })
	s.Equal(models.FrequencyTwiceDaily, p.GetPollingSchedule(s.day(4)).Frequency)
	s.Equal(time.Minute, p.Interval(models.FrequencyRealtime))
}

func (s *PlannerSuite) TestBackoffDelay() {
	s.Equal(5*time.Minute, s.planner.BackoffDelay(1))
	s.Equal(15*time.Minute, s.planner.BackoffDelay(2))
	s.Equal(30*time.Minute, s.planner.BackoffDelay(3))
	s.Equal(60*time.Minute, s.planner.BackoffDelay(4))
	s.Equal(60*time.Minute, s.planner.BackoffDelay(100))
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
