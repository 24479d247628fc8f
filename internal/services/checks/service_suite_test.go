package checks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/BearBump/FlightBox/internal/storage/pgflights"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) UpsertFlightChecks(ctx context.Context, flights []models.FlightToTrack) ([]*models.FlightCheck, error) {
	args := m.Called(ctx, flights)
	out, _ := args.Get(0).([]*models.FlightCheck)
	return out, args.Error(1)
}

func (m *mockRepo) GetFlightChecks(ctx context.Context, ids []uint64) ([]*models.FlightCheck, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]*models.FlightCheck)
	return out, args.Error(1)
}

func (m *mockRepo) ListFlightChecks(ctx context.Context, f pgflights.ListFilter) ([]*models.FlightCheck, error) {
	args := m.Called(ctx, f)
	out, _ := args.Get(0).([]*models.FlightCheck)
	return out, args.Error(1)
}

func (m *mockRepo) ListCheckResults(ctx context.Context, checkID uint64, limit, offset int) ([]*models.FlightCheckResult, error) {
	args := m.Called(ctx, checkID, limit, offset)
	out, _ := args.Get(0).([]*models.FlightCheckResult)
	return out, args.Error(1)
}

func (m *mockRepo) RefreshFlightCheck(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) ApplyVerification(ctx context.Context, upd pgflights.CheckUpdate) error {
	return m.Called(ctx, upd).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, f models.FlightToTrack) error {
	return m.Called(ctx, f).Error(0)
}

type ServiceSuite struct {
	suite.Suite

	repo  *mockRepo
	cache *mockCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &mockRepo{}
	s.cache = &mockCache{}
	s.svc = New(s.repo, s.cache, 10*time.Minute, nil)
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) TestTrackFlights_NormalizesAndDedups() {
	in := []models.FlightToTrack{
		{FlightNumber: "sq 238", FlightDate: day(5).Add(9 * time.Hour), Direction: models.DirectionArrival, ExpectedTime: "15:15"},
		{FlightNumber: "SQ238", FlightDate: day(5), Direction: models.DirectionArrival},
		{FlightNumber: "SQ238", FlightDate: day(9), Direction: models.DirectionDeparture},
	}
	want := []models.FlightToTrack{
		{FlightNumber: "SQ238", FlightDate: day(5), Direction: models.DirectionArrival, ExpectedTime: "15:15"},
		{FlightNumber: "SQ238", FlightDate: day(9), Direction: models.DirectionDeparture},
	}
	s.repo.On("UpsertFlightChecks", mock.Anything, want).
		Return([]*models.FlightCheck{{ID: 1}, {ID: 2}}, nil).Once()

	out, err := s.svc.TrackFlights(context.Background(), in)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestTrackFlights_ValidateErrors() {
	ctx := context.Background()
	_, err := s.svc.TrackFlights(ctx, nil)
	s.Require().Error(err)

	_, err = s.svc.TrackFlights(ctx, []models.FlightToTrack{{FlightNumber: " ", FlightDate: day(1), Direction: models.DirectionArrival}})
	s.Require().Error(err)

	_, err = s.svc.TrackFlights(ctx, []models.FlightToTrack{{FlightNumber: "SQ1", Direction: models.DirectionArrival}})
	s.Require().Error(err)

	_, err = s.svc.TrackFlights(ctx, []models.FlightToTrack{{FlightNumber: "SQ1", FlightDate: day(1), Direction: "sideways"}})
	s.Require().Error(err)

	s.repo.AssertNotCalled(s.T(), "UpsertFlightChecks", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetChecks_CacheHitAndMissPreserveOrder() {
	hit := models.FlightCheck{ID: 2, FlightNumber: "SQ114"}
	b, _ := json.Marshal(hit)

	s.cache.On("Get", mock.Anything, "check:1:current").Return(nil, false, nil).Once()
	s.cache.On("Get", mock.Anything, "check:2:current").Return(b, true, nil).Once()
	s.cache.On("Get", mock.Anything, "check:3:current").Return([]byte("{bad"), true, nil).Once()
	s.repo.On("GetFlightChecks", mock.Anything, []uint64{1, 3}).
		Return([]*models.FlightCheck{{ID: 1}, {ID: 3}}, nil).Once()
	s.cache.On("Set", mock.Anything, "check:1:current", mock.Anything, 10*time.Minute).Return(nil).Once()
	s.cache.On("Set", mock.Anything, "check:3:current", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.GetChecks(context.Background(), []uint64{1, 2, 3})
	s.Require().NoError(err)
	s.Require().Len(out, 3)
	s.Require().Equal(uint64(1), out[0].ID)
	s.Require().Equal("SQ114", out[1].FlightNumber)
	s.Require().Equal(uint64(3), out[2].ID)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestGetChecks_Empty() {
	out, err := s.svc.GetChecks(context.Background(), nil)
	s.Require().NoError(err)
	s.Require().Empty(out)
}

func (s *ServiceSuite) TestRefreshCheck_InvalidatesResultAndCurrent() {
	inv := &mockInvalidator{}
	s.svc.WithResultInvalidator(inv)

	check := &models.FlightCheck{ID: 7, FlightNumber: "SQ238", FlightDate: day(5), Direction: models.DirectionArrival}
	s.repo.On("GetFlightChecks", mock.Anything, []uint64{7}).Return([]*models.FlightCheck{check}, nil).Once()
	inv.On("Invalidate", mock.Anything, check.Flight()).Return(errors.New("redis down")).Once()
	s.repo.On("RefreshFlightCheck", mock.Anything, uint64(7)).Return(nil).Once()
	s.cache.On("Delete", mock.Anything, []string{"check:7:current"}).Return(nil).Once()

	s.Require().NoError(s.svc.RefreshCheck(context.Background(), 7))
	inv.AssertExpectations(s.T())
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRefreshCheck_RequiresID() {
	s.Require().Error(s.svc.RefreshCheck(context.Background(), 0))
}

func (s *ServiceSuite) TestApplyVerified_Validate() {
	s.Require().Error(s.svc.ApplyVerified(context.Background(), messages.FlightVerified{}))
	s.Require().Error(s.svc.ApplyVerified(context.Background(), messages.FlightVerified{CheckID: 1}))
	s.repo.AssertNotCalled(s.T(), "ApplyVerification", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyVerified_DefaultsAndReload() {
	mismatch := true
	s.repo.On("ApplyVerification", mock.Anything, mock.MatchedBy(func(u pgflights.CheckUpdate) bool {
		return u.CheckID == 3 && u.EventID == 99 &&
			!u.CheckedAt.IsZero() && u.NextCheckAt.Sub(u.CheckedAt) == time.Hour &&
			u.Status == models.VerificationChanged && u.Source == models.SourceMock &&
			u.TimeMismatch != nil && *u.TimeMismatch && u.TimeDifference == "-2h 55m"
	})).Return(nil).Once()
	s.repo.On("GetFlightChecks", mock.Anything, []uint64{3}).Return([]*models.FlightCheck{{ID: 3}}, nil).Once()
	s.cache.On("Set", mock.Anything, "check:3:current", mock.Anything, 10*time.Minute).Return(nil).Once()

	err := s.svc.ApplyVerified(context.Background(), messages.FlightVerified{
		EventID:        99,
		CheckID:        3,
		Status:         string(models.VerificationChanged),
		Source:         string(models.SourceMock),
		TimeMismatch:   &mismatch,
		TimeDifference: "-2h 55m",
	})
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestApplyVerified_RepoErrorStops() {
	want := errors.New("apply failed")
	s.repo.On("ApplyVerification", mock.Anything, mock.Anything).Return(want).Once()
	err := s.svc.ApplyVerified(context.Background(), messages.FlightVerified{EventID: 1, CheckID: 1, CheckedAt: time.Now().UTC()})
	s.Require().ErrorIs(err, want)
	s.repo.AssertNotCalled(s.T(), "GetFlightChecks", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestApplyVerified_NoCacheNoReload() {
	svc := New(s.repo, nil, 0, nil)
	s.repo.On("ApplyVerification", mock.Anything, mock.Anything).Return(nil).Once()
	s.Require().NoError(svc.ApplyVerified(context.Background(), messages.FlightVerified{EventID: 2, CheckID: 5}))
	s.repo.AssertNotCalled(s.T(), "GetFlightChecks", mock.Anything, []uint64{5})
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
