package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/cache"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/BearBump/FlightBox/internal/storage/pgflights"
	"github.com/pkg/errors"
)

const maxTrackBatch = 10_000

type Repository interface {
	UpsertFlightChecks(ctx context.Context, flights []models.FlightToTrack) ([]*models.FlightCheck, error)
	GetFlightChecks(ctx context.Context, ids []uint64) ([]*models.FlightCheck, error)
	ListFlightChecks(ctx context.Context, f pgflights.ListFilter) ([]*models.FlightCheck, error)
	ListCheckResults(ctx context.Context, checkID uint64, limit, offset int) ([]*models.FlightCheckResult, error)
	RefreshFlightCheck(ctx context.Context, id uint64) error
	ApplyVerification(ctx context.Context, upd pgflights.CheckUpdate) error
}

// ResultInvalidator drops a cached verification result so the next check hits the providers.
type ResultInvalidator interface {
	Invalidate(ctx context.Context, f models.FlightToTrack) error
}

// Service owns the persisted flight checks: registration, reads through a short
// lived cache, manual refresh and applying worker results.
type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
	results    ResultInvalidator
	log        logger.Logger
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, cache: c, currentTTL: currentTTL, log: log}
}

func (s *Service) WithResultInvalidator(r ResultInvalidator) *Service {
	s.results = r
	return s
}

func (s *Service) TrackFlights(ctx context.Context, flights []models.FlightToTrack) ([]*models.FlightCheck, error) {
	if len(flights) == 0 {
		return nil, errors.New("flights is empty")
	}
	if len(flights) > maxTrackBatch {
		return nil, errors.Errorf("too many flights (max %d)", maxTrackBatch)
	}

	clean := make([]models.FlightToTrack, 0, len(flights))
	seen := make(map[string]struct{}, len(flights))
	for _, f := range flights {
		f.FlightNumber = models.NormalizeFlightNumber(f.FlightNumber)
		if f.FlightNumber == "" {
			return nil, errors.New("flightNumber is required")
		}
		if f.FlightDate.IsZero() {
			return nil, errors.New("flightDate is required")
		}
		if !f.Direction.Valid() {
			return nil, errors.Errorf("invalid direction %q", f.Direction)
		}
		f.FlightDate = models.CivilDate(f.FlightDate)
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, f)
	}

	return s.repo.UpsertFlightChecks(ctx, clean)
}

func (s *Service) GetChecks(ctx context.Context, ids []uint64) ([]*models.FlightCheck, error) {
	if len(ids) == 0 {
		return []*models.FlightCheck{}, nil
	}

	miss := make([]uint64, 0, len(ids))
	got := make(map[uint64]*models.FlightCheck, len(ids))

	if s.cacheEnabled() {
		for _, id := range ids {
			b, ok, err := s.cache.Get(ctx, currentKey(id))
			if err != nil || !ok {
				miss = append(miss, id)
				continue
			}
			var c models.FlightCheck
			if json.Unmarshal(b, &c) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &c
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		fromDB, err := s.repo.GetFlightChecks(ctx, miss)
		if err != nil {
			return nil, err
		}
		for _, c := range fromDB {
			got[c.ID] = c
			s.storeCurrent(ctx, c)
		}
	}

	out := make([]*models.FlightCheck, 0, len(ids))
	for _, id := range ids {
		if c, ok := got[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) ListChecks(ctx context.Context, f pgflights.ListFilter) ([]*models.FlightCheck, error) {
	return s.repo.ListFlightChecks(ctx, f)
}

func (s *Service) ListCheckResults(ctx context.Context, checkID uint64, limit, offset int) ([]*models.FlightCheckResult, error) {
	if checkID == 0 {
		return nil, errors.New("checkId is required")
	}
	return s.repo.ListCheckResults(ctx, checkID, limit, offset)
}

// RefreshCheck makes the check due now and drops every cached answer for it.
func (s *Service) RefreshCheck(ctx context.Context, id uint64) error {
	if id == 0 {
		return errors.New("checkId is required")
	}
	if s.results != nil {
		found, err := s.repo.GetFlightChecks(ctx, []uint64{id})
		if err != nil {
			return err
		}
		if len(found) == 1 {
			if err := s.results.Invalidate(ctx, found[0].Flight()); err != nil {
				s.log.Warn("result cache invalidation failed", "check_id", id, "error", err.Error())
			}
		}
	}
	if err := s.repo.RefreshFlightCheck(ctx, id); err != nil {
		return err
	}
	if s.cacheEnabled() {
		_ = s.cache.Delete(ctx, currentKey(id))
	}
	return nil
}

// ApplyVerified persists one flight.verified event and refreshes the cached state.
func (s *Service) ApplyVerified(ctx context.Context, msg messages.FlightVerified) error {
	if msg.CheckID == 0 {
		return errors.New("check_id is required")
	}
	if msg.EventID == 0 {
		return errors.New("event_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(time.Hour)
	}

	err := s.repo.ApplyVerification(ctx, pgflights.CheckUpdate{
		CheckID:        msg.CheckID,
		EventID:        msg.EventID,
		CheckedAt:      msg.CheckedAt,
		Status:         models.VerificationStatus(msg.Status),
		Source:         models.Source(msg.Source),
		ScheduledTime:  msg.ScheduledTime,
		TimeMismatch:   msg.TimeMismatch,
		TimeDifference: msg.TimeDifference,
		NextCheckAt:    msg.NextCheckAt,
		Error:          msg.Error,
	})
	if err != nil {
		return err
	}

	if s.cacheEnabled() {
		cs, err := s.repo.GetFlightChecks(ctx, []uint64{msg.CheckID})
		if err == nil && len(cs) == 1 {
			s.storeCurrent(ctx, cs[0])
		}
	}
	return nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

func (s *Service) storeCurrent(ctx context.Context, c *models.FlightCheck) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(c.ID), b, s.currentTTL)
}

func currentKey(id uint64) string {
	return fmt.Sprintf("check:%d:current", id)
}
