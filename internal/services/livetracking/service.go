package livetracking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/FlightBox/internal/callsign"
	"github.com/BearBump/FlightBox/internal/integrations/opensky"
	"github.com/BearBump/FlightBox/internal/logger"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
)

const ErrNotTracked = "Flight not currently tracked"

type SnapshotSource interface {
	Snapshot(ctx context.Context) opensky.SnapshotResult
}

// Service answers live-position questions from the shared all-flights snapshot.
type Service struct {
	snapshots SnapshotSource
	log       logger.Logger

	// airport traffic uses its own bbox-scoped caches, created on first use
	fetcher opensky.StatesFetcher
	ttl     time.Duration
	mu      sync.Mutex
	airport map[string]*opensky.SnapshotCache
}

func New(snapshots SnapshotSource, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{snapshots: snapshots, log: log, airport: map[string]*opensky.SnapshotCache{}}
}

// WithAirportFeed enables GetAirportTraffic.
func (s *Service) WithAirportFeed(fetcher opensky.StatesFetcher, ttl time.Duration) *Service {
	s.fetcher = fetcher
	s.ttl = ttl
	return s
}

func (s *Service) GetLiveFlightStatus(ctx context.Context, flightNumber string) models.ProviderResponse[models.LiveFlightStatus] {
	resp := models.ProviderResponse[models.LiveFlightStatus]{Source: models.SourceOpenSky}

	snap := s.snapshots.Snapshot(ctx)
	if !snap.Success {
		resp.Error = snap.Error
		return resp
	}

	cs := callsign.FromFlightNumber(flightNumber)
	var match *opensky.StateVector
	for i := range snap.States {
		st := &snap.States[i]
		if st.Callsign == cs {
			match = st
			break
		}
		if match == nil && prefixMatch(st.Callsign, cs) {
			match = st
		}
	}
	if match == nil {
		resp.Error = ErrNotTracked
		return resp
	}

	live := toLiveStatus(flightNumber, *match)
	resp.Success = true
	resp.Data = &live
	return resp
}

// GetBatchFlightStatus resolves many flights against a single snapshot. Every input
// flight number is present in the result; unmatched ones map to nil.
func (s *Service) GetBatchFlightStatus(ctx context.Context, flightNumbers []string) (map[string]*models.LiveFlightStatus, error) {
	out := make(map[string]*models.LiveFlightStatus, len(flightNumbers))
	for _, fn := range flightNumbers {
		out[fn] = nil
	}
	if len(flightNumbers) == 0 {
		return out, nil
	}

	snap := s.snapshots.Snapshot(ctx)
	if !snap.Success {
		if errors.Is(snap.Err, opensky.ErrRateLimited) {
			return out, snap.Err
		}
		return out, errors.New(snap.Error)
	}

	byCallsign := make(map[string][]string, len(flightNumbers))
	for _, fn := range flightNumbers {
		cs := callsign.FromFlightNumber(fn)
		byCallsign[cs] = append(byCallsign[cs], fn)
	}

	exact := make(map[string]bool, len(flightNumbers))
	for _, st := range snap.States {
		if fns, ok := byCallsign[st.Callsign]; ok {
			for _, fn := range fns {
				live := toLiveStatus(fn, st)
				out[fn] = &live
			}
			exact[st.Callsign] = true
			continue
		}
		base, ok := suffixBase(st.Callsign)
		if !ok || exact[base] {
			continue
		}
		for _, fn := range byCallsign[base] {
			if out[fn] == nil {
				live := toLiveStatus(fn, st)
				out[fn] = &live
			}
		}
	}
	return out, nil
}

// GetAirportTraffic lists aircraft currently inside the bounding box of a known airport.
func (s *Service) GetAirportTraffic(ctx context.Context, iata string) ([]models.LiveFlightStatus, error) {
	if s.fetcher == nil {
		return nil, errors.New("airport feed is not configured")
	}
	code := strings.ToUpper(strings.TrimSpace(iata))
	bbox, ok := AirportBox(code)
	if !ok {
		return nil, errors.Errorf("unknown airport %q", iata)
	}

	s.mu.Lock()
	c, ok := s.airport[code]
	if !ok {
		c = opensky.NewSnapshotCache(s.fetcher, s.ttl, nil).WithBoundingBox(bbox)
		s.airport[code] = c
	}
	s.mu.Unlock()

	snap := c.Snapshot(ctx)
	if !snap.Success {
		if snap.Err != nil {
			return nil, errors.Wrapf(snap.Err, "airport %s traffic", code)
		}
		return nil, errors.New(snap.Error)
	}

	out := make([]models.LiveFlightStatus, 0, len(snap.States))
	for _, st := range snap.States {
		if st.Callsign == "" {
			continue
		}
		out = append(out, toLiveStatus("", st))
	}
	s.log.Debug("airport traffic", "airport", code, "aircraft", len(out), "from_cache", snap.FromCache)
	return out, nil
}

// prefixMatch accepts a broadcast callsign carrying one letter suffix after the
// flight digits (SIA238A for SIA238), never a longer number (SIA2380) or a longer suffix.
func prefixMatch(broadcast, want string) bool {
	base, ok := suffixBase(broadcast)
	return ok && want != "" && base == want
}

// suffixBase strips a single trailing letter that follows a digit.
func suffixBase(callsign string) (string, bool) {
	n := len(callsign)
	if n < 2 {
		return "", false
	}
	last, prev := callsign[n-1], callsign[n-2]
	if last < 'A' || last > 'Z' || prev < '0' || prev > '9' {
		return "", false
	}
	return callsign[:n-1], true
}

func toLiveStatus(flightNumber string, st opensky.StateVector) models.LiveFlightStatus {
	live := models.LiveFlightStatus{
		FlightNumber:  flightNumber,
		Callsign:      st.Callsign,
		ICAO24:        st.ICAO24,
		OriginCountry: st.OriginCountry,
		IsInAir:       !st.OnGround,
		HasLanded:     st.OnGround,
		LastUpdate:    time.Unix(st.LastContact, 0).UTC(),
	}
	if st.Latitude != nil && st.Longitude != nil {
		live.Position = &models.Position{
			Lat:      *st.Latitude,
			Lng:      *st.Longitude,
			Altitude: deref(st.BaroAltitude),
			Heading:  deref(st.TrueTrack),
			Speed:    deref(st.Velocity),
		}
	}
	return live
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
