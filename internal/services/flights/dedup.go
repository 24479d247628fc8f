package flights

import (
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
)

// GetUniqueFlights collapses guest itineraries into the set of distinct flight legs.
// A leg needs both a flight number and a date. The first guest seen on a leg decides
// its expected time, and the output keeps first-seen order.
func GetUniqueFlights(guests []models.Guest) []models.FlightToTrack {
	out := make([]models.FlightToTrack, 0, len(guests))
	seen := make(map[string]struct{}, len(guests))

	add := func(number string, date *time.Time, expected string, dir models.Direction) {
		fn := models.NormalizeFlightNumber(number)
		if fn == "" || date == nil || date.IsZero() {
			return
		}
		f := models.FlightToTrack{
			FlightNumber: fn,
			FlightDate:   models.CivilDate(*date),
			Direction:    dir,
			ExpectedTime: strings.TrimSpace(expected),
		}
		k := f.Key()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}

	for _, g := range guests {
		add(g.ArrivalFlight, g.ArrivalDate, g.ArrivalTime, models.DirectionArrival)
		add(g.DepartureFlight, g.DepartureDate, g.DepartureTime, models.DirectionDeparture)
	}
	return out
}
