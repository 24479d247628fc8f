package mock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/models"
)

// Destination of generated placeholder flights (the event city).
const PlaceholderArrivalAirport = "SIN"

// Client is the terminal schedule source: it never fails. Known flight numbers come from a
// static table, anything else gets a deterministic placeholder derived from an FNV hash.
type Client struct {
	flights map[string]models.ScheduledFlight
}

func New() *Client {
	return &Client{flights: knownFlights()}
}

func (c *Client) Name() models.Source { return models.SourceMock }

func (c *Client) Lookup(_ context.Context, q schedule.Query) (models.ScheduledFlight, error) {
	fn := models.NormalizeFlightNumber(q.FlightNumber)
	if f, ok := c.flights[fn]; ok {
		return f, nil
	}
	return placeholder(fn), nil
}

func placeholder(fn string) models.ScheduledFlight {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fn))
	v := h.Sum32()

	// Departures between 06:00 and 21:55 on 5-minute steps, 1..6h block time.
	dep := 6*60 + int(v%192)*5
	block := 60 + int((v>>8)%61)*5
	arr := (dep + block) % (24 * 60)

	return models.ScheduledFlight{
		FlightNumber:       fn,
		DepartureAirport:   "TBA",
		ArrivalAirport:     PlaceholderArrivalAirport,
		ScheduledDeparture: clock(dep),
		ScheduledArrival:   clock(arr),
		Status:             "scheduled",
	}
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func knownFlights() map[string]models.ScheduledFlight {
	list := []models.ScheduledFlight{
		{FlightNumber: "SQ238", Airline: "Singapore Airlines", DepartureAirport: "MEL", ArrivalAirport: "SIN", ScheduledDeparture: "09:40", ScheduledArrival: "15:15", ArrivalTerminal: "3", Status: "scheduled"},
		{FlightNumber: "SQ114", Airline: "Singapore Airlines", DepartureAirport: "KUL", ArrivalAirport: "SIN", ScheduledDeparture: "13:55", ScheduledArrival: "15:00", ArrivalTerminal: "2", Status: "scheduled"},
		{FlightNumber: "SQ117", Airline: "Singapore Airlines", DepartureAirport: "SIN", ArrivalAirport: "KUL", ScheduledDeparture: "16:30", ScheduledArrival: "17:35", DepartureTerminal: "2", Status: "scheduled"},
		{FlightNumber: "SQ321", Airline: "Singapore Airlines", DepartureAirport: "LHR", ArrivalAirport: "SIN", ScheduledDeparture: "11:25", ScheduledArrival: "07:50", ArrivalTerminal: "3", Status: "scheduled"},
		{FlightNumber: "TR801", Airline: "Scoot", DepartureAirport: "TPE", ArrivalAirport: "SIN", ScheduledDeparture: "06:35", ScheduledArrival: "11:10", ArrivalTerminal: "1", Status: "scheduled"},
		{FlightNumber: "MH603", Airline: "Malaysia Airlines", DepartureAirport: "KUL", ArrivalAirport: "SIN", ScheduledDeparture: "08:00", ScheduledArrival: "09:05", ArrivalTerminal: "2", Status: "scheduled"},
		{FlightNumber: "CX691", Airline: "Cathay Pacific", DepartureAirport: "HKG", ArrivalAirport: "SIN", ScheduledDeparture: "10:05", ScheduledArrival: "14:00", ArrivalTerminal: "4", Status: "scheduled"},
		{FlightNumber: "QF1", Airline: "Qantas", DepartureAirport: "SYD", ArrivalAirport: "SIN", ScheduledDeparture: "15:40", ScheduledArrival: "21:15", ArrivalTerminal: "1", Status: "scheduled"},
	}
	out := make(map[string]models.ScheduledFlight, len(list))
	for _, f := range list {
		out[f.FlightNumber] = f
	}
	return out
}
