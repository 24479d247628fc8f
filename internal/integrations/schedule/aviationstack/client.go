package aviationstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/flighttime"
	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "http://api.aviationstack.com"

// Client is the secondary schedule source (API key, 100 calls/month on the free tier).
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Name() models.Source { return models.SourceAviationStack }

func (c *Client) Configured() bool { return c.apiKey != "" }

type endpoint struct {
	Airport   string `json:"airport"`
	IATA      string `json:"iata"`
	Terminal  string `json:"terminal"`
	Scheduled string `json:"scheduled"`
}

type flightsResp struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Data []struct {
		FlightDate   string   `json:"flight_date"`
		FlightStatus string   `json:"flight_status"`
		Departure    endpoint `json:"departure"`
		Arrival      endpoint `json:"arrival"`
		Airline      struct {
			Name string `json:"name"`
			IATA string `json:"iata"`
		} `json:"airline"`
		Flight struct {
			Number string `json:"number"`
			IATA   string `json:"iata"`
		} `json:"flight"`
	} `json:"data"`
}

func (c *Client) Lookup(ctx context.Context, q schedule.Query) (models.ScheduledFlight, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return models.ScheduledFlight{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/flights"
	qv := u.Query()
	qv.Set("access_key", c.apiKey)
	qv.Set("flight_iata", models.NormalizeFlightNumber(q.FlightNumber))
	qv.Set("flight_date", q.Date.Format(models.DateLayout))
	if q.ArrivalAirport != "" {
		qv.Set("arr_iata", strings.ToUpper(q.ArrivalAirport))
	}
	u.RawQuery = qv.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.ScheduledFlight{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.ScheduledFlight{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ScheduledFlight{}, schedule.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.ScheduledFlight{}, errors.Wrap(schedule.ErrRateLimited, "aviationstack")
	}

	var r flightsResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		if resp.StatusCode/100 != 2 {
			return models.ScheduledFlight{}, fmt.Errorf("aviationstack http %d", resp.StatusCode)
		}
		return models.ScheduledFlight{}, errors.Wrap(err, "aviationstack decode")
	}
	if r.Error != nil {
		// The API reports quota problems in the body, sometimes with a 200.
		switch r.Error.Code {
		case "usage_limit_reached", "rate_limit_reached", "too_many_requests":
			return models.ScheduledFlight{}, errors.Wrap(schedule.ErrRateLimited, "aviationstack: "+r.Error.Message)
		}
		return models.ScheduledFlight{}, fmt.Errorf("aviationstack error %s: %s", r.Error.Code, r.Error.Message)
	}
	if resp.StatusCode/100 != 2 {
		return models.ScheduledFlight{}, fmt.Errorf("aviationstack http %d", resp.StatusCode)
	}
	if len(r.Data) == 0 {
		return models.ScheduledFlight{}, schedule.ErrNotFound
	}

	d := r.Data[0]
	out := models.ScheduledFlight{
		FlightNumber:       d.Flight.IATA,
		Airline:            d.Airline.Name,
		DepartureAirport:   d.Departure.IATA,
		ArrivalAirport:     d.Arrival.IATA,
		ScheduledDeparture: flighttime.Normalize(d.Departure.Scheduled),
		ScheduledArrival:   flighttime.Normalize(d.Arrival.Scheduled),
		DepartureTerminal:  d.Departure.Terminal,
		ArrivalTerminal:    d.Arrival.Terminal,
		Status:             d.FlightStatus,
	}
	if out.FlightNumber == "" {
		out.FlightNumber = models.NormalizeFlightNumber(q.FlightNumber)
	}
	if out.ScheduledDeparture == "" || out.ScheduledArrival == "" {
		return models.ScheduledFlight{}, schedule.ErrIncomplete
	}
	return out, nil
}
