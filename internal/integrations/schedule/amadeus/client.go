package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/callsign"
	"github.com/BearBump/FlightBox/internal/flighttime"
	"github.com/BearBump/FlightBox/internal/integrations/schedule"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
)

const (
	TestBaseURL       = "https://test.api.amadeus.com"
	ProductionBaseURL = "https://api.amadeus.com"
)

// BaseURLFor maps the AMADEUS_ENV switch to an endpoint; anything but "production" is the test API.
func BaseURLFor(env string) string {
	if strings.EqualFold(env, "production") {
		return ProductionBaseURL
	}
	return TestBaseURL
}

// Client queries the Amadeus On-Demand Flight Status API (primary, OAuth2, ~2000 calls/month).
type Client struct {
	baseURL    string
	configured bool
	tokens     *TokenCache
	httpc      *http.Client
}

func New(baseURL, clientID, clientSecret string) *Client {
	if baseURL == "" {
		baseURL = TestBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:    baseURL,
		configured: clientID != "" && clientSecret != "",
		tokens:     NewTokenCache(NewClientCredentials(baseURL, clientID, clientSecret)),
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithTokenCache swaps the token cache (tests inject one backed by a fake fetcher).
func (c *Client) WithTokenCache(tc *TokenCache) *Client {
	c.tokens = tc
	c.configured = true
	return c
}

func (c *Client) Name() models.Source { return models.SourceAmadeus }

func (c *Client) Configured() bool { return c.configured }

type timing struct {
	Qualifier string `json:"qualifier"`
	Value     string `json:"value"`
}

type flightPoint struct {
	IATACode  string `json:"iataCode"`
	Departure *struct {
		Timings  []timing `json:"timings"`
		Terminal *struct {
			Code string `json:"code"`
		} `json:"terminal,omitempty"`
	} `json:"departure,omitempty"`
	Arrival *struct {
		Timings  []timing `json:"timings"`
		Terminal *struct {
			Code string `json:"code"`
		} `json:"terminal,omitempty"`
	} `json:"arrival,omitempty"`
}

type datedFlight struct {
	ScheduledDepartureDate string `json:"scheduledDepartureDate"`
	FlightDesignator       struct {
		CarrierCode  string `json:"carrierCode"`
		FlightNumber int    `json:"flightNumber"`
		Suffix       string `json:"operationalSuffix,omitempty"`
	} `json:"flightDesignator"`
	FlightPoints []flightPoint `json:"flightPoints"`
}

type scheduleResp struct {
	Data []datedFlight `json:"data"`
}

func (c *Client) Lookup(ctx context.Context, q schedule.Query) (models.ScheduledFlight, error) {
	carrier, number, ok := callsign.Split(q.FlightNumber)
	if !ok {
		return models.ScheduledFlight{}, errors.Errorf("amadeus: malformed flight number %q", q.FlightNumber)
	}

	status, body, err := c.get(ctx, carrier, number, q.Date)
	if err == nil && status == http.StatusUnauthorized {
		// Token may have been revoked early; one fresh token, one retry.
		c.tokens.Invalidate()
		status, body, err = c.get(ctx, carrier, number, q.Date)
	}
	if err != nil {
		return models.ScheduledFlight{}, err
	}

	switch {
	case status == http.StatusNotFound:
		return models.ScheduledFlight{}, schedule.ErrNotFound
	case status == http.StatusTooManyRequests:
		return models.ScheduledFlight{}, errors.Wrap(schedule.ErrRateLimited, "amadeus")
	case status == http.StatusUnauthorized:
		return models.ScheduledFlight{}, fmt.Errorf("amadeus unauthorized after token refresh")
	case status/100 != 2:
		return models.ScheduledFlight{}, fmt.Errorf("amadeus http %d", status)
	}

	var r scheduleResp
	if err := json.Unmarshal(body, &r); err != nil {
		return models.ScheduledFlight{}, errors.Wrap(err, "amadeus decode")
	}
	if len(r.Data) == 0 {
		return models.ScheduledFlight{}, schedule.ErrNotFound
	}
	return toScheduledFlight(r.Data[0], q.FlightNumber)
}

func (c *Client) get(ctx context.Context, carrier, number string, date time.Time) (int, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return 0, nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v2/schedule/flights"
	qv := u.Query()
	qv.Set("carrierCode", carrier)
	qv.Set("flightNumber", number)
	qv.Set("scheduledDepartureDate", date.Format(models.DateLayout))
	u.RawQuery = qv.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return 0, nil, errors.Wrap(err, "amadeus decode")
		}
	}
	return resp.StatusCode, raw, nil
}

func toScheduledFlight(df datedFlight, requested string) (models.ScheduledFlight, error) {
	if len(df.FlightPoints) < 2 {
		return models.ScheduledFlight{}, schedule.ErrIncomplete
	}
	first := df.FlightPoints[0]
	last := df.FlightPoints[len(df.FlightPoints)-1]
	if first.Departure == nil || last.Arrival == nil {
		return models.ScheduledFlight{}, schedule.ErrIncomplete
	}

	out := models.ScheduledFlight{
		FlightNumber:       models.NormalizeFlightNumber(requested),
		DepartureAirport:   first.IATACode,
		ArrivalAirport:     last.IATACode,
		ScheduledDeparture: flighttime.Normalize(pickTiming(first.Departure.Timings, "STD")),
		ScheduledArrival:   flighttime.Normalize(pickTiming(last.Arrival.Timings, "STA")),
		Status:             "scheduled",
	}
	if df.FlightDesignator.CarrierCode != "" {
		out.FlightNumber = df.FlightDesignator.CarrierCode + strconv.Itoa(df.FlightDesignator.FlightNumber) + df.FlightDesignator.Suffix
	}
	if first.Departure.Terminal != nil {
		out.DepartureTerminal = first.Departure.Terminal.Code
	}
	if last.Arrival.Terminal != nil {
		out.ArrivalTerminal = last.Arrival.Terminal.Code
	}
	if out.ScheduledDeparture == "" || out.ScheduledArrival == "" {
		return models.ScheduledFlight{}, schedule.ErrIncomplete
	}
	return out, nil
}

func pickTiming(ts []timing, qualifier string) string {
	for _, t := range ts {
		if t.Qualifier == qualifier {
			return t.Value
		}
	}
	if len(ts) > 0 {
		return ts[0].Value
	}
	return ""
}
