package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://opensky-network.org"

var ErrRateLimited = errors.New("rate limit exceeded")

type BoundingBox struct {
	LaMin float64 `json:"lamin"`
	LoMin float64 `json:"lomin"`
	LaMax float64 `json:"lamax"`
	LoMax float64 `json:"lomax"`
}

// StateVector is one aircraft row of /api/states/all. Nullable numeric columns stay pointers.
type StateVector struct {
	ICAO24        string
	Callsign      string
	OriginCountry string
	TimePosition  *int64
	LastContact   int64
	Longitude     *float64
	Latitude      *float64
	BaroAltitude  *float64
	OnGround      bool
	Velocity      *float64
	TrueTrack     *float64
	VerticalRate  *float64
	GeoAltitude   *float64
	Squawk        string
}

// UnmarshalJSON decodes the positional array form the API uses for states.
func (s *StateVector) UnmarshalJSON(b []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(b, &row); err != nil {
		return err
	}
	if len(row) < 11 {
		return fmt.Errorf("state vector has %d columns", len(row))
	}
	col := func(i int, dst any) {
		if i < len(row) {
			_ = json.Unmarshal(row[i], dst)
		}
	}
	col(0, &s.ICAO24)
	col(1, &s.Callsign)
	s.Callsign = strings.TrimSpace(s.Callsign)
	col(2, &s.OriginCountry)
	col(3, &s.TimePosition)
	col(4, &s.LastContact)
	col(5, &s.Longitude)
	col(6, &s.Latitude)
	col(7, &s.BaroAltitude)
	col(8, &s.OnGround)
	col(9, &s.Velocity)
	col(10, &s.TrueTrack)
	col(11, &s.VerticalRate)
	col(13, &s.GeoAltitude)
	col(14, &s.Squawk)
	return nil
}

type statesResp struct {
	Time   int64         `json:"time"`
	States []StateVector `json:"states"`
}

// Client talks to the OpenSky Network REST API (anonymous access, ~4000 credits/day).
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetAllStates returns every state vector, or only those inside bbox when it is non-nil.
func (c *Client) GetAllStates(ctx context.Context, bbox *BoundingBox) ([]StateVector, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/api/states/all"
	if bbox != nil {
		q := u.Query()
		q.Set("lamin", strconv.FormatFloat(bbox.LaMin, 'f', -1, 64))
		q.Set("lomin", strconv.FormatFloat(bbox.LoMin, 'f', -1, 64))
		q.Set("lamax", strconv.FormatFloat(bbox.LaMax, 'f', -1, 64))
		q.Set("lomax", strconv.FormatFloat(bbox.LoMax, 'f', -1, 64))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("opensky http %d", resp.StatusCode)
	}

	var r statesResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "opensky decode")
	}
	return r.States, nil
}
