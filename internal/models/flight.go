package models

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionArrival   Direction = "arrival"
	DirectionDeparture Direction = "departure"
)

func (d Direction) Valid() bool {
	return d == DirectionArrival || d == DirectionDeparture
}

type Frequency string

const (
	FrequencyTwiceDaily Frequency = "twice_daily"
	FrequencyFiveDaily  Frequency = "five_daily"
	FrequencyRealtime   Frequency = "realtime"
)

type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationChanged  VerificationStatus = "changed"
	VerificationNotFound VerificationStatus = "not_found"
	VerificationError    VerificationStatus = "error"
)

// Source identifies which provider produced a piece of flight data.
type Source string

const (
	SourceAmadeus       Source = "amadeus"
	SourceAviationStack Source = "aviationstack"
	SourceMock          Source = "mock"
	SourceOpenSky       Source = "opensky"
)

const DateLayout = "2006-01-02"

// FlightToTrack is one unique (flight, date, direction) tuple that needs verification.
type FlightToTrack struct {
	FlightNumber string    `json:"flightNumber"`
	FlightDate   time.Time `json:"flightDate"`
	Direction    Direction `json:"direction"`
	ExpectedTime string    `json:"expectedTime,omitempty"`
}

func (f FlightToTrack) Key() string {
	return FlightKey(f.FlightNumber, f.FlightDate, f.Direction)
}

func FlightKey(flightNumber string, date time.Time, dir Direction) string {
	return fmt.Sprintf("%s|%s|%s", NormalizeFlightNumber(flightNumber), date.Format(DateLayout), dir)
}

// NormalizeFlightNumber removes all whitespace and upper-cases the code ("sq 114" -> "SQ114").
func NormalizeFlightNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// CivilDate truncates t to midnight UTC of its calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type PollingSchedule struct {
	Frequency       Frequency `json:"frequency"`
	NextCheckAt     time.Time `json:"nextCheckAt"`
	ChecksRemaining int       `json:"checksRemaining"` // -1 = unlimited
	Reason          string    `json:"reason"`
}

// ScheduledFlight is the normalized schedule record every schedule provider maps into.
// Times are local airport clock times in HH:MM.
type ScheduledFlight struct {
	FlightNumber       string `json:"flightNumber"`
	Airline            string `json:"airline,omitempty"`
	DepartureAirport   string `json:"departureAirport"`
	ArrivalAirport     string `json:"arrivalAirport"`
	ScheduledDeparture string `json:"scheduledDeparture"`
	ScheduledArrival   string `json:"scheduledArrival"`
	DepartureTerminal  string `json:"departureTerminal,omitempty"`
	ArrivalTerminal    string `json:"arrivalTerminal,omitempty"`
	Status             string `json:"status"`
}

// TimeFor returns the scheduled clock time of the leg that matters for dir.
func (s ScheduledFlight) TimeFor(dir Direction) string {
	if dir == DirectionArrival {
		return s.ScheduledArrival
	}
	return s.ScheduledDeparture
}

// ProviderResponse is the envelope all provider results are normalized to.
type ProviderResponse[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data"`
	Error   string `json:"error,omitempty"`
	Source  Source `json:"source"`
}

type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
	Heading  float64 `json:"heading"`
	Speed    float64 `json:"speed"`
}

type LiveFlightStatus struct {
	FlightNumber  string    `json:"flightNumber"`
	Callsign      string    `json:"callsign"`
	ICAO24        string    `json:"icao24,omitempty"`
	OriginCountry string    `json:"originCountry,omitempty"`
	IsInAir       bool      `json:"isInAir"`
	HasLanded     bool      `json:"hasLanded"`
	Position      *Position `json:"position,omitempty"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

type FlightVerificationResult struct {
	FlightNumber   string             `json:"flightNumber"`
	FlightDate     time.Time          `json:"flightDate"`
	Direction      Direction          `json:"direction"`
	Status         VerificationStatus `json:"status"`
	Source         Source             `json:"source,omitempty"`
	ScheduledInfo  *ScheduledFlight   `json:"scheduledInfo,omitempty"`
	LiveStatus     *LiveFlightStatus  `json:"liveStatus,omitempty"`
	ExpectedTime   string             `json:"expectedTime,omitempty"`
	ScheduledTime  string             `json:"scheduledTime,omitempty"`
	TimeMismatch   *bool              `json:"timeMismatch,omitempty"`
	TimeDifference string             `json:"timeDifference,omitempty"`
	Error          string             `json:"error,omitempty"`
	LastCheckedAt  time.Time          `json:"lastCheckedAt"`
}

// Guest is the subset of a guest record the verification core reads.
type Guest struct {
	ID              string     `json:"id,omitempty"`
	Name            string     `json:"name,omitempty"`
	ArrivalFlight   string     `json:"arrivalFlight,omitempty"`
	ArrivalDate     *time.Time `json:"arrivalDate,omitempty"`
	ArrivalTime     string     `json:"arrivalTime,omitempty"`
	DepartureFlight string     `json:"departureFlight,omitempty"`
	DepartureDate   *time.Time `json:"departureDate,omitempty"`
	DepartureTime   string     `json:"departureTime,omitempty"`
}

type APIUsageEstimate struct {
	ScheduleProviderCalls int  `json:"scheduleProviderCalls"`
	LiveProviderCalls     int  `json:"liveProviderCalls"`
	WithinFreeTier        bool `json:"withinFreeTier"`
}
