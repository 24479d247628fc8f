package messages

import (
	"time"
)

const TopicFlightVerified = "flight.verified"

// FlightVerified is published by the recheck worker after every verification attempt.
type FlightVerified struct {
	EventID   int64     `json:"event_id"`
	CheckID   uint64    `json:"check_id"`
	CheckedAt time.Time `json:"checked_at"`

	FlightNumber string `json:"flight_number"`
	FlightDate   string `json:"flight_date"`
	Direction    string `json:"direction"`

	Status         string `json:"status"`
	Source         string `json:"source,omitempty"`
	ScheduledTime  string `json:"scheduled_time,omitempty"`
	TimeMismatch   *bool  `json:"time_mismatch,omitempty"`
	TimeDifference string `json:"time_difference,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Error *string `json:"error,omitempty"`
}
