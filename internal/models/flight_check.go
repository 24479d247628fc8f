package models

import "time"

// FlightCheck is the persisted verification state of one tracked flight.
type FlightCheck struct {
	ID             uint64             `json:"id"`
	FlightNumber   string             `json:"flightNumber"`
	FlightDate     time.Time          `json:"flightDate"`
	Direction      Direction          `json:"direction"`
	ExpectedTime   string             `json:"expectedTime,omitempty"`
	Status         VerificationStatus `json:"status"`
	Source         Source             `json:"source,omitempty"`
	ScheduledTime  string             `json:"scheduledTime,omitempty"`
	TimeMismatch   *bool              `json:"timeMismatch,omitempty"`
	TimeDifference string             `json:"timeDifference,omitempty"`
	LastCheckedAt  *time.Time         `json:"lastCheckedAt,omitempty"`
	NextCheckAt    time.Time          `json:"nextCheckAt"`
	CheckFailCount int32              `json:"checkFailCount"`
	LastError      *string            `json:"lastError,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func (c FlightCheck) Flight() FlightToTrack {
	return FlightToTrack{
		FlightNumber: c.FlightNumber,
		FlightDate:   c.FlightDate,
		Direction:    c.Direction,
		ExpectedTime: c.ExpectedTime,
	}
}

// Status of a check before the first verification ran.
const VerificationPending VerificationStatus = "pending"

// FlightCheckResult is one recorded verification attempt of a FlightCheck.
type FlightCheckResult struct {
	ID             uint64             `json:"id"`
	CheckID        uint64             `json:"checkId"`
	EventID        int64              `json:"eventId"`
	Status         VerificationStatus `json:"status"`
	Source         Source             `json:"source,omitempty"`
	ScheduledTime  string             `json:"scheduledTime,omitempty"`
	TimeMismatch   *bool              `json:"timeMismatch,omitempty"`
	TimeDifference string             `json:"timeDifference,omitempty"`
	Error          *string            `json:"error,omitempty"`
	CheckedAt      time.Time          `json:"checkedAt"`
}
