package schedule

import (
	"context"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound means the provider affirmatively reported that no such flight exists.
	ErrNotFound = errors.New("flight not found")
	// ErrIncomplete means the provider answered but required fields were missing.
	ErrIncomplete = errors.New("incomplete flight data")
	// ErrRateLimited means the provider refused the call because of its quota.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Query identifies one flight leg to look up.
type Query struct {
	FlightNumber string
	Date         time.Time
	// ArrivalAirport optionally narrows the result (IATA code).
	ArrivalAirport string
}

type Provider interface {
	Name() models.Source
	Lookup(ctx context.Context, q Query) (models.ScheduledFlight, error)
}

// Configurable is implemented by providers that can be switched off by missing credentials.
type Configurable interface {
	Configured() bool
}

// IsDefinitive reports whether err ends the chain instead of advancing it.
func IsDefinitive(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrIncomplete)
}
