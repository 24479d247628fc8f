package pgflights

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS flight_checks (
  id BIGSERIAL PRIMARY KEY,
  flight_number TEXT NOT NULL,
  flight_date DATE NOT NULL,
  direction TEXT NOT NULL,
  expected_time TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  scheduled_time TEXT NOT NULL DEFAULT '',
  time_mismatch BOOLEAN NULL,
  time_difference TEXT NOT NULL DEFAULT '',
  last_checked_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (flight_number, flight_date, direction)
)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_checks_next_check_at ON flight_checks(next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_checks_flight_date ON flight_checks(flight_date)`,
		`
CREATE TABLE IF NOT EXISTS flight_check_results (
  id BIGSERIAL PRIMARY KEY,
  check_id BIGINT NOT NULL REFERENCES flight_checks(id) ON DELETE CASCADE,
  event_id BIGINT NOT NULL,
  status TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  scheduled_time TEXT NOT NULL DEFAULT '',
  time_mismatch BOOLEAN NULL,
  time_difference TEXT NOT NULL DEFAULT '',
  error TEXT NULL,
  checked_at TIMESTAMPTZ NOT NULL
)`,
		// Kafka redelivers; the event id keeps the history free of duplicates.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_flight_check_results_event ON flight_check_results(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_check_results_check ON flight_check_results(check_id, checked_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
