package pgflights

import (
	"context"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// CheckUpdate is the outcome of one verification attempt as reported by the worker.
type CheckUpdate struct {
	CheckID uint64
	EventID int64

	CheckedAt time.Time

	Status         models.VerificationStatus
	Source         models.Source
	ScheduledTime  string
	TimeMismatch   *bool
	TimeDifference string

	NextCheckAt time.Time

	Error *string
}

// ApplyVerification stores the attempt in the history and updates the check's current
// state. Replaying the same event is a no-op.
func (s *Storage) ApplyVerification(ctx context.Context, upd CheckUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO flight_check_results (
  check_id, event_id, status, source, scheduled_time, time_mismatch, time_difference, error, checked_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (event_id) DO NOTHING
`, upd.CheckID, upd.EventID, string(upd.Status), string(upd.Source), upd.ScheduledTime,
		upd.TimeMismatch, upd.TimeDifference, upd.Error, upd.CheckedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "insert check result")
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if upd.Error != nil && *upd.Error != "" {
		_, err = tx.Exec(ctx, `
UPDATE flight_checks
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE id = $1
`, upd.CheckID, upd.CheckedAt.UTC(), *upd.Error, upd.NextCheckAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update flight check (error)")
		}
	} else {
		_, err = tx.Exec(ctx, `
UPDATE flight_checks
SET
  status = $3,
  source = $4,
  scheduled_time = $5,
  time_mismatch = $6,
  time_difference = $7,
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $8,
  updated_at = now()
WHERE id = $1
`, upd.CheckID, upd.CheckedAt.UTC(), string(upd.Status), string(upd.Source), upd.ScheduledTime,
			upd.TimeMismatch, upd.TimeDifference, upd.NextCheckAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update flight check (ok)")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) ListCheckResults(ctx context.Context, checkID uint64, limit, offset int) ([]*models.FlightCheckResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, check_id, event_id, status, source, scheduled_time,
  time_mismatch, time_difference, error, checked_at
FROM flight_check_results
WHERE check_id = $1
ORDER BY checked_at DESC
LIMIT $2 OFFSET $3
`, checkID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select check results")
	}
	defer rows.Close()

	var out []*models.FlightCheckResult
	for rows.Next() {
		var r models.FlightCheckResult
		var status, source string
		if err := rows.Scan(
			&r.ID, &r.CheckID, &r.EventID, &status, &source, &r.ScheduledTime,
			&r.TimeMismatch, &r.TimeDifference, &r.Error, &r.CheckedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan check result")
		}
		r.Status = models.VerificationStatus(status)
		r.Source = models.Source(source)
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
