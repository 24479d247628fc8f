package pgflights

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/FlightBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const checkColumns = `
  id, flight_number, flight_date, direction, expected_time,
  status, source, scheduled_time, time_mismatch, time_difference,
  last_checked_at, next_check_at, check_fail_count, last_error,
  created_at, updated_at`

type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Status models.VerificationStatus
	Limit  int
	Offset int
}

// UpsertFlightChecks registers flights for background verification. New checks are due
// immediately. Re-registering an existing flight only refreshes its expected time.
func (s *Storage) UpsertFlightChecks(ctx context.Context, flights []models.FlightToTrack) ([]*models.FlightCheck, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uint64, 0, len(flights))
	for _, f := range flights {
		var id uint64
		err := tx.QueryRow(ctx, `
INSERT INTO flight_checks (
  flight_number, flight_date, direction, expected_time, status, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$6,$6)
ON CONFLICT (flight_number, flight_date, direction)
DO UPDATE SET
  expected_time = EXCLUDED.expected_time,
  updated_at = CASE WHEN flight_checks.expected_time = EXCLUDED.expected_time
                    THEN flight_checks.updated_at ELSE EXCLUDED.updated_at END
RETURNING id
`, models.NormalizeFlightNumber(f.FlightNumber), models.CivilDate(f.FlightDate), string(f.Direction),
			f.ExpectedTime, string(models.VerificationPending), now).Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "insert flight check")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetFlightChecks(ctx, ids)
}

// GetFlightChecks returns checks in the order of ids; unknown ids are skipped.
func (s *Storage) GetFlightChecks(ctx context.Context, ids []uint64) ([]*models.FlightCheck, error) {
	if len(ids) == 0 {
		return []*models.FlightCheck{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT`+checkColumns+` FROM flight_checks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select flight checks")
	}
	got, err := scanChecks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]*models.FlightCheck, len(got))
	for _, c := range got {
		byID[c.ID] = c
	}
	out := make([]*models.FlightCheck, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Storage) ListFlightChecks(ctx context.Context, f ListFilter) ([]*models.FlightCheck, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		where = append(where, "flight_date >= "+arg(models.CivilDate(*f.From)))
	}
	if f.To != nil {
		where = append(where, "flight_date <= "+arg(models.CivilDate(*f.To)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	q := `SELECT` + checkColumns + ` FROM flight_checks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY flight_date ASC, flight_number ASC, direction ASC LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select flight checks")
	}
	return scanChecks(rows)
}

func (s *Storage) RefreshFlightCheck(ctx context.Context, id uint64) error {
	_, err := s.db.Exec(ctx, `UPDATE flight_checks SET next_check_at = now(), updated_at = now() WHERE id = $1`, id)
	return errors.Wrap(err, "refresh flight check")
}

// ClaimDueChecks picks a batch of checks that are due and pushes their next_check_at
// forward by lease, so that other workers skip them while this one verifies.
// Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueChecks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.FlightCheck, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT`+checkColumns+`
FROM flight_checks
WHERE next_check_at <= $1
ORDER BY next_check_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due flight checks")
	}
	picked, err := scanChecks(rows)
	if err != nil {
		return nil, err
	}

	leaseUntil := now.UTC().Add(lease)
	for _, c := range picked {
		_, err := tx.Exec(ctx, `UPDATE flight_checks SET next_check_at = $2, updated_at = now() WHERE id = $1`, c.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease flight check")
		}
		c.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func scanChecks(rows pgx.Rows) ([]*models.FlightCheck, error) {
	defer rows.Close()

	var out []*models.FlightCheck
	for rows.Next() {
		var c models.FlightCheck
		var direction, status, source string
		if err := rows.Scan(
			&c.ID, &c.FlightNumber, &c.FlightDate, &direction, &c.ExpectedTime,
			&status, &source, &c.ScheduledTime, &c.TimeMismatch, &c.TimeDifference,
			&c.LastCheckedAt, &c.NextCheckAt, &c.CheckFailCount, &c.LastError,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan flight check")
		}
		c.Direction = models.Direction(direction)
		c.Status = models.VerificationStatus(status)
		c.Source = models.Source(source)
		out = append(out, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
