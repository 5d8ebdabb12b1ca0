package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-router/pkg/utils"
)

var ErrNotFound = errors.New("calls: record not found")

// Repository persists CallRecords.
//
// Update must serialize concurrent updates to the same ID: it loads the record
// under a per-ID lock, hands it to fn, and writes it back only when fn reports
// a change.
type Repository interface {
	// Create inserts rec unless a record with rec.ID exists. created reports
	// whether this call inserted it.
	Create(ctx context.Context, rec CallRecord) (created bool, err error)
	Get(ctx context.Context, id string) (CallRecord, error)
	Update(ctx context.Context, id string, fn func(rec *CallRecord) bool) (CallRecord, bool, error)
	List(ctx context.Context, from, to time.Time) ([]CallRecord, error)
}

// PostgresRepo assumes the call_logs table from internal/migrations.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, rec CallRecord) (bool, error) {
	const q = `
INSERT INTO call_logs (call_sid, direction, from_number, to_number, status, duration, recording_url, medium, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (call_sid) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Direction,
		rec.From,
		rec.To,
		rec.Status,
		rec.Duration,
		rec.RecordingURL,
		rec.Medium,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	const q = selectCall + `WHERE call_sid = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) Update(ctx context.Context, id string, fn func(rec *CallRecord) bool) (CallRecord, bool, error) {
	var out CallRecord
	var changed bool

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row so racing callbacks for the same call apply one at a time.
		const q = selectCall + `WHERE call_sid = $1 FOR UPDATE`
		rec, err := scanCall(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			return err
		}

		changed = fn(&rec)
		out = rec
		if !changed {
			return nil
		}

		const u = `
UPDATE call_logs
SET status = $2, duration = $3, recording_url = $4, updated_at = $5
WHERE call_sid = $1
`
		_, err = tx.ExecContext(ctx, u, rec.ID, rec.Status, rec.Duration, rec.RecordingURL, rec.UpdatedAt)
		return err
	})
	if err != nil {
		return CallRecord{}, false, err
	}
	return out, changed, nil
}

func (r *PostgresRepo) List(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	const q = selectCall + `WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectCall = `
SELECT call_sid, direction, from_number, to_number, status, duration, recording_url, medium, created_at, updated_at
FROM call_logs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec      CallRecord
		duration sql.NullInt64
		url      sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Direction,
		&rec.From,
		&rec.To,
		&rec.Status,
		&duration,
		&url,
		&rec.Medium,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		rec.Duration = &d
	}
	if url.Valid {
		rec.RecordingURL = &url.String
	}
	return rec, nil
}
