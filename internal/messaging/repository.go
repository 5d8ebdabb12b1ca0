package messaging

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"call-router/pkg/utils"
)

// Repository persists MessageRecords. Update serializes writers per ID the
// same way calls.Repository does.
type Repository interface {
	Create(ctx context.Context, rec MessageRecord) (created bool, err error)
	Get(ctx context.Context, id string) (MessageRecord, error)
	Update(ctx context.Context, id string, fn func(rec *MessageRecord) bool) (MessageRecord, bool, error)
	List(ctx context.Context, from, to time.Time) ([]MessageRecord, error)
}

// PostgresRepo assumes the whatsapp_messages table from internal/migrations.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, rec MessageRecord) (bool, error) {
	const q = `
INSERT INTO whatsapp_messages (message_sid, direction, from_address, to_address, body, media_url, profile_name, status, reference_type, reference_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (message_sid) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.Direction,
		rec.From,
		rec.To,
		rec.Body,
		rec.MediaURL,
		rec.ProfileName,
		rec.Status,
		rec.ReferenceType,
		rec.ReferenceID,
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

func (r *PostgresRepo) Get(ctx context.Context, id string) (MessageRecord, error) {
	return scanMessage(r.db.QueryRowContext(ctx, selectMessage+`WHERE message_sid = $1`, id))
}

func (r *PostgresRepo) Update(ctx context.Context, id string, fn func(rec *MessageRecord) bool) (MessageRecord, bool, error) {
	var out MessageRecord
	var changed bool

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := scanMessage(tx.QueryRowContext(ctx, selectMessage+`WHERE message_sid = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		changed = fn(&rec)
		out = rec
		if !changed {
			return nil
		}

		const u = `
UPDATE whatsapp_messages
SET status = $2, updated_at = $3, from_address = $4, to_address = $5, body = $6, media_url = $7, reference_type = $8, reference_id = $9
WHERE message_sid = $1
`
		_, err = tx.ExecContext(ctx, u, rec.ID, rec.Status, rec.UpdatedAt, rec.From, rec.To, rec.Body, rec.MediaURL, rec.ReferenceType, rec.ReferenceID)
		return err
	})
	if err != nil {
		return MessageRecord{}, false, err
	}
	return out, changed, nil
}

func (r *PostgresRepo) List(ctx context.Context, from, to time.Time) ([]MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectMessage+`WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MessageRecord, 0)
	for rows.Next() {
		rec, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectMessage = `
SELECT message_sid, direction, from_address, to_address, body, media_url, profile_name, status, reference_type, reference_id, created_at, updated_at
FROM whatsapp_messages
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (MessageRecord, error) {
	var rec MessageRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Direction,
		&rec.From,
		&rec.To,
		&rec.Body,
		&rec.MediaURL,
		&rec.ProfileName,
		&rec.Status,
		&rec.ReferenceType,
		&rec.ReferenceID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MessageRecord{}, ErrNotFound
		}
		return MessageRecord{}, err
	}
	return rec, nil
}
