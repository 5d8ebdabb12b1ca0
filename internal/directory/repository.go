package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NOTE: PostgresStore assumes the following tables exist (see internal/migrations):
// - users (user_id, mobile_no, role)
// - voice_call_settings (user_id, twilio_number, call_receiving_device)

// PostgresStore reads agents from Postgres through database/sql (pgx stdlib driver).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AgentsByNumber(ctx context.Context, number string) ([]Agent, error) {
	const q = `
SELECT v.user_id, v.twilio_number, v.call_receiving_device, COALESCE(u.mobile_no, ''), COALESCE(u.role, '')
FROM voice_call_settings v
LEFT JOIN users u ON u.user_id = v.user_id
WHERE v.twilio_number = $1
ORDER BY v.user_id
`
	rows, err := s.db.QueryContext(ctx, q, number)
	if err != nil {
		return nil, fmt.Errorf("querying owners of %s: %w", number, err)
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Number, &a.Device, &a.MobileNo, &a.Role); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AgentByID(ctx context.Context, id string) (Agent, error) {
	const q = `
SELECT u.user_id, COALESCE(v.twilio_number, ''), COALESCE(v.call_receiving_device, ''), COALESCE(u.mobile_no, ''), u.role
FROM users u
LEFT JOIN voice_call_settings v ON v.user_id = u.user_id
WHERE u.user_id = $1
`
	var a Agent
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Number, &a.Device, &a.MobileNo, &a.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("querying agent %s: %w", id, err)
	}
	return a, nil
}
