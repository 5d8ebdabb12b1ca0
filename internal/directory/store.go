package directory

import (
	"context"
	"errors"
	"fmt"
)

// Store reads agent configuration.
type Store interface {
	// AgentsByNumber returns every agent whose assigned number equals number.
	// No match is an empty slice, not an error.
	AgentsByNumber(ctx context.Context, number string) ([]Agent, error)

	// AgentByID returns ErrNotFound when the agent does not exist.
	AgentByID(ctx context.Context, id string) (Agent, error)
}

// SessionStore reports which users hold an active session.
type SessionStore interface {
	// ActiveUsers returns the subset of ids with a live session. Users with no
	// entry are simply absent from the result.
	ActiveUsers(ctx context.Context, ids []string) (map[string]bool, error)
}

var ErrNotFound = errors.New("directory: agent not found")

// LookupError wraps a failed or timed-out directory/session query.
type LookupError struct {
	Source string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("directory: %s lookup failed: %v", e.Source, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Timeout reports whether the lookup hit its deadline.
func (e *LookupError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NumberForUser returns the carrier number assigned to user, or "" when the
// user is unknown or has no number.
func NumberForUser(ctx context.Context, s Store, user string) (string, error) {
	a, err := s.AgentByID(ctx, user)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &LookupError{Source: "directory", Err: err}
	}
	return a.Number, nil
}

var ErrNotConfigured = errors.New("directory: store not configured")

// PresenceStore is a SessionStore that can also be written to.
type PresenceStore interface {
	SessionStore
	Touch(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string) error
}
