package carrier

import (
	"context"
	"errors"
	"fmt"
)

var ErrDisabled = errors.New("carrier: voice and messaging are disabled")

// ConfigurationError means the carrier cannot be used at all. Callers must not
// attempt partial work when they see it.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("carrier: configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Error wraps a failed carrier API call. Code is the carrier's error code when
// it reported one, zero otherwise.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("carrier: %s failed (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("carrier: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether the call was abandoned at its deadline.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsConfiguration reports whether err means the carrier is disabled or misconfigured.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
