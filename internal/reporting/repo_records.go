package reporting

import (
	"context"
	"errors"
	"time"

	"call-router/internal/calls"
	"call-router/internal/messaging"
)

// RecordsRepo reads straight from the call and message record stores.
type RecordsRepo struct {
	Calls    calls.Repository
	Messages messaging.Repository
}

func (r RecordsRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error) {
	if r.Calls == nil {
		return nil, errors.New("reporting: call records not configured")
	}
	return r.Calls.List(ctx, from, to)
}

func (r RecordsRepo) ListMessages(ctx context.Context, from, to time.Time) ([]messaging.MessageRecord, error) {
	if r.Messages == nil {
		return nil, errors.New("reporting: message records not configured")
	}
	return r.Messages.List(ctx, from, to)
}
