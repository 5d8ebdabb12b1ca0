package reporting

import (
	"context"
	"sync"
	"time"

	"call-router/internal/calls"
	"call-router/internal/messaging"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
type MemoryRepo struct {
	mu sync.Mutex

	Calls    []calls.CallRecord
	Messages []messaging.MessageRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallRecord, 0)
	for _, c := range r.Calls {
		if !c.CreatedAt.IsZero() {
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, from, to time.Time) ([]messaging.MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messaging.MessageRecord, 0)
	for _, m := range r.Messages {
		if !m.CreatedAt.IsZero() {
			if m.CreatedAt.Before(from) || !m.CreatedAt.Before(to) {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}
