package audit

import (
	"context"
	"errors"
	"sync"
)

// ErrDuplicateEvent mirrors the audit_events primary key.
var ErrDuplicateEvent = errors.New("audit: duplicate event id")

// MemoryRepo keeps events in append order. Tests use it in place of
// PostgresRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	ids    map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{ids: map[string]struct{}{}}
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ids[e.ID]; dup {
		return ErrDuplicateEvent
	}
	r.ids[e.ID] = struct{}{}
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of every stored event, oldest first.
func (r *MemoryRepo) Events() []Event {
	return r.ByType("")
}

// ByType returns the events of type t, oldest first. An empty t matches all.
func (r *MemoryRepo) ByType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		if t == "" || e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
