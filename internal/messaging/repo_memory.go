package messaging

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]MessageRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{records: map[string]MessageRecord{}} }

func (r *MemoryRepo) Create(ctx context.Context, rec MessageRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return false, nil
	}
	r.records[rec.ID] = rec
	return true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return MessageRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, fn func(rec *MessageRecord) bool) (MessageRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return MessageRecord{}, false, ErrNotFound
	}
	changed := fn(&rec)
	if changed {
		r.records[id] = rec
	}
	return rec, changed, nil
}

func (r *MemoryRepo) List(ctx context.Context, from, to time.Time) ([]MessageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MessageRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
