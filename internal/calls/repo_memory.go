package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// One mutex serializes every update, which also covers per-ID ordering.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]CallRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{records: map[string]CallRecord{}} }

func (r *MemoryRepo) Create(ctx context.Context, rec CallRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return false, nil
	}
	r.records[rec.ID] = clone(rec)
	return true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return clone(rec), nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, fn func(rec *CallRecord) bool) (CallRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return CallRecord{}, false, ErrNotFound
	}
	rec = clone(rec)
	changed := fn(&rec)
	if changed {
		r.records[id] = clone(rec)
	}
	return rec, changed, nil
}

func (r *MemoryRepo) List(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func clone(rec CallRecord) CallRecord {
	if rec.Duration != nil {
		d := *rec.Duration
		rec.Duration = &d
	}
	if rec.RecordingURL != nil {
		u := *rec.RecordingURL
		rec.RecordingURL = &u
	}
	return rec
}
