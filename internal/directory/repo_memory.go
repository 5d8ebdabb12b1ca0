package directory

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory agent directory useful for tests.
// It is not intended for production use.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewMemoryStore(agents ...Agent) *MemoryStore {
	s := &MemoryStore{agents: map[string]Agent{}}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return s
}

func (s *MemoryStore) Put(a Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
}

func (s *MemoryStore) AgentsByNumber(ctx context.Context, number string) ([]Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agent, 0)
	for _, a := range s.agents {
		if a.Number != "" && a.Number == number {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) AgentByID(ctx context.Context, id string) (Agent, error) {
	if err := ctx.Err(); err != nil {
		return Agent{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

// MemorySessions is an in-memory SessionStore.
type MemorySessions struct {
	mu     sync.RWMutex
	active map[string]bool
}

func NewMemorySessions(active ...string) *MemorySessions {
	m := &MemorySessions{active: map[string]bool{}}
	for _, id := range active {
		m.active[id] = true
	}
	return m
}

func (m *MemorySessions) Touch(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[userID] = true
	return nil
}

func (m *MemorySessions) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, userID)
	return nil
}

func (m *MemorySessions) ActiveUsers(ctx context.Context, ids []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if m.active[id] {
			out[id] = true
		}
	}
	return out, nil
}
