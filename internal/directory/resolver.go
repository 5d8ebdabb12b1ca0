package directory

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Resolver maps a dialed carrier number to the agents who own it.
type Resolver struct {
	store    Store
	sessions SessionStore
	timeout  time.Duration
	log      *slog.Logger
}

func NewResolver(store Store, sessions SessionStore, timeout time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, sessions: sessions, timeout: timeout, log: log}
}

// ResolveOwners returns the owners of number sorted by agent ID.
//
// A session-store failure does not fail resolution: presence is reported as
// false for every owner and the failure is logged.
func (r *Resolver) ResolveOwners(ctx context.Context, number string) ([]Owner, error) {
	if r.store == nil {
		return nil, &LookupError{Source: "directory", Err: ErrNotConfigured}
	}

	agents, err := r.agentsByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return []Owner{}, nil
	}

	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	present := r.presence(ctx, ids)

	owners := make([]Owner, 0, len(agents))
	for _, a := range agents {
		owners = append(owners, Owner{
			AgentID:  a.ID,
			Device:   a.Device,
			MobileNo: a.MobileNo,
			Present:  present[a.ID],
		})
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].AgentID < owners[j].AgentID })
	return owners, nil
}

func (r *Resolver) agentsByNumber(ctx context.Context, number string) ([]Agent, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	agents, err := r.store.AgentsByNumber(ctx, number)
	if err != nil {
		return nil, &LookupError{Source: "directory", Err: err}
	}
	return agents, nil
}

func (r *Resolver) presence(ctx context.Context, ids []string) map[string]bool {
	if r.sessions == nil {
		return map[string]bool{}
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()

	active, err := r.sessions.ActiveUsers(ctx, ids)
	if err != nil {
		r.log.Warn("session presence lookup failed", "agents", len(ids), "err", &LookupError{Source: "session", Err: err})
		return map[string]bool{}
	}
	if active == nil {
		return map[string]bool{}
	}
	return active
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
