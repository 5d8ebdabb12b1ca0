package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingSessions struct{ err error }

func (f failingSessions) ActiveUsers(ctx context.Context, ids []string) (map[string]bool, error) {
	return nil, f.err
}

type failingStore struct{ err error }

func (f failingStore) AgentsByNumber(ctx context.Context, number string) ([]Agent, error) {
	return nil, f.err
}

func (f failingStore) AgentByID(ctx context.Context, id string) (Agent, error) {
	return Agent{}, f.err
}

type slowStore struct{}

func (slowStore) AgentsByNumber(ctx context.Context, number string) ([]Agent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) AgentByID(ctx context.Context, id string) (Agent, error) {
	<-ctx.Done()
	return Agent{}, ctx.Err()
}

func TestResolveOwners_NoOwnerIsEmptyNotError(t *testing.T) {
	r := NewResolver(NewMemoryStore(Agent{ID: "u1", Number: "+15550001", Device: DevicePhone, MobileNo: "+1999"}), NewMemorySessions(), time.Second, nil)

	owners, err := r.ResolveOwners(context.Background(), "+15550002")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if owners == nil || len(owners) != 0 {
		t.Fatalf("expected empty owners, got %+v", owners)
	}
}

func TestResolveOwners_JoinsPresenceAndSortsByID(t *testing.T) {
	store := NewMemoryStore(
		Agent{ID: "u3", Number: "+15550001", Device: DeviceComputer},
		Agent{ID: "u1", Number: "+15550001", Device: DevicePhone, MobileNo: "+1999"},
		Agent{ID: "u2", Number: "+15550001", Device: DeviceComputer},
		Agent{ID: "other", Number: "+15550009", Device: DeviceComputer},
	)
	r := NewResolver(store, NewMemorySessions("u2", "other"), time.Second, nil)

	owners, err := r.ResolveOwners(context.Background(), "+15550001")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(owners) != 3 {
		t.Fatalf("expected 3 owners, got %d", len(owners))
	}
	if owners[0].AgentID != "u1" || owners[1].AgentID != "u2" || owners[2].AgentID != "u3" {
		t.Fatalf("expected owners sorted by id, got %+v", owners)
	}
	if owners[0].MobileNo != "+1999" || owners[0].Device != DevicePhone {
		t.Fatalf("expected u1 device and mobile, got %+v", owners[0])
	}
	if owners[0].Present || !owners[1].Present || owners[2].Present {
		t.Fatalf("unexpected presence: %+v", owners)
	}
}

func TestResolveOwners_SessionFailureDegradesToAbsent(t *testing.T) {
	store := NewMemoryStore(Agent{ID: "u1", Number: "+15550001", Device: DeviceComputer})
	r := NewResolver(store, failingSessions{err: errors.New("redis down")}, time.Second, nil)

	owners, err := r.ResolveOwners(context.Background(), "+15550001")
	if err != nil {
		t.Fatalf("expected resolution to survive session failure, got %v", err)
	}
	if len(owners) != 1 || owners[0].Present {
		t.Fatalf("expected one absent owner, got %+v", owners)
	}
}

func TestResolveOwners_DirectoryFailureIsTyped(t *testing.T) {
	r := NewResolver(failingStore{err: errors.New("db down")}, nil, time.Second, nil)

	_, err := r.ResolveOwners(context.Background(), "+15550001")
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if le.Timeout() {
		t.Fatalf("expected non-timeout failure")
	}
}

func TestResolveOwners_TimeoutSurfacesAsTypedFailure(t *testing.T) {
	r := NewResolver(slowStore{}, nil, 10*time.Millisecond, nil)

	_, err := r.ResolveOwners(context.Background(), "+15550001")
	var le *LookupError
	if !errors.As(err, &le) || !le.Timeout() {
		t.Fatalf("expected timeout LookupError, got %v", err)
	}
}

func TestNumberForUser(t *testing.T) {
	store := NewMemoryStore(Agent{ID: "john@example.com", Number: "+15550001", Device: DeviceComputer})

	n, err := NumberForUser(context.Background(), store, "john@example.com")
	if err != nil || n != "+15550001" {
		t.Fatalf("unexpected number %q err=%v", n, err)
	}
	n, err = NumberForUser(context.Background(), store, "nobody")
	if err != nil || n != "" {
		t.Fatalf("expected empty number for unknown user, got %q err=%v", n, err)
	}
}

func TestAgentValidate(t *testing.T) {
	if err := (Agent{ID: "u", Device: DevicePhone}).Validate(); err == nil {
		t.Fatalf("expected phone agent without mobile to be invalid")
	}
	if err := (Agent{ID: "u", Device: DeviceComputer}).Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestRedisSessionStore_NilClient(t *testing.T) {
	s := NewRedisSessionStore(nil, "session:user:", time.Minute)
	if _, err := s.ActiveUsers(context.Background(), []string{"u"}); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if s.key("u1") != "session:user:u1" {
		t.Fatalf("unexpected key %q", s.key("u1"))
	}
}

var _ PresenceStore = (*RedisSessionStore)(nil)
var _ PresenceStore = (*MemorySessions)(nil)
var _ Store = (*PostgresStore)(nil)
