package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"call-router/internal/carrier"
)

type stubCarrier struct {
	info carrier.CallInfo
	err  error
}

func (s stubCarrier) FetchCall(ctx context.Context, sid string) (carrier.CallInfo, error) {
	return s.info, s.err
}

func (s stubCarrier) SendMessage(ctx context.Context, msg carrier.OutboundMessage) (carrier.SentMessage, error) {
	return carrier.SentMessage{}, errors.New("not used")
}

func (s stubCarrier) PhoneNumbers(ctx context.Context) ([]string, error) { return nil, nil }

func newTestService(c carrier.Client) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, c, nil)
	svc.clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, repo
}

func intp(v int) *int { return &v }

func openInbound(t *testing.T, svc *Service, id string) {
	t.Helper()
	if _, _, err := svc.Open(context.Background(), NewCall{ID: id, Direction: DirectionInbound, From: "+1", To: "+2", Status: "ringing"}); err != nil {
		t.Fatalf("open: %v", err)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	rec, created, err := svc.Open(ctx, NewCall{ID: "CA1", Direction: DirectionInbound, From: "+1", To: "+2"})
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	if rec.Status != StatusRinging || rec.Medium != MediumTwilio {
		t.Fatalf("unexpected record %+v", rec)
	}

	rec, created, err = svc.Open(ctx, NewCall{ID: "CA1", Direction: DirectionOutbound, From: "+9", To: "+8"})
	if err != nil || created {
		t.Fatalf("expected existing record, got created=%v err=%v", created, err)
	}
	if rec.Direction != DirectionInbound || rec.From != "+1" {
		t.Fatalf("existing record must not be overwritten, got %+v", rec)
	}
}

func TestOpen_RejectsMissingSid(t *testing.T) {
	svc, _ := newTestService(nil)
	if _, _, err := svc.Open(context.Background(), NewCall{Direction: DirectionInbound}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestApplyStatus_HappyPath(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if out, err := svc.ApplyStatus(ctx, "CA1", "in-progress", nil); err != nil || out != OutcomeApplied {
		t.Fatalf("expected applied, got %v err=%v", out, err)
	}
	if out, err := svc.ApplyStatus(ctx, "CA1", "completed", intp(30)); err != nil || out != OutcomeApplied {
		t.Fatalf("expected applied, got %v err=%v", out, err)
	}

	rec, _ := repo.Get(ctx, "CA1")
	if rec.Status != StatusCompleted || rec.Duration == nil || *rec.Duration != 30 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestApplyStatus_CompletedTwiceIsIdempotent(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if _, err := svc.ApplyStatus(ctx, "CA1", "completed", intp(30)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := svc.AttachRecording(ctx, "CA1", "https://rec/1"); err != nil {
		t.Fatalf("recording: %v", err)
	}

	out, err := svc.ApplyStatus(ctx, "CA1", "completed", intp(99))
	if err != nil || out != OutcomeIgnored {
		t.Fatalf("expected ignored, got %v err=%v", out, err)
	}

	rec, _ := repo.Get(ctx, "CA1")
	if *rec.Duration != 30 || *rec.RecordingURL != "https://rec/1" {
		t.Fatalf("second completion must not change duration/recording, got %+v", rec)
	}
}

func TestApplyStatus_OutOfOrderIsIgnored(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	_, _ = svc.ApplyStatus(ctx, "CA1", "no-answer", nil)
	out, err := svc.ApplyStatus(ctx, "CA1", "ringing", nil)
	if err != nil || out != OutcomeIgnored {
		t.Fatalf("expected ignored, got %v err=%v", out, err)
	}
	rec, _ := repo.Get(ctx, "CA1")
	if rec.Status != StatusNoAnswer {
		t.Fatalf("expected No Answer, got %q", rec.Status)
	}
}

func TestApplyStatus_DurationBeforeTerminal(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if out, _ := svc.SetDuration(ctx, "CA1", 12); out != OutcomeApplied {
		t.Fatalf("expected duration applied")
	}
	if out, _ := svc.ApplyStatus(ctx, "CA1", "completed", intp(40)); out != OutcomeApplied {
		t.Fatalf("expected status applied")
	}
	rec, _ := repo.Get(ctx, "CA1")
	if rec.Status != StatusCompleted || *rec.Duration != 12 {
		t.Fatalf("expected first duration to stick, got %+v", rec)
	}
}

func TestApplyStatus_UnknownStatusAndCall(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if _, err := svc.ApplyStatus(ctx, "CA1", "teleported", nil); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := svc.ApplyStatus(ctx, "CA404", "completed", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachRecording_WriteOnce(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if out, _ := svc.AttachRecording(ctx, "CA1", "https://rec/1"); out != OutcomeApplied {
		t.Fatalf("expected applied")
	}
	if out, _ := svc.AttachRecording(ctx, "CA1", "https://rec/2"); out != OutcomeIgnored {
		t.Fatalf("expected ignored")
	}
	rec, _ := repo.Get(ctx, "CA1")
	if *rec.RecordingURL != "https://rec/1" {
		t.Fatalf("recording url overwritten: %q", *rec.RecordingURL)
	}
}

func TestConcurrentCallbacks_SameCall(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.ApplyStatus(ctx, "CA1", "completed", intp(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = svc.AttachRecording(ctx, "CA1", "https://rec/x")
		}()
	}
	wg.Wait()

	rec, _ := repo.Get(ctx, "CA1")
	if rec.Status != StatusCompleted || rec.Duration == nil || rec.RecordingURL == nil {
		t.Fatalf("expected completed record with duration and recording, got %+v", rec)
	}
}

func TestSyncFromCarrier(t *testing.T) {
	svc, repo := newTestService(stubCarrier{info: carrier.CallInfo{Sid: "CA1", Status: "completed", Duration: intp(55)}})
	ctx := context.Background()
	openInbound(t, svc, "CA1")

	if out, err := svc.SyncFromCarrier(ctx, "CA1"); err != nil || out != OutcomeApplied {
		t.Fatalf("expected applied, got %v err=%v", out, err)
	}
	rec, _ := repo.Get(ctx, "CA1")
	if rec.Status != StatusCompleted || *rec.Duration != 55 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestSyncFromCarrier_CarrierFailure(t *testing.T) {
	svc, _ := newTestService(stubCarrier{err: &carrier.Error{Op: "fetch_call", Err: errors.New("boom")}})
	openInbound(t, svc, "CA1")

	_, err := svc.SyncFromCarrier(context.Background(), "CA1")
	var ce *carrier.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected carrier error, got %v", err)
	}

	svc, _ = newTestService(nil)
	if _, err := svc.SyncFromCarrier(context.Background(), "CA1"); !carrier.IsConfiguration(err) {
		t.Fatalf("expected configuration error without a carrier, got %v", err)
	}
}
