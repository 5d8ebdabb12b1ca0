package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"call-router/internal/carrier"
)

var ErrInvalidArgument = errors.New("calls: invalid argument")

// Service normalizes carrier voice callbacks into CallRecords.
//
// Invariants:
//   - A record is created once per CallSid; repeats are no-ops.
//   - Status only moves forward and freezes at a terminal state.
//   - Duration and recording URL are set at most once.
type Service struct {
	repo    Repository
	carrier carrier.Client
	log     *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, carrierClient carrier.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, carrier: carrierClient, log: log, clock: time.Now}
}

// Open creates the record for a call if it does not exist yet. The returned
// bool is false when a record was already there, in which case it is returned
// unchanged.
func (s *Service) Open(ctx context.Context, in NewCall) (CallRecord, bool, error) {
	if strings.TrimSpace(in.ID) == "" {
		return CallRecord{}, false, fmt.Errorf("%w: call sid required", ErrInvalidArgument)
	}
	if in.Direction != DirectionInbound && in.Direction != DirectionOutbound {
		return CallRecord{}, false, fmt.Errorf("%w: direction %q", ErrInvalidArgument, in.Direction)
	}

	status := StatusRinging
	if in.Status != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			return CallRecord{}, false, err
		}
		status = st
	}

	now := s.clock().UTC()
	rec := CallRecord{
		ID:        in.ID,
		Direction: in.Direction,
		From:      in.From,
		To:        in.To,
		Status:    status,
		Medium:    MediumTwilio,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return CallRecord{}, false, err
	}
	if !created {
		existing, err := s.repo.Get(ctx, in.ID)
		return existing, false, err
	}
	s.log.Info("call record created", "call_sid", rec.ID, "direction", rec.Direction, "status", rec.Status)
	return rec, true, nil
}

// ApplyStatus moves the record to the canonical form of carrierStatus when the
// state machine allows it. duration, when given, is applied independently
// under the write-once rule.
func (s *Service) ApplyStatus(ctx context.Context, id, carrierStatus string, duration *int) (Outcome, error) {
	next, err := ParseStatus(carrierStatus)
	if err != nil {
		return OutcomeIgnored, err
	}
	if duration != nil && *duration < 0 {
		return OutcomeIgnored, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	rec, changed, err := s.repo.Update(ctx, id, func(rec *CallRecord) bool {
		changed := false
		if CanTransition(rec.Status, next) {
			rec.Status = next
			changed = true
		}
		if duration != nil && rec.Duration == nil {
			d := *duration
			rec.Duration = &d
			changed = true
		}
		if changed {
			rec.UpdatedAt = now
		}
		return changed
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return s.outcome("status", rec, changed, "incoming", next), nil
}

// AttachRecording sets the recording URL once.
func (s *Service) AttachRecording(ctx context.Context, id, url string) (Outcome, error) {
	if strings.TrimSpace(url) == "" {
		return OutcomeIgnored, fmt.Errorf("%w: recording url required", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	rec, changed, err := s.repo.Update(ctx, id, func(rec *CallRecord) bool {
		if rec.RecordingURL != nil {
			return false
		}
		u := url
		rec.RecordingURL = &u
		rec.UpdatedAt = now
		return true
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return s.outcome("recording", rec, changed), nil
}

// SetDuration sets the call duration once.
func (s *Service) SetDuration(ctx context.Context, id string, seconds int) (Outcome, error) {
	if seconds < 0 {
		return OutcomeIgnored, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	rec, changed, err := s.repo.Update(ctx, id, func(rec *CallRecord) bool {
		if rec.Duration != nil {
			return false
		}
		d := seconds
		rec.Duration = &d
		rec.UpdatedAt = now
		return true
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	return s.outcome("duration", rec, changed), nil
}

// SyncFromCarrier fetches the call from the carrier and applies its status and
// duration through the same rules as callbacks.
func (s *Service) SyncFromCarrier(ctx context.Context, id string) (Outcome, error) {
	if s.carrier == nil {
		return OutcomeIgnored, &carrier.ConfigurationError{Err: carrier.ErrDisabled}
	}
	info, err := s.carrier.FetchCall(ctx, id)
	if err != nil {
		return OutcomeIgnored, err
	}
	if info.Status == "" {
		if info.Duration == nil {
			return OutcomeIgnored, nil
		}
		return s.SetDuration(ctx, id, *info.Duration)
	}
	return s.ApplyStatus(ctx, id, info.Status, info.Duration)
}

func (s *Service) Get(ctx context.Context, id string) (CallRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) outcome(kind string, rec CallRecord, changed bool, attrs ...any) Outcome {
	attrs = append([]any{"call_sid", rec.ID, "kind", kind, "status", rec.Status}, attrs...)
	if !changed {
		s.log.Debug("call update ignored", attrs...)
		return OutcomeIgnored
	}
	s.log.Info("call updated", attrs...)
	return OutcomeApplied
}
