package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service records messages and applies carrier status callbacks.
type Service struct {
	repo Repository
	log  *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log, clock: time.Now}
}

// RecordSent stores an outbound message after the carrier accepted it.
func (s *Service) RecordSent(ctx context.Context, rec MessageRecord) (MessageRecord, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return MessageRecord{}, fmt.Errorf("%w: message sid required", ErrInvalidArgument)
	}
	now := s.clock().UTC()
	rec.Direction = DirectionSent
	rec.Status = StatusSent
	rec.CreatedAt = now
	rec.UpdatedAt = now

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return MessageRecord{}, err
	}
	if created {
		return rec, nil
	}

	// A status callback may have stored the sid first; keep its status and
	// fill in the content.
	merged, _, err := s.repo.Update(ctx, rec.ID, func(existing *MessageRecord) bool {
		if !existing.awaitingContent() {
			return false
		}
		existing.From = rec.From
		existing.To = rec.To
		existing.Body = rec.Body
		existing.MediaURL = rec.MediaURL
		existing.ReferenceType = rec.ReferenceType
		existing.ReferenceID = rec.ReferenceID
		existing.UpdatedAt = now
		return true
	})
	return merged, err
}

// RecordInbound stores a received message. Redelivered webhooks return the
// existing record and false.
func (s *Service) RecordInbound(ctx context.Context, in InboundMessage) (MessageRecord, bool, error) {
	if strings.TrimSpace(in.Sid) == "" {
		return MessageRecord{}, false, fmt.Errorf("%w: message sid required", ErrInvalidArgument)
	}
	now := s.clock().UTC()
	rec := MessageRecord{
		ID:          in.Sid,
		Direction:   DirectionReceived,
		From:        in.From,
		To:          in.To,
		Body:        in.Body,
		MediaURL:    in.MediaURL,
		ProfileName: in.ProfileName,
		Status:      StatusReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return MessageRecord{}, false, err
	}
	if !created {
		existing, err := s.repo.Get(ctx, in.Sid)
		return existing, false, err
	}
	s.log.Info("inbound message recorded", "message_sid", rec.ID, "from", rec.From)
	return rec, true, nil
}

// ApplyStatus moves a sent message to the canonical form of carrierStatus
// when allowed. Duplicates and late callbacks are ignored.
func (s *Service) ApplyStatus(ctx context.Context, id, carrierStatus string) (Outcome, error) {
	next, err := ParseStatus(carrierStatus)
	if err != nil {
		return OutcomeIgnored, err
	}

	now := s.clock().UTC()
	rec, changed, err := s.repo.Update(ctx, id, func(rec *MessageRecord) bool {
		if !CanTransition(rec.Status, next) {
			return false
		}
		rec.Status = next
		rec.UpdatedAt = now
		return true
	})
	if errors.Is(err, ErrNotFound) {
		return s.applyEarlyStatus(ctx, id, next, now)
	}
	if err != nil {
		return OutcomeIgnored, err
	}
	if !changed {
		s.log.Debug("message status ignored", "message_sid", id, "status", rec.Status, "incoming", next)
		return OutcomeIgnored, nil
	}
	s.log.Info("message status updated", "message_sid", id, "status", rec.Status)
	return OutcomeApplied, nil
}

// applyEarlyStatus handles a callback that outran RecordSent by storing a
// sent record keyed on the sid. RecordSent fills in its content later.
func (s *Service) applyEarlyStatus(ctx context.Context, id string, next Status, now time.Time) (Outcome, error) {
	if !CanTransition(StatusSent, next) {
		s.log.Debug("status for unknown message ignored", "message_sid", id, "incoming", next)
		return OutcomeIgnored, ErrNotFound
	}
	created, err := s.repo.Create(ctx, MessageRecord{
		ID:        id,
		Direction: DirectionSent,
		Status:    next,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return OutcomeIgnored, err
	}
	if !created {
		// RecordSent won the race after all.
		return s.ApplyStatus(ctx, id, string(next))
	}
	s.log.Info("message status stored ahead of send record", "message_sid", id, "status", next)
	return OutcomeApplied, nil
}

func (s *Service) Get(ctx context.Context, id string) (MessageRecord, error) {
	return s.repo.Get(ctx, id)
}
