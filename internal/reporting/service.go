package reporting

import (
	"context"
	"errors"
	"time"

	"call-router/internal/calls"
	"call-router/internal/messaging"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Implementations return records created in [from, to).
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error)
	ListMessages(ctx context.Context, from, to time.Time) ([]messaging.MessageRecord, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if !validRange(req.Range) {
		return CallsSummary{}, ErrInvalidRequest
	}
	dir := calls.Direction(req.Direction)
	if dir != "" && dir != calls.DirectionInbound && dir != calls.DirectionOutbound {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Direction: req.Direction}
	timed := 0
	for _, c := range rows {
		if dir != "" && c.Direction != dir {
			continue
		}
		out.TotalCalls++
		if c.Direction == calls.DirectionInbound {
			out.InboundCalls++
		} else {
			out.OutboundCalls++
		}
		if c.Duration != nil {
			out.TotalDurationSeconds += *c.Duration
			timed++
		}
		if c.RecordingURL != nil && *c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusRinging, calls.StatusQueued:
			out.RingingCalls++
		}
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	return out, nil
}

func (s *Service) MessagesSummary(ctx context.Context, req MessagesSummaryRequest) (MessagesSummary, error) {
	if !validRange(req.Range) {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return MessagesSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListMessages(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return MessagesSummary{}, err
	}

	out := MessagesSummary{ReferenceType: req.ReferenceType}
	for _, m := range rows {
		if req.ReferenceType != "" && m.ReferenceType != req.ReferenceType {
			continue
		}
		out.TotalMessages++
		if m.Direction == messaging.DirectionReceived {
			out.Received++
			continue
		}
		out.Sent++
		switch m.Status {
		case messaging.StatusSent:
			out.Pending++
		case messaging.StatusDelivered:
			out.Delivered++
		case messaging.StatusFailed:
			out.Failed++
		case messaging.StatusUndelivered:
			out.Undelivered++
		}
	}
	if out.Sent > 0 {
		out.DeliveryRate = float64(out.Delivered) / float64(out.Sent)
	}
	return out, nil
}

func validRange(r TimeRange) bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}
