package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository stores audit events. Implementations expose no update or
// delete path.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records operator activity. Handlers log append failures and carry on.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.ActorUserID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Actor identifies who did something and from where.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

func (s *Service) LogLogin(ctx context.Context, a Actor) error {
	return s.Append(ctx, Event{
		Type:        EventTypeLogin,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		Message:     "token pair issued",
	})
}

func (s *Service) LogVoiceToken(ctx context.Context, a Actor, identity string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeVoiceToken,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		Message:     "voice token issued for " + identity,
	})
}

// BulkSendSummary is the metadata stored with a bulk send event.
type BulkSendSummary struct {
	From   string   `json:"from"`
	Sent   int      `json:"sent"`
	Failed []string `json:"failed"`
}

// LogBulkSend records who dispatched a bulk message and which recipients failed.
func (s *Service) LogBulkSend(ctx context.Context, a Actor, referenceType, referenceID string, sum BulkSendSummary) error {
	meta, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		Type:          EventTypeBulkSend,
		ActorUserID:   a.UserID,
		ActorRole:     a.Role,
		IPAddress:     a.IP,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Message:       "bulk whatsapp send",
		Metadata:      string(meta),
	})
}
