package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"call-router/internal/carrier"
)

const WhatsAppPrefix = "whatsapp:"

// SenderConfig configures carrier pacing for bulk dispatch.
type SenderConfig struct {
	// Rate is carrier sends per second. Zero or negative disables pacing.
	Rate  rate.Limit
	Burst int

	// StatusCallback is handed to the carrier on every send. Optional.
	StatusCallback string
}

// Sender fans a message out to recipients through the carrier.
type Sender struct {
	carrier  carrier.Client
	records  *Service
	limiter  *rate.Limiter
	callback string
	log      *slog.Logger
}

func NewSender(c carrier.Client, records *Service, cfg SenderConfig, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	limit := cfg.Rate
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Sender{
		carrier:  c,
		records:  records,
		limiter:  rate.NewLimiter(limit, burst),
		callback: cfg.StatusCallback,
		log:      log,
	}
}

// Content is what gets sent, independent of who receives it.
type Content struct {
	Body     string `json:"body"`
	MediaURL string `json:"media_url,omitempty"`

	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

type BulkRequest struct {
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
	Content
}

// BulkResult lists recipients as they appeared in the request.
type BulkResult struct {
	Sent   []string                  `json:"sent"`
	Failed []string                  `json:"failed"`
	Errors []*RecipientDeliveryError `json:"-"`
}

// SendBulk sends req.Body to every recipient. A failing recipient is recorded
// in the result and does not stop the batch. The returned error is reserved
// for problems that make the whole batch pointless: an invalid request, a
// disabled carrier, or ctx ending.
func (s *Sender) SendBulk(ctx context.Context, req BulkRequest) (BulkResult, error) {
	res := BulkResult{Sent: []string{}, Failed: []string{}}
	if err := validateBulk(req); err != nil {
		return res, err
	}

	for _, to := range req.Recipients {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}

		_, err := s.Send(ctx, req.From, to, req.Content)
		if err == nil {
			res.Sent = append(res.Sent, to)
			continue
		}
		if carrier.IsConfiguration(err) {
			return res, err
		}

		rde := &RecipientDeliveryError{Recipient: to, Err: err}
		res.Failed = append(res.Failed, to)
		res.Errors = append(res.Errors, rde)
		s.log.Warn("bulk send: recipient failed", "to", to, "reference_type", req.ReferenceType, "reference_id", req.ReferenceID, "err", err)
	}

	s.log.Info("bulk send finished", "sent", len(res.Sent), "failed", len(res.Failed), "reference_type", req.ReferenceType, "reference_id", req.ReferenceID)
	return res, nil
}

// Send delivers one message and records it as Sent. A record is only written
// once the carrier has accepted the message.
func (s *Sender) Send(ctx context.Context, from, to string, content Content) (MessageRecord, error) {
	if s.carrier == nil {
		return MessageRecord{}, &carrier.ConfigurationError{Err: carrier.ErrDisabled}
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return MessageRecord{}, fmt.Errorf("%w: empty recipient", ErrInvalidArgument)
	}

	msg := carrier.OutboundMessage{
		From:           WhatsAppAddress(from),
		To:             WhatsAppAddress(to),
		Body:           content.Body,
		MediaURL:       content.MediaURL,
		StatusCallback: s.callback,
	}
	sent, err := s.carrier.SendMessage(ctx, msg)
	if err != nil {
		return MessageRecord{}, err
	}
	if sent.Sid == "" {
		return MessageRecord{}, &carrier.Error{Op: "send_message", Err: errors.New("carrier returned no message sid")}
	}

	rec := MessageRecord{
		ID:            sent.Sid,
		From:          msg.From,
		To:            msg.To,
		Body:          msg.Body,
		MediaURL:      msg.MediaURL,
		ReferenceType: content.ReferenceType,
		ReferenceID:   content.ReferenceID,
	}
	if s.records == nil {
		return rec, nil
	}
	stored, err := s.records.RecordSent(ctx, rec)
	if err != nil {
		// Delivered but unrecorded; do not report the recipient as failed.
		s.log.Error("message sent but not recorded", "message_sid", sent.Sid, "to", msg.To, "err", err)
		return rec, nil
	}
	return stored, nil
}

// WhatsAppAddress prefixes addr with the WhatsApp channel marker once.
func WhatsAppAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, WhatsAppPrefix) {
		return addr
	}
	return WhatsAppPrefix + addr
}

func validateBulk(req BulkRequest) error {
	if strings.TrimSpace(req.From) == "" {
		return fmt.Errorf("%w: sender required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Body) == "" && req.MediaURL == "" {
		return fmt.Errorf("%w: body or media required", ErrInvalidArgument)
	}
	if len(req.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient required", ErrInvalidArgument)
	}
	return ValidateMediaURL(req.MediaURL)
}
