package carrier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"call-router/internal/config"
)

// twilioAPI is the subset of the twilio-go REST service used here.
type twilioAPI interface {
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	ListIncomingPhoneNumber(params *openapi.ListIncomingPhoneNumberParams) ([]openapi.ApiV2010IncomingPhoneNumber, error)
}

// TwilioClient implements Client over the Twilio REST API.
type TwilioClient struct {
	api     twilioAPI
	timeout time.Duration
	log     *slog.Logger
}

// NewTwilioClient builds a REST client from cfg. A disabled or incomplete
// configuration is reported as *ConfigurationError.
func NewTwilioClient(cfg config.TwilioConfig, log *slog.Logger) (*TwilioClient, error) {
	if !cfg.Enabled {
		return nil, &ConfigurationError{Err: ErrDisabled}
	}
	if err := cfg.Check(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioClient(rc.Api, cfg.RequestTimeout, log), nil
}

func newTwilioClient(api twilioAPI, timeout time.Duration, log *slog.Logger) *TwilioClient {
	if log == nil {
		log = slog.Default()
	}
	return &TwilioClient{api: api, timeout: timeout, log: log}
}

func (c *TwilioClient) FetchCall(ctx context.Context, sid string) (CallInfo, error) {
	if sid == "" {
		return CallInfo{}, &Error{Op: "fetch_call", Err: errors.New("call sid required")}
	}

	var resp *openapi.ApiV2010Call
	err := c.bounded(ctx, "fetch_call", func() error {
		var err error
		resp, err = c.api.FetchCall(sid, &openapi.FetchCallParams{})
		return err
	})
	if err != nil {
		return CallInfo{}, err
	}

	info := CallInfo{
		Sid:    deref(resp.Sid),
		From:   deref(resp.From),
		To:     deref(resp.To),
		Status: deref(resp.Status),
	}
	if d := deref(resp.Duration); d != "" {
		if n, err := strconv.Atoi(d); err == nil {
			info.Duration = &n
		} else {
			c.log.Warn("carrier: unparseable call duration", "call_sid", sid, "duration", d)
		}
	}
	return info, nil
}

func (c *TwilioClient) SendMessage(ctx context.Context, msg OutboundMessage) (SentMessage, error) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(msg.From)
	params.SetBody(msg.Body)
	if msg.MediaURL != "" {
		params.SetMediaUrl([]string{msg.MediaURL})
	}
	if msg.StatusCallback != "" {
		params.SetStatusCallback(msg.StatusCallback)
	}

	var resp *openapi.ApiV2010Message
	err := c.bounded(ctx, "send_message", func() error {
		var err error
		resp, err = c.api.CreateMessage(params)
		return err
	})
	if err != nil {
		return SentMessage{}, err
	}

	// The carrier may accept the request yet flag the message as failed.
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		return SentMessage{}, &Error{Op: "send_message", Code: *resp.ErrorCode, Err: errors.New(deref(resp.ErrorMessage))}
	}
	return SentMessage{Sid: deref(resp.Sid), Status: deref(resp.Status)}, nil
}

func (c *TwilioClient) PhoneNumbers(ctx context.Context) ([]string, error) {
	var resp []openapi.ApiV2010IncomingPhoneNumber
	err := c.bounded(ctx, "list_numbers", func() error {
		var err error
		resp, err = c.api.ListIncomingPhoneNumber(&openapi.ListIncomingPhoneNumberParams{})
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp))
	for _, n := range resp {
		if p := deref(n.PhoneNumber); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// bounded runs fn and gives up when ctx or the request timeout expires. The
// SDK call has no context, so an abandoned call finishes in the background.
func (c *TwilioClient) bounded(ctx context.Context, op string, fn func() error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil {
			return wrapTwilioErr(op, err)
		}
		return nil
	case <-ctx.Done():
		c.log.Warn("carrier: request abandoned", "op", op, "err", ctx.Err())
		return &Error{Op: op, Err: ctx.Err()}
	}
}

func wrapTwilioErr(op string, err error) error {
	var te *twclient.TwilioRestError
	if errors.As(err, &te) {
		return &Error{Op: op, Code: te.Code, Err: fmt.Errorf("%s (http %d)", te.Message, te.Status)}
	}
	return &Error{Op: op, Err: err}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
