package carrier

import "context"

// Client is the carrier surface the rest of the system depends on.
//
// Rules:
//   - No carrier SDK calls outside this package.
//   - Every method is bounded by the client's request timeout.
//   - Failures surface as *Error; a disabled carrier as *ConfigurationError.
type Client interface {
	FetchCall(ctx context.Context, sid string) (CallInfo, error)
	SendMessage(ctx context.Context, msg OutboundMessage) (SentMessage, error)
	PhoneNumbers(ctx context.Context) ([]string, error)
}

// CallInfo is the carrier's view of a call.
type CallInfo struct {
	Sid    string
	From   string
	To     string
	Status string // carrier spelling, e.g. "in-progress"

	// Duration is nil until the carrier reports it.
	Duration *int
}

type OutboundMessage struct {
	From     string
	To       string
	Body     string
	MediaURL string

	// StatusCallback is optional.
	StatusCallback string
}

type SentMessage struct {
	Sid    string
	Status string // carrier spelling, e.g. "queued"
}

// NewDisabledClient returns a Client that rejects every call with ErrDisabled.
func NewDisabledClient() Client { return disabledClient{} }

type disabledClient struct{}

func (disabledClient) FetchCall(ctx context.Context, sid string) (CallInfo, error) {
	return CallInfo{}, &ConfigurationError{Err: ErrDisabled}
}

func (disabledClient) SendMessage(ctx context.Context, msg OutboundMessage) (SentMessage, error) {
	return SentMessage{}, &ConfigurationError{Err: ErrDisabled}
}

func (disabledClient) PhoneNumbers(ctx context.Context) ([]string, error) {
	return nil, &ConfigurationError{Err: ErrDisabled}
}
