package telephony

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/usage/webhooks/voice-webhooks
//
// One typed form per webhook kind. Parsing only checks shape; routing and
// record updates happen behind the handlers.

// VoiceForm is the payload of the incoming-call and outgoing-call webhooks.
type VoiceForm struct {
	CallSid        string
	AccountSid     string
	ApplicationSid string
	From           string
	To             string

	// Caller is "client:<identity>" when a registered device places the call.
	Caller     string
	CallStatus string
	Direction  string
}

type CallStatusForm struct {
	CallSid    string
	AccountSid string
	CallStatus string

	// CallDuration is nil until the carrier reports it on a terminal callback.
	CallDuration *int
}

type RecordingForm struct {
	CallSid         string
	AccountSid      string
	RecordingSid    string
	RecordingURL    string
	RecordingStatus string
}

// Completed reports whether the callback carries a finished recording. An
// absent status is read as completed.
func (f RecordingForm) Completed() bool {
	return f.RecordingStatus == "" || f.RecordingStatus == "completed"
}

type MessageStatusForm struct {
	MessageSid string
	AccountSid string

	// Status is MessageStatus, or SmsStatus on older callbacks.
	Status    string
	ErrorCode string
}

type InboundMessageForm struct {
	MessageSid  string
	AccountSid  string
	From        string
	To          string
	Body        string
	ProfileName string
	SmsStatus   string
	MediaURL    string
}

// ValidationError rejects a webhook outright: it is malformed or was not
// addressed to this account/application.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("telephony: invalid webhook field %s: %s", e.Field, e.Reason)
}

func ParseVoiceForm(r *http.Request) (VoiceForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceForm{}, err
	}
	f := VoiceForm{
		CallSid:        field(r, "CallSid"),
		AccountSid:     field(r, "AccountSid"),
		ApplicationSid: field(r, "ApplicationSid"),
		From:           normalizePhone(r.PostFormValue("From")),
		To:             normalizePhone(r.PostFormValue("To")),
		Caller:         field(r, "Caller"),
		CallStatus:     field(r, "CallStatus"),
		Direction:      field(r, "Direction"),
	}
	if f.CallSid == "" {
		return VoiceForm{}, &ValidationError{Field: "CallSid", Reason: "required"}
	}
	return f, nil
}

func ParseCallStatusForm(r *http.Request) (CallStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallStatusForm{}, err
	}
	f := CallStatusForm{
		CallSid:    field(r, "CallSid"),
		AccountSid: field(r, "AccountSid"),
		CallStatus: field(r, "CallStatus"),
	}
	if f.CallSid == "" {
		return CallStatusForm{}, &ValidationError{Field: "CallSid", Reason: "required"}
	}
	if f.CallStatus == "" {
		return CallStatusForm{}, &ValidationError{Field: "CallStatus", Reason: "required"}
	}
	if raw := field(r, "CallDuration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return CallStatusForm{}, &ValidationError{Field: "CallDuration", Reason: "not a non-negative integer"}
		}
		f.CallDuration = &n
	}
	return f, nil
}

func ParseRecordingForm(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	f := RecordingForm{
		CallSid:         field(r, "CallSid"),
		AccountSid:      field(r, "AccountSid"),
		RecordingSid:    field(r, "RecordingSid"),
		RecordingURL:    field(r, "RecordingUrl"),
		RecordingStatus: field(r, "RecordingStatus"),
	}
	if f.CallSid == "" {
		return RecordingForm{}, &ValidationError{Field: "CallSid", Reason: "required"}
	}
	// Failed and absent recordings carry no URL.
	if f.Completed() && f.RecordingURL == "" {
		return RecordingForm{}, &ValidationError{Field: "RecordingUrl", Reason: "required"}
	}
	return f, nil
}

func ParseMessageStatusForm(r *http.Request) (MessageStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return MessageStatusForm{}, err
	}
	f := MessageStatusForm{
		MessageSid: field(r, "MessageSid"),
		AccountSid: field(r, "AccountSid"),
		Status:     field(r, "MessageStatus"),
		ErrorCode:  field(r, "ErrorCode"),
	}
	if f.MessageSid == "" {
		f.MessageSid = field(r, "SmsSid")
	}
	if f.Status == "" {
		f.Status = field(r, "SmsStatus")
	}
	if f.MessageSid == "" {
		return MessageStatusForm{}, &ValidationError{Field: "MessageSid", Reason: "required"}
	}
	if f.Status == "" {
		return MessageStatusForm{}, &ValidationError{Field: "MessageStatus", Reason: "required"}
	}
	return f, nil
}

func ParseInboundMessageForm(r *http.Request) (InboundMessageForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundMessageForm{}, err
	}
	f := InboundMessageForm{
		MessageSid:  field(r, "MessageSid"),
		AccountSid:  field(r, "AccountSid"),
		From:        field(r, "From"),
		To:          field(r, "To"),
		Body:        r.PostFormValue("Body"),
		ProfileName: field(r, "ProfileName"),
		SmsStatus:   field(r, "SmsStatus"),
		MediaURL:    field(r, "MediaUrl0"),
	}
	if f.MessageSid == "" {
		return InboundMessageForm{}, &ValidationError{Field: "MessageSid", Reason: "required"}
	}
	return f, nil
}

// Verifier checks that a webhook belongs to the configured account and
// voice application.
type Verifier struct {
	AccountSID     string
	ApplicationSID string
}

// VerifyVoice requires both SIDs to match exactly.
func (v Verifier) VerifyVoice(f VoiceForm) error {
	if f.AccountSid != v.AccountSID {
		return &ValidationError{Field: "AccountSid", Reason: "does not match configured account"}
	}
	if f.ApplicationSid != v.ApplicationSID {
		return &ValidationError{Field: "ApplicationSid", Reason: "does not match configured application"}
	}
	return nil
}

// VerifyAccount is used for callbacks that carry no application SID. An
// absent AccountSid is tolerated; a different one is not.
func (v Verifier) VerifyAccount(accountSid string) error {
	if accountSid != "" && accountSid != v.AccountSID {
		return &ValidationError{Field: "AccountSid", Reason: "does not match configured account"}
	}
	return nil
}

func field(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
