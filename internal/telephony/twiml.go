package telephony

import (
	"errors"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"call-router/internal/identity"
	"call-router/internal/routing"
)

// Instruction is the carrier-agnostic call-control response. Render turns it
// into TwiML.
type Instruction struct {
	Kind InstructionKind

	// CallerID and Target are set for the dial kinds. Target is an E.164
	// number for DialNumber and a sanitized identity for DialClient.
	CallerID string
	Target   string

	Record            bool
	RecordingCallback string

	// Message is spoken for SayHangup.
	Message string
}

type InstructionKind string

const (
	DialNumber InstructionKind = "dial_number"
	DialClient InstructionKind = "dial_client"
	SayHangup  InstructionKind = "say_hangup"
)

type BuilderConfig struct {
	RecordCalls        bool
	RecordingCallback  string
	UnavailableMessage string
}

// ResponseBuilder turns routing decisions into instructions. It has no side
// effects; creating the call record is the caller's job.
type ResponseBuilder struct {
	cfg BuilderConfig
}

func NewResponseBuilder(cfg BuilderConfig) *ResponseBuilder {
	return &ResponseBuilder{cfg: cfg}
}

// Build answers an inbound call. from is the caller's number and becomes the
// caller ID of the forwarded leg.
func (b *ResponseBuilder) Build(d routing.Decision, from string) Instruction {
	if !d.HasAgent() || strings.TrimSpace(d.Target) == "" {
		return b.Fallback()
	}
	switch d.Channel {
	case routing.ChannelPhone:
		return b.dial(DialNumber, from, d.Target)
	case routing.ChannelComputer:
		return b.dial(DialClient, from, identity.Sanitize(d.Target))
	}
	return b.Fallback()
}

// BuildDial answers a call placed by an agent's device towards to.
func (b *ResponseBuilder) BuildDial(from, to string) Instruction {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return b.Fallback()
	}
	return b.dial(DialNumber, from, to)
}

// Fallback speaks the unavailable message and hangs up.
func (b *ResponseBuilder) Fallback() Instruction {
	if b == nil {
		return Instruction{Kind: SayHangup}
	}
	return Instruction{Kind: SayHangup, Message: b.cfg.UnavailableMessage}
}

func (b *ResponseBuilder) dial(kind InstructionKind, from, to string) Instruction {
	return Instruction{
		Kind:              kind,
		CallerID:          from,
		Target:            to,
		Record:            b.cfg.RecordCalls,
		RecordingCallback: b.cfg.RecordingCallback,
	}
}

// Render serializes in as TwiML.
func Render(in Instruction) (string, error) {
	switch in.Kind {
	case SayHangup:
		verbs := []twiml.Element{}
		if in.Message != "" {
			verbs = append(verbs, &twiml.VoiceSay{Message: in.Message})
		}
		verbs = append(verbs, &twiml.VoiceHangup{})
		return twiml.Voice(verbs)

	case DialNumber, DialClient:
		if strings.TrimSpace(in.Target) == "" {
			return "", errors.New("telephony: dial target required")
		}
		var target twiml.Element = &twiml.VoiceNumber{PhoneNumber: in.Target}
		if in.Kind == DialClient {
			target = &twiml.VoiceClient{Identity: in.Target}
		}

		dial := &twiml.VoiceDial{
			CallerId:      in.CallerID,
			Record:        "do-not-record",
			InnerElements: []twiml.Element{target},
		}
		if in.Record {
			dial.Record = "record-from-answer"
			if in.RecordingCallback != "" {
				dial.RecordingStatusCallback = in.RecordingCallback
				dial.RecordingStatusCallbackEvent = "completed"
			}
		}
		return twiml.Voice([]twiml.Element{dial})
	}
	return "", errors.New("telephony: unknown instruction kind")
}

// fallbackTwiML is served when even rendering fails.
const fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
