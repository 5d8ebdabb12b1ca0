package telephony

import (
	"strings"
	"testing"

	"call-router/internal/routing"
)

func testBuilder(record bool) *ResponseBuilder {
	return NewResponseBuilder(BuilderConfig{
		RecordCalls:        record,
		RecordingCallback:  "https://pbx.example.com/webhooks/twilio/voice/recording",
		UnavailableMessage: "Agent is unavailable",
	})
}

func TestBuild_NoAgentSpeaksFallback(t *testing.T) {
	in := testBuilder(true).Build(routing.Select(nil), "+15551234567")
	if in.Kind != SayHangup {
		t.Fatalf("expected say/hangup, got %q", in.Kind)
	}

	xml, err := Render(in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(xml, "Agent is unavailable") || !strings.Contains(xml, "<Hangup") {
		t.Fatalf("expected spoken fallback and hangup: %s", xml)
	}
	if strings.Contains(xml, "<Dial") {
		t.Fatalf("fallback must not dial: %s", xml)
	}
}

func TestBuild_PhoneDialsMobileWithRecording(t *testing.T) {
	d := routing.Decision{AgentID: "u1", Channel: routing.ChannelPhone, Target: "+15550100"}
	in := testBuilder(true).Build(d, "+15551234567")
	if in.Kind != DialNumber || in.CallerID != "+15551234567" || in.Target != "+15550100" || !in.Record {
		t.Fatalf("unexpected instruction %+v", in)
	}

	xml, err := Render(in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"<Dial", "<Number", "+15550100", "+15551234567", "record-from-answer", "/webhooks/twilio/voice/recording"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestBuild_ComputerDialsClient(t *testing.T) {
	d := routing.Decision{AgentID: "john@example.com", Channel: routing.ChannelComputer, Target: "john_at_example.com"}
	in := testBuilder(false).Build(d, "+15551234567")
	if in.Kind != DialClient || in.Target != "john_at_example.com" || in.Record {
		t.Fatalf("unexpected instruction %+v", in)
	}

	xml, err := Render(in)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(xml, "<Client") || !strings.Contains(xml, "john_at_example.com") {
		t.Fatalf("expected client dial: %s", xml)
	}
	if !strings.Contains(xml, "do-not-record") {
		t.Fatalf("expected recording disabled: %s", xml)
	}
}

func TestBuildDial_Outbound(t *testing.T) {
	in := testBuilder(true).BuildDial("+15550001", "+15559999")
	if in.Kind != DialNumber || in.CallerID != "+15550001" || in.Target != "+15559999" {
		t.Fatalf("unexpected instruction %+v", in)
	}
	if testBuilder(true).BuildDial("", "+15559999").Kind != SayHangup {
		t.Fatalf("missing caller number must fall back")
	}
}

func TestRender_DialRequiresTarget(t *testing.T) {
	if _, err := Render(Instruction{Kind: DialNumber}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Render(Instruction{Kind: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
