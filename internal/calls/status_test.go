package calls

import (
	"errors"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"no-answer":   "No Answer",
		"in-progress": "In Progress",
		"completed":   "Completed",
		"BUSY":        "Busy",
		"":            "",
		"état-ok":     "État Ok",
		"über_call":   "Über Call",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("no-answer")
	if err != nil || s != StatusNoAnswer {
		t.Fatalf("expected No Answer, got %q err=%v", s, err)
	}
	s, err = ParseStatus("initiated")
	if err != nil || s != StatusQueued {
		t.Fatalf("expected initiated to map to Queued, got %q err=%v", s, err)
	}
	if _, err := ParseStatus("exploded"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusRinging, StatusInProgress) {
		t.Fatalf("ringing -> in progress must be allowed")
	}
	if !CanTransition(StatusRinging, StatusNoAnswer) {
		t.Fatalf("ringing -> no answer must be allowed")
	}
	if !CanTransition(StatusInProgress, StatusCompleted) {
		t.Fatalf("in progress -> completed must be allowed")
	}
	if CanTransition(StatusInProgress, StatusRinging) {
		t.Fatalf("backwards move must be rejected")
	}
	if CanTransition(StatusRinging, StatusRinging) {
		t.Fatalf("same state is a no-op")
	}
	for _, term := range []Status{StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled} {
		if !term.Terminal() {
			t.Fatalf("%q must be terminal", term)
		}
		if CanTransition(term, StatusCompleted) || CanTransition(term, StatusFailed) {
			t.Fatalf("terminal %q must not move", term)
		}
	}
}
