package calls

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Status is the canonical call state. Values are the title-cased carrier
// tokens, e.g. "in-progress" becomes "In Progress".
type Status string

const (
	StatusQueued     Status = "Queued"
	StatusRinging    Status = "Ringing"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusBusy       Status = "Busy"
	StatusFailed     Status = "Failed"
	StatusNoAnswer   Status = "No Answer"
	StatusCanceled   Status = "Canceled"
)

var ErrUnknownStatus = errors.New("calls: unknown call status")

// rank orders states along the happy path. All terminal states share the top rank.
var rank = map[Status]int{
	StatusQueued:     0,
	StatusRinging:    1,
	StatusInProgress: 2,
	StatusCompleted:  3,
	StatusBusy:       3,
	StatusFailed:     3,
	StatusNoAnswer:   3,
	StatusCanceled:   3,
}

// Canonicalize turns a hyphen-separated lower-case carrier token into
// space-separated title case. It does not check the vocabulary.
func Canonicalize(token string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(token), func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, p := range parts {
		p = strings.ToLower(p)
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// ParseStatus canonicalizes token and checks it against the call vocabulary.
// The carrier's "initiated" is treated as Queued.
func ParseStatus(token string) (Status, error) {
	c := Canonicalize(token)
	if c == "Initiated" {
		return StatusQueued, nil
	}
	s := Status(c)
	if _, ok := rank[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, token)
	}
	return s, nil
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

// CanTransition reports whether a record in from may move to to. Terminal
// states accept nothing; otherwise only strictly forward moves are allowed.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	rf, ok := rank[from]
	if !ok {
		return true
	}
	rt, ok := rank[to]
	if !ok {
		return false
	}
	return rt > rf
}
