package messaging

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusSent        Status = "Sent"
	StatusDelivered   Status = "Delivered"
	StatusFailed      Status = "Failed"
	StatusUndelivered Status = "Undelivered"
	StatusReceived    Status = "Received"
)

var ErrUnknownStatus = errors.New("messaging: unknown message status")

// carrier token -> canonical status
var vocabulary = map[string]Status{
	"queued":      StatusSent,
	"accepted":    StatusSent,
	"scheduled":   StatusSent,
	"sending":     StatusSent,
	"sent":        StatusSent,
	"delivered":   StatusDelivered,
	"read":        StatusDelivered,
	"failed":      StatusFailed,
	"undelivered": StatusUndelivered,
	"canceled":    StatusFailed,
	"receiving":   StatusReceived,
	"received":    StatusReceived,
}

// ParseStatus maps a carrier SmsStatus/MessageStatus token to a canonical status.
func ParseStatus(token string) (Status, error) {
	s, ok := vocabulary[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, token)
	}
	return s, nil
}

func (s Status) Terminal() bool {
	return s != StatusSent
}

// CanTransition allows only Sent -> {Delivered, Failed, Undelivered}.
// Received has no transitions.
func CanTransition(from, to Status) bool {
	if from != StatusSent {
		return false
	}
	switch to {
	case StatusDelivered, StatusFailed, StatusUndelivered:
		return true
	}
	return false
}
