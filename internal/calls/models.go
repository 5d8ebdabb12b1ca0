package calls

import "time"

// CallRecord is the durable log of one carrier call.
//
// ID is the carrier CallSid: set once on creation, never changed.
// Duration and RecordingURL are write-once; later writes are ignored.
type CallRecord struct {
	ID        string    `json:"id" db:"call_sid"`
	Direction Direction `json:"direction" db:"direction"`

	From string `json:"from" db:"from_number"`
	To   string `json:"to" db:"to_number"`

	Status Status `json:"status" db:"status"`

	// Duration is in seconds; nil until the carrier reports it.
	Duration     *int    `json:"duration,omitempty" db:"duration"`
	RecordingURL *string `json:"recording_url,omitempty" db:"recording_url"`

	// Medium names the carrier that handled the call.
	Medium string `json:"medium" db:"medium"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

const MediumTwilio = "Twilio"

// NewCall is the input for opening a record from a voice webhook.
type NewCall struct {
	ID        string
	Direction Direction
	From      string
	To        string

	// Status is the carrier token from the webhook; empty means ringing.
	Status string
}

// Outcome tells the caller whether an update changed the record. Duplicate
// and out-of-order callbacks produce OutcomeIgnored, not an error.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)
