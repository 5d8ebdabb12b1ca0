package messaging

import "time"

// MessageRecord is the durable log of one WhatsApp message.
// ID is the carrier MessageSid and never changes once written.
type MessageRecord struct {
	ID        string    `json:"id" db:"message_sid"`
	Direction Direction `json:"direction" db:"direction"`

	From     string `json:"from" db:"from_address"`
	To       string `json:"to" db:"to_address"`
	Body     string `json:"body" db:"body"`
	MediaURL string `json:"media_url,omitempty" db:"media_url"`

	// ProfileName is the sender's display name on inbound messages.
	ProfileName string `json:"profile_name,omitempty" db:"profile_name"`

	Status Status `json:"status" db:"status"`

	// ReferenceType/ReferenceID point at the business object the message was sent for.
	ReferenceType string `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID   string `json:"reference_id,omitempty" db:"reference_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// awaitingContent is true for a record created by an early status callback.
func (r MessageRecord) awaitingContent() bool {
	return r.Direction == DirectionSent && r.To == ""
}

type Direction string

const (
	DirectionSent     Direction = "Sent"
	DirectionReceived Direction = "Received"
)

// InboundMessage is the typed payload of an inbound-message webhook.
type InboundMessage struct {
	Sid         string
	From        string
	To          string
	Body        string
	ProfileName string
	MediaURL    string
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)
