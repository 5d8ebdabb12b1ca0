package directory

import (
	"errors"
	"strings"
)

// Device is the agent's preferred way of receiving forwarded calls.
type Device string

const (
	DevicePhone    Device = "Phone"
	DeviceComputer Device = "Computer"
)

func (d Device) Valid() bool {
	return d == DevicePhone || d == DeviceComputer
}

// Agent is an internal user as configured by administrators.
// This service only reads agents.
type Agent struct {
	ID string `json:"id" db:"user_id"`

	// Number is the carrier phone number assigned to the agent, empty if none.
	Number string `json:"twilio_number,omitempty" db:"twilio_number"`

	Device   Device `json:"call_receiving_device" db:"call_receiving_device"`
	MobileNo string `json:"mobile_no,omitempty" db:"mobile_no"`

	// Role is the access role granted at login. Empty reads as agent.
	Role string `json:"role,omitempty" db:"role"`
}

var ErrInvalidAgent = errors.New("directory: invalid agent")

// Validate enforces the configuration rules admins must respect.
func (a Agent) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidAgent
	}
	if !a.Device.Valid() {
		return ErrInvalidAgent
	}
	if a.Device == DevicePhone && strings.TrimSpace(a.MobileNo) == "" {
		return ErrInvalidAgent
	}
	return nil
}

// Owner is one agent configured on a dialed number, joined with live presence.
type Owner struct {
	AgentID  string `json:"agent_id"`
	Device   Device `json:"device"`
	MobileNo string `json:"mobile_no,omitempty"`
	Present  bool   `json:"present"`
}
