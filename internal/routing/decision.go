package routing

// Decision is the carrier-agnostic output of attender selection.
//
// It carries only what the call response builder needs to act on it.
// No carrier identity and no carrier-specific fields belong here.
type Decision struct {
	AgentID string  `json:"agent_id,omitempty"`
	Channel Channel `json:"channel"`

	// Target is the mobile number for ChannelPhone and the sanitized client
	// identity for ChannelComputer. Empty for ChannelNone.
	Target string `json:"target,omitempty"`

	// Reason is optional and intended for internal logs.
	Reason string `json:"reason,omitempty"`
}

type Channel string

const (
	ChannelPhone    Channel = "Phone"
	ChannelComputer Channel = "Computer"
	ChannelNone     Channel = "None"
)

// HasAgent reports whether an attender was selected.
func (d Decision) HasAgent() bool {
	return d.AgentID != "" && d.Channel != ChannelNone
}

// NoAgent is the fallback decision.
func NoAgent(reason string) Decision {
	return Decision{Channel: ChannelNone, Reason: reason}
}

const (
	ReasonPhone        = "phone_with_mobile"
	ReasonComputer     = "computer_present"
	ReasonNoOwner      = "no_owner"
	ReasonNoneEligible = "no_eligible_attender"
	ReasonLookupFailed = "lookup_failed"
)
