package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics. Direction is optional.
type CallsSummaryRequest struct {
	Range     TimeRange `json:"range"`
	Direction string    `json:"direction,omitempty"`
}

type CallsSummary struct {
	Direction string `json:"direction,omitempty"`

	TotalCalls      int `json:"total_calls"`
	InboundCalls    int `json:"inbound_calls"`
	OutboundCalls   int `json:"outbound_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	RingingCalls    int `json:"ringing_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// MessagesSummaryRequest requests aggregated WhatsApp metrics. ReferenceType
// narrows the summary to messages sent for one kind of business object.
type MessagesSummaryRequest struct {
	Range         TimeRange `json:"range"`
	ReferenceType string    `json:"reference_type,omitempty"`
}

type MessagesSummary struct {
	ReferenceType string `json:"reference_type,omitempty"`

	TotalMessages int `json:"total_messages"`
	Sent          int `json:"sent"`
	Received      int `json:"received"`

	// By current canonical status of outbound messages.
	Pending     int `json:"pending"`
	Delivered   int `json:"delivered"`
	Failed      int `json:"failed"`
	Undelivered int `json:"undelivered"`

	DeliveryRate float64 `json:"delivery_rate"`
}
