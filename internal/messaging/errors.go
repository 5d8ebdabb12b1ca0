package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("messaging: record not found")
	ErrInvalidArgument  = errors.New("messaging: invalid argument")
	ErrUnsupportedMedia = errors.New("messaging: unsupported media type")
)

// RecipientDeliveryError is one recipient's failure inside a bulk send.
type RecipientDeliveryError struct {
	Recipient string `json:"recipient"`
	Err       error  `json:"-"`
}

func (e *RecipientDeliveryError) Error() string {
	return fmt.Sprintf("messaging: delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *RecipientDeliveryError) Unwrap() error { return e.Err }
