package delivery

import "errors"

// Sentinel errors for the delivery service layer.
var (
	ErrNotFound         = errors.New("delivery record not found")
	ErrInvalidRecipient = errors.New("invalid recipient address")
)
