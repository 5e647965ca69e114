package protocol

import "errors"

var (
	ErrInvalidLength   = errors.New("protocol: invalid cipher length")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrEmptyPayload    = errors.New("protocol: empty payload")
	ErrBadPadding      = errors.New("protocol: bad padding")
	ErrTruncated       = errors.New("protocol: truncated data")
)
