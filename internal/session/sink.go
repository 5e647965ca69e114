package session

import (
	"context"
	"time"
)

type Direction string

const (
	Inbound  Direction = "rx"
	Outbound Direction = "tx"
)

// Message is one plaintext that crossed the link.
type Message struct {
	Direction Direction
	Body      []byte
	RSSI      int16
	SNR       int8
	At        time.Time
}

// Sink records messages, for example into a journal. Errors are logged and
// never stop the loop.
type Sink interface {
	Record(ctx context.Context, msg Message) error
}
