package radio

import (
	"errors"
	"fmt"
	"time"
)

// EventKind identifies an asynchronous hardware completion.
type EventKind uint8

const (
	TxDone EventKind = iota + 1
	TxTimeout
	RxDone
	RxTimeout
	RxError
)

func (k EventKind) String() string {
	switch k {
	case TxDone:
		return "tx_done"
	case TxTimeout:
		return "tx_timeout"
	case RxDone:
		return "rx_done"
	case RxTimeout:
		return "rx_timeout"
	case RxError:
		return "rx_error"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one completion reported by a Driver. Payload, RSSI and SNR are
// only meaningful for RxDone.
type Event struct {
	Kind    EventKind
	Payload []byte
	RSSI    int16
	SNR     int8
}

// Driver is the hardware collaborator. Implementations report completions on
// Events; Transmit and Listen must return without waiting for them.
type Driver interface {
	Configure(p Params) error
	Transmit(payload []byte) error
	// Listen arms receive mode. A zero timeout listens until a packet arrives
	// or a Transmit cancels it.
	Listen(timeout time.Duration) error
	Sleep() error
	MaxPayload() int
	Events() <-chan Event
}

// Params mirrors the modem configuration a LoRa transceiver expects.
type Params struct {
	FrequencyHz     uint32        `toml:"frequency_hz"`
	TxPowerDBm      int8          `toml:"tx_power_dbm"`
	Bandwidth       uint8         `toml:"bandwidth"`
	SpreadingFactor uint8         `toml:"spreading_factor"`
	CodingRate      uint8         `toml:"coding_rate"`
	PreambleLength  uint16        `toml:"preamble_length"`
	SymbolTimeout   uint16        `toml:"symbol_timeout"`
	FixedLength     bool          `toml:"fixed_length_payload"`
	IQInverted      bool          `toml:"iq_inverted"`
	TxTimeout       time.Duration `toml:"tx_timeout"`
}

func DefaultParams() Params {
	return Params{
		FrequencyHz:     915_000_000,
		TxPowerDBm:      14,
		Bandwidth:       0,
		SpreadingFactor: 7,
		CodingRate:      1,
		PreambleLength:  8,
		SymbolTimeout:   5,
		FixedLength:     false,
		IQInverted:      false,
		TxTimeout:       3 * time.Second,
	}
}

var ErrInvalidParams = errors.New("radio: invalid params")

func (p Params) Validate() error {
	if p.FrequencyHz == 0 {
		return fmt.Errorf("%w: frequency is required", ErrInvalidParams)
	}
	if p.SpreadingFactor < 5 || p.SpreadingFactor > 12 {
		return fmt.Errorf("%w: spreading factor %d outside 5..12", ErrInvalidParams, p.SpreadingFactor)
	}
	if p.CodingRate < 1 || p.CodingRate > 4 {
		return fmt.Errorf("%w: coding rate %d outside 1..4", ErrInvalidParams, p.CodingRate)
	}
	if p.Bandwidth > 2 {
		return fmt.Errorf("%w: bandwidth index %d outside 0..2", ErrInvalidParams, p.Bandwidth)
	}
	if p.TxTimeout < 0 {
		return fmt.Errorf("%w: negative tx timeout", ErrInvalidParams)
	}
	return nil
}
