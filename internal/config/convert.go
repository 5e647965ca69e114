package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/protocol/seal"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/danmuck/loralink/internal/session"
)

func (c NodeConfig) RadioParams() (radio.Params, error) {
	p := radio.Params{
		FrequencyHz:     c.Radio.FrequencyHz,
		TxPowerDBm:      c.Radio.TxPowerDBm,
		Bandwidth:       c.Radio.Bandwidth,
		SpreadingFactor: c.Radio.SpreadingFactor,
		CodingRate:      c.Radio.CodingRate,
		PreambleLength:  c.Radio.PreambleLength,
		SymbolTimeout:   c.Radio.SymbolTimeout,
		FixedLength:     c.Radio.FixedLength,
		IQInverted:      c.Radio.IQInverted,
	}
	if c.Radio.TxTimeout != "" {
		d, err := time.ParseDuration(c.Radio.TxTimeout)
		if err != nil {
			return radio.Params{}, fmt.Errorf("radio.tx_timeout: %w", err)
		}
		p.TxTimeout = d
	}
	if err := p.Validate(); err != nil {
		return radio.Params{}, err
	}
	return p, nil
}

func (c NodeConfig) TransportConfig() (chunk.Config, error) {
	out := chunk.DefaultConfig()
	if c.ChunkSize != 0 {
		out.ChunkSize = c.ChunkSize
	}
	if _, err := chunk.NewSegmenter(out.ChunkSize); err != nil {
		return chunk.Config{}, fmt.Errorf("chunk_size: %w", err)
	}
	if c.CounterStart != 0 {
		out.CounterStart = c.CounterStart
	}
	switch strings.ToLower(strings.TrimSpace(c.Resync)) {
	case "", "slide":
		out.Resync = chunk.ResyncSlide
	case "discard":
		out.Resync = chunk.ResyncDiscard
	default:
		return chunk.Config{}, fmt.Errorf("unknown resync policy: %q", c.Resync)
	}
	return out, nil
}

func (c NodeConfig) SessionConfig() (session.Config, error) {
	out := session.DefaultConfig()
	in, err := parseTerminator(c.InputTerminator)
	if err != nil {
		return session.Config{}, fmt.Errorf("input_terminator: %w", err)
	}
	wire, err := parseTerminator(c.WireTerminator)
	if err != nil {
		return session.Config{}, fmt.Errorf("wire_terminator: %w", err)
	}
	out.InputTerminator = in
	out.WireTerminator = wire
	out.EchoInput = c.EchoInput
	if c.IdleYield != "" {
		d, err := time.ParseDuration(c.IdleYield)
		if err != nil {
			return session.Config{}, fmt.Errorf("idle_yield: %w", err)
		}
		out.IdleYield = d
	}
	return out, nil
}

// LinkKey resolves the pre-shared key.
func (c NodeConfig) LinkKey() ([seal.KeySize]byte, error) {
	switch {
	case strings.TrimSpace(c.Key.Hex) != "":
		return seal.ParseHexKey(c.Key.Hex)
	case c.Key.Passphrase != "":
		return seal.DeriveKey(c.Key.Passphrase, c.Key.Salt)
	default:
		return seal.DefaultKey, nil
	}
}

// UsesDefaultKey reports whether no key was configured.
func (c NodeConfig) UsesDefaultKey() bool {
	return strings.TrimSpace(c.Key.Hex) == "" && c.Key.Passphrase == ""
}

// parseTerminator accepts a single byte or one of the escapes \n, \r, \t, \0.
func parseTerminator(raw string) (byte, error) {
	switch raw {
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	case `\t`:
		return '\t', nil
	case `\0`:
		return 0, nil
	}
	if len(raw) != 1 {
		return 0, fmt.Errorf("terminator must be a single byte, got %q", raw)
	}
	return raw[0], nil
}
