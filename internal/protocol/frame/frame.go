package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
)

var (
	ErrShortFrame    = fmt.Errorf("frame: short frame: %w", protocol.ErrTruncated)
	ErrInvalidLength = fmt.Errorf("frame: %w", protocol.ErrInvalidLength)
	ErrSizeMismatch  = fmt.Errorf("frame: size does not match length prefix: %w", protocol.ErrInvalidLength)
)

// Frame is one length-prefixed, IV-tagged ciphertext unit.
//
//	+---------------+-----------+----------------------+
//	| cipher_length |    iv     |      ciphertext      |
//	+---------------+-----------+----------------------+
//	| 2 bytes (BE)  | 16 bytes  | cipher_length bytes  |
//	+---------------+-----------+----------------------+
type Frame struct {
	IV         [protocol.IVSize]byte
	Ciphertext []byte
}

func (f Frame) CipherLength() int {
	return len(f.Ciphertext)
}

// WireSize returns the number of bytes Marshal produces.
func (f Frame) WireSize() int {
	return protocol.WireSize(len(f.Ciphertext))
}

func Marshal(f Frame) ([]byte, error) {
	n := len(f.Ciphertext)
	if !protocol.ValidCipherLength(n) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	buf := make([]byte, protocol.WireSize(n))
	binary.BigEndian.PutUint16(buf[0:protocol.LengthSize], uint16(n))
	copy(buf[protocol.LengthSize:protocol.HeaderSize], f.IV[:])
	copy(buf[protocol.HeaderSize:], f.Ciphertext)
	return buf, nil
}

// ParseLength decodes and validates the big-endian length prefix.
func ParseLength(b []byte) (int, error) {
	if len(b) < protocol.LengthSize {
		return 0, ErrShortFrame
	}
	n := int(binary.BigEndian.Uint16(b[0:protocol.LengthSize]))
	if !protocol.ValidCipherLength(n) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return n, nil
}

// Parse decodes exactly one serialized frame. The ciphertext is copied.
func Parse(b []byte) (Frame, error) {
	if len(b) < protocol.HeaderSize {
		return Frame{}, ErrShortFrame
	}
	n, err := ParseLength(b)
	if err != nil {
		return Frame{}, err
	}
	if len(b) != protocol.WireSize(n) {
		return Frame{}, fmt.Errorf("%w: have=%d want=%d", ErrSizeMismatch, len(b), protocol.WireSize(n))
	}
	var f Frame
	copy(f.IV[:], b[protocol.LengthSize:protocol.HeaderSize])
	f.Ciphertext = make([]byte, n)
	copy(f.Ciphertext, b[protocol.HeaderSize:])
	return f, nil
}
