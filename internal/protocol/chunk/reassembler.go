package chunk

import (
	"encoding/binary"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/frame"
)

// Decoder turns a reassembled frame back into plaintext.
type Decoder interface {
	Decode(f frame.Frame) ([]byte, error)
}

type phase uint8

const (
	awaitingHeader phase = iota
	awaitingBody
)

func (p phase) String() string {
	if p == awaitingBody {
		return "awaiting_body"
	}
	return "awaiting_header"
}

// ResyncPolicy selects how the parser recovers from a bad length prefix or an
// undecodable frame.
type ResyncPolicy uint8

const (
	// ResyncSlide drops a single byte and re-parses what it already holds, so
	// a real frame boundary is found at any byte offset.
	ResyncSlide ResyncPolicy = iota
	// ResyncDiscard empties the accumulator, matching the reference firmware.
	// A stream that loses an odd number of bytes can stay misaligned under it.
	ResyncDiscard
)

func (p ResyncPolicy) String() string {
	if p == ResyncDiscard {
		return "discard"
	}
	return "slide"
}

// Result is one completed frame: its plaintext, or the reason it was dropped.
type Result struct {
	Plaintext []byte
	Err       error
}

// Reassembler recovers frames from a byte stream whose packet boundaries have
// no relation to frame boundaries. An invalid length prefix or an undecodable
// frame is a resynchronization, never a fatal error; see ResyncPolicy.
type Reassembler struct {
	dec      Decoder
	policy   ResyncPolicy
	buf      [protocol.MaxPacket]byte
	n        int
	phase    phase
	expected int

	// replay holds bytes from a rejected candidate frame, parsed before any
	// further input.
	replay []byte

	resyncs uint64
	frames  uint64
	dropped uint64
}

func NewReassembler(dec Decoder, policy ResyncPolicy) *Reassembler {
	return &Reassembler{dec: dec, policy: policy}
}

// Feed consumes every byte of p and returns the frames it completed, in order.
// Packet boundaries carry no meaning; any grouping of the same bytes yields
// the same results.
func (r *Reassembler) Feed(p []byte) []Result {
	var out []Result
	for _, b := range p {
		out = r.consume(b, out)
		for len(r.replay) > 0 {
			next := r.replay[0]
			r.replay = r.replay[1:]
			out = r.consume(next, out)
		}
	}
	return out
}

func (r *Reassembler) consume(b byte, out []Result) []Result {
	if res, ok := r.push(b); ok {
		out = append(out, res)
	}
	return out
}

func (r *Reassembler) push(b byte) (Result, bool) {
	if r.n < len(r.buf) {
		r.buf[r.n] = b
		r.n++
	}
	if r.phase == awaitingHeader {
		if r.n < protocol.LengthSize {
			return Result{}, false
		}
		cipherLen := int(binary.BigEndian.Uint16(r.buf[:protocol.LengthSize]))
		if !protocol.ValidCipherLength(cipherLen) {
			r.resyncs++
			if r.policy == ResyncSlide {
				r.buf[0] = r.buf[1]
				r.n = 1
				return Result{}, false
			}
			r.reset()
			return Result{}, false
		}
		r.expected = protocol.WireSize(cipherLen)
		r.phase = awaitingBody
	}
	if r.n < r.expected {
		return Result{}, false
	}
	res := r.complete()
	if res.Err != nil && r.policy == ResyncSlide {
		r.rescan()
	}
	r.reset()
	return res, true
}

// rescan queues the rejected candidate minus its first byte for re-parsing,
// ahead of anything already queued.
func (r *Reassembler) rescan() {
	next := make([]byte, 0, r.expected-1+len(r.replay))
	next = append(next, r.buf[1:r.expected]...)
	next = append(next, r.replay...)
	r.replay = next
}

func (r *Reassembler) complete() Result {
	f, err := frame.Parse(r.buf[:r.expected])
	if err != nil {
		r.dropped++
		return Result{Err: err}
	}
	plain, err := r.dec.Decode(f)
	if err != nil {
		r.dropped++
		return Result{Err: err}
	}
	r.frames++
	return Result{Plaintext: plain}
}

func (r *Reassembler) reset() {
	r.n = 0
	r.expected = 0
	r.phase = awaitingHeader
}

// Reset discards any partial frame.
func (r *Reassembler) Reset() {
	r.replay = nil
	r.reset()
}

// Phase names the parser state, for logs.
func (r *Reassembler) Phase() string { return r.phase.String() }

// Buffered returns how many bytes of the current partial frame are held.
func (r *Reassembler) Buffered() int { return r.n }

// Expected returns the full wire size of the frame being assembled, or zero
// while the length prefix is still unknown.
func (r *Reassembler) Expected() int { return r.expected }

func (r *Reassembler) Resyncs() uint64 { return r.resyncs }
func (r *Reassembler) Frames() uint64  { return r.frames }
func (r *Reassembler) Dropped() uint64 { return r.dropped }
