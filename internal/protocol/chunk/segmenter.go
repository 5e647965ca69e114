package chunk

import (
	"errors"
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/frame"
)

var (
	ErrBusy             = errors.New("chunk: outbound frame still pending")
	ErrInvalidChunkSize = errors.New("chunk: invalid chunk size")
)

// Sender is the part of the radio link the segmenter paces against.
type Sender interface {
	IsTransmitBusy() bool
	Send(payload []byte) bool
}

// Segmenter slices one serialized frame into fixed-size, zero-padded segments.
type Segmenter struct {
	size   int
	wire   []byte
	total  int
	offset int
	seg    []byte
}

func NewSegmenter(size int) (*Segmenter, error) {
	if size < 1 || size > protocol.MaxPacket {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	return &Segmenter{size: size, seg: make([]byte, size)}, nil
}

func (s *Segmenter) Size() int { return s.size }

// Load serializes f and queues its segments. It fails while a previous frame
// still has segments left.
func (s *Segmenter) Load(f frame.Frame) error {
	if s.Pending() {
		return ErrBusy
	}
	wire, err := frame.Marshal(f)
	if err != nil {
		return err
	}
	s.wire = wire
	s.total = PaddedSize(len(wire), s.size)
	s.offset = 0
	return nil
}

func (s *Segmenter) Pending() bool {
	return s.offset < s.total
}

// Remaining returns how many segments are left to send.
func (s *Segmenter) Remaining() int {
	return (s.total - s.offset) / s.size
}

// Peek returns the current segment without advancing. The slice is reused.
func (s *Segmenter) Peek() ([]byte, bool) {
	if !s.Pending() {
		return nil, false
	}
	for i := range s.seg {
		idx := s.offset + i
		if idx < len(s.wire) {
			s.seg[i] = s.wire[idx]
		} else {
			s.seg[i] = 0
		}
	}
	return s.seg, true
}

func (s *Segmenter) advance() {
	s.offset += s.size
	if !s.Pending() {
		s.wire = nil
		s.total = 0
		s.offset = 0
	}
}

// SendNext sends the current segment when the link is idle. The segment only
// advances when the link accepts it, so order is preserved across rejections.
func (s *Segmenter) SendNext(link Sender) bool {
	if link.IsTransmitBusy() {
		return false
	}
	seg, ok := s.Peek()
	if !ok {
		return false
	}
	if !link.Send(seg) {
		return false
	}
	s.advance()
	return true
}

// PaddedSize rounds n up to a multiple of size.
func PaddedSize(n, size int) int {
	return (n + size - 1) / size * size
}

// Split returns the segments of wire as independent slices.
func Split(wire []byte, size int) [][]byte {
	total := PaddedSize(len(wire), size)
	out := make([][]byte, 0, total/size)
	for off := 0; off < total; off += size {
		seg := make([]byte, size)
		if off < len(wire) {
			copy(seg, wire[off:])
		}
		out = append(out, seg)
	}
	return out
}
