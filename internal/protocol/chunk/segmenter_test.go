package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/loralink/internal/protocol/frame"
	"github.com/danmuck/loralink/internal/testutil/testlog"
)

func TestNewSegmenterRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -1, 256} {
		if _, err := NewSegmenter(size); !errors.Is(err, ErrInvalidChunkSize) {
			t.Fatalf("size %d: expected ErrInvalidChunkSize, got %v", size, err)
		}
	}
}

func TestSplitZeroPadsFinalSegment(t *testing.T) {
	wire := []byte{1, 2, 3, 4, 5}
	segs := Split(wire, 4)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if !bytes.Equal(segs[1], []byte{5, 0, 0, 0}) {
		t.Fatalf("final segment = %x", segs[1])
	}
	if PaddedSize(34, 8) != 40 || PaddedSize(32, 8) != 32 {
		t.Fatalf("unexpected padded sizes")
	}
}

func TestSegmenterSendsInOrderAndWaitsForLink(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t)
	f, err := codec.Encode([]byte("HELLO"), 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wire, _ := frame.Marshal(f)

	s, _ := NewSegmenter(8)
	if err := s.Load(f); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Remaining() != 5 {
		t.Fatalf("remaining = %d, want 5", s.Remaining())
	}
	if err := s.Load(f); !errors.Is(err, ErrBusy) {
		t.Fatalf("second load: expected ErrBusy, got %v", err)
	}

	link := &fakeLink{busy: true}
	if s.SendNext(link) {
		t.Fatalf("sent while link busy")
	}
	link.busy = false
	link.refuse = true
	if s.SendNext(link) || s.Remaining() != 5 {
		t.Fatalf("refused send must not advance")
	}
	link.refuse = false
	for s.SendNext(link) {
	}
	if s.Pending() {
		t.Fatalf("segmenter still pending")
	}
	if len(link.sent) != 5 {
		t.Fatalf("sent %d segments, want 5", len(link.sent))
	}
	for i, seg := range link.sent {
		if len(seg) != 8 {
			t.Fatalf("segment %d length %d", i, len(seg))
		}
	}
	if got := bytes.Join(link.sent, nil); !bytes.Equal(got, padded(wire, 8)) {
		t.Fatalf("segments do not reproduce the padded frame")
	}
	if err := s.Load(f); err != nil {
		t.Fatalf("load after drain: %v", err)
	}
}
