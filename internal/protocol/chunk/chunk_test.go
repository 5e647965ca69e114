package chunk

import (
	"bytes"
	"testing"

	"github.com/danmuck/loralink/internal/protocol/frame"
	"github.com/danmuck/loralink/internal/protocol/seal"
)

func newTestCodec(t *testing.T) *seal.Codec {
	t.Helper()
	c, err := seal.NewCodec(seal.DefaultKey[:])
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

// wireFor seals plaintext under counter and returns the serialized frame.
func wireFor(t *testing.T, c *seal.Codec, plaintext string, counter uint64) []byte {
	t.Helper()
	f, err := c.Encode([]byte(plaintext), counter)
	if err != nil {
		t.Fatalf("encode %q: %v", plaintext, err)
	}
	wire, err := frame.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return wire
}

// padded returns the concatenated zero-padded segments of wire.
func padded(wire []byte, size int) []byte {
	return bytes.Join(Split(wire, size), nil)
}

func plaintexts(t *testing.T, results []Result) []string {
	t.Helper()
	out := make([]string, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			out = append(out, "!err")
			continue
		}
		out = append(out, string(res.Plaintext))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fakeLink accepts sends unless busy or refusing.
type fakeLink struct {
	busy   bool
	refuse bool
	sent   [][]byte
}

func (l *fakeLink) IsTransmitBusy() bool { return l.busy }

func (l *fakeLink) Send(p []byte) bool {
	if l.busy || l.refuse {
		return false
	}
	l.sent = append(l.sent, append([]byte(nil), p...))
	return true
}
