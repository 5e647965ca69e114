package chunk

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/danmuck/loralink/internal/testutil/testlog"
)

func TestReassemblerAnyChunkSizeAndGrouping(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t)
	plain := []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmn")
	wire := wireFor(t, codec, string(plain), 7)
	rng := rand.New(rand.NewSource(1))

	for size := 1; size <= len(wire); size++ {
		stream := padded(wire, size)
		groupings := map[string][][]byte{
			"whole":    {stream},
			"segments": Split(wire, size),
			"bytes":    splitEvery(stream, 1),
			"random":   splitRandom(rng, stream),
		}
		for name, packets := range groupings {
			for _, policy := range []ResyncPolicy{ResyncSlide, ResyncDiscard} {
				r := NewReassembler(codec, policy)
				var results []Result
				for _, p := range packets {
					results = append(results, r.Feed(p)...)
				}
				if len(results) != 1 || results[0].Err != nil || !bytes.Equal(results[0].Plaintext, plain) {
					t.Fatalf("size %d %s %s: got %v", size, name, policy, plaintexts(t, results))
				}
			}
		}
	}
}

func TestReassemblerSlideRecoversAfterGarbage(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t)
	var frames []byte
	for i, msg := range []string{"first", "second", "third"} {
		frames = append(frames, padded(wireFor(t, codec, msg, uint64(i+1)), 8)...)
	}

	cases := []struct {
		name    string
		garbage string
		want    []string
	}{
		{"odd", "deadbeef01", []string{"first", "second", "third"}},
		{"even", "ffffffff", []string{"first", "second", "third"}},
		{"single zero", "00", []string{"first", "second", "third"}},
		{"noise", "a54dca182530bb1d6d132cded6237b2ed91e3f721fcb1971174494d6493c9d5c3460be3120", []string{"first", "second", "third"}},
		{"plausible header", "0010aabb", []string{"!err", "first", "second", "third"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			garbage, _ := hex.DecodeString(tc.garbage)
			stream := append(garbage, frames...)

			r := NewReassembler(codec, ResyncSlide)
			if got := plaintexts(t, r.Feed(stream)); !equalStrings(got, tc.want) {
				t.Fatalf("whole stream: got %v, want %v", got, tc.want)
			}
			r = NewReassembler(codec, ResyncSlide)
			var results []Result
			for _, b := range stream {
				results = append(results, r.Feed([]byte{b})...)
			}
			if got := plaintexts(t, results); !equalStrings(got, tc.want) {
				t.Fatalf("bytewise: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReassemblerSlideRescansLongBogusFrame(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t)
	// 0x00e0 claims a maximum-size frame and swallows the first real ones.
	stream := []byte{0x00, 0xe0}
	want := []string{"!err"}
	for i := 0; i < 8; i++ {
		msg := "msg" + string(rune('0'+i))
		stream = append(stream, padded(wireFor(t, codec, msg, uint64(i+1)), 8)...)
		want = append(want, msg)
	}
	r := NewReassembler(codec, ResyncSlide)
	if got := plaintexts(t, r.Feed(stream)); !equalStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReassemblerDiscardCanStayMisaligned(t *testing.T) {
	codec := newTestCodec(t)
	var frames []byte
	for i, msg := range []string{"first", "second", "third"} {
		frames = append(frames, padded(wireFor(t, codec, msg, uint64(i+1)), 8)...)
	}

	even := append([]byte{0xff, 0xff, 0xff, 0xff}, frames...)
	r := NewReassembler(codec, ResyncDiscard)
	if got := plaintexts(t, r.Feed(even)); !equalStrings(got, []string{"first", "second", "third"}) {
		t.Fatalf("even garbage: got %v", got)
	}

	odd := append([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}, frames...)
	r = NewReassembler(codec, ResyncDiscard)
	if got := r.Feed(odd); len(got) != 0 {
		t.Fatalf("odd garbage: expected no frames, got %v", plaintexts(t, got))
	}
	if r.Resyncs() == 0 {
		t.Fatalf("expected resyncs to be counted")
	}
}

func TestReassemblerDroppedSegment(t *testing.T) {
	testlog.Start(t)
	codec := newTestCodec(t)
	first := Split(wireFor(t, codec, "HELLO, WORLD, HELLO", 1), 20)
	if len(first) != 3 {
		t.Fatalf("segments = %d, want 3", len(first))
	}
	follow := func(msg string, counter uint64) []byte {
		return padded(wireFor(t, codec, msg, counter), 20)
	}

	cases := []struct {
		policy ResyncPolicy
		second []string
	}{
		{ResyncSlide, []string{"!err", "WORLD"}},
		{ResyncDiscard, []string{"!err"}},
	}
	for _, tc := range cases {
		t.Run(tc.policy.String(), func(t *testing.T) {
			r := NewReassembler(codec, tc.policy)
			// The middle segment never arrives.
			if got := r.Feed(first[0]); len(got) != 0 {
				t.Fatalf("unexpected frames: %v", plaintexts(t, got))
			}
			if got := r.Feed(first[2]); len(got) != 0 {
				t.Fatalf("unexpected frames: %v", plaintexts(t, got))
			}
			if r.Buffered() != 40 || r.Expected() != 50 {
				t.Fatalf("buffered=%d expected=%d, want 40/50", r.Buffered(), r.Expected())
			}
			if r.Phase() != "awaiting_body" {
				t.Fatalf("phase = %s", r.Phase())
			}

			if got := plaintexts(t, r.Feed(follow("WORLD", 2))); !equalStrings(got, tc.second) {
				t.Fatalf("after loss: got %v, want %v", got, tc.second)
			}
			if got := plaintexts(t, r.Feed(follow("AGAIN", 3))); !equalStrings(got, []string{"AGAIN"}) {
				t.Fatalf("recovery: got %v", got)
			}
			if got := plaintexts(t, r.Feed(follow("DONE", 4))); !equalStrings(got, []string{"DONE"}) {
				t.Fatalf("steady state: got %v", got)
			}
			if r.Dropped() != 1 {
				t.Fatalf("dropped = %d, want 1", r.Dropped())
			}
		})
	}
}

func TestReassemblerResetDiscardsPartialFrame(t *testing.T) {
	codec := newTestCodec(t)
	wire := wireFor(t, codec, "partial", 1)
	r := NewReassembler(codec, ResyncSlide)
	r.Feed(wire[:10])
	if r.Buffered() != 10 {
		t.Fatalf("buffered = %d", r.Buffered())
	}
	r.Reset()
	if r.Buffered() != 0 || r.Expected() != 0 || r.Phase() != "awaiting_header" {
		t.Fatalf("reset left state behind")
	}
	if got := plaintexts(t, r.Feed(wire)); !equalStrings(got, []string{"partial"}) {
		t.Fatalf("got %v", got)
	}
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > n {
		out = append(out, b[:n])
		b = b[n:]
	}
	return append(out, b)
}

func splitRandom(rng *rand.Rand, b []byte) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		n := 1 + rng.Intn(17)
		if n > len(b) {
			n = len(b)
		}
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}
