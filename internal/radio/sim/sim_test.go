package sim

import (
	"bytes"
	"testing"
	"time"

	"github.com/danmuck/loralink/internal/radio"
	"github.com/danmuck/loralink/internal/testutil/testlog"
)

func newPair(t *testing.T) (*Medium, *radio.Link, *radio.Link) {
	t.Helper()
	m := NewMedium()
	a, err := radio.NewLink(m.Attach("a"), radio.DefaultParams())
	if err != nil {
		t.Fatalf("link a: %v", err)
	}
	b, err := radio.NewLink(m.Attach("b"), radio.DefaultParams())
	if err != nil {
		t.Fatalf("link b: %v", err)
	}
	return m, a, b
}

func drain(l *radio.Link) {
	for l.Poll() {
	}
}

func TestTransmitReachesListeningPeer(t *testing.T) {
	testlog.Start(t)
	_, a, b := newPair(t)
	if !a.Send([]byte("ping")) {
		t.Fatalf("send rejected")
	}
	drain(a)
	drain(b)
	if a.IsTransmitBusy() {
		t.Fatalf("transmitter still busy")
	}
	buf := make([]byte, 255)
	n := b.TakeReceived(buf)
	if !bytes.Equal(buf[:n], []byte("ping")) {
		t.Fatalf("received %q", buf[:n])
	}
	if b.LastRSSI() != -42 || b.LastSNR() != 9 {
		t.Fatalf("signal: rssi=%d snr=%d", b.LastRSSI(), b.LastSNR())
	}
}

func TestHalfDuplexPeerNotListeningMissesPacket(t *testing.T) {
	testlog.Start(t)
	m, a, b := newPair(t)
	b.Send([]byte("mine"))
	a.Send([]byte("yours"))
	drain(a)
	drain(b)
	if b.HasReceived() {
		t.Fatalf("transmitting peer heard a packet")
	}
	if !a.HasReceived() {
		t.Fatalf("a should have heard b's packet while listening")
	}
	if m.Delivered() != 1 {
		t.Fatalf("delivered: %d", m.Delivered())
	}
}

func TestCoalesceMergesPackets(t *testing.T) {
	testlog.Start(t)
	m, a, b := newPair(t)
	m.Coalesce(3)
	for _, seg := range []string{"ab", "cd", "ef"} {
		if !a.Send([]byte(seg)) {
			t.Fatalf("send %q rejected", seg)
		}
		drain(a)
	}
	drain(b)
	buf := make([]byte, 255)
	n := b.TakeReceived(buf)
	if string(buf[:n]) != "abcdef" {
		t.Fatalf("coalesced payload: %q", buf[:n])
	}
}

func TestFaultInjection(t *testing.T) {
	testlog.Start(t)
	m, a, b := newPair(t)
	m.TimeoutNext(1)
	a.Send([]byte("lost"))
	drain(a)
	if !a.LastTxTimeout() || a.State() != radio.Idle {
		t.Fatalf("expected tx timeout, state=%v", a.State())
	}
	m.DropNext(1)
	a.Send([]byte("dropped"))
	drain(a)
	drain(b)
	if b.HasReceived() || m.Dropped() != 1 {
		t.Fatalf("drop not applied")
	}
	m.ErrorNext(1)
	b.Send([]byte("x"))
	drain(b)
	b.StartReceive()
	drain(b)
	if b.State() != radio.Listening {
		t.Fatalf("rx error did not re-arm: %v", b.State())
	}
}

func TestAirtimeDelaysCompletion(t *testing.T) {
	m, a, b := newPair(t)
	m.SetAirtime(20 * time.Millisecond)
	if !a.Send([]byte("slow")) {
		t.Fatalf("send rejected")
	}
	if a.Poll() || b.Poll() {
		t.Fatalf("completion arrived before airtime elapsed")
	}
	if !a.IsTransmitBusy() {
		t.Fatalf("transmitter should stay busy during airtime")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !b.HasReceived() || a.IsTransmitBusy() {
		if time.Now().After(deadline) {
			t.Fatalf("transmission never completed")
		}
		a.Poll()
		b.Poll()
		time.Sleep(time.Millisecond)
	}
	buf := make([]byte, 16)
	if n := b.TakeReceived(buf); string(buf[:n]) != "slow" {
		t.Fatalf("received %q", buf[:n])
	}
}
