// Package sim is an in-process radio medium for host-side runs and tests.
//
// Every Driver attached to a Medium hears transmissions from the others only
// while it is listening; a transmitting or sleeping driver hears nothing.
package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 256

var ErrClosed = errors.New("sim: driver closed")

// Medium is the shared air between simulated drivers.
type Medium struct {
	mu          sync.Mutex
	drivers     []*Driver
	dropNext    int
	timeoutNext int
	errorNext   int
	coalesce    int
	rssi        int16
	snr         int8
	airtime     time.Duration
	delivered   uint64
	dropped     uint64
}

func NewMedium() *Medium {
	return &Medium{rssi: -42, snr: 9}
}

// DropNext loses the next n transmissions for every receiver.
func (m *Medium) DropNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropNext += n
}

// TimeoutNext makes the next n transmissions complete with TxTimeout and
// never reach the air.
func (m *Medium) TimeoutNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeoutNext += n
}

// ErrorNext makes the next n Listen calls fail with RxError.
func (m *Medium) ErrorNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorNext += n
}

// Coalesce merges every n consecutive transmissions into one received
// packet per receiver. n <= 1 delivers packets one to one.
func (m *Medium) Coalesce(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesce = n
}

func (m *Medium) SetSignal(rssi int16, snr int8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi = rssi
	m.snr = snr
}

// SetAirtime delays delivery and TxDone of every transmission by d. Zero
// completes transmissions synchronously inside Transmit.
func (m *Medium) SetAirtime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.airtime = d
}

// Flush delivers any partially coalesced packets.
func (m *Medium) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if len(d.pending) > 0 {
			m.deliverLocked(d)
		}
	}
}

// Delivered returns how many receive completions the medium has produced.
func (m *Medium) Delivered() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delivered
}

// Dropped returns how many transmissions DropNext discarded.
func (m *Medium) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Attach creates a driver on this medium.
func (m *Medium) Attach(name string) *Driver {
	d := &Driver{
		name:   name,
		medium: m,
		max:    protocol.MaxPacket,
		events: make(chan radio.Event, eventBuffer),
	}
	m.mu.Lock()
	m.drivers = append(m.drivers, d)
	m.mu.Unlock()
	return d
}

func (m *Medium) transmit(from *Driver, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from.listening = false
	if m.airtime > 0 {
		time.AfterFunc(m.airtime, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.completeLocked(from, payload)
		})
		return
	}
	m.completeLocked(from, payload)
}

// completeLocked puts payload on the air. Only drivers listening at this
// moment hear it.
func (m *Medium) completeLocked(from *Driver, payload []byte) {
	if m.timeoutNext > 0 {
		m.timeoutNext--
		from.post(radio.Event{Kind: radio.TxTimeout})
		return
	}
	drop := m.dropNext > 0
	if drop {
		m.dropNext--
		m.dropped++
	}
	for _, d := range m.drivers {
		if d == from || d.closed || !d.listening || drop {
			continue
		}
		if len(d.pending)+len(payload) > d.max && len(d.pending) > 0 {
			m.deliverLocked(d)
			if !d.listening {
				continue
			}
		}
		d.pending = append(d.pending, payload...)
		d.pendingCount++
		if m.coalesce <= 1 || d.pendingCount >= m.coalesce {
			m.deliverLocked(d)
		}
	}
	from.post(radio.Event{Kind: radio.TxDone})
}

func (m *Medium) deliverLocked(d *Driver) {
	payload := d.pending
	d.pending = nil
	d.pendingCount = 0
	d.listening = false
	m.delivered++
	d.post(radio.Event{Kind: radio.RxDone, Payload: payload, RSSI: m.rssi, SNR: m.snr})
}

// Driver is one simulated transceiver.
type Driver struct {
	name   string
	medium *Medium
	max    int
	events chan radio.Event

	// guarded by medium.mu
	listening    bool
	closed       bool
	pending      []byte
	pendingCount int
	params       radio.Params
	sent         [][]byte
}

func (d *Driver) Configure(p radio.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	d.params = p
	return nil
}

func (d *Driver) Transmit(payload []byte) error {
	d.medium.mu.Lock()
	if d.closed {
		d.medium.mu.Unlock()
		return ErrClosed
	}
	frame := append([]byte(nil), payload...)
	d.sent = append(d.sent, frame)
	d.medium.mu.Unlock()
	d.medium.transmit(d, frame)
	return nil
}

func (d *Driver) Listen(time.Duration) error {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.medium.errorNext > 0 {
		d.medium.errorNext--
		d.post(radio.Event{Kind: radio.RxError})
		return nil
	}
	d.listening = true
	return nil
}

func (d *Driver) Sleep() error {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	d.listening = false
	return nil
}

func (d *Driver) MaxPayload() int            { return d.max }
func (d *Driver) Events() <-chan radio.Event { return d.events }
func (d *Driver) Name() string               { return d.name }

// Listening reports whether the driver is currently armed.
func (d *Driver) Listening() bool {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	return d.listening
}

// Sent returns a copy of every payload this driver transmitted.
func (d *Driver) Sent() [][]byte {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	out := make([][]byte, len(d.sent))
	for i, p := range d.sent {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// Inject delivers payload to this driver as if it were received over the air,
// regardless of listening state.
func (d *Driver) Inject(payload []byte) {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	d.listening = false
	d.post(radio.Event{Kind: radio.RxDone, Payload: append([]byte(nil), payload...), RSSI: d.medium.rssi, SNR: d.medium.snr})
}

func (d *Driver) Close() error {
	d.medium.mu.Lock()
	defer d.medium.mu.Unlock()
	d.closed = true
	d.listening = false
	return nil
}

func (d *Driver) post(ev radio.Event) {
	select {
	case d.events <- ev:
	default:
		log.Warn().Str("component", "sim").Str("driver", d.name).Stringer("kind", ev.Kind).Msg("event buffer full, dropping")
	}
}
