// Package rf95 drives a serial rf95modem LoRa transceiver as a radio.Driver.
//
// Configure sets the carrier frequency and the nearest modem mode; the
// firmware has no per-field modulation commands. Received packets arrive
// through the modem's RX handler with their RSSI and SNR, and are forwarded
// only while the link is listening.
package rf95

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/dtn7/rf95modem-go/rf95"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 64

var ErrClosed = errors.New("rf95: driver closed")

type Config struct {
	Device string `toml:"device"`
}

type Driver struct {
	modem     *rf95.Modem
	mtu       int
	txTimeout time.Duration
	events    chan radio.Event
	logger    zerolog.Logger

	txMu      sync.Mutex
	listening atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// Open connects to the modem on a serial device such as /dev/ttyUSB0.
func Open(cfg Config) (*Driver, error) {
	if cfg.Device == "" {
		return nil, errors.New("rf95: device path is required")
	}
	m, err := rf95.OpenSerial(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("rf95: open %s: %w", cfg.Device, err)
	}
	return attach(m, cfg.Device), nil
}

// OpenStream runs the modem protocol over an arbitrary byte stream, such as a
// pty or a TCP bridge to the serial port. c may be nil.
func OpenStream(r io.Reader, w io.Writer, c io.Closer, name string) (*Driver, error) {
	m, err := rf95.OpenModem(r, w, c)
	if err != nil {
		return nil, fmt.Errorf("rf95: open %s: %w", name, err)
	}
	return attach(m, name), nil
}

func attach(m *rf95.Modem, name string) *Driver {
	d := &Driver{
		modem:     m,
		txTimeout: radio.DefaultParams().TxTimeout,
		events:    make(chan radio.Event, eventBuffer),
		logger:    log.Logger.With().Str("component", "rf95").Str("device", name).Logger(),
	}
	m.RegisterRxHandler(d.onRx)
	d.mtu = d.readMtu()
	d.wg.Add(1)
	go d.drain()
	return d
}

func (d *Driver) readMtu() int {
	mtu, err := d.modem.Mtu()
	if err != nil || mtu <= 0 || mtu > protocol.MaxPacket {
		if err != nil {
			d.logger.Warn().Err(err).Msg("modem mtu unavailable")
		}
		return protocol.MaxPacket
	}
	return mtu
}

// Configure tunes the modem to p. The MTU is re-read since the mode decides it.
func (d *Driver) Configure(p radio.Params) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if p.TxTimeout > 0 {
		d.txTimeout = p.TxTimeout
	}
	mode := ModeFor(p)
	if err := d.modem.Mode(mode); err != nil {
		return fmt.Errorf("rf95: set mode %d: %w", mode, err)
	}
	if err := d.modem.Frequency(float64(p.FrequencyHz) / 1e6); err != nil {
		return fmt.Errorf("rf95: set frequency %d Hz: %w", p.FrequencyHz, err)
	}
	d.mtu = d.readMtu()
	d.logger.Info().
		Uint32("frequency_hz", p.FrequencyHz).
		Int("mode", int(mode)).
		Int("mtu", d.mtu).
		Msg("modem configured")
	return nil
}

// ModeFor picks the rf95modem preset closest to the requested spreading factor
// and bandwidth index (0: 125 kHz, 1: 250 kHz, 2: 500 kHz).
func ModeFor(p radio.Params) rf95.ModemMode {
	switch {
	case p.SpreadingFactor >= 12:
		return rf95.SlowLongRange2
	case p.SpreadingFactor >= 9:
		return rf95.SlowLongRange
	case p.Bandwidth == 2:
		return rf95.FastShortRange
	default:
		return rf95.MediumRange
	}
}

// Transmit hands the packet to the modem on a goroutine and reports TxDone,
// or TxTimeout when the command fails or outlives the configured timeout.
func (d *Driver) Transmit(payload []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.listening.Store(false)
	pkt := append([]byte(nil), payload...)
	timeout := d.txTimeout
	go func() {
		d.txMu.Lock()
		defer d.txMu.Unlock()
		done := make(chan error, 1)
		go func() {
			_, err := d.modem.Transmit(pkt)
			done <- err
		}()
		select {
		case err := <-done:
			if err != nil {
				d.logger.Warn().Err(err).Msg("modem transmit failed")
				d.post(radio.Event{Kind: radio.TxTimeout})
				return
			}
			d.post(radio.Event{Kind: radio.TxDone})
		case <-time.After(timeout):
			d.post(radio.Event{Kind: radio.TxTimeout})
		}
	}()
	return nil
}

func (d *Driver) Listen(time.Duration) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.listening.Store(true)
	return nil
}

func (d *Driver) Sleep() error {
	d.listening.Store(false)
	return nil
}

func (d *Driver) MaxPayload() int            { return d.mtu }
func (d *Driver) Events() <-chan radio.Event { return d.events }

func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.modem.Close()
	d.wg.Wait()
	return err
}

// onRx runs on the modem's reader goroutine.
func (d *Driver) onRx(msg rf95.RxMessage) {
	if d.closed.Load() || len(msg.Payload) == 0 {
		return
	}
	if !d.listening.CompareAndSwap(true, false) {
		return
	}
	d.post(radio.Event{
		Kind:    radio.RxDone,
		Payload: append([]byte(nil), msg.Payload...),
		RSSI:    clampRSSI(msg.Rssi),
		SNR:     clampSNR(msg.Snr),
	})
}

// drain empties the modem's Read queue, which would otherwise fill and stall
// its reader. Packets are delivered through onRx instead.
func (d *Driver) drain() {
	defer d.wg.Done()
	buf := make([]byte, protocol.MaxPacket)
	for {
		if _, err := d.modem.Read(buf); err != nil {
			return
		}
	}
}

func (d *Driver) post(ev radio.Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Stringer("kind", ev.Kind).Msg("event buffer full, dropping")
	}
}

func clampRSSI(v int) int16 {
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}

func clampSNR(v int) int8 {
	return int8(max(math.MinInt8, min(math.MaxInt8, v)))
}
