// Package udpair emulates the radio link between two processes with UDP
// datagrams. One datagram is one radio packet. Datagrams that arrive while the
// driver is not listening are discarded, as a half-duplex transceiver would.
package udpair

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	eventBuffer = 64

	// Synthetic signal report; UDP has no RF metadata.
	syntheticRSSI int16 = -60
	syntheticSNR  int8  = 8
)

var ErrClosed = errors.New("udpair: driver closed")

type Config struct {
	Listen string `toml:"listen"`
	Peer   string `toml:"peer"`
}

// Driver is a radio.Driver over a UDP socket.
type Driver struct {
	conn      *net.UDPConn
	peer      atomic.Pointer[net.UDPAddr]
	txTimeout time.Duration
	events    chan radio.Event
	logger    zerolog.Logger

	listening atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// Open binds cfg.Listen and starts the reader goroutine.
func Open(cfg Config) (*Driver, error) {
	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("udpair: resolve listen %q: %w", cfg.Listen, err)
	}
	peer, err := net.ResolveUDPAddr("udp", cfg.Peer)
	if err != nil {
		return nil, fmt.Errorf("udpair: resolve peer %q: %w", cfg.Peer, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("udpair: listen: %w", err)
	}
	d := &Driver{
		conn:      conn,
		txTimeout: radio.DefaultParams().TxTimeout,
		events:    make(chan radio.Event, eventBuffer),
		logger:    log.Logger.With().Str("component", "udpair").Str("local", conn.LocalAddr().String()).Logger(),
	}
	d.peer.Store(peer)
	d.wg.Add(1)
	go d.readLoop()
	return d, nil
}

func (d *Driver) LocalAddr() net.Addr { return d.conn.LocalAddr() }

// SetPeer redirects future transmissions.
func (d *Driver) SetPeer(addr *net.UDPAddr) {
	d.peer.Store(addr)
}

func (d *Driver) Configure(p radio.Params) error {
	if p.TxTimeout > 0 {
		d.txTimeout = p.TxTimeout
	}
	return nil
}

func (d *Driver) Transmit(payload []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.listening.Store(false)
	kind := radio.TxDone
	if err := d.conn.SetWriteDeadline(time.Now().Add(d.txTimeout)); err != nil {
		return fmt.Errorf("udpair: set deadline: %w", err)
	}
	if _, err := d.conn.WriteToUDP(payload, d.peer.Load()); err != nil {
		d.logger.Warn().Err(err).Msg("datagram write failed")
		kind = radio.TxTimeout
	}
	d.post(radio.Event{Kind: kind})
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

func (d *Driver) MaxPayload() int            { return protocol.MaxPacket }
func (d *Driver) Events() <-chan radio.Event { return d.events }

func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

func (d *Driver) readLoop() {
	defer d.wg.Done()
	buf := make([]byte, 64*1024)
	backoff := radio.DefaultReadBackoff()
	failures := 0
	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if d.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			if d.listening.Load() {
				d.post(radio.Event{Kind: radio.RxError})
			}
			time.Sleep(backoff.Delay(failures, nil))
			continue
		}
		failures = 0
		// One completion per arming, like a single-shot receive.
		if !d.listening.CompareAndSwap(true, false) {
			continue
		}
		d.post(radio.Event{
			Kind:    radio.RxDone,
			Payload: append([]byte(nil), buf[:n]...),
			RSSI:    syntheticRSSI,
			SNR:     syntheticSNR,
		})
	}
}

func (d *Driver) post(ev radio.Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Stringer("kind", ev.Kind).Msg("event buffer full, dropping")
	}
}
