package radio

import (
	"errors"
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the half-duplex mode of the link.
type State uint8

const (
	Idle State = iota
	Transmitting
	Listening
	Fault
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transmitting:
		return "transmitting"
	case Listening:
		return "listening"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

var (
	ErrTransmitBusy = errors.New("radio: transmit in flight")
	ErrEmptySend    = errors.New("radio: empty payload")
	ErrOversize     = errors.New("radio: payload exceeds hardware maximum")
)

// Observer is notified of link activity. Calls happen on the goroutine that
// drives the Link.
type Observer interface {
	LinkTransition(from, to State)
	LinkEvent(ev Event, truncated bool)
	LinkSendRejected(size int, reason error)
}

// Stats counts link activity since construction.
type Stats struct {
	TxStarted   uint64 `json:"tx_started"`
	TxDone      uint64 `json:"tx_done"`
	TxTimeouts  uint64 `json:"tx_timeouts"`
	TxRejected  uint64 `json:"tx_rejected"`
	RxPackets   uint64 `json:"rx_packets"`
	RxTruncated uint64 `json:"rx_truncated"`
	RxTimeouts  uint64 `json:"rx_timeouts"`
	RxErrors    uint64 `json:"rx_errors"`
}

type Option func(*Link)

func WithObserver(o Observer) Option {
	return func(l *Link) { l.observer = o }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Link) { l.logger = logger }
}

// Link arbitrates a Driver between transmit and receive. It is not safe for
// concurrent use; one loop owns it and calls Poll frequently.
type Link struct {
	driver   Driver
	params   Params
	max      int
	observer Observer
	logger   zerolog.Logger

	state         State
	lastTxTimeout bool

	rxBuf       []byte
	rxLen       int
	rxReady     bool
	rxTruncated bool
	rssi        int16
	snr         int8

	stats Stats
}

// NewLink configures the driver and arms receive mode.
func NewLink(d Driver, p Params, opts ...Option) (*Link, error) {
	if d == nil {
		return nil, errors.New("radio: nil driver")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := d.Configure(p); err != nil {
		return nil, fmt.Errorf("radio: configure driver: %w", err)
	}
	max := d.MaxPayload()
	if max <= 0 || max > protocol.MaxPacket {
		max = protocol.MaxPacket
	}
	l := &Link{
		driver: d,
		params: p,
		max:    max,
		logger: log.Logger.With().Str("component", "radio").Logger(),
		rxBuf:  make([]byte, max),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.StartReceive()
	return l, nil
}

func (l *Link) State() State      { return l.state }
func (l *Link) Params() Params    { return l.params }
func (l *Link) MaxPayload() int   { return l.max }
func (l *Link) Stats() Stats      { return l.stats }
func (l *Link) LastRSSI() int16   { return l.rssi }
func (l *Link) LastSNR() int8     { return l.snr }
func (l *Link) HasReceived() bool { return l.rxReady }

func (l *Link) IsTransmitBusy() bool { return l.state == Transmitting }

// LastTxTimeout reports whether the most recent transmission ended in a
// hardware timeout. It is cleared by the next accepted Send.
func (l *Link) LastTxTimeout() bool { return l.lastTxTimeout }

// LastTruncated reports whether the latched receive was cut to MaxPayload.
func (l *Link) LastTruncated() bool { return l.rxTruncated }

// Send starts an asynchronous transmission and reports whether it was accepted.
func (l *Link) Send(payload []byte) bool {
	return l.TrySend(payload) == nil
}

// TrySend is Send with the rejection reason. A rejected send has no side
// effects. An accepted send cancels any passive listening.
func (l *Link) TrySend(payload []byte) error {
	var reason error
	switch {
	case l.state == Transmitting:
		reason = ErrTransmitBusy
	case len(payload) == 0:
		reason = ErrEmptySend
	case len(payload) > l.max:
		reason = ErrOversize
	}
	if reason != nil {
		l.stats.TxRejected++
		if l.observer != nil {
			l.observer.LinkSendRejected(len(payload), reason)
		}
		return reason
	}
	if err := l.driver.Transmit(payload); err != nil {
		l.stats.TxRejected++
		l.logger.Warn().Err(err).Int("size", len(payload)).Msg("driver refused transmit")
		if l.observer != nil {
			l.observer.LinkSendRejected(len(payload), err)
		}
		return fmt.Errorf("radio: transmit: %w", err)
	}
	l.lastTxTimeout = false
	l.stats.TxStarted++
	l.setState(Transmitting)
	return nil
}

// StartReceive arms listening with no timeout. It is a no-op while listening
// or transmitting.
func (l *Link) StartReceive() {
	if l.state == Listening || l.state == Transmitting {
		return
	}
	if err := l.driver.Listen(0); err != nil {
		l.logger.Warn().Err(err).Msg("driver refused listen")
		return
	}
	l.setState(Listening)
}

// TakeReceived copies the latched payload into buf, clears the latch and
// returns the number of bytes copied.
func (l *Link) TakeReceived(buf []byte) int {
	if !l.rxReady || len(buf) == 0 {
		return 0
	}
	n := copy(buf, l.rxBuf[:l.rxLen])
	l.rxReady = false
	l.rxLen = 0
	return n
}

// Poll applies at most one pending driver completion and reports whether it
// did. It never blocks.
func (l *Link) Poll() bool {
	select {
	case ev, ok := <-l.driver.Events():
		if !ok {
			return false
		}
		l.apply(ev)
		return true
	default:
		return false
	}
}

func (l *Link) apply(ev Event) {
	truncated := false
	switch ev.Kind {
	case TxDone:
		l.sleep()
		l.stats.TxDone++
		l.setState(Idle)
	case TxTimeout:
		l.sleep()
		l.stats.TxTimeouts++
		l.lastTxTimeout = true
		l.logger.Warn().Msg("transmit timed out")
		l.setState(Fault)
		l.setState(Idle)
	case RxDone:
		truncated = l.latch(ev)
		if l.state != Transmitting {
			l.sleep()
			l.setState(Idle)
		}
	case RxTimeout, RxError:
		if ev.Kind == RxTimeout {
			l.stats.RxTimeouts++
		} else {
			l.stats.RxErrors++
		}
		if l.state == Transmitting {
			break
		}
		l.sleep()
		l.setState(Idle)
		l.StartReceive()
	default:
		l.logger.Debug().Stringer("kind", ev.Kind).Msg("ignoring unknown event")
	}
	if l.observer != nil {
		l.observer.LinkEvent(ev, truncated)
	}
}

func (l *Link) latch(ev Event) bool {
	n := len(ev.Payload)
	truncated := n > l.max
	if truncated {
		n = l.max
		l.stats.RxTruncated++
	}
	copy(l.rxBuf, ev.Payload[:n])
	l.rxLen = n
	l.rxReady = true
	l.rxTruncated = truncated
	l.rssi = ev.RSSI
	l.snr = ev.SNR
	l.stats.RxPackets++
	return truncated
}

func (l *Link) sleep() {
	if err := l.driver.Sleep(); err != nil {
		l.logger.Debug().Err(err).Msg("driver sleep failed")
	}
}

func (l *Link) setState(to State) {
	from := l.state
	l.state = to
	if from != to && l.observer != nil {
		l.observer.LinkTransition(from, to)
	}
}
