package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrComposing = errors.New("session: message being composed from input")

// ErrChunkTooLarge means segments would never fit in one radio packet.
var ErrChunkTooLarge = errors.New("session: chunk size exceeds link payload")

type Config struct {
	// InputTerminator ends a message typed on the local input. It is replaced
	// by WireTerminator, which is sent as the final plaintext byte.
	InputTerminator byte
	WireTerminator  byte

	// EchoInput writes typed bytes back to the echo writer.
	EchoInput bool

	// IdleYield is how long Run sleeps after a Step that did nothing.
	IdleYield time.Duration
}

func DefaultConfig() Config {
	return Config{
		InputTerminator: protocol.DefaultInputTerminator,
		WireTerminator:  protocol.DefaultWireTerminator,
		EchoInput:       true,
		IdleYield:       time.Millisecond,
	}
}

// Stats counts application-level activity.
type Stats struct {
	Steps            uint64 `json:"steps"`
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`
	InputDiscarded   uint64 `json:"input_discarded"`
	SendFailures     uint64 `json:"send_failures"`
}

// Snapshot is a point-in-time view of the loop, safe to hand to other
// goroutines.
type Snapshot struct {
	State       string      `json:"state"`
	RSSI        int16       `json:"last_rssi"`
	SNR         int8        `json:"last_snr"`
	NextCounter uint64      `json:"next_counter"`
	Composing   int         `json:"composing"`
	Link        radio.Stats `json:"link"`
	Transport   chunk.Stats `json:"transport"`
	Session     Stats       `json:"session"`
	At          time.Time   `json:"at"`
}

type Option func(*Loop)

// WithSink records every sent and received message.
func WithSink(s Sink) Option {
	return func(l *Loop) { l.sink = s }
}

// WithEcho directs local echo somewhere other than the output writer.
func WithEcho(w io.Writer) Option {
	return func(l *Loop) { l.echo = w }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithReporter makes Run hand a Snapshot to fn at most once per interval.
func WithReporter(interval time.Duration, fn func(Snapshot)) Option {
	return func(l *Loop) {
		l.reportEvery = interval
		l.report = fn
	}
}

// Loop is the cooperative scheduler for one node. It is not safe for
// concurrent use.
type Loop struct {
	link   *radio.Link
	tx     *chunk.Transport
	in     Input
	out    io.Writer
	echo   io.Writer
	sink   Sink
	cfg    Config
	logger zerolog.Logger

	compose []byte
	rxBuf   []byte
	stats   Stats

	report      func(Snapshot)
	reportEvery time.Duration
	reportedAt  time.Time
}

func New(link *radio.Link, tx *chunk.Transport, in Input, out io.Writer, cfg Config, opts ...Option) (*Loop, error) {
	if link == nil || tx == nil {
		return nil, errors.New("session: link and transport are required")
	}
	if size, limit := tx.ChunkSize(), link.MaxPayload(); size > limit {
		return nil, fmt.Errorf("%w: chunk=%d max_payload=%d", ErrChunkTooLarge, size, limit)
	}
	if out == nil {
		out = io.Discard
	}
	if in == nil {
		in = noInput{}
	}
	l := &Loop{
		link:    link,
		tx:      tx,
		in:      in,
		out:     out,
		echo:    out,
		cfg:     cfg,
		logger:  log.Logger.With().Str("component", "session").Logger(),
		compose: make([]byte, 0, protocol.MaxPlaintext),
		rxBuf:   make([]byte, link.MaxPayload()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Loop) Link() *radio.Link           { return l.link }
func (l *Loop) Transport() *chunk.Transport { return l.tx }
func (l *Loop) Stats() Stats                { return l.stats }
func (l *Loop) Composing() int              { return len(l.compose) }
func (l *Loop) Config() Config              { return l.cfg }

func (l *Loop) SetInput(in Input) { l.in = in }

func (l *Loop) Snapshot() Snapshot {
	return Snapshot{
		State:       l.link.State().String(),
		RSSI:        l.link.LastRSSI(),
		SNR:         l.link.LastSNR(),
		NextCounter: l.tx.NextCounter(),
		Composing:   len(l.compose),
		Link:        l.link.Stats(),
		Transport:   l.tx.Stats(),
		Session:     l.stats,
		At:          time.Now(),
	}
}

// Idle reports whether nothing is queued or in flight on the transmit side.
func (l *Loop) Idle() bool {
	return !l.tx.Pending() && !l.link.IsTransmitBusy()
}

// Step runs one iteration and reports whether it did any work. Only output
// write failures and an exhausted send counter are returned as errors.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	l.stats.Steps++
	worked := l.link.Poll()

	if l.link.HasReceived() {
		worked = true
		if err := l.drainReceived(ctx); err != nil {
			return worked, err
		}
	}

	if !l.tx.Pending() {
		if b, ok := l.in.ReadByte(); ok {
			worked = true
			if err := l.handleInput(ctx, b); err != nil {
				return worked, err
			}
		}
	}

	if l.tx.Pending() && !l.link.IsTransmitBusy() {
		if l.tx.SendNext(l.link) {
			worked = true
		}
	}

	if !l.link.IsTransmitBusy() && !l.link.HasReceived() && l.link.State() != radio.Listening {
		l.link.StartReceive()
	}
	return worked, nil
}

// Run steps until ctx is done or a Step fails.
func (l *Loop) Run(ctx context.Context) error {
	var yield *time.Timer
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked, err := l.Step(ctx)
		if err != nil {
			return err
		}
		l.maybeReport()
		if worked || l.cfg.IdleYield <= 0 {
			continue
		}
		if yield == nil {
			yield = time.NewTimer(l.cfg.IdleYield)
		} else {
			yield.Reset(l.cfg.IdleYield)
		}
		select {
		case <-ctx.Done():
			yield.Stop()
			return ctx.Err()
		case <-yield.C:
		}
	}
}

// Drain steps until every queued segment has been sent and the last
// transmission has completed.
func (l *Loop) Drain(ctx context.Context) error {
	for !l.Idle() {
		if err := ctx.Err(); err != nil {
			return err
		}
		worked, err := l.Step(ctx)
		if err != nil {
			return err
		}
		if !worked && l.cfg.IdleYield > 0 {
			time.Sleep(l.cfg.IdleYield)
		}
	}
	return nil
}

// Send queues a complete message, appending the wire terminator when it is
// missing. It fails while a typed message is half composed or a previous frame
// is still being sent.
func (l *Loop) Send(ctx context.Context, msg []byte) error {
	if len(l.compose) > 0 {
		return ErrComposing
	}
	body := append([]byte(nil), msg...)
	if len(body) == 0 || body[len(body)-1] != l.cfg.WireTerminator {
		body = append(body, l.cfg.WireTerminator)
	}
	return l.enqueue(ctx, body)
}

func (l *Loop) drainReceived(ctx context.Context) error {
	n := l.link.TakeReceived(l.rxBuf)
	if l.link.LastTruncated() {
		l.logger.Warn().Int("kept", n).Msg("received packet truncated")
	}
	for _, plain := range l.tx.Receive(l.rxBuf[:n]) {
		if _, err := l.out.Write(plain); err != nil {
			return fmt.Errorf("session: write output: %w", err)
		}
		l.stats.MessagesReceived++
		l.record(ctx, Message{
			Direction: Inbound,
			Body:      plain,
			RSSI:      l.link.LastRSSI(),
			SNR:       l.link.LastSNR(),
			At:        time.Now(),
		})
	}
	return nil
}

func (l *Loop) handleInput(ctx context.Context, b byte) error {
	if b == l.cfg.InputTerminator {
		b = l.cfg.WireTerminator
	}
	if l.cfg.EchoInput {
		if _, err := l.echo.Write([]byte{b}); err != nil {
			return fmt.Errorf("session: write echo: %w", err)
		}
	}
	l.compose = append(l.compose, b)
	if b == l.cfg.WireTerminator {
		body := append([]byte(nil), l.compose...)
		l.compose = l.compose[:0]
		if err := l.enqueue(ctx, body); err != nil {
			if errors.Is(err, chunk.ErrCounterExhausted) {
				return err
			}
			l.logger.Warn().Err(err).Int("size", len(body)).Msg("message not sent")
		}
		return nil
	}
	if len(l.compose) >= protocol.MaxPlaintext {
		l.stats.InputDiscarded++
		l.logger.Warn().Int("size", len(l.compose)).Msg("message too long, discarding input")
		l.compose = l.compose[:0]
	}
	return nil
}

func (l *Loop) enqueue(ctx context.Context, body []byte) error {
	if err := l.tx.Enqueue(body); err != nil {
		l.stats.SendFailures++
		return err
	}
	l.stats.MessagesSent++
	l.record(ctx, Message{Direction: Outbound, Body: body, At: time.Now()})
	return nil
}

func (l *Loop) maybeReport() {
	if l.report == nil {
		return
	}
	now := time.Now()
	if now.Sub(l.reportedAt) < l.reportEvery {
		return
	}
	l.reportedAt = now
	l.report(l.Snapshot())
}

func (l *Loop) record(ctx context.Context, msg Message) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Record(ctx, msg); err != nil {
		l.logger.Warn().Err(err).Str("direction", string(msg.Direction)).Msg("sink record failed")
	}
}
