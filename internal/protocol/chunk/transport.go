package chunk

import (
	"errors"
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Encoder seals plaintext under a caller-supplied counter.
type Encoder interface {
	Encode(plaintext []byte, counter uint64) (frame.Frame, error)
}

// Codec is the full frame codec the transport needs.
type Codec interface {
	Encoder
	Decoder
}

// Config tunes segmentation. ChunkSize trades pacing for airtime and is not a
// protocol constant; both peers may use different values.
type Config struct {
	ChunkSize    int
	CounterStart uint64
	Resync       ResyncPolicy
}

func DefaultConfig() Config {
	return Config{ChunkSize: protocol.DefaultChunkSize, CounterStart: 1, Resync: ResyncSlide}
}

// Observer receives transport activity for metrics.
type Observer interface {
	FrameQueued(wireSize, segments int)
	SegmentSent(remaining int)
	FrameDecoded(size int)
	FrameDropped(reason error)
	Resynced()
}

// Stats counts transport activity since construction.
type Stats struct {
	FramesQueued  uint64 `json:"frames_queued"`
	SegmentsSent  uint64 `json:"segments_sent"`
	FramesDecoded uint64 `json:"frames_decoded"`
	FramesDropped uint64 `json:"frames_dropped"`
	Resyncs       uint64 `json:"resyncs"`
	LastCounter   uint64 `json:"last_counter"`
}

type Option func(*Transport)

func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// Transport owns the send counter, the outbound segmenter and the inbound
// reassembler. It has a single writer and no internal locking.
type Transport struct {
	codec    Codec
	counter  *Counter
	seg      *Segmenter
	rx       *Reassembler
	observer Observer
	logger   zerolog.Logger
	stats    Stats
}

func New(codec Codec, cfg Config, opts ...Option) (*Transport, error) {
	if codec == nil {
		return nil, errors.New("chunk: nil codec")
	}
	seg, err := NewSegmenter(cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		codec:   codec,
		counter: NewCounter(cfg.CounterStart),
		seg:     seg,
		rx:      NewReassembler(codec, cfg.Resync),
		logger:  log.Logger.With().Str("component", "chunk").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Enqueue seals plaintext under a fresh counter and queues its segments.
// Nothing is queued on error.
func (t *Transport) Enqueue(plaintext []byte) error {
	if t.seg.Pending() {
		return ErrBusy
	}
	if len(plaintext) == 0 {
		return protocol.ErrEmptyPayload
	}
	if len(plaintext) > protocol.MaxPlaintext {
		return fmt.Errorf("chunk: %w: %d bytes", protocol.ErrPayloadTooLarge, len(plaintext))
	}
	counter, err := t.counter.Next()
	if err != nil {
		return err
	}
	f, err := t.codec.Encode(plaintext, counter)
	if err != nil {
		return fmt.Errorf("chunk: encode: %w", err)
	}
	if err := t.seg.Load(f); err != nil {
		return err
	}
	t.stats.FramesQueued++
	t.stats.LastCounter = counter
	if t.observer != nil {
		t.observer.FrameQueued(f.WireSize(), t.seg.Remaining())
	}
	t.logger.Debug().
		Uint64("counter", counter).
		Int("plaintext", len(plaintext)).
		Int("segments", t.seg.Remaining()).
		Msg("frame queued")
	return nil
}

func (t *Transport) Pending() bool { return t.seg.Pending() }

// ChunkSize is the size of every outbound segment.
func (t *Transport) ChunkSize() int { return t.seg.Size() }

// SendNext issues the next outbound segment if one is pending and the link is
// idle.
func (t *Transport) SendNext(link Sender) bool {
	if !t.seg.SendNext(link) {
		return false
	}
	t.stats.SegmentsSent++
	if t.observer != nil {
		t.observer.SegmentSent(t.seg.Remaining())
	}
	return true
}

// Receive feeds one received packet into the reassembler and returns the
// plaintexts it completed. Frames that fail to decode are dropped and logged.
func (t *Transport) Receive(payload []byte) [][]byte {
	before := t.rx.Resyncs()
	results := t.rx.Feed(payload)
	if n := t.rx.Resyncs() - before; n > 0 {
		t.stats.Resyncs += n
		t.logger.Debug().Uint64("count", n).Msg("discarded invalid length prefix")
		if t.observer != nil {
			for i := uint64(0); i < n; i++ {
				t.observer.Resynced()
			}
		}
	}
	var out [][]byte
	for _, res := range results {
		if res.Err != nil {
			t.stats.FramesDropped++
			t.logger.Warn().Err(res.Err).Msg("dropping undecodable frame")
			if t.observer != nil {
				t.observer.FrameDropped(res.Err)
			}
			continue
		}
		t.stats.FramesDecoded++
		if t.observer != nil {
			t.observer.FrameDecoded(len(res.Plaintext))
		}
		out = append(out, res.Plaintext)
	}
	return out
}

func (t *Transport) Stats() Stats { return t.stats }

// NextCounter returns the counter the next Enqueue will use.
func (t *Transport) NextCounter() uint64 { return t.counter.Peek() }

// Reassembler exposes the inbound parser for inspection.
func (t *Transport) Reassembler() *Reassembler { return t.rx }
