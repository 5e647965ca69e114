package main

import (
	"context"
	"io"
	"time"

	"github.com/danmuck/loralink/internal/config"
	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/protocol/seal"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/danmuck/loralink/internal/radio/sim"
	"github.com/danmuck/loralink/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	simAirtime = 5 * time.Millisecond

	// The echo peer shares the link key, so it counts in the other half of
	// the IV space.
	peerCounterBase uint64 = 1 << 63
)

// replyQueue is both the echo peer's Sink and its Input. Both run on the
// peer loop's goroutine.
type replyQueue struct {
	pending []byte
}

func (q *replyQueue) Record(_ context.Context, msg session.Message) error {
	if msg.Direction == session.Inbound {
		q.pending = append(q.pending, "echo: "...)
		q.pending = append(q.pending, msg.Body...)
	}
	return nil
}

func (q *replyQueue) ReadByte() (byte, bool) {
	if len(q.pending) == 0 {
		return 0, false
	}
	b := q.pending[0]
	q.pending = q.pending[1:]
	return b, true
}

// startSimPeer attaches a second node to m that answers every message it
// receives, and runs it until ctx is done.
func startSimPeer(ctx context.Context, m *sim.Medium, cfg config.NodeConfig) error {
	params, err := cfg.RadioParams()
	if err != nil {
		return err
	}
	link, err := radio.NewLink(m.Attach("echo"), params)
	if err != nil {
		return err
	}
	key, err := cfg.LinkKey()
	if err != nil {
		return err
	}
	codec, err := seal.NewCodec(key[:])
	if err != nil {
		return err
	}
	tc, err := peerTransportConfig(cfg)
	if err != nil {
		return err
	}
	tx, err := chunk.New(codec, tc)
	if err != nil {
		return err
	}
	sc, err := cfg.SessionConfig()
	if err != nil {
		return err
	}
	sc.EchoInput = false
	sc.InputTerminator = sc.WireTerminator

	q := &replyQueue{}
	peer, err := session.New(link, tx, q, io.Discard, sc,
		session.WithSink(q),
		session.WithLogger(log.Logger.With().Str("node", "echo").Logger()),
	)
	if err != nil {
		return err
	}
	go func() {
		if err := peer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sim echo peer stopped")
		}
	}()
	return nil
}

// peerTransportConfig mirrors the node's transport settings with a counter
// range disjoint from the node's own.
func peerTransportConfig(cfg config.NodeConfig) (chunk.Config, error) {
	tc, err := cfg.TransportConfig()
	if err != nil {
		return chunk.Config{}, err
	}
	if tc.CounterStart < peerCounterBase {
		tc.CounterStart = peerCounterBase
	} else {
		tc.CounterStart = 1
	}
	return tc, nil
}
