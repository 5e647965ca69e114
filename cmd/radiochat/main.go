package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/loralink/internal/config"
	"github.com/danmuck/loralink/internal/journal"
	"github.com/danmuck/loralink/internal/logging"
	"github.com/danmuck/loralink/internal/observability"
	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/protocol/seal"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/danmuck/loralink/internal/radio/rf95"
	"github.com/danmuck/loralink/internal/radio/sim"
	"github.com/danmuck/loralink/internal/radio/udpair"
	"github.com/danmuck/loralink/internal/session"
	"github.com/rs/zerolog/log"
)

const reportInterval = time.Second

type options struct {
	configPath string
	send       string
	linger     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "node config (toml); defaults plus LORALINK_* env when empty")
	flag.StringVar(&opts.send, "send", "", "send one message, wait for the transmission to finish, then exit")
	flag.DurationVar(&opts.linger, "linger", 0, "with -send, keep receiving for this long before exiting")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "radiochat: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := loadNodeConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := log.Logger.With().Str("node", cfg.Name).Logger()
	if cfg.UsesDefaultKey() {
		logger.Warn().Msg("no key configured; using the built-in development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, closeDriver, err := openDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDriver()

	metrics := observability.NewNodeMetrics(cfg.Name)
	params, err := cfg.RadioParams()
	if err != nil {
		return err
	}
	link, err := radio.NewLink(driver, params, radio.WithObserver(metrics), radio.WithLogger(logger))
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
	tc, err := cfg.TransportConfig()
	if err != nil {
		return err
	}
	tx, err := chunk.New(codec, tc, chunk.WithObserver(metrics))
	if err != nil {
		return err
	}

	loopOpts := []session.Option{session.WithLogger(logger)}
	if cfg.JournalPath != "" {
		store, err := journal.Open(cfg.JournalPath, cfg.Name)
		if err != nil {
			return err
		}
		defer store.Close()
		loopOpts = append(loopOpts, session.WithSink(store))
	}
	if cfg.MetricsAddr != "" {
		status := observability.NewStatusServer(cfg.Name, cfg.MetricsAddr)
		go func() {
			if err := status.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("status server stopped")
			}
		}()
		loopOpts = append(loopOpts, session.WithReporter(reportInterval, status.Publish))
	}

	sc, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Int("chunk_size", tc.ChunkSize).
		Stringer("resync", tc.Resync).
		Uint32("frequency_hz", params.FrequencyHz).
		Msg("radiochat ready")

	if opts.send != "" {
		return sendOnce(ctx, link, tx, sc, loopOpts, opts)
	}

	in := session.NewReaderInput(os.Stdin)
	loop, err := session.New(link, tx, in, os.Stdout, sc, loopOpts...)
	if err != nil {
		return err
	}
	err = loop.Run(ctx)
	if inErr := in.Err(); inErr != nil {
		logger.Warn().Err(inErr).Msg("stdin closed with error")
	}
	return ignoreCancel(err)
}

func sendOnce(ctx context.Context, link *radio.Link, tx *chunk.Transport, sc session.Config, loopOpts []session.Option, opts options) error {
	sc.EchoInput = false
	loop, err := session.New(link, tx, nil, os.Stdout, sc, loopOpts...)
	if err != nil {
		return err
	}
	if err := loop.Send(ctx, []byte(opts.send)); err != nil {
		return err
	}
	if err := loop.Drain(ctx); err != nil {
		return ignoreCancel(err)
	}
	log.Info().Uint64("counter", tx.Stats().LastCounter).Int("segments", int(tx.Stats().SegmentsSent)).Msg("message sent")
	if opts.linger <= 0 {
		return nil
	}
	lingerCtx, cancel := context.WithTimeout(ctx, opts.linger)
	defer cancel()
	err = loop.Run(lingerCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return ignoreCancel(err)
}

func openDriver(ctx context.Context, cfg config.NodeConfig) (radio.Driver, func(), error) {
	switch cfg.Driver {
	case config.DriverUDP:
		d, err := udpair.Open(udpair.Config{Listen: cfg.UDP.Listen, Peer: cfg.UDP.Peer})
		if err != nil {
			return nil, nil, err
		}
		return d, closer(d), nil
	case config.DriverRF95:
		d, err := rf95.Open(rf95.Config{Device: cfg.RF95.Device})
		if err != nil {
			return nil, nil, err
		}
		return d, closer(d), nil
	default:
		m := sim.NewMedium()
		m.SetAirtime(simAirtime)
		d := m.Attach(cfg.Name)
		if err := startSimPeer(ctx, m, cfg); err != nil {
			return nil, nil, err
		}
		log.Info().Msg("sim driver: messages are answered by a local echo peer")
		return d, closer(d), nil
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("driver close failed")
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
