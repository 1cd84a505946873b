// tezbridge converts values between canonical JSON and Michelson, typed by
// a contract schema. It answers newline-delimited JSON requests on stdin
// with one response line each on stdout, or serves the same protocol on a
// NATS subject. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/nats-io/nats.go"
	"github.com/spf13/pflag"

	"github.com/RobertWHurst/tezbridge"
	"github.com/RobertWHurst/tezbridge/config"
	cborencoder "github.com/RobertWHurst/tezbridge/encoders/cbor"
	jsonencoder "github.com/RobertWHurst/tezbridge/encoders/json"
	msgpackencoder "github.com/RobertWHurst/tezbridge/encoders/msgpack"
	protobufencoder "github.com/RobertWHurst/tezbridge/encoders/protobuf"
	"github.com/RobertWHurst/tezbridge/engines/taquito"
	"github.com/RobertWHurst/tezbridge/metrics"
	natstransport "github.com/RobertWHurst/tezbridge/transports/nats"
	"github.com/RobertWHurst/tezbridge/transports/stdio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], env.ToMap(os.Environ()))
	if errors.Is(err, pflag.ErrHelp) {
		config.Usage(os.Stderr)
		return nil
	}
	if err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tezbridge.MaxDecodeSize = int64(cfg.MaxFrameSize)

	transport, closeTransport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	bridge := tezbridge.NewBridge(taquito.New())
	bridge.Logger = logger

	service := tezbridge.NewService(transport, newEncoder(cfg.Encoder), bridge)
	service.Concurrency = cfg.Concurrency
	service.Logger = logger

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		service.Observer = m
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("serving",
		"transport", cfg.Transport,
		"encoder", cfg.Encoder,
		"concurrency", cfg.Concurrency,
	)
	if err := service.Serve(ctx); err != nil {
		logger.Error("service stopped", "error", err)
		return err
	}
	logger.Info("input closed, exiting")
	return nil
}

func newEncoder(name string) tezbridge.Encoder {
	switch name {
	case config.EncoderMsgpack:
		return msgpackencoder.New()
	case config.EncoderCBOR:
		return cborencoder.New()
	case config.EncoderProtobuf:
		return protobufencoder.New()
	default:
		return jsonencoder.New()
	}
}

// newTransport returns the configured transport and a func releasing it
// and any connection it holds.
func newTransport(cfg config.Config, logger *slog.Logger) (tezbridge.Transport, func(), error) {
	if cfg.Transport != config.TransportNats {
		t := stdio.NewStandard()
		t.MaxFrameSize = cfg.MaxFrameSize
		t.Logger = logger
		return t, func() { t.Close() }, nil
	}

	conn, err := nats.Connect(cfg.NatsURL, nats.Name("tezbridge-"+cfg.ServiceName))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NatsURL, err)
	}
	t, err := natstransport.NewServiceTransport(conn, cfg.ServiceName)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("subscribing to NATS: %w", err)
	}
	t.MaxFrameSize = cfg.MaxFrameSize
	t.Logger = logger
	return t, func() {
		t.Close()
		if err := conn.Drain(); err != nil {
			logger.Warn("draining NATS connection", "error", err)
		}
	}, nil
}
