// Package config loads the settings of the tezbridge binary. Sources apply
// in increasing precedence: defaults, a YAML file named by --config,
// TEZBRIDGE_ environment variables, and command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TEZBRIDGE_"

const (
	TransportStdio = "stdio"
	TransportNats  = "nats"
)

const (
	EncoderJSON     = "json"
	EncoderMsgpack  = "msgpack"
	EncoderCBOR     = "cbor"
	EncoderProtobuf = "protobuf"
)

// Config is the complete configuration of a tezbridge process.
type Config struct {
	Transport    string `yaml:"transport" env:"TRANSPORT"`
	NatsURL      string `yaml:"nats_url" env:"NATS_URL"`
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	Encoder      string `yaml:"encoder" env:"ENCODER"`
	Concurrency  int    `yaml:"concurrency" env:"CONCURRENCY"`
	MaxFrameSize int    `yaml:"max_frame_size" env:"MAX_FRAME_SIZE"`
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"LOG_FORMAT"`
	MetricsAddr  string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// Default returns the configuration used when no source overrides it: a
// sequential JSON line service on stdin and stdout.
func Default() Config {
	return Config{
		Transport:    TransportStdio,
		NatsURL:      "nats://127.0.0.1:4222",
		ServiceName:  "bridge",
		Encoder:      EncoderJSON,
		Concurrency:  1,
		MaxFrameSize: 1024 * 1024 * 5,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the configuration from args (without the program name) and
// environ. It returns pflag.ErrHelp when --help is given.
func Load(args []string, environ map[string]string) (Config, error) {
	var configPath string

	scratch := Default()
	if err := flagSet(&scratch, &configPath).Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := flagSet(&cfg, &configPath).Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage writes the flag help to w.
func Usage(w io.Writer) {
	cfg := Default()
	var configPath string
	flags := flagSet(&cfg, &configPath)
	fmt.Fprintf(w, "Usage: tezbridge [flags]\n\nFlags:\n")
	flags.SetOutput(w)
	flags.PrintDefaults()
}

// flagSet binds flags to cfg. Each flag defaults to the value cfg already
// holds, so parsing only overwrites what the command line names.
func flagSet(cfg *Config, configPath *string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("tezbridge", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(configPath, "config", *configPath, "path to a YAML config file")
	flags.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport to serve on (stdio, nats)")
	flags.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "NATS server URL")
	flags.StringVar(&cfg.ServiceName, "service-name", cfg.ServiceName, "service name used for the NATS subject")
	flags.StringVar(&cfg.Encoder, "encoder", cfg.Encoder, "frame encoding (json, msgpack, cbor, protobuf)")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "requests converted at once")
	flags.IntVar(&cfg.MaxFrameSize, "max-frame-size", cfg.MaxFrameSize, "largest accepted frame in bytes, 0 for unlimited")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus metrics on, empty to disable")
	return flags
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first setting that cannot be served.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio:
		if c.Encoder != EncoderJSON {
			return fmt.Errorf("transport stdio requires the json encoder, got %q", c.Encoder)
		}
	case TransportNats:
		if c.NatsURL == "" {
			return errors.New("transport nats requires a NATS URL")
		}
		if c.ServiceName == "" {
			return errors.New("transport nats requires a service name")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	switch c.Encoder {
	case EncoderJSON, EncoderMsgpack, EncoderCBOR, EncoderProtobuf:
	default:
		return fmt.Errorf("unknown encoder %q", c.Encoder)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxFrameSize < 0 {
		return fmt.Errorf("max frame size must not be negative, got %d", c.MaxFrameSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w in the configured
// format and level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
