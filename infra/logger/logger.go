package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/showplan/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config selects the level, encoding and destination of log output.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `json:"level"`
	// Format is "json" or "console". An empty format picks console when
	// APP_ENV=dev and json otherwise.
	Format string `json:"format"`
	// Output is "stdout", "stderr" or a file path.
	Output string `json:"output"`
}

// SetDefaults fills the empty fields.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
		if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
			c.Format = "console"
		}
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

var (
	mu     sync.RWMutex
	base   = zerolog.New(os.Stderr).With().Timestamp().Logger()
	closer io.Closer
)

// Configure installs cfg as the output of every logger created afterwards.
func Configure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	var w io.Writer
	var c io.Closer
	switch cfg.Output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log output: %w", err)
		}
		w, c = f, f
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: c != nil}
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	base = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return nil
}

// New returns a Logger for the given component using the configured output.
func New(component string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &ZerologLogger{log: base.With().Str("component", component).Logger()}
}
