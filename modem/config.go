package modem

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// OverflowPolicy decides what happens when a response fragment does not fit
// in a command's response buffer.
type OverflowPolicy uint8

const (
	// OverflowTruncate drops the fragment and completes the command normally.
	OverflowTruncate OverflowPolicy = iota
	// OverflowReport drops the fragment, logs it, and turns a later OK into
	// ResultOutOfMemory.
	OverflowReport
)

func (p OverflowPolicy) String() string {
	if p == OverflowReport {
		return "report"
	}
	return "truncate"
}

// ParseOverflowPolicy accepts "truncate" or "report".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncate":
		return OverflowTruncate, nil
	case "report":
		return OverflowReport, nil
	default:
		return OverflowTruncate, fmt.Errorf("unknown overflow policy %q", s)
	}
}

const (
	// DefaultLineCapacity is the receive line buffer size. It must hold the
	// largest "+HTTPCLIENT:" frame the modem sends.
	DefaultLineCapacity = 1024
	// DefaultTimeout is the command timeout in ticks, 5s on SystemClock.
	DefaultTimeout uint32 = 5000
	// DefaultInitTimeout bounds the init command sequence run by New.
	DefaultInitTimeout = 30 * time.Second
)

// Config holds Client settings. Use NewConfigBuilder to create one.
type Config struct {
	dialer         Dialer
	clock          Clock
	urcs           URCTable
	lineCapacity   int
	overflow       OverflowPolicy
	defaultTimeout uint32
	initCommands   []string
	initTimeout    time.Duration
	logger         *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.clock == nil {
		c.clock = NewSystemClock()
	}
	if c.lineCapacity == 0 {
		c.lineCapacity = DefaultLineCapacity
	}
	if c.defaultTimeout == 0 {
		c.defaultTimeout = DefaultTimeout
	}
	if c.initTimeout == 0 {
		c.initTimeout = DefaultInitTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with no settings applied.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the Transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithClock sets the tick source. Defaults to a SystemClock.
func (b *ConfigBuilder) WithClock(c Clock) *ConfigBuilder {
	b.config.clock = c
	return b
}

// WithURCs sets the unsolicited result code table.
func (b *ConfigBuilder) WithURCs(t URCTable) *ConfigBuilder {
	b.config.urcs = t
	return b
}

// WithLineCapacity sets the receive line buffer size in bytes.
func (b *ConfigBuilder) WithLineCapacity(n int) *ConfigBuilder {
	b.config.lineCapacity = n
	return b
}

// WithOverflowPolicy selects how response buffer overflows are handled.
func (b *ConfigBuilder) WithOverflowPolicy(p OverflowPolicy) *ConfigBuilder {
	b.config.overflow = p
	return b
}

// WithDefaultTimeout sets the timeout, in ticks, for commands that do not
// carry their own.
func (b *ConfigBuilder) WithDefaultTimeout(ticks uint32) *ConfigBuilder {
	b.config.defaultTimeout = ticks
	return b
}

// WithInitCommands sets commands New runs, in order, before returning. Each
// must be answered with OK.
func (b *ConfigBuilder) WithInitCommands(cmds ...string) *ConfigBuilder {
	b.config.initCommands = cmds
	return b
}

// WithInitTimeout bounds the whole init sequence.
func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

// WithLogger sets the structured logger. Defaults to discarding output.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
