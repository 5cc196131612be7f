package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"i4.energy/across/atgw/modem"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// TickInterval is how often the engine polls the modem
	TickInterval time.Duration `yaml:"tick_interval"`
	// CommandTimeout applies to commands that do not set their own
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// LineCapacity is the receive line buffer size in bytes
	LineCapacity int `yaml:"line_capacity"`
	// OverflowPolicy is "truncate" or "report"
	OverflowPolicy string `yaml:"overflow_policy"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if _, err := modem.ParseOverflowPolicy(config.OverflowPolicy); err != nil {
		return nil, err
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = modem.DefaultBaudRate
		c.LogLevel = "info"
		c.TickInterval = modem.DefaultTickInterval
		c.CommandTimeout = time.Duration(modem.DefaultTimeout) * time.Millisecond
		c.LineCapacity = modem.DefaultLineCapacity
		c.OverflowPolicy = modem.OverflowTruncate.String()
		return nil
	}
}

// WithFile loads configuration from a YAML file. Keys missing from the file
// keep their current value. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if interval := os.Getenv("TICK_INTERVAL"); interval != "" {
			if d, err := time.ParseDuration(interval); err == nil {
				c.TickInterval = d
			}
		}

		if timeout := os.Getenv("COMMAND_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.CommandTimeout = d
			}
		}

		if capacity := os.Getenv("LINE_CAPACITY"); capacity != "" {
			if n, err := strconv.Atoi(capacity); err == nil {
				c.LineCapacity = n
			}
		}

		if policy := os.Getenv("OVERFLOW_POLICY"); policy != "" {
			c.OverflowPolicy = policy
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags. Only flags set on
// the command line are applied.
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "tick-interval":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.TickInterval = d
				}
			case "command-timeout":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.CommandTimeout = d
				}
			case "line-capacity":
				if n, err := strconv.Atoi(f.Value.String()); err == nil {
					c.LineCapacity = n
				}
			case "overflow-policy":
				c.OverflowPolicy = f.Value.String()
			}
		})
		return nil
	}
}

// modemConfig translates the application settings into an engine config.
func (c *Config) modemConfig(opts ...func(*modem.ConfigBuilder)) (modem.Config, error) {
	policy, err := modem.ParseOverflowPolicy(c.OverflowPolicy)
	if err != nil {
		return modem.Config{}, err
	}

	b := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName: c.SerialPort,
			BaudRate: c.BaudRate,
		}).
		WithLineCapacity(c.LineCapacity).
		WithOverflowPolicy(policy).
		WithDefaultTimeout(modem.Ticks(c.CommandTimeout))
	for _, opt := range opts {
		opt(b)
	}
	return b.Build()
}
