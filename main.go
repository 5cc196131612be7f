package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"i4.energy/across/atgw/modem"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigFile string
	LogLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "atgw",
		Short: "AT command gateway for ESP-AT Wi-Fi modems",
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Drive the modem and expose it over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := LoadConfig(WithDefaults(), WithFile(opts.ConfigFile), WithEnv(), WithFlags(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return serve(cmd.Context(), config)
		},
	}

	cmd.Flags().String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	cmd.Flags().Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	cmd.Flags().String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	cmd.Flags().Duration("tick-interval", modem.DefaultTickInterval, "How often the modem is polled")
	cmd.Flags().Duration("command-timeout", 5*time.Second, "Timeout for commands that set none")
	cmd.Flags().Int("line-capacity", modem.DefaultLineCapacity, "Receive line buffer size in bytes")
	cmd.Flags().String("overflow-policy", "truncate", "Response overflow policy (truncate, report)")

	return cmd
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func serve(ctx context.Context, config *Config) error {
	logger := newLogger(config.LogLevel)

	modemConfig, err := config.modemConfig(func(b *modem.ConfigBuilder) {
		b.WithURCs(newURCTable(logger.With("component", "urc"))).
			WithInitCommands("AT\r\n", "ATE0\r\n", "AT+CWMODE=1\r\n").
			WithInitTimeout(30 * time.Second).
			WithLogger(logger.With("component", "modem"))
	})
	if err != nil {
		return fmt.Errorf("create modem config: %w", err)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		return fmt.Errorf("create modem: %w", err)
	}

	logger.Info("Starting AT gateway", "serial_port", config.SerialPort, "baud_rate", config.BaudRate)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go func() {
		if err := m.Loop(loopCtx, config.TickInterval); err != nil && loopCtx.Err() == nil {
			logger.Error("Modem loop stopped", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Client: m,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		return fmt.Errorf("close modem: %w", err)
	}
	return nil
}
