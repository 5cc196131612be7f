package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"i4.energy/across/atgw/at"
)

// replayFormats defines the allowed output formats.
var replayFormats = []string{"text", "json"}

// maxReplayFrame bounds a single frame read from a capture.
const maxReplayFrame = 1024 * 1024

type replayOptions struct {
	*rootOptions
	Format string
}

// replayFrame is one decoded frame as printed by replay.
type replayFrame struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	Text       string `json:"text"`
	PayloadLen int    `json:"payload_len,omitempty"`
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "replay <capture>",
		Short: "Decode a raw modem capture into frames",
		Long: `Decode a raw capture of modem output into frames and classify each one
the way the gateway would: URC, final, meta, binary or data.

Examples:
  atgw replay session.bin
  atgw replay session.bin --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, replayFormats)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open capture: %w", err)
			}
			defer f.Close()

			prefixes := newURCTable(slog.New(slog.NewTextHandler(io.Discard, nil))).Prefixes()
			return replay(cmd.OutOrStdout(), f, opts.Format, prefixes)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

// replay splits r into frames and writes one line per frame to w.
func replay(w io.Writer, r io.Reader, format string, urcPrefixes []string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxReplayFrame)
	scanner.Split(at.ScanFrames)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i := 0; scanner.Scan(); i++ {
		f := at.NewFrame(scanner.Bytes())
		rf := replayFrame{
			Index: i,
			Type:  at.Classify(f, urcPrefixes).String(),
			Text:  string(f.Text()),
		}
		if f.HasPayload {
			rf.PayloadLen = f.PayloadLen
		}

		var err error
		if format == "json" {
			err = enc.Encode(rf)
		} else {
			_, err = fmt.Fprintf(w, "%4d %-6s %q\n", rf.Index, rf.Type, rf.Text)
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range replayFormats {
		if f == format {
			return true
		}
	}
	return false
}
