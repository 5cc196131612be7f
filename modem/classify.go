package modem

import (
	"bytes"

	"i4.energy/across/atgw/at"
)

// classify interprets one completed frame. URCs are dispatched first and
// pre-empt correlation even while a command waits. Otherwise the frame is a
// terminal line, metadata, or a response fragment for the command in flight.
// The assembler is reset afterwards whatever the outcome.
func (c *Client) classify(f at.Frame) {
	defer c.rx.Reset()

	if u := c.urcs.Match(f.Line); u != nil {
		if u.Handle != nil {
			u.Handle(f)
		}
		return
	}

	cmd := c.queue.head()
	if cmd == nil || cmd.state != StateWaitResp {
		c.logger.Debug("Dropping orphaned line", "line", string(f.Text()))
		return
	}

	switch {
	case bytes.Equal(f.Line, at.LineOK):
		if len(cmd.Payload) > 0 && !cmd.payloadSent {
			cmd.payloadSent = true
			if _, err := c.transport.Write(cmd.Payload); err != nil {
				c.logger.Error("Failed to write payload", "id", cmd.ID, "length", len(cmd.Payload), "error", err)
			}
			return
		}
		c.complete(cmd, ResultOK)

	case bytes.Equal(f.Line, at.LineMQTTPubOK):
		c.complete(cmd, ResultOK)

	case bytes.Equal(f.Line, at.LineError), bytes.Equal(f.Line, at.LineMQTTPubFail):
		c.complete(cmd, ResultError)

	case cmd.Kind == KindHTTP && bytes.HasPrefix(f.Line, []byte(at.ContentRange)):
		if total, ok := at.ParseContentRangeTotal(f.Line); ok {
			cmd.contentTotal = total
		}

	default:
		c.appendFragment(cmd, f)
	}
}

// appendFragment copies a response fragment into the command's buffer. A
// binary payload is copied as-is up to the remaining capacity. A text line is
// copied without its CRLF followed by a '\n' separator, or dropped whole if
// it does not fit.
func (c *Client) appendFragment(cmd *Command, f at.Frame) {
	free := len(cmd.Resp) - cmd.n

	if f.HasPayload {
		p := f.Payload()
		if len(p) > free {
			c.dropped(cmd, len(p)-free)
			p = p[:free]
		}
		cmd.n += copy(cmd.Resp[cmd.n:], p)
		return
	}

	text := f.Text()
	if len(text)+1 > free {
		c.dropped(cmd, len(text)+1)
		return
	}
	cmd.n += copy(cmd.Resp[cmd.n:], text)
	cmd.Resp[cmd.n] = '\n'
	cmd.n++
}

func (c *Client) dropped(cmd *Command, n int) {
	cmd.truncated = true
	if c.overflow == OverflowReport {
		c.logger.Warn("Response buffer full, fragment dropped", "id", cmd.ID, "dropped", n, "capacity", len(cmd.Resp))
	}
}
