package modem

import (
	"context"
	"fmt"
	"strings"
)

// Ping sends a bare AT and waits for OK.
func (c *Client) Ping(ctx context.Context) error {
	cmd := &Command{
		ID:   "ping",
		Data: []byte("AT\r\n"),
		Resp: make([]byte, 64),
	}
	if err := c.Exec(ctx, cmd); err != nil {
		return fmt.Errorf("AT command failed: %w", err)
	}
	return nil
}

// HTTPGet fetches url through the modem's HTTP client. The body is written
// into resp from the "+HTTPCLIENT:<len>," frames the modem echoes; use
// Response on the returned command to read it.
//
// This method blocks until the modem answers OK or ERROR, or the command
// times out.
func (c *Client) HTTPGet(ctx context.Context, url string, resp []byte) (*Command, error) {
	cmd := &Command{
		ID:   "http-get",
		Data: []byte(fmt.Sprintf("AT+HTTPCLIENT=2,0,%s,,,1\r\n", quoteArg(url))),
		Kind: KindHTTP,
		Resp: resp,
	}
	if err := c.Exec(ctx, cmd); err != nil {
		return cmd, fmt.Errorf("AT+HTTPCLIENT failed: %w", err)
	}
	return cmd, nil
}

// PublishRaw publishes payload on topic over MQTT link 0.
//
// The modem first answers OK to AT+MQTTPUBRAW and only then accepts the raw
// payload; the publish is confirmed with +MQTTPUB:OK or rejected with
// +MQTTPUB:FAIL.
func (c *Client) PublishRaw(ctx context.Context, topic string, payload []byte, qos int, retain bool) error {
	r := 0
	if retain {
		r = 1
	}
	cmd := &Command{
		ID:      "mqtt-pub",
		Data:    []byte(fmt.Sprintf("AT+MQTTPUBRAW=0,%s,%d,%d,%d\r\n", quoteArg(topic), len(payload), qos, r)),
		Payload: payload,
		Resp:    make([]byte, 64),
	}
	if err := c.Exec(ctx, cmd); err != nil {
		return fmt.Errorf("MQTT publish to %q failed: %w", topic, err)
	}
	return nil
}

// quoteArg renders a string argument the way the AT parser expects it:
// double-quoted, with quotes, commas and backslashes escaped.
func quoteArg(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', ',', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
