package modem_test

import (
	"bytes"

	"i4.energy/across/atgw/modem"
)

// MockSequenceBuilder scripts a MockTransport: each expected write makes the
// given response readable, in order, through TryReadByte.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	rx        *bytes.Buffer
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	b := &MockSequenceBuilder{
		transport: transport,
		rx:        &bytes.Buffer{},
		calls:     []any{},
	}
	transport.EXPECT().TryReadByte().DoAndReturn(func() (byte, bool) {
		c, err := b.rx.ReadByte()
		return c, err == nil
	}).AnyTimes()
	return b
}

func (b *MockSequenceBuilder) Expect(cmd, resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(cmd)).DoAndReturn(func(p []byte) (int, error) {
			b.rx.WriteString(resp)
			return len(p), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Expect("AT\r\n", "AT\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Expect("ATE0\r\n", "ATE0\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) StationMode() *MockSequenceBuilder {
	return b.Expect("AT+CWMODE=1\r\n", "OK\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initCommands matches the sequence built by initMockCalls.
var initCommands = []string{"AT\r\n", "ATE0\r\n", "AT+CWMODE=1\r\n"}

func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		AT().
		EchoOff().
		StationMode().
		Build()
}
