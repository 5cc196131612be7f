package modem

import (
	"sync"
)

// TestTransport is a test helper that simulates a modem in memory.
// Received data is queued with SendData, or scripted with Reply so that
// writing a given command makes its response available on the next reads.
// Every write is recorded.
type TestTransport struct {
	mu      sync.Mutex
	rx      []byte
	writes  []string
	replies map[string]string
	closed  bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		replies: make(map[string]string),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrAlreadyClosed
	}
	t.writes = append(t.writes, string(p))
	if resp, ok := t.replies[string(p)]; ok {
		t.rx = append(t.rx, resp...)
	}
	return len(p), nil
}

func (t *TestTransport) TryReadByte() (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.rx) == 0 {
		return 0, false
	}
	b := t.rx[0]
	t.rx = t.rx[1:]
	return b, true
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.rx = append(t.rx, data...)
	}
}

// Reply makes every write of exactly written queue response for reading.
func (t *TestTransport) Reply(written, response string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[written] = response
}

// Writes returns everything written so far, one entry per Write call.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

// Closed reports whether Close was called.
func (t *TestTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// TestClock is a manually advanced Clock for tests.
type TestClock struct {
	mu  sync.Mutex
	now uint32
}

// NewTestClock returns a clock reading start.
func NewTestClock(start uint32) *TestClock {
	return &TestClock{now: start}
}

func (c *TestClock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward, wrapping at 2^32.
func (c *TestClock) Advance(ticks uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += ticks
}
