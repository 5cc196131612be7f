package modem

import "time"

// Clock is the monotonic tick source that command deadlines are measured
// against. Tick values wrap around; the Client only ever compares them by
// modular subtraction.
type Clock interface {
	Now() uint32
}

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a millisecond Clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the elapsed milliseconds, truncated to 32 bits.
func (c *SystemClock) Now() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// Ticks converts a duration to SystemClock ticks.
func Ticks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
