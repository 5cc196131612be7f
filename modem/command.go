package modem

import "fmt"

// State is the position of a Command in its lifecycle.
type State uint8

const (
	// StateIdle is a command that was never queued.
	StateIdle State = iota
	// StateSend is a queued command that has not been written yet.
	StateSend
	// StateWaitResp is the command written to the modem and awaiting its
	// terminal line. At most one command is ever in this state.
	StateWaitResp
	// StateComplete is a finished command, handed back to its owner.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateSend:
		return "send"
	case StateWaitResp:
		return "wait-resp"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Result is the outcome of a Command.
type Result uint8

const (
	// ResultPending means the command has not been resolved yet. It is the
	// zero value, so a fresh Command also reads as pending.
	ResultPending Result = iota
	ResultOK
	ResultError
	ResultTimeout
	ResultOutOfMemory
	ResultClosed
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultError:
		return "error"
	case ResultTimeout:
		return "timeout"
	case ResultOutOfMemory:
		return "out-of-memory"
	case ResultClosed:
		return "closed"
	default:
		return "pending"
	}
}

// Err maps the result to one of the package sentinel errors. It returns nil
// for ResultOK and ResultPending.
func (r Result) Err() error {
	switch r {
	case ResultError:
		return ErrModemError
	case ResultTimeout:
		return ErrTimeout
	case ResultOutOfMemory:
		return ErrResponseOverflow
	case ResultClosed:
		return ErrClosed
	default:
		return nil
	}
}

// Kind selects how response frames of a Command are interpreted.
type Kind uint8

const (
	// KindPlain commands collect response lines as text.
	KindPlain Kind = iota
	// KindHTTP commands may receive "+HTTPCLIENT:" binary frames and
	// "ContentRange:bytes" metadata.
	KindHTTP
)

// Command is one AT request. The caller owns it and every buffer it
// references; between Enqueue and completion the Client mutates the command
// and reads Data, Payload and Resp, so none of them may be modified or reused
// until OnComplete has run.
type Command struct {
	// ID labels the command in logs.
	ID string
	// Data is written to the modem verbatim. It must carry its own line
	// terminator.
	Data []byte
	// Payload is written after the modem answers OK to Data, e.g. an upload
	// body or a raw MQTT message. The command then waits for the real
	// terminal line.
	Payload []byte
	// Kind selects response parsing.
	Kind Kind
	// Resp receives response fragments. Its length is the capacity; the
	// Client never grows it.
	Resp []byte
	// Timeout is measured in clock ticks from the moment Data is written.
	// Zero selects the Client's default timeout.
	Timeout uint32
	// OnComplete is invoked exactly once, synchronously from Tick, when the
	// command reaches StateComplete.
	OnComplete func(*Command)

	n            int
	timeout      uint32
	sentAt       uint32
	deadline     uint32
	result       Result
	state        State
	payloadSent  bool
	contentTotal int
	truncated    bool
}

// State returns the current lifecycle state.
func (c *Command) State() State {
	return c.state
}

// Result returns the outcome, ResultPending until the command completes.
func (c *Command) Result() Result {
	return c.result
}

// Err returns the error form of Result.
func (c *Command) Err() error {
	return c.result.Err()
}

// Response returns the bytes written into Resp so far.
func (c *Command) Response() []byte {
	return c.Resp[:c.n]
}

// Deadline returns the absolute tick after which the command times out. It
// is only set once the command was written.
func (c *Command) Deadline() uint32 {
	return c.deadline
}

// ContentTotal returns the total size announced by a "ContentRange:bytes"
// line, or zero if none was seen.
func (c *Command) ContentTotal() int {
	return c.contentTotal
}

// Truncated reports whether at least one response fragment was dropped
// because Resp was full.
func (c *Command) Truncated() bool {
	return c.truncated
}

func (c *Command) String() string {
	return fmt.Sprintf("%q (%s, %s)", c.Data, c.state, c.result)
}

// reset prepares the command for a new round through the queue.
func (c *Command) reset(defaultTimeout uint32) {
	c.n = 0
	c.timeout = c.Timeout
	if c.timeout == 0 {
		c.timeout = defaultTimeout
	}
	c.sentAt = 0
	c.deadline = 0
	c.result = ResultPending
	c.state = StateSend
	c.payloadSent = false
	c.contentTotal = 0
	c.truncated = false
}

// expired reports whether the timeout elapsed. The subtraction wraps, so the
// comparison stays correct across a clock rollover.
func (c *Command) expired(now uint32) bool {
	return now-c.sentAt >= c.timeout
}
