package at

import "bytes"

// Mode is the binary sub-frame state of an Assembler.
type Mode uint8

const (
	// ModeIdle is plain CRLF line framing.
	ModeIdle Mode = iota
	// ModeDetectLength is entered after a "+HTTPCLIENT:" header; digits up to
	// the first comma declare the payload length.
	ModeDetectLength
	// ModePayload counts down the declared payload. CR/LF inside it do not
	// terminate the frame.
	ModePayload
)

func (m Mode) String() string {
	switch m {
	case ModeDetectLength:
		return "detect-length"
	case ModePayload:
		return "payload"
	default:
		return "idle"
	}
}

const minCapacity = 16

// Frame is one logical unit resolved by the Assembler: a text line, or a text
// line whose header declared an embedded binary payload. Line aliases the
// Assembler's buffer and is only valid until the next Feed or Reset.
type Frame struct {
	// Line holds the complete frame including the trailing CRLF.
	Line []byte
	// PayloadStart is the offset of the first payload byte in Line.
	PayloadStart int
	// PayloadLen is the declared payload length.
	PayloadLen int
	// HasPayload reports whether the frame carried a length-declared payload.
	HasPayload bool
}

// Text returns the frame without its CRLF terminator.
func (f Frame) Text() []byte {
	return bytes.TrimSuffix(f.Line, []byte(CRLF))
}

// Payload returns the declared binary payload, or nil for a text line.
func (f Frame) Payload() []byte {
	if !f.HasPayload {
		return nil
	}
	end := f.PayloadStart + f.PayloadLen
	if end > len(f.Line) {
		end = len(f.Line)
	}
	return f.Line[f.PayloadStart:end]
}

// Assembler converts a received byte stream into frames. It is fed one byte at
// a time and never allocates after construction.
//
// A frame ends at CR LF, except inside a length-declared payload introduced by
// a "+HTTPCLIENT:<n>," header, where the next n bytes are taken verbatim.
// Empty lines are discarded. If the buffer fills up the partial frame is
// dropped and assembly starts over.
type Assembler struct {
	buf  []byte
	n    int
	prev byte

	ready bool

	mode         Mode
	payloadStart int
	remaining    int
	payloadLen   int

	overflows int
}

// NewAssembler returns an Assembler with a line buffer of the given capacity.
func NewAssembler(capacity int) *Assembler {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Assembler{buf: make([]byte, capacity)}
}

// Feed appends one byte and reports whether a frame is now complete. Feeding
// after a completed frame that was not Reset starts a new frame.
func (a *Assembler) Feed(b byte) bool {
	if a.ready {
		a.Reset()
	}

	if a.n == len(a.buf) {
		a.Reset()
		a.overflows++
	}
	a.buf[a.n] = b
	a.n++

	if a.mode == ModePayload && a.remaining > 0 {
		a.remaining--
		a.prev = b
		return false
	}

	if a.prev == '\r' && b == '\n' {
		if a.n == len(CRLF) {
			a.Reset()
			return false
		}
		a.ready = true
		a.prev = b
		return true
	}
	a.prev = b

	switch a.mode {
	case ModeIdle:
		if a.n == len(HTTPClientHeader) && bytes.Equal(a.buf[:a.n], []byte(HTTPClientHeader)) {
			a.mode = ModeDetectLength
			a.payloadStart = a.n
		}
	case ModeDetectLength:
		if b == ',' {
			size, ok := ParseDecimal(a.buf[a.payloadStart : a.n-1])
			if !ok {
				a.mode = ModeIdle
				break
			}
			a.remaining = size
			a.payloadLen = size
			a.payloadStart = a.n
			a.mode = ModePayload
		}
	}
	return false
}

// Ready reports whether a complete frame is waiting to be processed.
func (a *Assembler) Ready() bool {
	return a.ready
}

// Frame returns the completed frame. It is only meaningful while Ready.
func (a *Assembler) Frame() Frame {
	f := Frame{Line: a.buf[:a.n]}
	if a.mode == ModePayload {
		f.HasPayload = true
		f.PayloadStart = a.payloadStart
		f.PayloadLen = a.payloadLen
	}
	return f
}

// AtPrompt reports whether the buffer holds nothing but the data prompt the
// modem sends, without a line terminator, when it is ready for a payload.
func (a *Assembler) AtPrompt() bool {
	return a.mode == ModeIdle && a.n == len(Prompt) && a.buf[0] == Prompt[0]
}

// Mode returns the current sub-frame mode.
func (a *Assembler) Mode() Mode {
	return a.mode
}

// Len returns the number of buffered bytes.
func (a *Assembler) Len() int {
	return a.n
}

// Overflows returns how many partial frames were dropped because the line
// buffer filled up.
func (a *Assembler) Overflows() int {
	return a.overflows
}

// Reset discards buffered data and returns to idle mode.
func (a *Assembler) Reset() {
	a.n = 0
	a.prev = 0
	a.ready = false
	a.mode = ModeIdle
	a.payloadStart = 0
	a.remaining = 0
	a.payloadLen = 0
}
