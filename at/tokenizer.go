package at

import (
	"bufio"
	"bytes"
)

// ScanFrames is used for tokenizing a captured modem byte stream. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It applies the same rules as Assembler: frames end at CRLF, a
// "+HTTPCLIENT:<n>," header makes the next n bytes opaque, and empty lines
// are skipped. Tokens keep their CRLF so they can be passed to NewFrame.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for bytes.HasPrefix(data[start:], []byte(CRLF)) {
		start += len(CRLF)
	}
	rest := data[start:]

	if atEOF && len(rest) == 0 {
		return len(data), nil, nil
	}

	searchFrom := 0
	if bytes.HasPrefix(rest, []byte(HTTPClientHeader)) {
		payloadStart, size, complete := scanHeader(rest)
		switch {
		case !complete && !atEOF:
			return start, nil, nil
		case payloadStart > 0:
			// The terminator may start on the last payload byte.
			searchFrom = payloadStart + size - 1
		}
	}

	if searchFrom < len(rest) {
		if i := bytes.Index(rest[searchFrom:], []byte(CRLF)); i >= 0 {
			end := searchFrom + i + len(CRLF)
			return start + end, rest[:end], nil
		}
	}

	if atEOF {
		return len(data), rest, nil
	}
	return start, nil, nil
}

var _ bufio.SplitFunc = ScanFrames

// scanHeader inspects a line starting with HTTPClientHeader. It returns the
// payload offset and declared size when a valid length field is present, or a
// zero offset when the line turns out to be plain text. complete is false
// while more data is needed to decide.
func scanHeader(d []byte) (payloadStart, size int, complete bool) {
	for i := len(HTTPClientHeader); i < len(d); i++ {
		switch {
		case d[i] == '\n' && d[i-1] == '\r':
			return 0, 0, true
		case d[i] == ',':
			n, ok := ParseDecimal(d[len(HTTPClientHeader):i])
			if !ok {
				return 0, 0, true
			}
			payloadStart = i + 1
			if len(d) < payloadStart+n {
				return 0, 0, false
			}
			return payloadStart, n, true
		}
	}
	return 0, 0, false
}

// NewFrame builds a Frame from a complete token as returned by ScanFrames,
// recovering the payload boundaries from its header.
func NewFrame(line []byte) Frame {
	f := Frame{Line: line}
	if !bytes.HasPrefix(line, []byte(HTTPClientHeader)) {
		return f
	}
	if start, size, ok := scanHeader(line); ok && start > 0 {
		f.HasPayload = true
		f.PayloadStart = start
		f.PayloadLen = size
	}
	return f
}

// Classify identifies the nature of a frame. urcPrefixes are matched first,
// mirroring the engine, so a URC prefix shadows every other category.
func Classify(f Frame, urcPrefixes []string) ResponseType {
	for _, p := range urcPrefixes {
		if bytes.HasPrefix(f.Line, []byte(p)) {
			return TypeURC
		}
	}

	switch {
	case bytes.Equal(f.Line, LineOK), bytes.Equal(f.Line, LineError),
		bytes.Equal(f.Line, LineMQTTPubOK), bytes.Equal(f.Line, LineMQTTPubFail):
		return TypeFinal
	case f.HasPayload:
		return TypeBinary
	case bytes.HasPrefix(f.Line, []byte(ContentRange)):
		return TypeMeta
	default:
		return TypeData
	}
}
