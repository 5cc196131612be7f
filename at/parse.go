package at

import "bytes"

// maxDecimal caps parsed values so callers can use them as buffer lengths
// without overflowing int on 32-bit targets.
const maxDecimal = 1<<31 - 1

// ParseDecimal parses an unsigned ASCII decimal number. Every byte must be a
// digit and the input must not be empty. Values above 2^31-1 are rejected.
func ParseDecimal(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int(c - '0')
		if n > (maxDecimal-d)/10 {
			return 0, false
		}
		n = n*10 + d
	}
	return n, true
}

// ParseContentRangeTotal extracts the total size from a metadata line of the
// form "ContentRange:bytes 0-1023/4096\r\n". Only the digits after the last
// '/' are considered; trailing CR, LF and spaces are ignored.
func ParseContentRangeTotal(line []byte) (int, bool) {
	if !bytes.HasPrefix(line, []byte(ContentRange)) {
		return 0, false
	}
	line = bytes.TrimRight(line, "\r\n ")
	i := bytes.LastIndexByte(line, '/')
	if i < 0 {
		return 0, false
	}
	return ParseDecimal(line[i+1:])
}
