package at_test

import (
	"testing"

	"i4.energy/across/atgw/at"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"0", 0, true},
		{"5", 5, true},
		{"004096", 4096, true},
		{"2147483647", 2147483647, true},
		{"2147483648", 0, false},
		{"", 0, false},
		{"-1", 0, false},
		{"12a", 0, false},
		{" 1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := at.ParseDecimal([]byte(tt.input))
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseDecimal(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{name: "Full range", input: "ContentRange:bytes 0-1023/4096\r\n", want: 4096, ok: true},
		{name: "Trailing space", input: "ContentRange:bytes 0-9/10 \r\n", want: 10, ok: true},
		{name: "No terminator", input: "ContentRange:bytes */77", want: 77, ok: true},
		{name: "Missing slash", input: "ContentRange:bytes 0-9\r\n", ok: false},
		{name: "Unknown total", input: "ContentRange:bytes 0-9/*\r\n", ok: false},
		{name: "Wrong prefix", input: "Content-Range: bytes 0-9/10\r\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := at.ParseContentRangeTotal([]byte(tt.input))
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseContentRangeTotal(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}
