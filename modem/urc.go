package modem

import (
	"bytes"

	"i4.energy/across/atgw/at"
)

// URCHandler receives an unsolicited frame. It runs synchronously inside
// Tick and the frame is only valid for the duration of the call.
type URCHandler func(f at.Frame)

// URC binds a line prefix to a handler.
type URC struct {
	Prefix string
	Handle URCHandler
}

// URCTable is an ordered list of URC entries. The first entry whose prefix
// matches the start of a frame wins; unmatched frames go on to command
// correlation. The table is read-only once handed to a Client.
type URCTable []URC

// Match returns the first entry matching line, or nil.
func (t URCTable) Match(line []byte) *URC {
	for i := range t {
		if len(t[i].Prefix) > 0 && bytes.HasPrefix(line, []byte(t[i].Prefix)) {
			return &t[i]
		}
	}
	return nil
}

// Prefixes lists the table prefixes in match order.
func (t URCTable) Prefixes() []string {
	out := make([]string, 0, len(t))
	for _, u := range t {
		out = append(out, u.Prefix)
	}
	return out
}
