package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_modem.go -package=modem . Clock,Dialer,Transport

// Transport represents an established, bidirectional byte stream to a modem.
//
// A Transport is assumed to be already connected and ready for use. Writes
// carry complete commands; reads are polled one byte at a time and must never
// block, since the Client drives I/O from a cooperative tick. Typical
// implementations include serial ports or in-memory fakes used for testing.
type Transport interface {
	io.WriteCloser

	// TryReadByte returns the next received byte, or false if none is
	// buffered right now.
	TryReadByte() (byte, bool)
}

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during client
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultBaudRate is used by SerialDialer when neither Mode nor BaudRate is
// set.
const DefaultBaudRate = 115200

// serialRxBuffer bounds how many received bytes wait for the Client. The
// reader goroutine blocks when it is full, which leaves the remainder in the
// driver's buffer.
const serialRxBuffer = 16 * 1024

// SerialDialer opens a modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyUSB0" or "COM3".
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the full line configuration.
	Mode *serial.Mode
}

// Dial opens the port in 8N1 mode unless Mode says otherwise.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("modem: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("modem: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return newSerialTransport(port), nil
}

// serialTransport adapts a blocking serial.Port to the polled Transport
// contract. A reader goroutine moves received bytes into a buffered channel.
type serialTransport struct {
	port serial.Port
	rx   chan byte

	done      chan struct{}
	closeOnce sync.Once
}

func newSerialTransport(port serial.Port) *serialTransport {
	t := &serialTransport{
		port: port,
		rx:   make(chan byte, serialRxBuffer),
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *serialTransport) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		for _, b := range buf[:n] {
			select {
			case t.rx <- b:
			case <-t.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) TryReadByte() (byte, bool) {
	select {
	case b := <-t.rx:
		return b, true
	default:
		return 0, false
	}
}

func (t *serialTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.port.Close()
	})
	return err
}
