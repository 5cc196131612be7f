package modem

import "errors"

var (
	// ErrNoDialer is returned when a Client is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer hands back no Transport or
	// when an operation is attempted on a Client that was not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Client that has
	// already been closed, or when commands are queued after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned when Loop is started while another Loop is
	// still driving the same Client.
	ErrLoopRunning = errors.New("loop already running")

	// ErrEmptyCommand is returned when a Command without command bytes is
	// queued.
	ErrEmptyCommand = errors.New("empty command")

	// ErrCommandQueued is returned when a Command that is still owned by the
	// queue is queued a second time.
	ErrCommandQueued = errors.New("command already queued")
)

// Command outcomes, see Result.Err.
var (
	// ErrModemError is reported when the modem answered ERROR or a publish
	// nack.
	ErrModemError = errors.New("modem returned ERROR")

	// ErrTimeout is reported when no terminal line arrived before the
	// command deadline.
	ErrTimeout = errors.New("modem timeout: no response received")

	// ErrResponseOverflow is reported when response fragments did not fit in
	// the command's response buffer and the client reports overflows.
	ErrResponseOverflow = errors.New("response buffer overflow")

	// ErrClosed is reported for commands still queued when the Client was
	// closed.
	ErrClosed = errors.New("modem closed before command completed")
)

// IsTimeoutError checks if an error is a command timeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsModemError checks if an error is a modem ERROR response.
func IsModemError(err error) bool {
	return errors.Is(err, ErrModemError)
}
