package modem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/atgw/at"
)

// DefaultTickInterval is the Loop period when none is given.
const DefaultTickInterval = 5 * time.Millisecond

// Client drives a modem with AT commands over a single Transport.
//
// All protocol work happens in Tick: received bytes are assembled into
// frames, frames are matched against the URC table or correlated with the
// command in flight, and the head of the command queue is advanced. Tick
// never blocks. At most one command is written to the modem and awaiting
// its terminal line at any time; the rest wait in the queue in issuance
// order.
//
// Enqueue and Close are safe for concurrent use, including from completion
// callbacks and URC handlers. Tick calls are serialized; callbacks must not
// call Tick.
type Client struct {
	// transport provides the physical connection to the modem
	transport Transport
	// clock stamps sends and detects timeouts
	clock Clock
	// urcs is consulted before command correlation
	urcs URCTable
	// rx assembles received bytes into frames
	rx *at.Assembler
	// queue holds commands in issuance order
	queue *commandQueue

	logger         *slog.Logger
	overflow       OverflowPolicy
	defaultTimeout uint32

	// mu serializes Tick and Close
	mu          sync.Mutex
	closed      atomic.Bool
	loopRunning atomic.Bool
	done        chan struct{}
}

// New creates a Client with the given configuration. It opens the transport
// through the configured Dialer and runs the init commands, if any.
//
// Returns an error if the transport connection or the init sequence fails.
func New(ctx context.Context, config Config) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	c := &Client{
		transport:      transport,
		clock:          config.clock,
		urcs:           config.urcs,
		rx:             at.NewAssembler(config.lineCapacity),
		queue:          newCommandQueue(),
		logger:         config.logger,
		overflow:       config.overflow,
		defaultTimeout: config.defaultTimeout,
		done:           make(chan struct{}),
	}

	if len(config.initCommands) > 0 {
		initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
		defer cancel()

		if err := c.init(initCtx, config.initCommands); err != nil {
			transport.Close()
			return nil, fmt.Errorf("initialize modem: %w", err)
		}
	}

	return c, nil
}

// init runs each command to completion before the Loop is started, ticking
// the client directly.
func (c *Client) init(ctx context.Context, cmds []string) error {
	for _, s := range cmds {
		cmd := &Command{
			ID:   "init",
			Data: []byte(s),
			Resp: make([]byte, 256),
		}
		if err := c.Enqueue(cmd); err != nil {
			return err
		}

		ticker := time.NewTicker(time.Millisecond)
		for cmd.State() != StateComplete {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return fmt.Errorf("init command %q: %w", s, ctx.Err())
			case <-ticker.C:
				c.Tick()
			}
		}
		ticker.Stop()

		if err := cmd.Err(); err != nil {
			return fmt.Errorf("init command %q: %w", s, err)
		}
	}
	return nil
}

// Enqueue appends cmd to the command queue. The command starts in StateSend
// with ResultPending and is written once it reaches the head of the queue.
// The Client owns cmd until its OnComplete callback has run.
func (c *Client) Enqueue(cmd *Command) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if len(cmd.Data) == 0 {
		return ErrEmptyCommand
	}
	if cmd.state == StateSend || cmd.state == StateWaitResp {
		return ErrCommandQueued
	}

	return c.queue.push(cmd, c.defaultTimeout)
}

// Pending returns the number of queued commands, including the one in
// flight.
func (c *Client) Pending() int {
	return c.queue.len()
}

// Tick advances the engine by one step: it polls the transport until a frame
// is complete or no byte is left, processes that frame, then advances the
// command at the head of the queue.
func (c *Client) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return
	}
	c.poll()
	// A callback may have closed the client.
	if c.closed.Load() {
		return
	}
	c.advance()
}

func (c *Client) poll() {
	for !c.rx.Ready() {
		b, ok := c.transport.TryReadByte()
		if !ok {
			break
		}
		overflows := c.rx.Overflows()
		c.rx.Feed(b)
		if c.rx.Overflows() != overflows && c.overflow == OverflowReport {
			c.logger.Warn("Receive line overflow, partial frame dropped", "overflows", c.rx.Overflows())
		}
		if c.rx.AtPrompt() && c.awaitingPrompt() {
			c.rx.Reset()
		}
	}

	if c.rx.Ready() {
		c.classify(c.rx.Frame())
	}
}

// awaitingPrompt reports whether the command in flight has written its
// payload, so a '>' starting a line is the modem's prompt and not data.
func (c *Client) awaitingPrompt() bool {
	cmd := c.queue.head()
	return cmd != nil && cmd.state == StateWaitResp && cmd.payloadSent
}

// advance moves the head command through its states.
func (c *Client) advance() {
	cmd := c.queue.head()
	if cmd == nil {
		return
	}

	switch cmd.state {
	case StateSend:
		now := c.clock.Now()
		if _, err := c.transport.Write(cmd.Data); err != nil {
			// The command still waits for its deadline, so the caller hears
			// about it as a timeout.
			c.logger.Error("Failed to write command", "id", cmd.ID, "command", string(cmd.Data), "error", err)
		}
		cmd.sentAt = now
		cmd.deadline = now + cmd.timeout
		cmd.state = StateWaitResp
		c.logger.Debug("Command sent", "id", cmd.ID, "command", string(cmd.Data), "deadline", cmd.deadline)

	case StateWaitResp:
		if cmd.expired(c.clock.Now()) {
			c.logger.Warn("Command timed out", "id", cmd.ID, "command", string(cmd.Data))
			c.complete(cmd, ResultTimeout)
		}

	case StateComplete:
		c.complete(cmd, cmd.result)

	default:
		c.queue.remove(cmd)
	}
}

// complete is the single path into StateComplete. It removes cmd from the
// queue and fires OnComplete once; later calls for the same command only
// make sure it is dequeued.
func (c *Client) complete(cmd *Command, result Result) {
	c.queue.remove(cmd)
	if cmd.state == StateComplete {
		return
	}

	if result == ResultOK && cmd.truncated && c.overflow == OverflowReport {
		result = ResultOutOfMemory
	}
	cmd.result = result
	cmd.state = StateComplete
	c.logger.Debug("Command complete", "id", cmd.ID, "result", result.String(), "response_length", cmd.n)

	if cmd.OnComplete != nil {
		cmd.OnComplete(cmd)
	}
}

// Exec queues cmd and waits for it to complete. A Loop (or another caller
// of Tick) must be running. If ctx ends first the command stays queued and
// completes later; cmd must not be reused until then.
func (c *Client) Exec(ctx context.Context, cmd *Command) error {
	done := make(chan struct{})
	next := cmd.OnComplete
	cmd.OnComplete = func(cmd *Command) {
		cmd.OnComplete = next
		if next != nil {
			next(cmd)
		}
		close(done)
	}

	if err := c.Enqueue(cmd); err != nil {
		cmd.OnComplete = next
		return err
	}

	select {
	case <-done:
		return cmd.Err()
	case <-ctx.Done():
		return fmt.Errorf("command %q cancelled: %w", cmd.Data, ctx.Err())
	}
}

// Loop ticks the Client every interval until ctx is cancelled or the Client
// is closed. Only one Loop may run at a time.
//
// Usage:
//
//	c, err := modem.New(ctx, config)
//	if err != nil { return err }
//
//	go c.Loop(ctx, modem.DefaultTickInterval)
//
//	// Now Exec calls will complete
//	err = c.Ping(ctx)
func (c *Client) Loop(ctx context.Context, interval time.Duration) error {
	if !c.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer c.loopRunning.Store(false)

	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Close shuts down the Client and releases the transport. Commands still
// queued complete with ResultClosed so every OnComplete callback runs. After
// calling Close(), the Client cannot be reused.
//
// Close may be called from an OnComplete callback or URC handler. The queued
// commands are then completed as soon as the running Tick returns, which can
// be after Close itself has returned.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	close(c.done)

	if c.mu.TryLock() {
		c.drain()
		c.mu.Unlock()
	} else {
		go func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.drain()
		}()
	}

	return c.transport.Close()
}

// drain completes every queued command with ResultClosed. c.mu must be held.
func (c *Client) drain() {
	for _, cmd := range c.queue.drain() {
		c.complete(cmd, ResultClosed)
	}
	c.rx.Reset()
}
