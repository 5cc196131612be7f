package modem

import "sync"

// commandQueue is a FIFO of commands in issuance order. Only the head is
// ever advanced by the Client.
//
// The queue owns its entries between push and remove. It is safe for
// concurrent use so commands can be queued from completion callbacks, URC
// handlers or other goroutines while the Client ticks.
type commandQueue struct {
	mu       sync.Mutex
	commands []*Command
	// closed is set by drain; nothing can be queued afterwards.
	closed bool
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]*Command, 0, 8),
	}
}

// push resets cmd and appends it at the tail. It fails with
// ErrAlreadyClosed once the queue has been drained, and with
// ErrCommandQueued if cmd is already queued.
func (q *commandQueue) push(cmd *Command, defaultTimeout uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrAlreadyClosed
	}
	for _, c := range q.commands {
		if c == cmd {
			return ErrCommandQueued
		}
	}
	cmd.reset(defaultTimeout)
	q.commands = append(q.commands, cmd)
	return nil
}

// head returns the oldest command, or nil if the queue is empty.
func (q *commandQueue) head() *Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return nil
	}
	return q.commands[0]
}

// remove drops cmd from the queue. Removing a command that is not queued is
// a no-op, so both completion paths may call it.
func (q *commandQueue) remove(cmd *Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, c := range q.commands {
		if c != cmd {
			continue
		}
		copy(q.commands[i:], q.commands[i+1:])
		// Clear the vacated tail slot so the command can be collected.
		q.commands[len(q.commands)-1] = nil
		q.commands = q.commands[:len(q.commands)-1]
		return true
	}
	return false
}

// drain closes the queue and returns its former contents in order.
func (q *commandQueue) drain() []*Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.commands
	q.commands = nil
	q.closed = true
	return out
}

// len returns the number of queued commands.
func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
