// Package errbus decouples storage-permission failures from their call sites.
// Deep storage code publishes here instead of bubbling raw authorization
// errors up the stack; the surfaces that care (developer overlay, telemetry)
// subscribe independently.
package errbus

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPermissionDenied is the caller-facing rejected outcome. The detailed
// event travels over the bus, never up the call stack.
var ErrPermissionDenied = errors.New("errbus: permission denied")

// PermissionError describes a storage write or read refused by authorization.
type PermissionError struct {
	Path      string
	Operation string
	Payload   any
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("storage permission denied: %s %s", e.Operation, e.Path)
}

// Bus is a process-scoped single-topic pub/sub channel. Construct one in main,
// register handlers per consumer lifetime, Close at teardown.
type Bus struct {
	mu       sync.Mutex
	handlers map[int]func(PermissionError)
	next     int

	events    chan PermissionError
	done      chan struct{}
	closeOnce sync.Once
}

func New() *Bus {
	b := &Bus{
		handlers: make(map[int]func(PermissionError)),
		events:   make(chan PermissionError, 64),
		done:     make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			b.mu.Lock()
			handlers := make([]func(PermissionError), 0, len(b.handlers))
			for _, h := range b.handlers {
				handlers = append(handlers, h)
			}
			b.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}

// Publish enqueues the event for asynchronous delivery to every subscriber.
// Events published after Close, or past the buffer while consumers stall,
// are dropped.
func (b *Bus) Publish(ev PermissionError) {
	select {
	case <-b.done:
	case b.events <- ev:
	default:
	}
}

// Subscribe registers a handler and returns its idempotent removal func.
func (b *Bus) Subscribe(handler func(PermissionError)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Intercept routes permission failures onto the bus and converts them into
// the uniform rejected outcome; other errors pass through untouched.
func Intercept(b *Bus, err error) error {
	if err == nil {
		return nil
	}
	var perm *PermissionError
	if errors.As(err, &perm) {
		if b != nil {
			b.Publish(*perm)
		}
		return ErrPermissionDenied
	}
	return err
}
