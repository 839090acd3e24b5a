// Package progress carries progress events from workers to their consumer in order.
package progress

import (
	"sync"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

// Buffer is a mutex-guarded FIFO of progress events shared by the workers and the emitter.
type Buffer struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Push appends an event at the tail.
func (b *Buffer) Push(e domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
}

// Pop removes and returns the oldest event.
func (b *Buffer) Pop() (domain.ProgressEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return domain.ProgressEvent{}, false
	}
	e := b.events[0]
	b.events[0] = domain.ProgressEvent{}
	b.events = b.events[1:]
	if len(b.events) == 0 {
		b.events = nil
	}
	return e, true
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.events)
}
