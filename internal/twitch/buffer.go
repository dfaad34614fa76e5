package twitch

import "sync"

// defaultBufferCapacity bounds how many unseen chat messages are retained
// between conversation turns.
const defaultBufferCapacity = 50

// Buffer accumulates chat messages that have not yet been shown to the
// conversation engine. It is bounded: when full, the oldest message is
// evicted and counted so a busy chat cannot grow memory without limit.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	messages []ChatMessage
	capacity int
	dropped  int
}

// NewBuffer creates a Buffer holding at most capacity messages.
// A capacity of zero or less uses the default of 50.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &Buffer{capacity: capacity}
}

// Add appends a message, evicting the oldest when the buffer is full.
func (b *Buffer) Add(msg ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) >= b.capacity {
		copy(b.messages, b.messages[1:])
		b.messages = b.messages[:len(b.messages)-1]
		b.dropped++
	}
	b.messages = append(b.messages, msg)
}

// Drain returns all buffered messages in arrival order and empties the
// buffer. Returns nil when empty.
func (b *Buffer) Drain() []ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return nil
	}
	out := b.messages
	b.messages = nil
	return out
}

// Len reports how many messages are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// Dropped reports how many messages have been evicted since creation.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
