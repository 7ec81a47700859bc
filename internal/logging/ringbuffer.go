package logging

import (
	"os"
	"sync"
)

// RingBuffer is a fixed-capacity io.Writer that keeps only the most recent
// bytes written to it. Safe for concurrent use.
type RingBuffer struct {
	mu      sync.Mutex
	data    []byte
	next    int
	wrapped bool
}

// NewRingBuffer creates a ring buffer holding up to size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 4 * 1024 * 1024
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write never fails; older bytes are overwritten once the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	capacity := len(rb.data)
	if n >= capacity {
		copy(rb.data, p[n-capacity:])
		rb.next = 0
		rb.wrapped = true
		return n, nil
	}

	written := copy(rb.data[rb.next:], p)
	if written < n {
		rb.next = copy(rb.data, p[written:])
		rb.wrapped = true
	} else {
		rb.next += written
		if rb.next == capacity {
			rb.next = 0
			rb.wrapped = true
		}
	}
	return n, nil
}

// Len reports how many bytes are currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.wrapped {
		return len(rb.data)
	}
	return rb.next
}

// Bytes returns a copy of the contents, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		return append([]byte(nil), rb.data[:rb.next]...)
	}
	out := make([]byte, 0, len(rb.data))
	out = append(out, rb.data[rb.next:]...)
	return append(out, rb.data[:rb.next]...)
}

// DumpToFile writes the contents, oldest first, to path.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
