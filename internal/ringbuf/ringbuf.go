// Package ringbuf implements a lock-free single-producer single-consumer
// ring buffer used to move PCM samples between an application thread and
// a real-time audio callback.
package ringbuf

import (
	"sync/atomic"

	"github.com/pcmflow/pcmflow/internal/errors"
)

// RingBuffer is a fixed-capacity lock-free SPSC circular queue.
//
// It uses two monotonically increasing cursors and a power-of-two sized
// storage array addressed with bitwise masking. Each cursor is mutated by
// exactly one side: the producer advances writePos, the consumer advances
// readPos. A cursor is stored only after the corresponding element copies
// have completed; Go's sync/atomic guarantees the other side observes the
// copies before it observes the cursor advance. With one writer and one
// reader no CAS loop or retry is needed.
//
// Thread assignment:
//   - Write: producer goroutine only
//   - Read: consumer (audio callback) only
//   - Available/Free: either side, approximate under concurrency
//   - Clear: only while both sides are quiescent
type RingBuffer[T any] struct {
	// Cursors live on separate cache lines to avoid false sharing
	// between the producer and consumer cores.
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	buf  []T
	mask uint64
}

// New creates a ring buffer holding at least minCapacity elements,
// rounded up to the next power of two. Returns an error if minCapacity
// is not positive.
func New[T any](minCapacity int) (*RingBuffer[T], error) {
	if minCapacity <= 0 {
		return nil, errors.Newf("invalid ring buffer capacity: %d", minCapacity).
			Component("ringbuf").
			Category(errors.CategoryValidation).
			Context("operation", "create_ring_buffer").
			Context("requested_capacity", minCapacity).
			Build()
	}

	size := 1
	for size < minCapacity {
		size <<= 1
	}

	return &RingBuffer[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}, nil
}

// Capacity returns the fixed element capacity.
func (rb *RingBuffer[T]) Capacity() int {
	return len(rb.buf)
}

// Write copies as many elements of p as fit into the buffer and returns
// the number written, which may be 0. It never blocks and never
// allocates. Only the producer may call Write.
func (rb *RingBuffer[T]) Write(p []T) int {
	w := rb.writePos.Load()
	r := rb.readPos.Load()

	free := uint64(len(rb.buf)) - (w - r)
	if free == 0 || len(p) == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > free {
		n = free
	}

	pos := w & rb.mask
	// One or two copies depending on wraparound.
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}

	// Publish after the element copies are complete.
	rb.writePos.Store(w + n)
	return int(n)
}

// Read copies up to len(p) buffered elements into p and returns the
// number read, which may be 0. It never blocks and never allocates.
// Only the consumer may call Read.
func (rb *RingBuffer[T]) Read(p []T) int {
	r := rb.readPos.Load()
	w := rb.writePos.Load()

	available := w - r
	if available == 0 || len(p) == 0 {
		return 0
	}

	n := uint64(len(p))
	if n > available {
		n = available
	}

	pos := r & rb.mask
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}

	rb.readPos.Store(r + n)
	return int(n)
}

// Available returns the number of elements buffered for reading. The
// value is instantaneous and may be stale by the time it is used; it is
// meant for monitoring, not for correctness decisions.
func (rb *RingBuffer[T]) Available() int {
	return int(rb.writePos.Load() - rb.readPos.Load())
}

// Free returns the number of elements that can be written without
// truncation. Same staleness caveat as Available.
func (rb *RingBuffer[T]) Free() int {
	return len(rb.buf) - int(rb.writePos.Load()-rb.readPos.Load())
}

// Full reports whether the buffer has no space for writing.
func (rb *RingBuffer[T]) Full() bool {
	return rb.writePos.Load()-rb.readPos.Load() == uint64(len(rb.buf))
}

// Clear resets both cursors to zero, discarding buffered data. The
// caller must guarantee no concurrent Read or Write is in flight; the
// engine only calls this while stopped.
func (rb *RingBuffer[T]) Clear() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}
