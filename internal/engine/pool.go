package engine

import (
	"sync/atomic"

	"github.com/pcmflow/pcmflow/internal/errors"
)

// DefaultPoolSlots is the number of rotation slots a pool pre-allocates
// when the caller does not override it.
const DefaultPoolSlots = 4

// BufferPool hands out pre-allocated float32 slices without per-call
// allocation. Slots are reused round-robin: a rented slice is implicitly
// returned once the rotation comes back around, so the caller must be
// done with slice N before its (N + slots)th Rent. This matches the
// engine's poll-style Receive contract, where each returned buffer is
// consumed before the next poll.
//
// Requests larger than the slot size fall back to a fresh allocation.
// The fallback path is counted in stats and never returns an error.
type BufferPool struct {
	slots     [][]float32
	slotSize  int
	cursor    atomic.Uint64
	rents     atomic.Uint64
	fallbacks atomic.Uint64
}

// BufferPoolStats contains statistics about pool usage.
type BufferPoolStats struct {
	Rents     uint64 // Total Rent calls
	Hits      uint64 // Rents served from pre-allocated slots
	Fallbacks uint64 // Oversized requests served by fresh allocation
}

// NewBufferPool creates a pool of numSlots buffers of slotSize samples
// each. Returns an error if either dimension is not positive.
func NewBufferPool(slotSize, numSlots int) (*BufferPool, error) {
	if slotSize <= 0 {
		return nil, errors.Newf("invalid pool buffer size: %d", slotSize).
			Component(Component).
			Category(errors.CategoryValidation).
			Context("operation", "create_buffer_pool").
			Context("requested_size", slotSize).
			Build()
	}
	if numSlots <= 0 {
		numSlots = DefaultPoolSlots
	}

	slots := make([][]float32, numSlots)
	for i := range slots {
		slots[i] = make([]float32, slotSize)
	}

	return &BufferPool{
		slots:    slots,
		slotSize: slotSize,
	}, nil
}

// Rent returns a buffer of at least size samples. Buffers up to the
// slot size come from the rotation without allocating; larger requests
// allocate fresh.
func (p *BufferPool) Rent(size int) []float32 {
	p.rents.Add(1)

	if size > p.slotSize {
		p.fallbacks.Add(1)
		return make([]float32, size)
	}

	idx := p.cursor.Add(1) - 1
	return p.slots[idx%uint64(len(p.slots))][:p.slotSize]
}

// SlotSize returns the size in samples of each pooled buffer.
func (p *BufferPool) SlotSize() int {
	return p.slotSize
}

// GetStats returns current pool statistics.
func (p *BufferPool) GetStats() BufferPoolStats {
	rents := p.rents.Load()
	fallbacks := p.fallbacks.Load()
	return BufferPoolStats{
		Rents:     rents,
		Hits:      rents - fallbacks,
		Fallbacks: fallbacks,
	}
}
