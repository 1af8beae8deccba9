package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferPool(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		slotSize int
		numSlots int
		wantErr  bool
	}{
		{name: "valid", slotSize: 1024, numSlots: 4},
		{name: "defaults_slot_count", slotSize: 512, numSlots: 0},
		{name: "zero_size", slotSize: 0, numSlots: 4, wantErr: true},
		{name: "negative_size", slotSize: -1, numSlots: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewBufferPool(tt.slotSize, tt.numSlots)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, pool)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slotSize, pool.SlotSize())
		})
	}
}

func TestBufferPoolRotation(t *testing.T) {
	t.Parallel()
	pool, err := NewBufferPool(256, 3)
	require.NoError(t, err)

	// Three consecutive rents hand out distinct slots.
	a := pool.Rent(256)
	b := pool.Rent(256)
	c := pool.Rent(256)
	assert.NotSame(t, &a[0], &b[0])
	assert.NotSame(t, &b[0], &c[0])
	assert.NotSame(t, &a[0], &c[0])

	// The fourth rent wraps back to the first slot.
	d := pool.Rent(256)
	assert.Same(t, &a[0], &d[0])

	stats := pool.GetStats()
	assert.Equal(t, uint64(4), stats.Rents)
	assert.Equal(t, uint64(4), stats.Hits)
	assert.Equal(t, uint64(0), stats.Fallbacks)
}

func TestBufferPoolNoAllocation(t *testing.T) {
	pool, err := NewBufferPool(4096, 4)
	require.NoError(t, err)

	allocs := testing.AllocsPerRun(100, func() {
		_ = pool.Rent(4096)
	})
	assert.Zero(t, allocs)
}

func TestBufferPoolOversizedFallback(t *testing.T) {
	t.Parallel()
	pool, err := NewBufferPool(128, 2)
	require.NoError(t, err)

	buf := pool.Rent(1024)
	assert.Len(t, buf, 1024)

	stats := pool.GetStats()
	assert.Equal(t, uint64(1), stats.Fallbacks)
	assert.Equal(t, uint64(0), stats.Hits)

	// The fallback does not disturb the rotation.
	a := pool.Rent(128)
	assert.Len(t, a, 128)
	stats = pool.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestBufferPoolSmallRequestGetsFullSlot(t *testing.T) {
	t.Parallel()
	pool, err := NewBufferPool(512, 2)
	require.NoError(t, err)

	buf := pool.Rent(100)
	assert.Len(t, buf, 512)
}
