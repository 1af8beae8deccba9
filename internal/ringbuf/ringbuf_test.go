package ringbuf

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		capacity     int
		wantErr      bool
		wantCapacity int
	}{
		{
			name:         "power_of_two",
			capacity:     1024,
			wantCapacity: 1024,
		},
		{
			name:         "rounds_up_to_power_of_two",
			capacity:     1000,
			wantCapacity: 1024,
		},
		{
			name:         "single_element",
			capacity:     1,
			wantCapacity: 1,
		},
		{
			name:     "zero_capacity",
			capacity: 0,
			wantErr:  true,
		},
		{
			name:     "negative_capacity",
			capacity: -8,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, err := New[float32](tt.capacity)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, rb)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCapacity, rb.Capacity())
			assert.Equal(t, 0, rb.Available())
			assert.Equal(t, tt.wantCapacity, rb.Free())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	rb, err := New[float32](256)
	require.NoError(t, err)

	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(i) * 0.5
	}

	n := rb.Write(in)
	require.Equal(t, len(in), n)

	out := make([]float32, 256)
	n = rb.Read(out)
	require.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

// TestConservation verifies Available+Free == Capacity after every operation.
func TestConservation(t *testing.T) {
	t.Parallel()
	rb, err := New[int](128)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	scratch := make([]int, 128)

	for range 10_000 {
		if rng.Intn(2) == 0 {
			rb.Write(scratch[:rng.Intn(64)+1])
		} else {
			rb.Read(scratch[:rng.Intn(64)+1])
		}
		assert.Equal(t, rb.Capacity(), rb.Available()+rb.Free())
	}
}

func TestNoOverrun(t *testing.T) {
	t.Parallel()
	rb, err := New[int](8)
	require.NoError(t, err)

	data := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	// Write never reports more than the free space.
	n := rb.Write(data)
	assert.Equal(t, 8, n)
	assert.True(t, rb.Full())

	n = rb.Write(data)
	assert.Equal(t, 0, n)

	// Read never reports more than was available.
	out := make([]int, 16)
	n = rb.Read(out)
	assert.Equal(t, 8, n)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, out[:8])

	n = rb.Read(out)
	assert.Equal(t, 0, n)
}

func TestWraparound(t *testing.T) {
	t.Parallel()
	rb, err := New[int](8)
	require.NoError(t, err)

	// Advance the cursors so subsequent writes straddle the wrap point.
	out := make([]int, 8)
	rb.Write([]int{0, 0, 0, 0, 0})
	rb.Read(out[:5])

	in := []int{1, 2, 3, 4, 5, 6}
	require.Equal(t, 6, rb.Write(in))

	n := rb.Read(out[:6])
	require.Equal(t, 6, n)
	assert.Equal(t, in, out[:6])
}

func TestClear(t *testing.T) {
	t.Parallel()
	rb, err := New[float32](64)
	require.NoError(t, err)

	rb.Write(make([]float32, 40))
	require.Equal(t, 40, rb.Available())

	rb.Clear()
	assert.Equal(t, 0, rb.Available())
	assert.Equal(t, 64, rb.Free())

	// Buffer remains fully usable after a clear.
	n := rb.Write(make([]float32, 64))
	assert.Equal(t, 64, n)
}

func TestEmptySlices(t *testing.T) {
	t.Parallel()
	rb, err := New[float32](16)
	require.NoError(t, err)

	assert.Equal(t, 0, rb.Write(nil))
	assert.Equal(t, 0, rb.Read(nil))
}

// TestConcurrentSPSCStress writes a monotonic counter sequence from one
// goroutine in varying chunk sizes while another reads in varying chunk
// sizes. The reader must observe the exact sequence with no gaps,
// duplicates, or reordering.
func TestConcurrentSPSCStress(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	const total = 2_000_000

	rb, err := New[uint64](1024)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var failed atomic.Bool

	wg.Go(func() {
		rng := rand.New(rand.NewSource(1))
		chunk := make([]uint64, 257)
		var next uint64
		for next < total && !failed.Load() {
			n := rng.Intn(len(chunk)) + 1
			if remaining := total - next; uint64(n) > remaining {
				n = int(remaining)
			}
			for i := range n {
				chunk[i] = next + uint64(i)
			}
			written := 0
			for written < n && !failed.Load() {
				written += rb.Write(chunk[written:n])
			}
			next += uint64(n)
		}
	})

	wg.Go(func() {
		rng := rand.New(rand.NewSource(2))
		chunk := make([]uint64, 313)
		var expect uint64
		for expect < total {
			n := rb.Read(chunk[:rng.Intn(len(chunk))+1])
			for i := range n {
				if chunk[i] != expect {
					failed.Store(true)
					return
				}
				expect++
			}
		}
	})

	wg.Wait()
	require.False(t, failed.Load(), "reader observed out-of-sequence data")
	assert.Equal(t, 0, rb.Available())
}

func BenchmarkWriteRead(b *testing.B) {
	rb, err := New[float32](4096)
	if err != nil {
		b.Fatal(err)
	}
	chunk := make([]float32, 512)

	b.ResetTimer()
	for range b.N {
		rb.Write(chunk)
		rb.Read(chunk)
	}
}
