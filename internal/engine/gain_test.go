package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGainProcessor(t *testing.T) {
	t.Parallel()

	p, err := NewGainProcessor(0.5)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	buf := []float32{1.0, -1.0, 0.5, 0}
	p.Process(buf, 2)
	assert.Equal(t, []float32{0.5, -0.5, 0.25, 0}, buf)
}

func TestGainProcessorClamps(t *testing.T) {
	t.Parallel()

	p, err := NewGainProcessor(2.0)
	require.NoError(t, err)

	buf := []float32{0.9, -0.9}
	p.Process(buf, 1)
	assert.Equal(t, []float32{1.0, -1.0}, buf)
}

func TestGainProcessorUnityIsIdentity(t *testing.T) {
	t.Parallel()

	p, err := NewGainProcessor(1.0)
	require.NoError(t, err)

	buf := []float32{0.1, 0.2, 0.3}
	p.Process(buf, 3)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, buf)
}

func TestGainProcessorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGainProcessor(-0.1)
	assert.Error(t, err)
	_, err = NewGainProcessor(MaxGain + 0.01)
	assert.Error(t, err)

	p, err := NewGainProcessor(1.0)
	require.NoError(t, err)
	assert.Error(t, p.SetGain(3.0))
	assert.InDelta(t, 1.0, p.Gain(), 1e-9)
}
