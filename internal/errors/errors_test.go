package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderWrapsAndUnwraps(t *testing.T) {
	t.Parallel()

	base := NewStd("device busy")
	err := New(base).
		Component("engine").
		Category(CategoryResource).
		Context("operation", "open").
		Build()

	require.Error(t, err)
	assert.True(t, Is(err, base))
	assert.Equal(t, "engine", err.GetComponent())
	assert.Equal(t, "open", err.GetContext()["operation"])
}

func TestNewfSynthesizesMessage(t *testing.T) {
	t.Parallel()

	err := Newf("no %s device found", "capture").
		Category(CategoryNotFound).
		Build()

	assert.Contains(t, err.Error(), "no capture device found")
	assert.Equal(t, string(CategoryNotFound), err.GetCategory())
}

func TestNilErrorSynthesizedFromContext(t *testing.T) {
	t.Parallel()

	err := New(nil).
		Category(CategoryState).
		Context("error", "source already running").
		Build()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "source already running")
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := New(NewStd("one")).Category(CategoryTimeout).Build()
	b := New(NewStd("two")).Category(CategoryTimeout).Build()
	c := New(NewStd("three")).Category(CategoryValidation).Build()

	assert.True(t, Is(a, b), "same category matches")
	assert.False(t, Is(a, c), "different category does not match")
}

func TestComponentDetection(t *testing.T) {
	t.Parallel()

	// Built from within this package, no explicit component: detection
	// walks the stack and should not panic, ending in a known or
	// unknown component.
	err := Newf("detached failure").Build()
	assert.NotEmpty(t, err.GetComponent())
}

func TestDefaultCategoryIsGeneric(t *testing.T) {
	t.Parallel()

	err := New(NewStd("plain")).Build()
	assert.Equal(t, string(CategoryGeneric), err.GetCategory())
}
