package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowRollingMean(t *testing.T) {
	w, err := New(3)
	assert.NoError(t, err)

	// Outcomes 1, 0, 1, 1, 0 with a window of 3 leave 1, 1, 0.
	outcomes := []float64{1, 0, 1, 1, 0}
	for _, o := range outcomes {
		w.Push(o)
	}

	assert.Equal(t, 3, w.Size())
	assert.InDelta(t, 2.0/3.0, w.Mean(), 1e-12)
}

func TestWindowPartialFill(t *testing.T) {
	w, err := New(10)
	assert.NoError(t, err)

	assert.Equal(t, 0.0, w.Mean())

	w.Push(1)
	w.Push(0)

	assert.Equal(t, 2, w.Size())
	assert.False(t, w.Full())
	assert.InDelta(t, 0.5, w.Mean(), 1e-12)
}

func TestWindowNeverExceedsSize(t *testing.T) {
	w, err := New(4)
	assert.NoError(t, err)

	for i := 0; i < 100; i++ {
		w.Push(float64(i % 2))
		assert.LessOrEqual(t, w.Size(), 4)
	}
	assert.True(t, w.Full())
}

func TestNewValidation(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	_, err = New(-3)
	assert.Error(t, err)
}
