package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinearBoundsAndMonotonicity(t *testing.T) {
	sched, err := NewLinear(1.0, 0.01, 20000)
	assert.NoError(t, err)

	prev := sched.Value(0)
	assert.Equal(t, 1.0, prev)

	for step := 1; step < 25000; step += 100 {
		eps := sched.Value(step)
		assert.LessOrEqual(t, eps, 1.0)
		assert.GreaterOrEqual(t, eps, 0.01)
		assert.LessOrEqual(t, eps, prev)
		prev = eps
	}
}

func TestLinearClampsAfterDecayPeriod(t *testing.T) {
	sched, err := NewLinear(0.5, 0.1, 100)
	assert.NoError(t, err)

	assert.Equal(t, 0.1, sched.Value(100))
	assert.Equal(t, 0.1, sched.Value(101))
	assert.Equal(t, 0.1, sched.Value(1_000_000))
}

func TestLinearMidpoint(t *testing.T) {
	sched, err := NewLinear(1.0, 0.0, 10)
	assert.NoError(t, err)

	assert.InDelta(t, 0.5, sched.Value(5), 1e-12)
	assert.InDelta(t, 0.9, sched.Value(1), 1e-12)
}

func TestNewLinearValidation(t *testing.T) {
	_, err := NewLinear(1.5, 0.1, 10)
	assert.Error(t, err)

	_, err = NewLinear(0.5, 0.6, 10)
	assert.Error(t, err)

	_, err = NewLinear(1.0, 0.1, 0)
	assert.Error(t, err)

	_, err = NewLinear(1.0, -0.1, 10)
	assert.Error(t, err)
}
