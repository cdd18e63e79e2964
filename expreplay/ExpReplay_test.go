package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/admarket/bidrl/timestep"
)

// transition constructs a transition whose state entries all equal v so
// that eviction order can be checked from the backing arenas.
func transition(v float64, features int) timestep.Transition {
	state := make([]float64, features)
	next := make([]float64, features)
	for i := range state {
		state[i] = v
		next[i] = v + 0.5
	}
	return timestep.Transition{
		State:         mat.NewVecDense(features, state),
		Action:        0,
		Reward:        v,
		ObservedPrice: v * 2,
		Done:          false,
		NextState:     mat.NewVecDense(features, next),
	}
}

func TestCapacityNeverExceedsMax(t *testing.T) {
	maxCap := 10
	replay, err := New(1, maxCap, 1, 2, 3, 14)
	assert.NoError(t, err)

	for i := 0; i < 3*maxCap; i++ {
		assert.NoError(t, replay.Add(transition(float64(i), 2)))
		if i+1 < maxCap {
			assert.Equal(t, i+1, replay.Capacity())
		} else {
			assert.Equal(t, maxCap, replay.Capacity())
		}
	}
}

func TestOldestEvictedFirst(t *testing.T) {
	maxCap := 4
	k := 3
	replay, err := New(1, maxCap, 1, 1, 3, 14)
	assert.NoError(t, err)

	for i := 0; i < maxCap+k; i++ {
		assert.NoError(t, replay.Add(transition(float64(i), 1)))
	}

	// After maxCap + k inserts the buffer must hold exactly the last
	// maxCap transitions. The write cursor wraps, so the arena holds
	// them rotated.
	c := replay.(*cache)
	held := make(map[float64]bool)
	for _, v := range c.rewardCache {
		held[v] = true
	}
	for i := 0; i < k; i++ {
		assert.False(t, held[float64(i)], "transition %d should be evicted", i)
	}
	for i := k; i < maxCap+k; i++ {
		assert.True(t, held[float64(i)], "transition %d should be held", i)
	}
}

func TestSampleErrors(t *testing.T) {
	replay, err := New(3, 10, 3, 2, 3, 14)
	assert.NoError(t, err)

	_, _, _, _, _, _, sampleErr := replay.Sample()
	assert.True(t, IsEmptyBuffer(sampleErr))

	assert.NoError(t, replay.Add(transition(1, 2)))
	assert.NoError(t, replay.Add(transition(2, 2)))

	_, _, _, _, _, _, sampleErr = replay.Sample()
	assert.True(t, IsInsufficientSamples(sampleErr))

	assert.NoError(t, replay.Add(transition(3, 2)))

	s, a, r, p, d, ns, sampleErr := replay.Sample()
	assert.NoError(t, sampleErr)
	assert.Len(t, s, 3*2)
	assert.Len(t, a, 3*3)
	assert.Len(t, r, 3)
	assert.Len(t, p, 3)
	assert.Len(t, d, 3)
	assert.Len(t, ns, 3*2)
}

func TestSampleOneHotActions(t *testing.T) {
	replay, err := New(1, 5, 2, 1, 4, 14)
	assert.NoError(t, err)

	tr := transition(1, 1)
	tr.Action = 2
	assert.NoError(t, replay.Add(tr))

	_, actions, _, _, _, _, sampleErr := replay.Sample()
	assert.NoError(t, sampleErr)

	// Only one transition is stored, so every batch row one-hot
	// encodes action 2.
	for i := 0; i < 2; i++ {
		row := actions[i*4 : (i+1)*4]
		assert.Equal(t, []float64{0, 0, 1, 0}, row)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 10, 1, 2, 3, 14)
	assert.Error(t, err)

	_, err = New(1, 0, 1, 2, 3, 14)
	assert.Error(t, err)

	// Batch size larger than the buffer can never be satisfied
	_, err = New(1, 10, 11, 2, 3, 14)
	assert.Error(t, err)

	_, err = New(1, 10, 1, 0, 3, 14)
	assert.Error(t, err)

	_, err = New(1, 10, 1, 2, 0, 14)
	assert.Error(t, err)
}

func TestAddRejectsMalformedTransitions(t *testing.T) {
	replay, err := New(1, 10, 1, 2, 3, 14)
	assert.NoError(t, err)

	// Wrong observation shape
	assert.Error(t, replay.Add(transition(1, 5)))

	// Action index outside the adjustment set
	tr := transition(1, 2)
	tr.Action = 3
	assert.Error(t, replay.Add(tr))
}
