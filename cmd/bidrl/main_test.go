package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admarket/bidrl/initwfn"
	"github.com/admarket/bidrl/solver"
)

func TestNewSolverSelection(t *testing.T) {
	expected := map[string]solver.Type{
		"adam":    solver.Adam,
		"vanilla": solver.Vanilla,
		"rmsprop": solver.RMSProp,
	}
	for name, solverType := range expected {
		s, err := newSolver(name, 5e-4, 32, -1.0)
		require.NoError(t, err)
		assert.Equal(t, solverType, s.Type)
		assert.NotNil(t, s.Solver)
	}

	_, err := newSolver("sgdm", 5e-4, 32, -1.0)
	assert.Error(t, err)
}

func TestNewInitWFnSelection(t *testing.T) {
	expected := map[string]initwfn.Type{
		"glorotu":  initwfn.GlorotU,
		"glorotn":  initwfn.GlorotN,
		"heu":      initwfn.HeU,
		"hen":      initwfn.HeN,
		"gaussian": initwfn.Gaussian,
		"uniform":  initwfn.Uniform,
		"zeroes":   initwfn.Zeroes,
		"ones":     initwfn.Ones,
		"constant": initwfn.Constant,
	}
	for name, initType := range expected {
		wfn, err := newInitWFn(name, 1.0)
		require.NoError(t, err)
		assert.Equal(t, initType, wfn.Type)
		assert.NotNil(t, wfn.InitWFn())
	}

	_, err := newInitWFn("orthogonal", 1.0)
	assert.Error(t, err)
}

func TestParseAdjustments(t *testing.T) {
	adjustments, err := parseAdjustments("-6,-4,-2,0,2,4,6")
	require.NoError(t, err)
	assert.Equal(t, []float64{-6, -4, -2, 0, 2, 4, 6}, adjustments)

	adjustments, err = parseAdjustments(" -1.5, 0.5 ")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.5, 0.5}, adjustments)

	_, err = parseAdjustments("-6,two,6")
	assert.Error(t, err)

	_, err = parseAdjustments("")
	assert.Error(t, err)
}
