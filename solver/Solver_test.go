package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each registered solver type should survive a JSON round trip with
// its configuration intact and a working Gorgonia solver recreated.
func TestSolverJSONRoundTrip(t *testing.T) {
	adam, err := NewAdam(5e-4, 1e-8, 0.9, 0.999, 16)
	require.NoError(t, err)

	vanilla, err := NewVanilla(0.01, 8, 0.5)
	require.NoError(t, err)

	rmsprop, err := NewDefaultRMSProp(1e-3, 4)
	require.NoError(t, err)

	for _, s := range []*Solver{adam, vanilla, rmsprop} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var decoded Solver
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, s.Type, decoded.Type)
		assert.Equal(t, s.Config, decoded.Config)
		assert.NotNil(t, decoded.Solver)
	}
}

func TestNewSolverRejectsMismatchedType(t *testing.T) {
	_, err := newSolver(Adam, VanillaConfig{StepSize: 0.1, Batch: 1})
	assert.Error(t, err)
}

func TestNewRMSPropRejectsUnsupportedEta(t *testing.T) {
	_, err := NewRMSProp(1e-3, 1e-8, 0.01, 0.9, 4, -1.0)
	assert.Error(t, err)
}
