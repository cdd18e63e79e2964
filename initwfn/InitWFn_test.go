package initwfn

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each registered initializer type should survive a JSON round trip
// with its configuration intact and a working Gorgonia InitWFn
// recreated.
func TestInitWFnJSONRoundTrip(t *testing.T) {
	constructors := []func() (*InitWFn, error){
		func() (*InitWFn, error) { return NewGlorotU(math.Sqrt(2)) },
		func() (*InitWFn, error) { return NewGlorotN(math.Sqrt(2)) },
		func() (*InitWFn, error) { return NewHeU(1.0) },
		func() (*InitWFn, error) { return NewHeN(1.0) },
		func() (*InitWFn, error) { return NewZeroes() },
		func() (*InitWFn, error) { return NewOnes() },
		func() (*InitWFn, error) { return NewConstant(0.5) },
		func() (*InitWFn, error) { return NewGaussian(0.0, 0.1) },
		func() (*InitWFn, error) { return NewUniform(-0.1, 0.1) },
	}

	for _, newWFn := range constructors {
		wfn, err := newWFn()
		require.NoError(t, err)

		data, err := json.Marshal(wfn)
		require.NoError(t, err)

		var decoded InitWFn
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, wfn.Type, decoded.Type)
		assert.Equal(t, wfn.Config, decoded.Config)
		assert.NotNil(t, decoded.InitWFn())
	}
}
