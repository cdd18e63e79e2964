package network

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func newTestNet(t *testing.T, batch int, init G.InitWFn) NeuralNet {
	t.Helper()

	g := G.NewGraph()
	net, err := NewBidNet(3, batch, 7, g,
		[]int{16, 8}, []bool{true, true}, []*Activation{ReLU(), ReLU()},
		[]int{8}, []int{4}, init)
	require.NoError(t, err)
	return net
}

// TestBidNetOutputShapes checks that the Q-head predicts one value per
// action and the price head predicts a single value, for every
// observation in the batch.
func TestBidNetOutputShapes(t *testing.T) {
	const batch = 2
	net := newTestNet(t, batch, G.Zeroes())

	err := net.SetInput(make([]float64, batch*net.Features()))
	require.NoError(t, err)

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	require.NoError(t, vm.RunAll())

	out := net.Output()
	require.Len(t, out, 2)
	assert.Equal(t, []int{batch, 7}, []int(out[0].Shape()))
	assert.Equal(t, []int{batch, 1}, []int(out[1].Shape()))

	// Zero weights and biases give zero predictions from both heads
	for _, head := range out {
		for _, v := range head.Data().([]float64) {
			assert.Zero(t, v)
		}
	}
}

// TestBidNetSet checks that Set value-copies the weights of the source
// network so that later updates to the source do not leak into the
// destination.
func TestBidNetSet(t *testing.T) {
	source := newTestNet(t, 1, G.Ones())
	dest := newTestNet(t, 1, G.Zeroes())

	require.NoError(t, dest.Set(source))

	for i, learnable := range dest.Learnables() {
		data := learnable.Value().Data().([]float64)
		expected := source.Learnables()[i].Value().Data().([]float64)
		assert.Equal(t, expected, data)
	}

	// Overwrite the source weights and ensure the destination still
	// holds the values from the time of the copy
	for _, learnable := range source.Learnables() {
		backing := make([]float64, learnable.Shape().TotalSize())
		for j := range backing {
			backing[j] = 2.0
		}
		err := G.Let(learnable, tensor.New(
			tensor.WithShape(learnable.Shape()...),
			tensor.WithBacking(backing),
		))
		require.NoError(t, err)
	}

	for _, learnable := range dest.Learnables() {
		for _, v := range learnable.Value().Data().([]float64) {
			assert.NotEqual(t, 2.0, v)
		}
	}
}

// TestBidNetCloneWithBatch checks that cloning preserves the
// architecture and weights while changing only the input batch size.
func TestBidNetCloneWithBatch(t *testing.T) {
	net := newTestNet(t, 1, G.Ones())

	clone, err := net.CloneWithBatch(32)
	require.NoError(t, err)

	assert.Equal(t, 32, clone.BatchSize())
	assert.Equal(t, net.Features(), clone.Features())
	assert.Equal(t, net.Outputs(), clone.Outputs())
	require.Equal(t, len(net.Learnables()), len(clone.Learnables()))

	for i, learnable := range clone.Learnables() {
		expected := net.Learnables()[i].Value().Data().([]float64)
		assert.Equal(t, expected, learnable.Value().Data().([]float64))
	}
}

func TestNewBidNetInvalidArchitecture(t *testing.T) {
	g := G.NewGraph()

	_, err := NewBidNet(0, 1, 7, g, []int{16}, []bool{true},
		[]*Activation{ReLU()}, nil, nil, G.Zeroes())
	assert.Error(t, err)

	_, err = NewBidNet(3, 0, 7, g, []int{16}, []bool{true},
		[]*Activation{ReLU()}, nil, nil, G.Zeroes())
	assert.Error(t, err)

	_, err = NewBidNet(3, 1, 0, g, []int{16}, []bool{true},
		[]*Activation{ReLU()}, nil, nil, G.Zeroes())
	assert.Error(t, err)

	_, err = NewBidNet(3, 1, 7, g, nil, nil, nil, nil, nil, G.Zeroes())
	assert.Error(t, err)

	_, err = NewBidNet(3, 1, 7, g, []int{16, 8}, []bool{true},
		[]*Activation{ReLU()}, nil, nil, G.Zeroes())
	assert.Error(t, err)
}

// TestBidNetGob checks that a network round-trips through gob with its
// architecture and weights intact.
func TestBidNetGob(t *testing.T) {
	net := newTestNet(t, 1, G.GlorotU(1.0)).(*BidNet)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(net))

	decoded := &BidNet{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))

	assert.Equal(t, net.Features(), decoded.Features())
	assert.Equal(t, net.BatchSize(), decoded.BatchSize())
	assert.Equal(t, net.Outputs(), decoded.Outputs())
	require.Equal(t, len(net.Learnables()), len(decoded.Learnables()))

	for i, learnable := range decoded.Learnables() {
		expected := net.Learnables()[i].Value().Data().([]float64)
		assert.Equal(t, expected, learnable.Value().Data().([]float64))
	}
}
