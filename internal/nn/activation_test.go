package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gradStep = 1e-2
	gradTol  = 2e-2
)

// randomAwayFromZero draws values in [-2, -0.1] U [0.1, 2] so that kinks at
// zero never fall inside a finite-difference stencil.
func randomAwayFromZero(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		v := float32(0.1 + rng.Float64()*1.9)
		if rng.Intn(2) == 0 {
			v = -v
		}
		out[i] = v
	}
	return out
}

func mustTensor(t *testing.T, shape tensor.Shape, values []float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromFloat32(shape, values)
	require.NoError(t, err)
	return x
}

// weightedOutput returns sum(dy * layer(x)).
func weightedOutput(t *testing.T, l nn.Layer, shape tensor.Shape, x, dy []float32) float64 {
	t.Helper()
	in := mustTensor(t, shape, x)
	out, err := tensor.Zeros(tensor.Shape{shape[0], l.OutFeatures()}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, l.Forward(in, out))
	var sum float64
	for i, v := range out.Float32() {
		sum += float64(v) * float64(dy[i])
	}
	return sum
}

func checkInputGradient(t *testing.T, l nn.Layer, rows int, rng *rand.Rand) {
	t.Helper()
	shape := tensor.Shape{rows, l.InFeatures()}
	x := randomAwayFromZero(rng, shape.NumElements())
	dy := randomAwayFromZero(rng, rows*l.OutFeatures())

	in := mustTensor(t, shape, x)
	out, err := tensor.Zeros(tensor.Shape{rows, l.OutFeatures()}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, l.Forward(in, out))

	dOut := mustTensor(t, out.Shape(), dy)
	dIn, err := tensor.Zeros(shape, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, l.Backward(in, out, dOut, dIn))

	analytic := dIn.Float32()
	for j := range x {
		plus := append([]float32(nil), x...)
		minus := append([]float32(nil), x...)
		plus[j] += gradStep
		minus[j] -= gradStep
		numeric := (weightedOutput(t, l, shape, plus, dy) - weightedOutput(t, l, shape, minus, dy)) / (2 * gradStep)
		assert.InDelta(t, numeric, analytic[j], gradTol, "%s: d/dx[%d]", l.Kind(), j)
	}
}

func TestActivationGradients(t *testing.T) {
	layers := []nn.Layer{
		nn.NewReLU(4),
		nn.NewLeakyReLU(4, 0),
		nn.NewLeakyReLU(4, 0.2),
		nn.NewELU(4, 0),
		nn.NewELU(4, 0.5),
		nn.NewSigmoid(4),
		nn.NewTanh(4),
		nn.NewSoftsign(4),
		nn.NewLinear(4),
		nn.NewSoftmax(4),
	}
	rng := rand.New(rand.NewSource(7))
	for _, l := range layers {
		t.Run(l.Kind().String(), func(t *testing.T) {
			for trial := 0; trial < 3; trial++ {
				checkInputGradient(t, l, 3, rng)
			}
		})
	}
}

func TestActivationDefaults(t *testing.T) {
	assert.Equal(t, float32(0.01), nn.NewLeakyReLU(2, 0).Alpha())
	assert.Equal(t, float32(1.0), nn.NewELU(2, 0).Alpha())
	assert.Equal(t, float32(0.3), nn.NewLeakyReLU(2, 0.3).Alpha())
}

func TestActivationForwardValues(t *testing.T) {
	in := mustTensor(t, tensor.Shape{1, 4}, []float32{-2, -0.5, 0, 3})
	out, _ := tensor.Zeros(tensor.Shape{1, 4}, tensor.Float32)

	require.NoError(t, nn.NewReLU(4).Forward(in, out))
	assert.Equal(t, []float32{0, 0, 0, 3}, out.Float32())

	require.NoError(t, nn.NewLeakyReLU(4, 0.1).Forward(in, out))
	assert.InDeltaSlice(t, []float32{-0.2, -0.05, 0, 3}, out.Float32(), 1e-6)

	require.NoError(t, nn.NewSoftsign(4).Forward(in, out))
	assert.InDeltaSlice(t, []float32{-2.0 / 3, -0.5 / 1.5, 0, 0.75}, out.Float32(), 1e-6)

	require.NoError(t, nn.NewSoftmax(4).Forward(in, out))
	var sum float32
	for _, p := range out.Float32() {
		assert.Greater(t, p, float32(0))
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestActivationShapeMismatch(t *testing.T) {
	in := mustTensor(t, tensor.Shape{1, 3}, []float32{1, 2, 3})
	out, _ := tensor.Zeros(tensor.Shape{1, 4}, tensor.Float32)
	err := nn.NewTanh(4).Forward(in, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
