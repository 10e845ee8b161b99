package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeRoundTrip(t *testing.T) {
	ranges := []Range{
		{Min: -1, Max: 1},
		{Min: -3.5, Max: 0.25},
		{Min: 0, Max: 6},
		{Min: 2, Max: 5},
		{Min: -0.01, Max: 0.02},
	}
	schemes := []Scheme{Affine{}, Symmetric{}, PowerOfTwo{}}
	rng := rand.New(rand.NewSource(5))

	for _, s := range schemes {
		for _, r := range ranges {
			q, err := s.Params(r)
			require.NoError(t, err)
			tol := float64(q.Scale)/2 + 1e-6
			for i := 0; i < 500; i++ {
				x := r.Min + float32(rng.Float64())*(r.Max-r.Min)
				got := q.Dequantize(q.Quantize(x))
				assert.InDelta(t, x, got, tol, "%s %v x=%g", s.Name(), r, x)
			}
			for _, x := range []float32{r.Min, r.Max} {
				assert.InDelta(t, x, q.Dequantize(q.Quantize(x)), tol, "%s %v edge %g", s.Name(), r, x)
			}
		}
	}
}

func TestAffineParams(t *testing.T) {
	q, err := Affine{}.Params(Range{Min: -1, Max: 1})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/255, q.Scale, 1e-9)
	assert.Equal(t, int8(QMin), q.Quantize(-1))
	assert.GreaterOrEqual(t, q.Quantize(1), int8(QMax-1))
	assert.Equal(t, int8(QMax), q.Quantize(100), "saturates")

	q, err = Affine{}.Params(Range{})
	require.NoError(t, err)
	assert.Equal(t, float32(1), q.Scale)
}

func TestPowerOfTwoParams(t *testing.T) {
	q, err := PowerOfTwo{}.Params(Range{Min: -1, Max: 1})
	require.NoError(t, err)
	assert.Equal(t, float32(math.Ldexp(1, -q.Shift)), q.Scale)
	// Width 2 needs a 4-wide interval: 2^2 covers it, shift = 8-2.
	assert.Equal(t, 6, q.Shift)
}

func TestSchemeErrors(t *testing.T) {
	_, err := Affine{}.Params(Range{Min: 1, Max: -1})
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = Symmetric{}.Params(Range{Min: float32(math.NaN()), Max: 1})
	assert.ErrorIs(t, err, ErrNumericFailure)

	_, err = SchemeByName("log")
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	s, err := SchemeByName("")
	require.NoError(t, err)
	assert.Equal(t, "affine", s.Name())
}

func TestQuantizeTensor(t *testing.T) {
	src, _ := FromFloat32(Shape{1, 3}, []float32{-1, 0, 1})
	dst, _ := Zeros(Shape{1, 3}, Q7)
	q, _ := Affine{}.Params(Range{Min: -1, Max: 1})
	dst.SetQuant(q)
	require.NoError(t, QuantizeTensor(src, dst))
	assert.Equal(t, int8(QMin), dst.Int8()[0])

	back, _ := Zeros(Shape{1, 3}, Float32)
	require.NoError(t, DequantizeTensor(dst, back))
	assert.InDeltaSlice(t, []float32{-1, 0, 1}, back.Float32(), float64(q.Scale)/2+1e-6)

	wrong, _ := Zeros(Shape{3}, Q7)
	assert.ErrorIs(t, QuantizeTensor(src, wrong), ErrShapeMismatch)
}
