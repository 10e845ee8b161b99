package kernel

import (
	"math"
)

// Multiplier is a real rescale factor expressed as Value * 2^-RightShift,
// with Value a Q31 mantissa in [2^30, 2^31). It lets the Q7 forward pass
// rescale int32 accumulators without touching floating point.
type Multiplier struct {
	Value      int32 `json:"value"`
	RightShift int   `json:"right_shift"`
}

// NewMultiplier converts a positive real factor into a Multiplier.
// Returns ok=false for non-positive or non-finite factors.
func NewMultiplier(real float64) (Multiplier, bool) {
	if real <= 0 || math.IsNaN(real) || math.IsInf(real, 0) {
		return Multiplier{}, false
	}
	frac, exp := math.Frexp(real) // real = frac * 2^exp, frac in [0.5, 1)
	q := int64(math.Round(frac * (1 << 31)))
	if q == 1<<31 {
		q /= 2
		exp++
	}
	return Multiplier{Value: int32(q), RightShift: 31 - exp}, true
}

// Apply returns round(acc * real) with round-half-away-from-zero.
func (m Multiplier) Apply(acc int32) int32 {
	prod := int64(acc) * int64(m.Value)
	s := m.RightShift
	switch {
	case s <= 0:
		return clamp32(prod << uint(-s))
	case s >= 63:
		return 0
	}
	half := int64(1) << uint(s-1)
	if prod >= 0 {
		return clamp32((prod + half) >> uint(s))
	}
	return clamp32(-((-prod + half) >> uint(s)))
}

func clamp32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// SaturateInt8 clamps v into [-128, 127].
func SaturateInt8(v int32) int8 {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return int8(v)
}

// DenseQ7 computes out[m,n] = requant((x[m,k]-zx) @ (w[k,n]-zw) + bias[n]) + zy.
// Accumulation is int32; the only rescale is mult.Apply per output.
func DenseQ7(x []int8, zx int32, w []int8, zw int32, bias []int32, out []int8, zy int32, mult Multiplier, m, k, n int) {
	for i := 0; i < m; i++ {
		xRow := x[i*k : (i+1)*k]
		for j := 0; j < n; j++ {
			acc := bias[j]
			for p, xv := range xRow {
				acc += (int32(xv) - zx) * (int32(w[p*n+j]) - zw)
			}
			out[i*n+j] = SaturateInt8(mult.Apply(acc) + zy)
		}
	}
}

// LookupQ7 maps every element of x through table, indexed by x+128.
func LookupQ7(x []int8, table *[256]int8, y []int8) {
	for i, v := range x {
		y[i] = table[int(v)+128]
	}
}

// SoftmaxQ7 computes a row-wise softmax on int8 inputs.
//
// expTable[d] holds exp(-d*inputScale) in Q16 for d = max - x. The output
// uses scale 1/256 and zero point -128, so probability p maps to 256p-128.
func SoftmaxQ7(x []int8, expTable *[256]int32, y []int8, rows, cols int) {
	for r := 0; r < rows; r++ {
		in := x[r*cols : (r+1)*cols]
		out := y[r*cols : (r+1)*cols]

		maxVal := in[0]
		for _, v := range in[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum int64
		for _, v := range in {
			sum += int64(expTable[int(maxVal)-int(v)])
		}
		for i, v := range in {
			e := int64(expTable[int(maxVal)-int(v)])
			p := (e*256 + sum/2) / sum
			out[i] = SaturateInt8(int32(p) - 128)
		}
	}
}
