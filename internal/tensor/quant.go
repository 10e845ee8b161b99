package tensor

import (
	"math"
)

// Int8 saturation bounds.
const (
	QMin = -128
	QMax = 127
)

// QParams maps an int8 value q to the real value Scale*(q-ZeroPoint).
//
// Shift is set by the PowerOfTwo scheme only (Scale == 2^-Shift) and is kept
// so deployments without a multiplier can rescale with a plain shift.
type QParams struct {
	Scale     float32 `json:"scale"`
	ZeroPoint int32   `json:"zero_point"`
	Shift     int     `json:"shift,omitempty"`
}

// Quantize maps x to int8 with round-half-away-from-zero and saturation.
func (q QParams) Quantize(x float32) int8 {
	v := math.Round(float64(x)/float64(q.Scale)) + float64(q.ZeroPoint)
	return saturate(v)
}

// Dequantize maps v back to a real value.
func (q QParams) Dequantize(v int8) float32 {
	return q.Scale * float32(int32(v)-q.ZeroPoint)
}

func saturate(v float64) int8 {
	if v < QMin {
		return QMin
	}
	if v > QMax {
		return QMax
	}
	return int8(v)
}

// Range is an observed [Min, Max] interval of real values.
type Range struct {
	Min float32 `json:"min" yaml:"min"`
	Max float32 `json:"max" yaml:"max"`
}

// Extend widens r to include x.
func (r *Range) Extend(x float32) {
	if x < r.Min {
		r.Min = x
	}
	if x > r.Max {
		r.Max = x
	}
}

// withZero widens the range so that zero is exactly representable.
func (r Range) withZero() Range {
	if r.Min > 0 {
		r.Min = 0
	}
	if r.Max < 0 {
		r.Max = 0
	}
	return r
}

// Scheme derives quantization parameters from an observed range.
type Scheme interface {
	Name() string
	Params(r Range) (QParams, error)
}

// Affine spreads [min, max] over all 256 codes: scale=(max-min)/255 with a
// zero point chosen so that min maps to -128 and max to 127.
type Affine struct{}

// Name implements Scheme.
func (Affine) Name() string { return "affine" }

// Params implements Scheme.
func (Affine) Params(r Range) (QParams, error) {
	if err := checkRange(r); err != nil {
		return QParams{}, err
	}
	r = r.withZero()
	if r.Max == r.Min {
		return QParams{Scale: 1, ZeroPoint: 0}, nil
	}
	scale := (float64(r.Max) - float64(r.Min)) / 255
	zp := math.Round(QMin - float64(r.Min)/scale)
	if zp < QMin {
		zp = QMin
	} else if zp > QMax {
		zp = QMax
	}
	return QParams{Scale: float32(scale), ZeroPoint: int32(zp)}, nil
}

// Symmetric uses zero point 0 and scale=max(|min|,|max|)/127.
type Symmetric struct{}

// Name implements Scheme.
func (Symmetric) Name() string { return "symmetric" }

// Params implements Scheme.
func (Symmetric) Params(r Range) (QParams, error) {
	if err := checkRange(r); err != nil {
		return QParams{}, err
	}
	bound := math.Max(math.Abs(float64(r.Min)), math.Abs(float64(r.Max)))
	if bound == 0 {
		return QParams{Scale: 1}, nil
	}
	return QParams{Scale: float32(bound / QMax)}, nil
}

// PowerOfTwo restricts the scale to 2^-shift, picking the smallest power of
// two interval that covers the range, centred on it.
type PowerOfTwo struct{}

// Name implements Scheme.
func (PowerOfTwo) Name() string { return "pow2" }

// Params implements Scheme.
func (PowerOfTwo) Params(r Range) (QParams, error) {
	if err := checkRange(r); err != nil {
		return QParams{}, err
	}
	if r.Min == 0 && r.Max == 0 {
		return QParams{Scale: 1, ZeroPoint: 0, Shift: 0}, nil
	}
	r = r.withZero()
	width := float64(r.Max) - float64(r.Min)

	// Smallest 2^n strictly greater than width, starting from 2^-24.
	bits := -24
	interval := math.Ldexp(1, bits)
	for interval <= width {
		interval *= 2
		bits++
	}
	if bits > 8+24 {
		return QParams{}, Errorf(UnsupportedConfiguration, "quant.pow2", "range %v too wide for 8 bit", r)
	}
	shift := 8 - bits
	newMin := float64(r.Min) - (interval-width)/2
	zp := math.Round(-newMin*math.Ldexp(1, shift)) + QMin
	if zp < QMin {
		zp = QMin
	} else if zp > QMax {
		zp = QMax
	}
	return QParams{Scale: float32(math.Ldexp(1, -shift)), ZeroPoint: int32(zp), Shift: shift}, nil
}

// SchemeByName resolves "affine", "symmetric" or "pow2".
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "", "affine":
		return Affine{}, nil
	case "symmetric":
		return Symmetric{}, nil
	case "pow2":
		return PowerOfTwo{}, nil
	default:
		return nil, Errorf(UnsupportedConfiguration, "quant.scheme", "unknown scheme %q", name)
	}
}

func checkRange(r Range) error {
	if math.IsNaN(float64(r.Min)) || math.IsNaN(float64(r.Max)) ||
		math.IsInf(float64(r.Min), 0) || math.IsInf(float64(r.Max), 0) {
		return Errorf(NumericFailure, "quant.range", "non-finite range %v", r)
	}
	if r.Min > r.Max {
		return Errorf(UnsupportedConfiguration, "quant.range", "min %g greater than max %g", r.Min, r.Max)
	}
	return nil
}

// QuantizeTensor writes quantize(src) into dst using dst's QParams.
func QuantizeTensor(src, dst *Tensor) error {
	if src.dtype != Float32 || dst.dtype != Q7 || !src.shape.Equal(dst.shape) {
		return Errorf(ShapeMismatch, "tensor.quantize", "cannot quantize %s %v into %s %v", src.dtype, src.shape, dst.dtype, dst.shape)
	}
	in, out := src.Float32(), dst.Int8()
	for i, x := range in {
		out[i] = dst.q.Quantize(x)
	}
	return nil
}

// DequantizeTensor writes dequantize(src) into dst.
func DequantizeTensor(src, dst *Tensor) error {
	if src.dtype != Q7 || dst.dtype != Float32 || !src.shape.Equal(dst.shape) {
		return Errorf(ShapeMismatch, "tensor.dequantize", "cannot dequantize %s %v into %s %v", src.dtype, src.shape, dst.dtype, dst.shape)
	}
	in, out := src.Int8(), dst.Float32()
	for i, v := range in {
		out[i] = src.q.Dequantize(v)
	}
	return nil
}
