// Package quant converts a trained float32 model into its Q7 fixed-point
// form.
//
// Quantization runs in two passes. Calibrate pushes a calibration set
// through the float model and records the real range of the model input and
// of every layer output. Quantize then derives QParams for each tensor with
// a tensor.Scheme and writes int8 weights, int32 biases and activation
// lookup tables into one packed parameter buffer.
//
// Both passes run offline on the host and may allocate. The resulting
// nn.QModel runs in a caller arena like its float counterpart.
package quant

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// DefaultCalibrationBatch bounds the rows pushed through the model at once.
const DefaultCalibrationBatch = 64

// Ranges are the observed real ranges of a model's tensors.
type Ranges struct {
	Input  tensor.Range   `json:"input" yaml:"input"`
	Layers []tensor.Range `json:"layers" yaml:"layers"` // Output of layer i
}

// Calibrate records the input range and every layer's output range over
// the rows of x.
//
// Returns UnsupportedConfiguration when the model holds no initialized or
// trained parameters and NumericFailure when a non-finite value appears.
func Calibrate(m *nn.Model, x *tensor.Tensor) (Ranges, error) {
	if !m.Initialized() {
		return Ranges{}, tensor.Errorf(tensor.UnsupportedConfiguration, "quant.calibrate", "model has no trained parameters")
	}
	s := x.Shape()
	if x.DType() != tensor.Float32 || len(s) != 2 || s[1] != m.Inputs() || s[0] == 0 {
		return Ranges{}, tensor.Errorf(tensor.ShapeMismatch, "quant.calibrate", "calibration set %s %v, want float32 [N, %d]", x.DType(), s, m.Inputs())
	}

	rows := s[0]
	batch := min(rows, DefaultCalibrationBatch)
	layers := m.Layers()

	// Calibration needs every intermediate tensor, which the ping-pong
	// inference arena does not keep, so each layer gets its own buffer.
	acts := make([]*tensor.Tensor, len(layers))
	for i, l := range layers {
		t, err := tensor.Zeros(tensor.Shape{batch, l.OutFeatures()}, tensor.Float32)
		if err != nil {
			return Ranges{}, err
		}
		acts[i] = t
	}

	obs := make([]observer, len(layers)+1)
	for from := 0; from < rows; from += batch {
		n := min(batch, rows-from)
		in, err := x.Rows(from, from+n)
		if err != nil {
			return Ranges{}, err
		}
		obs[0].observe(in.Float32())
		for i, l := range layers {
			out, err := acts[i].Rows(0, n)
			if err != nil {
				return Ranges{}, err
			}
			if err := l.Forward(in, out); err != nil {
				return Ranges{}, err
			}
			obs[i+1].observe(out.Float32())
			in = out
		}
	}

	r := Ranges{Layers: make([]tensor.Range, len(layers))}
	for i := range obs {
		rng, err := obs[i].result()
		if err != nil {
			return Ranges{}, err
		}
		if i == 0 {
			r.Input = rng
		} else {
			r.Layers[i-1] = rng
		}
	}
	return r, nil
}

// observer accumulates a running min/max.
type observer struct {
	lo, hi  float64
	seen    bool
	finite  bool
	scratch []float64
}

func (o *observer) observe(values []float32) {
	if len(values) == 0 {
		return
	}
	if cap(o.scratch) < len(values) {
		o.scratch = make([]float64, len(values))
	}
	buf := o.scratch[:len(values)]
	for i, v := range values {
		buf[i] = float64(v)
	}
	if !o.seen {
		o.lo, o.hi, o.seen, o.finite = buf[0], buf[0], true, true
	}
	o.finite = o.finite && !floats.HasNaN(buf) && !math.IsInf(floats.Norm(buf, math.Inf(1)), 0)
	o.lo = min(o.lo, floats.Min(buf))
	o.hi = max(o.hi, floats.Max(buf))
}

func (o *observer) result() (tensor.Range, error) {
	if !o.finite {
		return tensor.Range{}, tensor.Errorf(tensor.NumericFailure, "quant.calibrate", "non-finite activation observed")
	}
	return tensor.Range{Min: float32(o.lo), Max: float32(o.hi)}, nil
}
