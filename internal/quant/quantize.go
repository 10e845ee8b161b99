package quant

import (
	"fmt"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Result is a quantized model together with its packed parameter buffer.
type Result struct {
	Model  *nn.QModel
	Params []byte // Packed int8 weights, int32 biases and lookup tables
	Scheme string
	Ranges Ranges
}

// Input returns the quantization of the model input.
func (r *Result) Input() tensor.QParams { return r.Model.InputParams() }

// Layers returns the per-layer quantization parameters.
func (r *Result) Layers() []nn.LayerQuant { return r.Model.Params() }

// PackedSize returns the packed parameter bytes m needs once quantized.
func PackedSize(m *nn.Model) int {
	total := 0
	for _, l := range m.Layers() {
		total += tensor.Align(l.QuantizedBytes())
	}
	return total
}

// Quantize converts m using the given ranges. A nil scheme selects Affine.
//
// Each layer reads the QParams of the previous layer's output, so the whole
// chain stays in int8 between layers. Softmax outputs always use
// nn.SoftmaxOutput regardless of their calibrated range.
func Quantize(m *nn.Model, ranges Ranges, scheme tensor.Scheme) (*Result, error) {
	if !m.Initialized() {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "quant.quantize", "model has no trained parameters")
	}
	layers := m.Layers()
	if len(ranges.Layers) != len(layers) {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "quant.quantize", "%d ranges for %d layers", len(ranges.Layers), len(layers))
	}
	if scheme == nil {
		scheme = tensor.Affine{}
	}

	inQ, err := scheme.Params(ranges.Input)
	if err != nil {
		return nil, fmt.Errorf("quantize input: %w", err)
	}

	buf := make([]byte, PackedSize(m))
	metas := make([]nn.LayerQuant, len(layers))
	prev := inQ
	offset := 0
	for i, l := range layers {
		outQ, err := scheme.Params(ranges.Layers[i])
		if err != nil {
			return nil, fmt.Errorf("quantize layer %d (%s): %w", i, l.Kind(), err)
		}
		size := l.QuantizedBytes()
		ql, err := l.Quantize(prev, outQ, scheme, buf[offset:offset+size])
		if err != nil {
			return nil, fmt.Errorf("quantize layer %d (%s): %w", i, l.Kind(), err)
		}
		metas[i] = ql.Params()
		prev = metas[i].Output
		offset += tensor.Align(size)
	}

	qm, err := nn.NewQModel(m.Inputs(), inQ, metas)
	if err != nil {
		return nil, err
	}
	if err := qm.Bind(buf); err != nil {
		return nil, err
	}
	return &Result{Model: qm, Params: buf, Scheme: scheme.Name(), Ranges: ranges}, nil
}

// CalibrateAndQuantize runs Calibrate over x and then Quantize.
func CalibrateAndQuantize(m *nn.Model, x *tensor.Tensor, scheme tensor.Scheme) (*Result, error) {
	ranges, err := Calibrate(m, x)
	if err != nil {
		return nil, err
	}
	return Quantize(m, ranges, scheme)
}

// Load rebuilds a bound QModel from stored quantization parameters and a
// packed buffer.
func Load(inputs int, input tensor.QParams, metas []nn.LayerQuant, params []byte) (*nn.QModel, error) {
	qm, err := nn.NewQModel(inputs, input, metas)
	if err != nil {
		return nil, err
	}
	if err := qm.Bind(params); err != nil {
		return nil, err
	}
	return qm, nil
}
