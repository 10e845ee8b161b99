package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Dense implements a fully connected layer.
//
// Performs the transformation: y = x @ W + b
// where:
//   - x is the input tensor with shape [batch, in]
//   - W is the weight matrix with shape [in, out]
//   - b is the bias vector with shape [out]
//   - y is the output tensor with shape [batch, out]
//
// In the flat parameter buffer the layer occupies in*out weights followed by
// out biases.
type Dense struct {
	in     int
	out    int
	weight *Parameter
	bias   *Parameter
}

// NewDense creates an unbound Dense layer.
func NewDense(in, out int) (*Dense, error) {
	if in <= 0 || out <= 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.dense", "invalid dimensions %dx%d", in, out)
	}
	return &Dense{in: in, out: out}, nil
}

// Kind implements Layer.
func (d *Dense) Kind() Kind { return KindDense }

// InFeatures implements Layer.
func (d *Dense) InFeatures() int { return d.in }

// OutFeatures implements Layer.
func (d *Dense) OutFeatures() int { return d.out }

// ParameterCount implements Layer.
func (d *Dense) ParameterCount() int { return d.in*d.out + d.out }

// Needs implements Layer. The weight gradient needs the forward input.
func (d *Dense) Needs() (input, output bool) { return true, false }

// Weight returns the weight parameter, nil before binding.
func (d *Dense) Weight() *Parameter { return d.weight }

// Bias returns the bias parameter, nil before binding.
func (d *Dense) Bias() *Parameter { return d.bias }

// Parameters implements Layer.
func (d *Dense) Parameters() []*Parameter {
	if d.weight == nil {
		return nil
	}
	return []*Parameter{d.weight, d.bias}
}

func (d *Dense) bindParameters(values []float32, prefix string) error {
	if len(values) < d.ParameterCount() {
		return tensor.Errorf(tensor.BufferTooSmall, "nn.dense.bind", "need %d parameters, got %d", d.ParameterCount(), len(values))
	}
	w, err := tensor.ViewFloat32(tensor.Shape{d.in, d.out}, values[:d.in*d.out])
	if err != nil {
		return err
	}
	b, err := tensor.ViewFloat32(tensor.Shape{d.out}, values[d.in*d.out:d.ParameterCount()])
	if err != nil {
		return err
	}
	d.weight = &Parameter{name: prefix + "weight", value: w}
	d.bias = &Parameter{name: prefix + "bias", value: b}
	return nil
}

func (d *Dense) bindGradients(grads []float32) error {
	if d.weight == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.dense.bind_grad", "parameters not bound")
	}
	if len(grads) < d.ParameterCount() {
		return tensor.Errorf(tensor.BufferTooSmall, "nn.dense.bind_grad", "need %d gradients, got %d", d.ParameterCount(), len(grads))
	}
	gw, err := tensor.ViewFloat32(tensor.Shape{d.in, d.out}, grads[:d.in*d.out])
	if err != nil {
		return err
	}
	gb, err := tensor.ViewFloat32(tensor.Shape{d.out}, grads[d.in*d.out:d.ParameterCount()])
	if err != nil {
		return err
	}
	d.weight.grad = gw
	d.bias.grad = gb
	return nil
}

// Initialize implements Layer.
//
// Uniform draws weights and biases from [Min, Max). GlorotUniform draws
// weights from the Glorot range and zeroes the biases. InitNone keeps the
// buffer contents.
func (d *Dense) Initialize(init Init, rng *rand.Rand) {
	if d.weight == nil {
		return
	}
	switch init.Method {
	case InitUniform:
		lo, hi := init.bounds()
		fillUniform(d.weight.value.Float32(), lo, hi, rng)
		fillUniform(d.bias.value.Float32(), lo, hi, rng)
	case InitGlorotUniform:
		fillGlorot(d.weight.value.Float32(), d.in, d.out, rng)
		kernel.Fill(d.bias.value.Float32(), 0)
	case InitNone:
	}
}

// Forward implements Layer.
func (d *Dense) Forward(in, out *tensor.Tensor) error {
	rows, err := checkForward("nn.dense.forward", in, out, d.in, d.out)
	if err != nil {
		return err
	}
	if d.weight == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.dense.forward", "parameters not bound")
	}
	y := out.Float32()
	kernel.MatMul(in.Float32(), d.weight.value.Float32(), y, rows, d.in, d.out)
	kernel.AddRowVector(y, d.bias.value.Float32(), rows, d.out)
	return nil
}

// Backward implements Layer.
//
// Accumulates dW += x^T @ dOut and db += sum(dOut) and, if dIn is not nil,
// writes dIn = dOut @ W^T.
func (d *Dense) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	rows, err := checkForward("nn.dense.backward", in, out, d.in, d.out)
	if err != nil {
		return err
	}
	if err := checkBackward("nn.dense.backward", out, dOut, dIn, in); err != nil {
		return err
	}
	if d.weight == nil || d.weight.grad == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.dense.backward", "gradients not bound")
	}
	g := dOut.Float32()
	kernel.MatMulTransAAcc(in.Float32(), g, d.weight.grad.Float32(), rows, d.in, d.out)
	kernel.ColumnSumAcc(g, d.bias.grad.Float32(), rows, d.out)
	if dIn != nil {
		kernel.MatMulTransB(g, d.weight.value.Float32(), dIn.Float32(), rows, d.out, d.in)
	}
	return nil
}

// QuantizedBytes implements Layer: int8 weights, padded, then int32 biases.
func (d *Dense) QuantizedBytes() int {
	return tensor.Align(d.in*d.out) + 4*d.out
}

// Quantize implements Layer.
//
// Weights get their own QParams from the scheme. Biases are stored as int32
// with scale inScale*weightScale and zero point 0, so they add directly to
// the int32 accumulator.
func (d *Dense) Quantize(in, out tensor.QParams, scheme tensor.Scheme, buf []byte) (QLayer, error) {
	if d.weight == nil {
		return nil, tensor.Errorf(tensor.InvalidState, "nn.dense.quantize", "parameters not bound")
	}
	w := d.weight.value.Float32()
	r := tensor.Range{Min: w[0], Max: w[0]}
	for _, v := range w {
		r.Extend(v)
	}
	wq, err := scheme.Params(r)
	if err != nil {
		return nil, fmt.Errorf("quantize %s weights: %w", d.weight.name, err)
	}

	biasScale := float64(in.Scale) * float64(wq.Scale)
	mult, ok := kernel.NewMultiplier(biasScale / float64(out.Scale))
	if !ok {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.dense.quantize", "cannot rescale %g*%g/%g", in.Scale, wq.Scale, out.Scale)
	}

	q := &QDense{meta: LayerQuant{
		Kind:       KindDense,
		In:         d.in,
		Out:        d.out,
		Input:      in,
		Output:     out,
		Weight:     wq,
		Multiplier: mult,
		Bytes:      d.QuantizedBytes(),
	}}
	if err := q.Bind(buf); err != nil {
		return nil, err
	}
	for i, v := range w {
		q.w[i] = wq.Quantize(v)
	}
	for i, v := range d.bias.value.Float32() {
		q.bias[i] = roundInt32(float64(v) / biasScale)
	}
	return q, nil
}

func roundInt32(v float64) int32 {
	r := math.Round(v)
	if r > math.MaxInt32 {
		return math.MaxInt32
	}
	if r < math.MinInt32 {
		return math.MinInt32
	}
	return int32(r)
}
