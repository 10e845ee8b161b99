package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// pointwise carries what every element-wise activation shares: a width and
// no parameters. Q7 variants are a 256-entry lookup table.
type pointwise struct {
	kind     Kind
	features int
}

func (p pointwise) Kind() Kind { return p.kind }
func (p pointwise) InFeatures() int { return p.features }
func (p pointwise) OutFeatures() int { return p.features }
func (p pointwise) ParameterCount() int { return 0 }
func (p pointwise) Parameters() []*Parameter { return nil }
func (p pointwise) Initialize(Init, *rand.Rand) {}
func (p pointwise) QuantizedBytes() int { return 256 }

func (p pointwise) forward(in, out *tensor.Tensor, f func(x, y []float32)) error {
	if _, err := checkForward("nn."+p.kind.String()+".forward", in, out, p.features, p.features); err != nil {
		return err
	}
	f(in.Float32(), out.Float32())
	return nil
}

func (p pointwise) backward(in, out, dOut, dIn *tensor.Tensor) (bool, error) {
	op := "nn." + p.kind.String() + ".backward"
	if _, err := checkForward(op, in, out, p.features, p.features); err != nil {
		return false, err
	}
	if err := checkBackward(op, out, dOut, dIn, in); err != nil {
		return false, err
	}
	return dIn != nil, nil
}

// lookup tabulates f over every int8 input code.
func (p pointwise) lookup(in, out tensor.QParams, buf []byte, f func(x, y []float32)) (QLayer, error) {
	var xs, ys [256]float32
	for i := range xs {
		xs[i] = in.Dequantize(int8(i - 128))
	}
	f(xs[:], ys[:])

	q := &QLookup{meta: LayerQuant{
		Kind:   p.kind,
		In:     p.features,
		Out:    p.features,
		Input:  in,
		Output: out,
		Bytes:  p.QuantizedBytes(),
	}}
	if err := q.Bind(buf); err != nil {
		return nil, err
	}
	for i, y := range ys {
		q.table[i] = out.Quantize(y)
	}
	return q, nil
}

// ReLU applies f(x) = max(0, x).
type ReLU struct{ pointwise }

// NewReLU creates a ReLU layer of the given width.
func NewReLU(features int) *ReLU {
	return &ReLU{pointwise{KindReLU, features}}
}

// Needs implements Layer.
func (r *ReLU) Needs() (input, output bool) { return true, false }

// Forward implements Layer.
func (r *ReLU) Forward(in, out *tensor.Tensor) error {
	return r.forward(in, out, kernel.ReLU)
}

// Backward implements Layer.
func (r *ReLU) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := r.backward(in, out, dOut, dIn)
	if ok {
		kernel.ReLUGrad(in.Float32(), dOut.Float32(), dIn.Float32())
	}
	return err
}

// Quantize implements Layer.
func (r *ReLU) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	return r.lookup(in, out, buf, kernel.ReLU)
}

// LeakyReLU applies f(x) = x for x >= 0 and alpha*x otherwise.
type LeakyReLU struct {
	pointwise
	alpha float32
}

// NewLeakyReLU creates a LeakyReLU layer. alpha 0 selects DefaultLeakyAlpha.
func NewLeakyReLU(features int, alpha float32) *LeakyReLU {
	if alpha == 0 {
		alpha = DefaultLeakyAlpha
	}
	return &LeakyReLU{pointwise{KindLeakyReLU, features}, alpha}
}

// Alpha returns the negative slope.
func (l *LeakyReLU) Alpha() float32 { return l.alpha }

// Needs implements Layer.
func (l *LeakyReLU) Needs() (input, output bool) { return true, false }

func (l *LeakyReLU) apply(x, y []float32) { kernel.LeakyReLU(x, y, l.alpha) }

// Forward implements Layer.
func (l *LeakyReLU) Forward(in, out *tensor.Tensor) error {
	return l.forward(in, out, l.apply)
}

// Backward implements Layer.
func (l *LeakyReLU) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := l.backward(in, out, dOut, dIn)
	if ok {
		kernel.LeakyReLUGrad(in.Float32(), dOut.Float32(), dIn.Float32(), l.alpha)
	}
	return err
}

// Quantize implements Layer.
func (l *LeakyReLU) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	q, err := l.lookup(in, out, buf, l.apply)
	if err == nil {
		q.(*QLookup).meta.Alpha = l.alpha
	}
	return q, err
}

// ELU applies f(x) = x for x >= 0 and alpha*(exp(x)-1) otherwise.
type ELU struct {
	pointwise
	alpha float32
}

// NewELU creates an ELU layer. alpha 0 selects DefaultELUAlpha.
func NewELU(features int, alpha float32) *ELU {
	if alpha == 0 {
		alpha = DefaultELUAlpha
	}
	return &ELU{pointwise{KindELU, features}, alpha}
}

// Alpha returns the saturation value for negative inputs.
func (e *ELU) Alpha() float32 { return e.alpha }

// Needs implements Layer. The gradient for x < 0 is y + alpha.
func (e *ELU) Needs() (input, output bool) { return true, true }

func (e *ELU) apply(x, y []float32) { kernel.ELU(x, y, e.alpha) }

// Forward implements Layer.
func (e *ELU) Forward(in, out *tensor.Tensor) error {
	return e.forward(in, out, e.apply)
}

// Backward implements Layer.
func (e *ELU) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := e.backward(in, out, dOut, dIn)
	if ok {
		kernel.ELUGrad(in.Float32(), out.Float32(), dOut.Float32(), dIn.Float32(), e.alpha)
	}
	return err
}

// Quantize implements Layer.
func (e *ELU) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	q, err := e.lookup(in, out, buf, e.apply)
	if err == nil {
		q.(*QLookup).meta.Alpha = e.alpha
	}
	return q, err
}

// Sigmoid applies f(x) = 1 / (1 + exp(-x)).
type Sigmoid struct{ pointwise }

// NewSigmoid creates a Sigmoid layer.
func NewSigmoid(features int) *Sigmoid {
	return &Sigmoid{pointwise{KindSigmoid, features}}
}

// Needs implements Layer.
func (s *Sigmoid) Needs() (input, output bool) { return false, true }

// Forward implements Layer.
func (s *Sigmoid) Forward(in, out *tensor.Tensor) error {
	return s.forward(in, out, kernel.Sigmoid)
}

// Backward implements Layer.
func (s *Sigmoid) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := s.backward(in, out, dOut, dIn)
	if ok {
		kernel.SigmoidGrad(out.Float32(), dOut.Float32(), dIn.Float32())
	}
	return err
}

// Quantize implements Layer.
func (s *Sigmoid) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	return s.lookup(in, out, buf, kernel.Sigmoid)
}

// Tanh applies the hyperbolic tangent.
type Tanh struct{ pointwise }

// NewTanh creates a Tanh layer.
func NewTanh(features int) *Tanh {
	return &Tanh{pointwise{KindTanh, features}}
}

// Needs implements Layer.
func (t *Tanh) Needs() (input, output bool) { return false, true }

// Forward implements Layer.
func (t *Tanh) Forward(in, out *tensor.Tensor) error {
	return t.forward(in, out, kernel.Tanh)
}

// Backward implements Layer.
func (t *Tanh) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := t.backward(in, out, dOut, dIn)
	if ok {
		kernel.TanhGrad(out.Float32(), dOut.Float32(), dIn.Float32())
	}
	return err
}

// Quantize implements Layer.
func (t *Tanh) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	return t.lookup(in, out, buf, kernel.Tanh)
}

// Softsign applies f(x) = x / (1 + |x|).
type Softsign struct{ pointwise }

// NewSoftsign creates a Softsign layer.
func NewSoftsign(features int) *Softsign {
	return &Softsign{pointwise{KindSoftsign, features}}
}

// Needs implements Layer.
func (s *Softsign) Needs() (input, output bool) { return true, false }

// Forward implements Layer.
func (s *Softsign) Forward(in, out *tensor.Tensor) error {
	return s.forward(in, out, kernel.Softsign)
}

// Backward implements Layer.
func (s *Softsign) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := s.backward(in, out, dOut, dIn)
	if ok {
		kernel.SoftsignGrad(in.Float32(), dOut.Float32(), dIn.Float32())
	}
	return err
}

// Quantize implements Layer.
func (s *Softsign) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	return s.lookup(in, out, buf, kernel.Softsign)
}

// Linear is the identity activation.
type Linear struct{ pointwise }

// NewLinear creates an identity layer.
func NewLinear(features int) *Linear {
	return &Linear{pointwise{KindLinear, features}}
}

// Needs implements Layer.
func (l *Linear) Needs() (input, output bool) { return false, false }

// Forward implements Layer.
func (l *Linear) Forward(in, out *tensor.Tensor) error {
	return l.forward(in, out, kernel.Linear)
}

// Backward implements Layer.
func (l *Linear) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	ok, err := l.backward(in, out, dOut, dIn)
	if ok {
		kernel.LinearGrad(dOut.Float32(), dIn.Float32())
	}
	return err
}

// Quantize implements Layer.
func (l *Linear) Quantize(in, out tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	return l.lookup(in, out, buf, kernel.Linear)
}

// Softmax normalizes each row into a probability distribution.
//
// The Q7 variant keeps an exp table indexed by (max - x) and always outputs
// scale 1/256 with zero point -128.
type Softmax struct {
	features int
}

// SoftmaxOutput is the fixed quantization of Q7 softmax probabilities.
var SoftmaxOutput = tensor.QParams{Scale: 1.0 / 256, ZeroPoint: -128}

// NewSoftmax creates a Softmax layer.
func NewSoftmax(features int) *Softmax {
	return &Softmax{features: features}
}

// Kind implements Layer.
func (s *Softmax) Kind() Kind { return KindSoftmax }

// InFeatures implements Layer.
func (s *Softmax) InFeatures() int { return s.features }

// OutFeatures implements Layer.
func (s *Softmax) OutFeatures() int { return s.features }

// ParameterCount implements Layer.
func (s *Softmax) ParameterCount() int { return 0 }

// Parameters implements Layer.
func (s *Softmax) Parameters() []*Parameter { return nil }

// Needs implements Layer.
func (s *Softmax) Needs() (input, output bool) { return false, true }

// Initialize implements Layer.
func (s *Softmax) Initialize(Init, *rand.Rand) {}

// Forward implements Layer.
func (s *Softmax) Forward(in, out *tensor.Tensor) error {
	rows, err := checkForward("nn.softmax.forward", in, out, s.features, s.features)
	if err != nil {
		return err
	}
	kernel.Softmax(in.Float32(), out.Float32(), rows, s.features)
	return nil
}

// Backward implements Layer with the full Jacobian product
// dx = y * (dy - sum(dy*y)).
func (s *Softmax) Backward(in, out, dOut, dIn *tensor.Tensor) error {
	rows, err := checkForward("nn.softmax.backward", in, out, s.features, s.features)
	if err != nil {
		return err
	}
	if err := checkBackward("nn.softmax.backward", out, dOut, dIn, in); err != nil {
		return err
	}
	if dIn != nil {
		kernel.SoftmaxGrad(out.Float32(), dOut.Float32(), dIn.Float32(), rows, s.features)
	}
	return nil
}

// QuantizedBytes implements Layer: 256 int32 Q16 exp values.
func (s *Softmax) QuantizedBytes() int { return 256 * 4 }

// Quantize implements Layer. The requested output params are ignored in
// favour of SoftmaxOutput.
func (s *Softmax) Quantize(in, _ tensor.QParams, _ tensor.Scheme, buf []byte) (QLayer, error) {
	q := &QSoftmax{meta: LayerQuant{
		Kind:   KindSoftmax,
		In:     s.features,
		Out:    s.features,
		Input:  in,
		Output: SoftmaxOutput,
		Bytes:  s.QuantizedBytes(),
	}}
	if err := q.Bind(buf); err != nil {
		return nil, err
	}
	for d := range q.table {
		q.table[d] = int32(math.Round(math.Exp(-float64(d)*float64(in.Scale)) * (1 << 16)))
	}
	return q, nil
}
