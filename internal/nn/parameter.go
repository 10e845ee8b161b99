package nn

import (
	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Parameter represents a trainable tensor and its gradient.
//
// Both are views: Value into the caller's flat parameter buffer, Grad into
// the gradient region of the training arena. Grad is nil until the model is
// bound for training.
type Parameter struct {
	name  string
	value *tensor.Tensor
	grad  *tensor.Tensor
}

// Name returns the parameter name (e.g., "0.weight").
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter tensor.
func (p *Parameter) Value() *tensor.Tensor {
	return p.value
}

// Grad returns the gradient tensor, or nil if none is bound.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// NumElements returns the number of scalar parameters.
func (p *Parameter) NumElements() int {
	return p.value.NumElements()
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	if p.grad != nil {
		kernel.Fill(p.grad.Float32(), 0)
	}
}
