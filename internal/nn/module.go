// Package nn implements the layers and models of the engine.
//
// This package provides:
//   - Layer interface: Common contract for every layer variant
//   - Dense: Fully connected layer with weights [in, out] and bias [out]
//   - Activations: ReLU, LeakyReLU, ELU, Sigmoid, Softmax, Tanh, Softsign, Linear
//   - Model: Ordered layer chain bound to a caller-owned parameter buffer
//   - Executor: Forward and backward passes over a planned arena
//   - Loss functions: MSE, CrossEntropy
//   - QLayer and QModel: Q7 fixed-point counterparts for deployment
//
// Layers never allocate while running. Activations and gradients are tensor
// views into an arena laid out by package plan; parameters are views into a
// flat float32 buffer supplied by the caller.
package nn

import (
	"math/rand"

	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Layer is one step of a feed-forward chain.
//
// Inputs and outputs are 2-D tensors [batch, features]. Backward must be
// called with the same in/out tensors that the preceding Forward used:
// layers keep no hidden state, every cached value lives in the arena.
type Layer interface {
	// Kind returns the layer variant.
	Kind() Kind

	// InFeatures returns the width of the input.
	InFeatures() int

	// OutFeatures returns the width of the output.
	OutFeatures() int

	// ParameterCount returns the number of float32 parameters the layer
	// occupies in the model's flat parameter buffer.
	ParameterCount() int

	// Parameters returns the layer's trainable parameters, empty for
	// activations.
	Parameters() []*Parameter

	// Needs reports which forward tensors Backward reads.
	Needs() (input, output bool)

	// Forward computes out from in.
	Forward(in, out *tensor.Tensor) error

	// Backward computes the input gradient dIn from the output gradient dOut
	// and accumulates parameter gradients. dIn may be nil for the first
	// layer of a model.
	Backward(in, out, dOut, dIn *tensor.Tensor) error

	// Initialize fills the layer's parameters.
	Initialize(init Init, rng *rand.Rand)

	// QuantizedBytes returns the size of the layer's region in a packed Q7
	// parameter buffer.
	QuantizedBytes() int

	// Quantize converts the layer for Q7 inference, writing its packed
	// parameters into buf. in and out are the calibrated quantization
	// parameters of the layer's input and output.
	Quantize(in, out tensor.QParams, scheme tensor.Scheme, buf []byte) (QLayer, error)
}

// bindable is implemented by layers that own parameters.
type bindable interface {
	bindParameters(values []float32, prefix string) error
	bindGradients(grads []float32) error
}

// checkForward validates a forward pair and returns the batch size.
func checkForward(op string, in, out *tensor.Tensor, inF, outF int) (int, error) {
	if in == nil || out == nil {
		return 0, tensor.Errorf(tensor.InvalidState, op, "nil tensor")
	}
	if in.DType() != tensor.Float32 || out.DType() != tensor.Float32 {
		return 0, tensor.Errorf(tensor.ShapeMismatch, op, "expected float32 tensors, got %s and %s", in.DType(), out.DType())
	}
	is, os := in.Shape(), out.Shape()
	if len(is) != 2 || is[1] != inF {
		return 0, tensor.Errorf(tensor.ShapeMismatch, op, "input shape %v, want [batch, %d]", is, inF)
	}
	if len(os) != 2 || os[1] != outF || os[0] != is[0] {
		return 0, tensor.Errorf(tensor.ShapeMismatch, op, "output shape %v, want [%d, %d]", os, is[0], outF)
	}
	return is[0], nil
}

// checkBackward validates the gradients of a backward call.
func checkBackward(op string, out, dOut, dIn, in *tensor.Tensor) error {
	if dOut == nil || !dOut.Shape().Equal(out.Shape()) {
		return tensor.Errorf(tensor.ShapeMismatch, op, "output gradient must match output shape %v", out.Shape())
	}
	if dIn != nil && !dIn.Shape().Equal(in.Shape()) {
		return tensor.Errorf(tensor.ShapeMismatch, op, "input gradient %v must match input shape %v", dIn.Shape(), in.Shape())
	}
	return nil
}
