package nn

import (
	"strings"

	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// LossKind selects a training loss.
type LossKind int

// Loss kinds.
const (
	LossMSE LossKind = iota
	LossCrossEntropy
)

// String returns the loss name.
func (k LossKind) String() string {
	switch k {
	case LossMSE:
		return "mse"
	case LossCrossEntropy:
		return "cross_entropy"
	default:
		return "unknown"
	}
}

// ParseLossKind converts "mse" or "cross_entropy" into a LossKind.
func ParseLossKind(s string) (LossKind, error) {
	switch strings.ToLower(s) {
	case "mse":
		return LossMSE, nil
	case "cross_entropy", "crossentropy", "ce":
		return LossCrossEntropy, nil
	default:
		return 0, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.parse_loss", "unknown loss %q", s)
	}
}

// Loss scores predictions against targets and seeds the backward pass.
type Loss interface {
	Kind() LossKind

	// Value returns the batch-mean loss.
	Value(pred, target *tensor.Tensor) float32

	// Gradient writes the gradient that enters the output layer's backward
	// pass into grad.
	Gradient(pred, target, grad *tensor.Tensor)

	// Fused reports whether Gradient already accounts for the output
	// activation, i.e. grad is taken with respect to its input.
	Fused() bool
}

// NewLoss returns the loss for kind, checked against the model's output
// layer.
//
// A Softmax output requires CrossEntropy. CrossEntropy requires a Softmax
// output (categorical) or a Sigmoid output (binary); in both cases the
// gradient is fused into p - t.
func NewLoss(kind LossKind, m *Model) (Loss, error) {
	last := m.Last().Kind()
	switch kind {
	case LossMSE:
		if last == KindSoftmax {
			return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.new_loss", "softmax output requires cross_entropy loss")
		}
		return mseLoss{}, nil
	case LossCrossEntropy:
		switch last {
		case KindSoftmax:
			return crossEntropyLoss{}, nil
		case KindSigmoid:
			return crossEntropyLoss{binary: true}, nil
		default:
			return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.new_loss", "cross_entropy needs a softmax or sigmoid output, got %s", last)
		}
	default:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.new_loss", "unknown loss kind %d", kind)
	}
}

// mseLoss is mean((p-t)^2) over all elements.
type mseLoss struct{}

func (mseLoss) Kind() LossKind { return LossMSE }
func (mseLoss) Fused() bool { return false }

func (mseLoss) Value(pred, target *tensor.Tensor) float32 {
	return kernel.MSE(pred.Float32(), target.Float32())
}

func (mseLoss) Gradient(pred, target, grad *tensor.Tensor) {
	kernel.MSEGrad(pred.Float32(), target.Float32(), grad.Float32())
}

// crossEntropyLoss is the row-mean cross-entropy.
type crossEntropyLoss struct {
	binary bool
}

func (crossEntropyLoss) Kind() LossKind { return LossCrossEntropy }
func (crossEntropyLoss) Fused() bool { return true }

func (c crossEntropyLoss) Value(pred, target *tensor.Tensor) float32 {
	rows := pred.Shape().Rows()
	if c.binary {
		return kernel.BinaryCrossEntropy(pred.Float32(), target.Float32(), rows)
	}
	return kernel.CrossEntropy(pred.Float32(), target.Float32(), rows)
}

func (crossEntropyLoss) Gradient(pred, target, grad *tensor.Tensor) {
	kernel.FusedCrossEntropyGrad(pred.Float32(), target.Float32(), grad.Float32(), pred.Shape().Rows())
}
