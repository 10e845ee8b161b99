package quant

import (
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// QuantizeInput converts a float32 batch into a Q7 tensor with the model's
// input QParams.
func QuantizeInput(q *nn.QModel, x *tensor.Tensor) (*tensor.Tensor, error) {
	s := x.Shape()
	if x.DType() != tensor.Float32 || len(s) != 2 || s[1] != q.Inputs() {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "quant.quantize_input", "input %s %v, want float32 [N, %d]", x.DType(), s, q.Inputs())
	}
	out, err := tensor.Zeros(s, tensor.Q7)
	if err != nil {
		return nil, err
	}
	out.SetQuant(q.InputParams())
	if err := tensor.QuantizeTensor(x, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dequantize converts a Q7 tensor back to float32 using its own QParams.
func Dequantize(t *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Zeros(t.Shape(), tensor.Float32)
	if err != nil {
		return nil, err
	}
	if err := tensor.DequantizeTensor(t, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Inference runs one integer-only forward pass of q over input, a Q7 batch
// quantized with q.InputParams(), using work as the activation arena.
// The result is a view into work.
func Inference(q *nn.QModel, input *tensor.Tensor, work []byte) (*tensor.Tensor, error) {
	s := input.Shape()
	if len(s) != 2 || s[0] == 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "quant.inference", "input shape %v, want [N, %d]", s, q.Inputs())
	}
	batch := s[0]
	exec, err := nn.NewQExecutor(q, q.PlanInference(batch), batch, work)
	if err != nil {
		return nil, err
	}
	return exec.Forward(input)
}
