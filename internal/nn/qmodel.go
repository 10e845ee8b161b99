package nn

import (
	"fmt"

	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// QModel is the Q7 form of a Model.
//
// Like Model it owns no tensor memory: Bind points its layers at a packed
// parameter buffer whose layout is fixed by the per-layer LayerQuant
// records, each region starting at an aligned offset.
type QModel struct {
	inputs int
	input  tensor.QParams
	layers []QLayer
	bytes  int
	bound  bool
}

// NewQModel rebuilds a Q7 model from its quantization parameters.
func NewQModel(inputs int, input tensor.QParams, metas []LayerQuant) (*QModel, error) {
	if inputs <= 0 || len(metas) == 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.new_qmodel", "invalid topology: %d inputs, %d layers", inputs, len(metas))
	}
	q := &QModel{inputs: inputs, input: input}
	width := inputs
	for i, meta := range metas {
		if meta.In != width {
			return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.new_qmodel", "layer %d expects %d inputs, previous width is %d", i, meta.In, width)
		}
		l, err := NewQLayer(meta)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		q.layers = append(q.layers, l)
		q.bytes += tensor.Align(l.Params().Bytes)
		width = meta.Out
	}
	return q, nil
}

// Inputs returns the input width.
func (q *QModel) Inputs() int { return q.inputs }

// Outputs returns the output width.
func (q *QModel) Outputs() int { return q.layers[len(q.layers)-1].OutFeatures() }

// InputParams returns the quantization of the model input.
func (q *QModel) InputParams() tensor.QParams { return q.input }

// OutputParams returns the quantization of the model output.
func (q *QModel) OutputParams() tensor.QParams { return q.layers[len(q.layers)-1].Params().Output }

// Layers returns the Q7 layer chain.
func (q *QModel) Layers() []QLayer { return q.layers }

// ParameterBytes returns the size of the packed parameter buffer.
func (q *QModel) ParameterBytes() int { return q.bytes }

// Params returns the per-layer quantization parameters.
func (q *QModel) Params() []LayerQuant {
	metas := make([]LayerQuant, len(q.layers))
	for i, l := range q.layers {
		metas[i] = l.Params()
	}
	return metas
}

// Bind points every layer at its region of buf.
func (q *QModel) Bind(buf []byte) error {
	if len(buf) < q.bytes {
		return tensor.Errorf(tensor.BufferTooSmall, "nn.qmodel.bind", "need %d bytes, got %d", q.bytes, len(buf))
	}
	offset := 0
	for _, l := range q.layers {
		size := l.Params().Bytes
		if err := l.Bind(buf[offset : offset+size]); err != nil {
			return err
		}
		offset += tensor.Align(size)
	}
	q.bound = true
	return nil
}

// PlanInference returns the int8 inference layout for batch rows.
func (q *QModel) PlanInference(batch int) plan.Layout {
	nodes := make([]plan.Node, len(q.layers))
	for i, l := range q.layers {
		nodes[i] = plan.Node{Bytes: batch * l.OutFeatures() * tensor.Q7.Size()}
	}
	return plan.Inference(nodes)
}

// InferenceMemory returns the arena bytes needed for batch rows.
func (q *QModel) InferenceMemory(batch int) int {
	return q.PlanInference(batch).Total
}

// QExecutor runs a QModel over a caller-owned arena.
type QExecutor struct {
	model *QModel
	batch int
	acts  []*tensor.Tensor
}

// NewQExecutor binds the layout's regions in work for batch rows.
func NewQExecutor(q *QModel, layout plan.Layout, batch int, work []byte) (*QExecutor, error) {
	if batch <= 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.qexecutor", "batch %d must be positive", batch)
	}
	if len(layout.Activations) != len(q.layers) {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.qexecutor", "layout has %d activations, model has %d layers", len(layout.Activations), len(q.layers))
	}
	if err := layout.Check(work); err != nil {
		return nil, err
	}
	e := &QExecutor{model: q, batch: batch, acts: make([]*tensor.Tensor, len(q.layers))}
	for i, r := range layout.Activations {
		t, err := tensor.View(tensor.Shape{batch, q.layers[i].OutFeatures()}, tensor.Q7, work[r.Offset:r.End()])
		if err != nil {
			return nil, err
		}
		e.acts[i] = t
	}
	return e, nil
}

// Forward runs every Q7 layer on input. input must be a Q7 tensor quantized
// with the model's InputParams.
func (e *QExecutor) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !e.model.bound {
		return nil, tensor.Errorf(tensor.InvalidState, "nn.qforward", "parameters not bound")
	}
	s := input.Shape()
	if input.DType() != tensor.Q7 || len(s) != 2 || s[1] != e.model.inputs || s[0] < 1 || s[0] > e.batch {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.qforward", "input %s %v, want q7 [1..%d, %d]", input.DType(), s, e.batch, e.model.inputs)
	}

	rows := s[0]
	in := input
	for i, l := range e.model.layers {
		out := e.acts[i]
		if rows != e.batch {
			var err error
			if out, err = out.Rows(0, rows); err != nil {
				return nil, err
			}
		}
		if err := l.Forward(in, out); err != nil {
			return nil, err
		}
		in = out
	}
	return in, nil
}
