package nn

import (
	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Executor runs a Model over a caller-owned arena.
//
// All activation and delta tensors are created once, as views into work at
// the offsets of a plan.Layout. Forward and Backward then run without
// allocating arena memory; batches smaller than the planned size use row
// views of the same regions.
type Executor struct {
	model  *Model
	layout plan.Layout
	batch  int
	acts   []*tensor.Tensor
	deltas []*tensor.Tensor

	input     *tensor.Tensor
	rows      int
	forwarded bool
}

// NewExecutor binds the layout's regions in work for batch rows.
//
// Returns BufferTooSmall if work is shorter than layout.Total and
// ShapeMismatch if the layout does not describe the model.
func NewExecutor(m *Model, layout plan.Layout, batch int, work []byte) (*Executor, error) {
	if batch <= 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.executor", "batch %d must be positive", batch)
	}
	if len(layout.Activations) != len(m.layers) {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.executor", "layout has %d activations, model has %d layers", len(layout.Activations), len(m.layers))
	}
	if err := layout.Check(work); err != nil {
		return nil, err
	}

	e := &Executor{model: m, layout: layout, batch: batch}
	var err error
	e.acts, err = bindViews(m, layout.Activations, batch, work)
	if err != nil {
		return nil, err
	}
	if layout.Mode == plan.ModeTraining {
		e.deltas, err = bindViews(m, layout.Deltas, batch, work)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func bindViews(m *Model, regions []Region, batch int, work []byte) ([]*tensor.Tensor, error) {
	views := make([]*tensor.Tensor, len(regions))
	for i, r := range regions {
		shape := tensor.Shape{batch, m.layers[i].OutFeatures()}
		t, err := tensor.View(shape, tensor.Float32, work[r.Offset:r.End()])
		if err != nil {
			return nil, err
		}
		views[i] = t
	}
	return views, nil
}

// Region is re-exported for callers that only import nn.
type Region = plan.Region

// Layout returns the bound layout.
func (e *Executor) Layout() plan.Layout { return e.layout }

// Batch returns the planned batch size.
func (e *Executor) Batch() int { return e.batch }

// rowsOf returns the first rows rows of a planned buffer.
func (e *Executor) rowsOf(t *tensor.Tensor, rows int) (*tensor.Tensor, error) {
	if rows == e.batch {
		return t, nil
	}
	return t.Rows(0, rows)
}

// Forward runs every layer on input, whose row count must be between 1 and
// the planned batch size. The returned tensor is a view of the last
// activation and is overwritten by the next call.
func (e *Executor) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	e.forwarded = false
	if !e.model.bound {
		return nil, tensor.Errorf(tensor.InvalidState, "nn.forward", "parameters not bound")
	}
	s := input.Shape()
	if input.DType() != tensor.Float32 || len(s) != 2 || s[1] != e.model.inputs || s[0] < 1 || s[0] > e.batch {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.forward", "input %s %v, want float32 [1..%d, %d]", input.DType(), s, e.batch, e.model.inputs)
	}

	rows := s[0]
	in := input
	for i, l := range e.model.layers {
		out, err := e.rowsOf(e.acts[i], rows)
		if err != nil {
			return nil, err
		}
		if err := l.Forward(in, out); err != nil {
			return nil, err
		}
		in = out
	}
	e.input = input
	e.rows = rows
	e.forwarded = true
	return in, nil
}

// Output returns the last activation of the most recent Forward.
func (e *Executor) Output() (*tensor.Tensor, error) {
	return e.rowsOf(e.acts[len(e.acts)-1], max(e.rows, 1))
}

// Loss evaluates loss on the most recent Forward.
func (e *Executor) Loss(loss Loss, target *tensor.Tensor) (float32, error) {
	if !e.forwarded {
		return 0, tensor.Errorf(tensor.InvalidState, "nn.loss", "no forward pass to score")
	}
	pred, err := e.Output()
	if err != nil {
		return 0, err
	}
	if err := checkTarget("nn.loss", pred, target); err != nil {
		return 0, err
	}
	return loss.Value(pred, target), nil
}

// Backward seeds the output gradient from loss and target and propagates it
// through every layer, accumulating parameter gradients.
//
// Valid once per Forward: calling it without a matching Forward, or twice,
// returns InvalidState.
func (e *Executor) Backward(loss Loss, target *tensor.Tensor) error {
	if e.layout.Mode != plan.ModeTraining {
		return tensor.Errorf(tensor.InvalidState, "nn.backward", "executor planned for inference")
	}
	if !e.forwarded {
		return tensor.Errorf(tensor.InvalidState, "nn.backward", "backward without a preceding forward")
	}
	e.forwarded = false

	n := len(e.model.layers)
	pred, err := e.Output()
	if err != nil {
		return err
	}
	if err := checkTarget("nn.backward", pred, target); err != nil {
		return err
	}
	seed, err := e.rowsOf(e.deltas[n-1], e.rows)
	if err != nil {
		return err
	}
	loss.Gradient(pred, target, seed)

	for i := n - 1; i >= 0; i-- {
		in, out, dOut, dIn, err := e.backwardViews(i)
		if err != nil {
			return err
		}

		if i == n-1 && loss.Fused() {
			if dIn != nil {
				kernel.LinearGrad(dOut.Float32(), dIn.Float32())
			}
			continue
		}
		if err := e.model.layers[i].Backward(in, out, dOut, dIn); err != nil {
			return err
		}
	}
	return nil
}

// backwardViews returns layer i's forward input and output and the deltas
// on both sides, trimmed to the rows of the last Forward. dIn is nil for
// the first layer.
func (e *Executor) backwardViews(i int) (in, out, dOut, dIn *tensor.Tensor, err error) {
	in = e.input
	if i > 0 {
		if in, err = e.rowsOf(e.acts[i-1], e.rows); err != nil {
			return
		}
		if dIn, err = e.rowsOf(e.deltas[i-1], e.rows); err != nil {
			return
		}
	}
	if out, err = e.rowsOf(e.acts[i], e.rows); err != nil {
		return
	}
	dOut, err = e.rowsOf(e.deltas[i], e.rows)
	return
}

func checkTarget(op string, pred, target *tensor.Tensor) error {
	if target == nil || target.DType() != tensor.Float32 || !target.Shape().Equal(pred.Shape()) {
		return tensor.Errorf(tensor.ShapeMismatch, op, "target must be float32 %v", pred.Shape())
	}
	return nil
}
