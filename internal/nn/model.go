package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Model is an ordered chain of layers.
//
// The model owns no tensor memory. Parameters live in a flat float32 buffer
// bound with BindParameters, in layer order; for each Dense layer, in*out
// weights then out biases. Activations live in an arena planned by package
// plan and driven by an Executor.
//
// Example:
//
//	m, _ := nn.NewModel(2, nn.DenseOf(3), nn.Act(nn.KindSigmoid), nn.DenseOf(1))
//	params := make([]float32, m.ParameterCount())
//	_ = m.BindParameters(params)
//	_ = m.Initialize(nn.Init{Method: nn.InitGlorotUniform}, rand.New(rand.NewSource(1)))
type Model struct {
	inputs      int
	specs       []Spec
	layers      []Layer
	params      []*Parameter
	paramCount  int
	bound       bool
	initialized bool
}

// NewModel builds a model for inputs features from layer specs.
//
// Each layer's input width is the previous layer's output width. Returns a
// ShapeMismatch error for non-positive widths and UnsupportedConfiguration
// for an empty chain or an unknown layer kind.
func NewModel(inputs int, specs ...Spec) (*Model, error) {
	if inputs <= 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.new_model", "input width %d must be positive", inputs)
	}
	if len(specs) == 0 {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.new_model", "model has no layers")
	}

	m := &Model{inputs: inputs, specs: append([]Spec(nil), specs...)}
	width := inputs
	for i, s := range specs {
		layer, err := buildLayer(width, s)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, s, err)
		}
		m.layers = append(m.layers, layer)
		m.paramCount += layer.ParameterCount()
		width = layer.OutFeatures()
	}
	return m, nil
}

func buildLayer(in int, s Spec) (Layer, error) {
	switch s.Kind {
	case KindDense:
		return NewDense(in, s.Units)
	case KindReLU:
		return NewReLU(in), nil
	case KindLeakyReLU:
		return NewLeakyReLU(in, s.Alpha), nil
	case KindELU:
		return NewELU(in, s.Alpha), nil
	case KindSigmoid:
		return NewSigmoid(in), nil
	case KindSoftmax:
		return NewSoftmax(in), nil
	case KindTanh:
		return NewTanh(in), nil
	case KindSoftsign:
		return NewSoftsign(in), nil
	case KindLinear:
		return NewLinear(in), nil
	default:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.new_model", "unknown layer kind %d", s.Kind)
	}
}

// Inputs returns the input width.
func (m *Model) Inputs() int { return m.inputs }

// Outputs returns the width of the last layer.
func (m *Model) Outputs() int { return m.layers[len(m.layers)-1].OutFeatures() }

// Layers returns the layer chain.
func (m *Model) Layers() []Layer { return m.layers }

// Specs returns the specs the model was built from.
func (m *Model) Specs() []Spec { return m.specs }

// Last returns the output layer.
func (m *Model) Last() Layer { return m.layers[len(m.layers)-1] }

// ParameterCount returns the number of float32 values BindParameters needs.
func (m *Model) ParameterCount() int { return m.paramCount }

// Parameters returns all trainable parameters in buffer order.
// Empty until BindParameters has been called.
func (m *Model) Parameters() []*Parameter { return m.params }

// Structure returns the Dense widths, input width first, as accepted by
// FlatWeightsCount.
func (m *Model) Structure() []int {
	widths := []int{m.inputs}
	for _, l := range m.layers {
		if l.Kind() == KindDense {
			widths = append(widths, l.OutFeatures())
		}
	}
	return widths
}

// BindParameters points every layer at its slice of values.
// values must hold at least ParameterCount() elements.
func (m *Model) BindParameters(values []float32) error {
	if len(values) < m.paramCount {
		return tensor.Errorf(tensor.BufferTooSmall, "nn.bind_parameters", "need %d parameters, got %d", m.paramCount, len(values))
	}
	m.params = m.params[:0]
	offset := 0
	for i, l := range m.layers {
		b, ok := l.(bindable)
		if !ok {
			continue
		}
		n := l.ParameterCount()
		if err := b.bindParameters(values[offset:offset+n], fmt.Sprintf("%d.", i)); err != nil {
			return err
		}
		m.params = append(m.params, l.Parameters()...)
		offset += n
	}
	m.bound = true
	return nil
}

// BindGradients points every parameter's gradient at its slice of grads,
// laid out like the parameter buffer.
func (m *Model) BindGradients(grads []float32) error {
	if !m.bound {
		return tensor.Errorf(tensor.InvalidState, "nn.bind_gradients", "parameters not bound")
	}
	if len(grads) < m.paramCount {
		return tensor.Errorf(tensor.BufferTooSmall, "nn.bind_gradients", "need %d gradients, got %d", m.paramCount, len(grads))
	}
	offset := 0
	for _, l := range m.layers {
		b, ok := l.(bindable)
		if !ok {
			continue
		}
		n := l.ParameterCount()
		if err := b.bindGradients(grads[offset : offset+n]); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

// ZeroGrad clears every bound gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.params {
		p.ZeroGrad()
	}
}

// Initialize fills the bound parameters. InitNone only marks the model as
// holding usable weights.
func (m *Model) Initialize(init Init, rng *rand.Rand) error {
	if !m.bound {
		return tensor.Errorf(tensor.InvalidState, "nn.initialize", "parameters not bound")
	}
	if err := init.Validate(); err != nil {
		return err
	}
	for _, l := range m.layers {
		l.Initialize(init, rng)
	}
	m.initialized = true
	return nil
}

// Initialized reports whether the bound parameters hold initialized or
// trained weights.
func (m *Model) Initialized() bool { return m.bound && m.initialized }

// MarkInitialized flags externally loaded weights as usable.
func (m *Model) MarkInitialized() { m.initialized = true }

// Nodes describes the chain to the memory planner at the given batch size
// and element type.
func (m *Model) Nodes(batch int, dtype tensor.DataType) []plan.Node {
	nodes := make([]plan.Node, len(m.layers))
	for i, l := range m.layers {
		in, out := l.Needs()
		nodes[i] = plan.Node{
			Bytes:       batch * l.OutFeatures() * dtype.Size(),
			ReadsInput:  in,
			ReadsOutput: out,
		}
	}
	return nodes
}

// PlanInference returns the float32 inference layout for batch rows.
func (m *Model) PlanInference(batch int) plan.Layout {
	return plan.Inference(m.Nodes(batch, tensor.Float32))
}

// PlanTraining returns the training layout for batch rows. Extra run-long
// regions are appended after the transient part, see plan.Training.
//
// With a fused loss the output layer's backward only copies its gradient,
// so it reads neither of its forward tensors.
func (m *Model) PlanTraining(batch int, fused bool, persistent ...int) plan.Layout {
	nodes := m.Nodes(batch, tensor.Float32)
	if fused {
		nodes[len(nodes)-1].ReadsInput = false
		nodes[len(nodes)-1].ReadsOutput = false
	}
	return plan.Training(nodes, persistent...)
}

// InferenceMemory returns the arena bytes needed to run inference on batch
// rows.
func (m *Model) InferenceMemory(batch int) int {
	return m.PlanInference(batch).Total
}
