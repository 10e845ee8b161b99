package serialization

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// File is an in-memory .tfnn container.
type File struct {
	Header Header
	Data   []byte
}

// SetFloat stores m's topology and its float32 parameters.
func (f *File) SetFloat(m *nn.Model, params []float32) error {
	n := m.ParameterCount()
	if len(params) < n {
		return tensor.Errorf(tensor.BufferTooSmall, "serialization.set_float", "need %d parameters, got %d", n, len(params))
	}
	data := make([]byte, 4*n)
	for i, v := range params[:n] {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}

	f.Header.Payload = PayloadFloat32
	f.Header.Inputs = m.Inputs()
	f.Header.Layers = append([]nn.Spec(nil), m.Specs()...)
	f.Header.Quant = nil
	f.Header.Tensors = []TensorMeta{{
		Name:  TensorParameters,
		DType: DTypeFloat32,
		Shape: []int{n},
		Size:  int64(len(data)),
	}}
	f.Data = data
	return nil
}

// SetQ7 stores a quantized model and its packed parameter buffer.
func (f *File) SetQ7(q *nn.QModel, scheme string, ranges []tensor.Range, packed []byte) error {
	if len(packed) < q.ParameterBytes() {
		return tensor.Errorf(tensor.BufferTooSmall, "serialization.set_q7", "need %d packed bytes, got %d", q.ParameterBytes(), len(packed))
	}
	metas := q.Params()
	specs := make([]nn.Spec, len(metas))
	for i, meta := range metas {
		specs[i] = nn.Spec{Kind: meta.Kind, Alpha: meta.Alpha}
		if meta.Kind == nn.KindDense {
			specs[i].Units = meta.Out
		}
	}

	f.Header.Payload = PayloadQ7
	f.Header.Inputs = q.Inputs()
	f.Header.Layers = specs
	f.Header.Quant = &QuantMeta{
		Scheme: scheme,
		Input:  q.InputParams(),
		Layers: metas,
		Ranges: ranges,
	}
	f.Header.Tensors = []TensorMeta{{
		Name:  TensorQ7Parameters,
		DType: DTypeUint8,
		Shape: []int{q.ParameterBytes()},
		Size:  int64(q.ParameterBytes()),
	}}
	f.Data = append([]byte(nil), packed[:q.ParameterBytes()]...)
	return nil
}

// Tensor returns the bytes of the named tensor.
func (f *File) Tensor(name string) (TensorMeta, []byte, error) {
	for _, t := range f.Header.Tensors {
		if t.Name == name {
			if t.Offset < 0 || t.Size < 0 || t.Offset+t.Size > int64(len(f.Data)) {
				return t, nil, &ValidationError{Type: "out_of_bounds", Tensor: name, Details: "tensor outside data section", err: ErrOutOfBounds}
			}
			return t, f.Data[t.Offset : t.Offset+t.Size], nil
		}
	}
	return TensorMeta{}, nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
}

// Float rebuilds the float32 model. The returned parameters are bound to the
// model, which is marked initialized.
func (f *File) Float() (*nn.Model, []float32, error) {
	if f.Header.Payload != PayloadFloat32 {
		return nil, nil, fmt.Errorf("%w: %s", ErrWrongPayload, f.Header.Payload)
	}
	m, err := nn.NewModel(f.Header.Inputs, f.Header.Layers...)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild model: %w", err)
	}
	meta, data, err := f.Tensor(TensorParameters)
	if err != nil {
		return nil, nil, err
	}
	if meta.DType != DTypeFloat32 || len(data) != 4*m.ParameterCount() {
		return nil, nil, tensor.Errorf(tensor.ShapeMismatch, "serialization.float", "%s tensor of %d bytes, model needs %d float32 values", meta.DType, len(data), m.ParameterCount())
	}
	params := make([]float32, m.ParameterCount())
	for i := range params {
		params[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	if err := m.BindParameters(params); err != nil {
		return nil, nil, err
	}
	m.MarkInitialized()
	return m, params, nil
}

// Q7 rebuilds the quantized model bound to a copy of the packed buffer.
func (f *File) Q7() (*nn.QModel, []byte, error) {
	if f.Header.Payload != PayloadQ7 || f.Header.Quant == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrWrongPayload, f.Header.Payload)
	}
	q, err := nn.NewQModel(f.Header.Inputs, f.Header.Quant.Input, f.Header.Quant.Layers)
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild q7 model: %w", err)
	}
	meta, data, err := f.Tensor(TensorQ7Parameters)
	if err != nil {
		return nil, nil, err
	}
	if meta.DType != DTypeUint8 || len(data) != q.ParameterBytes() {
		return nil, nil, tensor.Errorf(tensor.ShapeMismatch, "serialization.q7", "%s tensor of %d bytes, model needs %d", meta.DType, len(data), q.ParameterBytes())
	}
	packed := append([]byte(nil), data...)
	if err := q.Bind(packed); err != nil {
		return nil, nil, err
	}
	return q, packed, nil
}
