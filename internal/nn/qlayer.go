package nn

import (
	"unsafe"

	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// LayerQuant holds everything a Q7 layer needs besides its packed buffer
// region. A slice of LayerQuant, one per layer, is the serializable form of
// a model's quantization parameters.
type LayerQuant struct {
	Kind       Kind              `json:"kind"`
	In         int               `json:"in"`
	Out        int               `json:"out"`
	Alpha      float32           `json:"alpha,omitempty"`
	Input      tensor.QParams    `json:"input"`
	Output     tensor.QParams    `json:"output"`
	Weight     tensor.QParams    `json:"weight,omitempty"`
	Multiplier kernel.Multiplier `json:"multiplier,omitempty"`
	Bytes      int               `json:"bytes"` // Size of the layer's packed region
}

// QLayer is the Q7 fixed-point counterpart of a Layer. It only runs forward.
type QLayer interface {
	Kind() Kind
	InFeatures() int
	OutFeatures() int

	// Params returns the layer's quantization parameters.
	Params() LayerQuant

	// Bind points the layer at its region of a packed parameter buffer.
	Bind(buf []byte) error

	// Forward computes out from in. Both are Q7 tensors; out receives the
	// layer's output QParams.
	Forward(in, out *tensor.Tensor) error
}

// NewQLayer rebuilds an unbound Q7 layer from its parameters.
func NewQLayer(meta LayerQuant) (QLayer, error) {
	if meta.In <= 0 || meta.Out <= 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.qlayer", "invalid dimensions %dx%d", meta.In, meta.Out)
	}
	switch meta.Kind {
	case KindDense:
		meta.Bytes = tensor.Align(meta.In*meta.Out) + 4*meta.Out
		return &QDense{meta: meta}, nil
	case KindSoftmax:
		meta.Bytes = 256 * 4
		return &QSoftmax{meta: meta}, nil
	case KindReLU, KindLeakyReLU, KindELU, KindSigmoid, KindTanh, KindSoftsign, KindLinear:
		if meta.In != meta.Out {
			return nil, tensor.Errorf(tensor.ShapeMismatch, "nn.qlayer", "%s maps %d to %d features", meta.Kind, meta.In, meta.Out)
		}
		meta.Bytes = 256
		return &QLookup{meta: meta}, nil
	default:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.qlayer", "unsupported kind %d", meta.Kind)
	}
}

func checkQ7(op string, in, out *tensor.Tensor, inF, outF int) (int, error) {
	if in == nil || out == nil {
		return 0, tensor.Errorf(tensor.InvalidState, op, "nil tensor")
	}
	if in.DType() != tensor.Q7 || out.DType() != tensor.Q7 {
		return 0, tensor.Errorf(tensor.ShapeMismatch, op, "expected q7 tensors, got %s and %s", in.DType(), out.DType())
	}
	is, os := in.Shape(), out.Shape()
	if len(is) != 2 || is[1] != inF || len(os) != 2 || os[1] != outF || os[0] != is[0] {
		return 0, tensor.Errorf(tensor.ShapeMismatch, op, "shapes %v -> %v, want [n, %d] -> [n, %d]", is, os, inF, outF)
	}
	return is[0], nil
}

func int8View(buf []byte) []int8 {
	//nolint:gosec // reinterpret packed parameter bytes in place
	return unsafe.Slice((*int8)(unsafe.Pointer(&buf[0])), len(buf))
}

func int32View(buf []byte) []int32 {
	//nolint:gosec // reinterpret packed parameter bytes in place
	return unsafe.Slice((*int32)(unsafe.Pointer(&buf[0])), len(buf)/4)
}

func checkRegion(op string, buf []byte, need int) error {
	if len(buf) < need {
		return tensor.Errorf(tensor.BufferTooSmall, op, "need %d bytes, got %d", need, len(buf))
	}
	return nil
}

// QDense is a Q7 fully connected layer.
type QDense struct {
	meta LayerQuant
	w    []int8
	bias []int32
}

// Kind implements QLayer.
func (q *QDense) Kind() Kind { return KindDense }

// InFeatures implements QLayer.
func (q *QDense) InFeatures() int { return q.meta.In }

// OutFeatures implements QLayer.
func (q *QDense) OutFeatures() int { return q.meta.Out }

// Params implements QLayer.
func (q *QDense) Params() LayerQuant { return q.meta }

// Weights returns the bound int8 weights [in, out].
func (q *QDense) Weights() []int8 { return q.w }

// Biases returns the bound int32 biases.
func (q *QDense) Biases() []int32 { return q.bias }

// Bind implements QLayer.
func (q *QDense) Bind(buf []byte) error {
	if err := checkRegion("nn.qdense.bind", buf, q.meta.Bytes); err != nil {
		return err
	}
	nw := q.meta.In * q.meta.Out
	off := tensor.Align(nw)
	q.w = int8View(buf[:nw])
	q.bias = int32View(buf[off : off+4*q.meta.Out])
	return nil
}

// Forward implements QLayer.
func (q *QDense) Forward(in, out *tensor.Tensor) error {
	rows, err := checkQ7("nn.qdense.forward", in, out, q.meta.In, q.meta.Out)
	if err != nil {
		return err
	}
	if q.w == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.qdense.forward", "parameters not bound")
	}
	m := q.meta
	kernel.DenseQ7(in.Int8(), m.Input.ZeroPoint, q.w, m.Weight.ZeroPoint, q.bias,
		out.Int8(), m.Output.ZeroPoint, m.Multiplier, rows, m.In, m.Out)
	out.SetQuant(m.Output)
	return nil
}

// QLookup is a Q7 element-wise activation driven by a 256-entry table.
type QLookup struct {
	meta  LayerQuant
	table *[256]int8
}

// Kind implements QLayer.
func (q *QLookup) Kind() Kind { return q.meta.Kind }

// InFeatures implements QLayer.
func (q *QLookup) InFeatures() int { return q.meta.In }

// OutFeatures implements QLayer.
func (q *QLookup) OutFeatures() int { return q.meta.Out }

// Params implements QLayer.
func (q *QLookup) Params() LayerQuant { return q.meta }

// Bind implements QLayer.
func (q *QLookup) Bind(buf []byte) error {
	if err := checkRegion("nn.qlookup.bind", buf, 256); err != nil {
		return err
	}
	q.table = (*[256]int8)(int8View(buf[:256]))
	return nil
}

// Forward implements QLayer.
func (q *QLookup) Forward(in, out *tensor.Tensor) error {
	if _, err := checkQ7("nn.qlookup.forward", in, out, q.meta.In, q.meta.Out); err != nil {
		return err
	}
	if q.table == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.qlookup.forward", "table not bound")
	}
	kernel.LookupQ7(in.Int8(), q.table, out.Int8())
	out.SetQuant(q.meta.Output)
	return nil
}

// QSoftmax is a Q7 softmax.
type QSoftmax struct {
	meta  LayerQuant
	table *[256]int32
}

// Kind implements QLayer.
func (q *QSoftmax) Kind() Kind { return KindSoftmax }

// InFeatures implements QLayer.
func (q *QSoftmax) InFeatures() int { return q.meta.In }

// OutFeatures implements QLayer.
func (q *QSoftmax) OutFeatures() int { return q.meta.Out }

// Params implements QLayer.
func (q *QSoftmax) Params() LayerQuant { return q.meta }

// Bind implements QLayer.
func (q *QSoftmax) Bind(buf []byte) error {
	if err := checkRegion("nn.qsoftmax.bind", buf, 256*4); err != nil {
		return err
	}
	q.table = (*[256]int32)(int32View(buf[:256*4]))
	return nil
}

// Forward implements QLayer.
func (q *QSoftmax) Forward(in, out *tensor.Tensor) error {
	rows, err := checkQ7("nn.qsoftmax.forward", in, out, q.meta.In, q.meta.Out)
	if err != nil {
		return err
	}
	if q.table == nil {
		return tensor.Errorf(tensor.InvalidState, "nn.qsoftmax.forward", "table not bound")
	}
	kernel.SoftmaxQ7(in.Int8(), q.table, out.Int8(), rows, q.meta.In)
	out.SetQuant(q.meta.Output)
	return nil
}
