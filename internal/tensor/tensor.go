package tensor

import (
	"unsafe"
)

// Alignment is the byte alignment every view offset must respect.
// Float32 and Int32 data are reinterpreted in place, so 4 bytes suffices.
const Alignment = 4

// Align rounds n up to the next multiple of Alignment.
func Align(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Tensor is a shaped view over a contiguous byte buffer.
//
// The buffer length always equals Shape().NumElements()*DType().Size().
// Quantization parameters are only meaningful for Q7 and Int32 tensors.
type Tensor struct {
	shape Shape
	dtype DataType
	q     QParams
	data  []byte
}

// View creates a tensor that borrows buf. buf must hold at least
// shape.NumElements()*dtype.Size() bytes; only that prefix is used.
func View(shape Shape, dtype DataType, buf []byte) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	need := shape.NumElements() * dtype.Size()
	if len(buf) < need {
		return nil, Errorf(BufferTooSmall, "tensor.view", "need %d bytes for %s %v, got %d", need, dtype, shape, len(buf))
	}
	return &Tensor{shape: shape.Clone(), dtype: dtype, data: buf[:need:need]}, nil
}

// Zeros allocates an owned zero-filled tensor.
func Zeros(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		shape: shape.Clone(),
		dtype: dtype,
		data:  make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// FromFloat32 allocates a Float32 tensor and copies values into it.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	t, err := Zeros(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != shape.NumElements() {
		return nil, Errorf(ShapeMismatch, "tensor.from_float32", "shape %v needs %d values, got %d", shape, shape.NumElements(), len(values))
	}
	copy(t.Float32(), values)
	return t, nil
}

// FromInt8 allocates a Q7 tensor with the given quantization parameters.
func FromInt8(shape Shape, values []int8, q QParams) (*Tensor, error) {
	t, err := Zeros(shape, Q7)
	if err != nil {
		return nil, err
	}
	if len(values) != shape.NumElements() {
		return nil, Errorf(ShapeMismatch, "tensor.from_int8", "shape %v needs %d values, got %d", shape, shape.NumElements(), len(values))
	}
	copy(t.Int8(), values)
	t.q = q
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Quant returns the quantization parameters.
func (t *Tensor) Quant() QParams {
	return t.q
}

// SetQuant attaches quantization parameters to a Q7 or Int32 tensor.
func (t *Tensor) SetQuant(q QParams) {
	t.q = q
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return len(t.data)
}

// Bytes returns the underlying byte slice.
func (t *Tensor) Bytes() []byte {
	return t.data
}

// Float32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) Float32() []float32 {
	if t.dtype != Float32 {
		panic("tensor dtype is " + t.dtype.String() + ", not float32")
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, length bounded by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Int8 interprets the data as []int8.
// Panics if the tensor's dtype is not Q7.
func (t *Tensor) Int8() []int8 {
	if t.dtype != Q7 {
		panic("tensor dtype is " + t.dtype.String() + ", not q7")
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, length bounded by NumElements()
	return unsafe.Slice((*int8)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Int32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (t *Tensor) Int32() []int32 {
	if t.dtype != Int32 {
		panic("tensor dtype is " + t.dtype.String() + ", not int32")
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, length bounded by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&t.data[0])), t.NumElements())
}

// Rows returns a view of rows [from, to) along the leading dimension.
// The view shares memory with t.
func (t *Tensor) Rows(from, to int) (*Tensor, error) {
	rows := t.shape.Rows()
	if from < 0 || to > rows || from >= to {
		return nil, Errorf(ShapeMismatch, "tensor.rows", "row range [%d, %d) outside %v", from, to, t.shape)
	}
	rowBytes := t.shape.Cols() * t.dtype.Size()
	shape := t.shape.Clone()
	shape[0] = to - from
	return &Tensor{
		shape: shape,
		dtype: t.dtype,
		q:     t.q,
		data:  t.data[from*rowBytes : to*rowBytes : to*rowBytes],
	}, nil
}

// CopyFrom copies src's data into t. Shapes and dtypes must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if t.dtype != src.dtype || !t.shape.Equal(src.shape) {
		return Errorf(ShapeMismatch, "tensor.copy", "cannot copy %s %v into %s %v", src.dtype, src.shape, t.dtype, t.shape)
	}
	copy(t.data, src.data)
	t.q = src.q
	return nil
}

// ViewFloat32 creates a Float32 tensor that borrows values.
func ViewFloat32(shape Shape, values []float32) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(values) < shape.NumElements() {
		return nil, Errorf(BufferTooSmall, "tensor.view_float32", "need %d values for %v, got %d", shape.NumElements(), shape, len(values))
	}
	return &Tensor{shape: shape.Clone(), dtype: Float32, data: Float32Bytes(values[:shape.NumElements()])}, nil
}

// Float32Bytes reinterprets values as raw bytes without copying.
func Float32Bytes(values []float32) []byte {
	if len(values) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, length bounded by len(values)
	return unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
}

// BytesFloat32 reinterprets b as []float32 without copying.
// len(b) must be a multiple of 4 and b 4-byte aligned.
func BytesFloat32(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy views, length bounded by len(b)
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
