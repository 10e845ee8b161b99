// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Type aliases for public API

// Tensor is a shaped view over a byte buffer.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Q7      DataType = tensor.Q7
	Int32   DataType = tensor.Int32
)

// QParams maps an int8 code q to the real value Scale*(q-ZeroPoint).
type QParams = tensor.QParams

// Range is an observed real interval used for calibration.
type Range = tensor.Range

// Scheme derives QParams from a Range.
type Scheme = tensor.Scheme

// Quantization schemes.
type (
	Affine     = tensor.Affine
	Symmetric  = tensor.Symmetric
	PowerOfTwo = tensor.PowerOfTwo
)

// Error is the error type returned by the engine.
type Error = tensor.Error

// ErrorKind classifies engine errors.
type ErrorKind = tensor.Kind

// Error kinds.
const (
	ShapeMismatch            = tensor.ShapeMismatch
	BufferTooSmall           = tensor.BufferTooSmall
	UnsupportedConfiguration = tensor.UnsupportedConfiguration
	NumericFailure           = tensor.NumericFailure
	InvalidState             = tensor.InvalidState
)

// Sentinels for errors.Is checks.
var (
	ErrShapeMismatch            = tensor.ErrShapeMismatch
	ErrBufferTooSmall           = tensor.ErrBufferTooSmall
	ErrUnsupportedConfiguration = tensor.ErrUnsupportedConfiguration
	ErrNumericFailure           = tensor.ErrNumericFailure
	ErrInvalidState             = tensor.ErrInvalidState
)

// Creation functions

// View creates a tensor over buf without copying.
func View(shape Shape, dtype DataType, buf []byte) (*Tensor, error) {
	return tensor.View(shape, dtype, buf)
}

// ViewFloat32 creates a Float32 tensor that borrows values.
func ViewFloat32(shape Shape, values []float32) (*Tensor, error) {
	return tensor.ViewFloat32(shape, values)
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) (*Tensor, error) {
	return tensor.Zeros(shape, dtype)
}

// FromFloat32 allocates a Float32 tensor holding a copy of values.
func FromFloat32(shape Shape, values []float32) (*Tensor, error) {
	return tensor.FromFloat32(shape, values)
}

// FromInt8 allocates a Q7 tensor holding a copy of values.
func FromInt8(shape Shape, values []int8, q QParams) (*Tensor, error) {
	return tensor.FromInt8(shape, values, q)
}

// SchemeByName resolves "affine", "symmetric" or "pow2".
func SchemeByName(name string) (Scheme, error) {
	return tensor.SchemeByName(name)
}

// KindOf extracts the ErrorKind of err, or 0 for foreign errors.
func KindOf(err error) ErrorKind {
	return tensor.KindOf(err)
}
