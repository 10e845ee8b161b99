package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
//
// Activations are always two-dimensional, [batch, features]. Dense weights
// are [in, out] and biases [out].
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	if len(s) == 0 {
		return Errorf(ShapeMismatch, "shape", "empty shape")
	}
	for i, dim := range s {
		if dim <= 0 {
			return Errorf(ShapeMismatch, "shape", "invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Rows returns the leading (batch) dimension.
func (s Shape) Rows() int {
	if len(s) == 0 {
		return 1
	}
	return s[0]
}

// Cols returns the product of all dimensions after the first one.
func (s Shape) Cols() int {
	if len(s) < 2 {
		return 1
	}
	return Shape(s[1:]).NumElements()
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}
