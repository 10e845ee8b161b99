// Package tensor provides the shaped buffer type shared by every other
// package of the engine.
//
// A Tensor never allocates behind the caller's back: it either owns a buffer
// created by Zeros/FromFloat32, or it is a view into a caller-supplied arena
// created by View. The engine's hot paths only ever use views.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Q7               // 8-bit affine fixed point, see QParams
	Int32            // accumulator type used by quantized Dense biases
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Q7:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Q7:
		return "q7"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// ParseDataType converts a name produced by String back to a DataType.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32":
		return Float32, true
	case "q7":
		return Q7, true
	case "int32":
		return Int32, true
	default:
		return 0, false
	}
}
