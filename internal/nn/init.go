package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/tinyfnn/internal/tensor"
)

// InitMethod selects how Dense parameters are filled before training.
type InitMethod int

// Initialization methods.
const (
	InitUniform InitMethod = iota
	InitGlorotUniform
	InitNone // keep buffer contents, e.g. pre-trained weights
)

// String returns the method name.
func (m InitMethod) String() string {
	switch m {
	case InitUniform:
		return "uniform"
	case InitGlorotUniform:
		return "glorot_uniform"
	case InitNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseInitMethod converts a name produced by String into an InitMethod.
func ParseInitMethod(s string) (InitMethod, error) {
	switch s {
	case "uniform":
		return InitUniform, nil
	case "", "glorot_uniform", "glorot":
		return InitGlorotUniform, nil
	case "none", "no_init":
		return InitNone, nil
	default:
		return 0, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.parse_init", "unknown init method %q", s)
	}
}

// Init configures parameter initialization.
type Init struct {
	Method InitMethod
	Min    float32 // Uniform lower bound (default -1)
	Max    float32 // Uniform upper bound (default 1)
}

// bounds returns the uniform range, filling in the symmetric default.
func (in Init) bounds() (float32, float32) {
	if in.Min == 0 && in.Max == 0 {
		return -1, 1
	}
	return in.Min, in.Max
}

// Validate rejects an empty uniform range.
func (in Init) Validate() error {
	if in.Method == InitUniform {
		lo, hi := in.bounds()
		if lo >= hi {
			return tensor.Errorf(tensor.UnsupportedConfiguration, "nn.init", "uniform min %g must be below max %g", lo, hi)
		}
	}
	return nil
}

// fillUniform draws every element from [lo, hi).
func fillUniform(data []float32, lo, hi float32, rng *rand.Rand) {
	span := float64(hi - lo)
	for i := range data {
		data[i] = lo + float32(rng.Float64()*span)
	}
}

// fillGlorot draws from U(-sqrt(6/(fan_in+fan_out)), +sqrt(6/(fan_in+fan_out))).
func fillGlorot(data []float32, fanIn, fanOut int, rng *rand.Rand) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
}
