package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Kind identifies a layer variant.
type Kind int

// Layer variants.
const (
	KindDense Kind = iota
	KindReLU
	KindLeakyReLU
	KindELU
	KindSigmoid
	KindSoftmax
	KindTanh
	KindSoftsign
	KindLinear
)

// Default slopes used when a Spec leaves Alpha at zero.
const (
	DefaultLeakyAlpha float32 = 0.01
	DefaultELUAlpha   float32 = 1.0
)

var kindNames = map[Kind]string{
	KindDense:     "dense",
	KindReLU:      "relu",
	KindLeakyReLU: "leaky_relu",
	KindELU:       "elu",
	KindSigmoid:   "sigmoid",
	KindSoftmax:   "softmax",
	KindTanh:      "tanh",
	KindSoftsign:  "softsign",
	KindLinear:    "linear",
}

// String returns the layer type name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind converts a layer type name (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, tensor.Errorf(tensor.UnsupportedConfiguration, "nn.parse_kind", "unknown layer type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Spec describes one layer of a model to be built.
type Spec struct {
	Kind  Kind    `json:"type" yaml:"type"`                       // Layer variant
	Units int     `json:"units,omitempty" yaml:"units,omitempty"` // Output features, Dense only
	Alpha float32 `json:"alpha,omitempty" yaml:"alpha,omitempty"` // Slope for LeakyReLU and ELU; zero selects the default
}

// DenseOf returns a Dense spec with the given number of units.
func DenseOf(units int) Spec {
	return Spec{Kind: KindDense, Units: units}
}

// Act returns a parameter-free activation spec.
func Act(kind Kind) Spec {
	return Spec{Kind: kind}
}

// ActAlpha returns an activation spec with an explicit slope.
func ActAlpha(kind Kind, alpha float32) Spec {
	return Spec{Kind: kind, Alpha: alpha}
}

// String implements fmt.Stringer.
func (s Spec) String() string {
	switch s.Kind {
	case KindDense:
		return fmt.Sprintf("dense(%d)", s.Units)
	case KindLeakyReLU, KindELU:
		return fmt.Sprintf("%s(%g)", s.Kind, s.Alpha)
	default:
		return s.Kind.String()
	}
}

// FlatWeightsCount returns the number of trainable parameters of a fully
// connected network given its layer widths, input width first:
// sum(n[i-1]*n[i] + n[i]).
func FlatWeightsCount(structure []int) int {
	sum := 0
	for i := 1; i < len(structure); i++ {
		sum += structure[i-1]*structure[i] + structure[i]
	}
	return sum
}
