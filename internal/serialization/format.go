package serialization

import (
	"time"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Version is the tinyfnn release recorded in written files.
const Version = "0.1.0"

// Format constants.
const (
	MagicBytes      = "TFNN"
	FormatVersion   = 1    // Fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Payload kinds.
const (
	PayloadFloat32 = "float32"
	PayloadQ7      = "q7"
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeUint8   = "uint8"
)

// Tensor names.
const (
	TensorParameters   = "parameters"
	TensorQ7Parameters = "q7.parameters"
)

// Flags for the .tfnn format.
const (
	FlagQuantized   uint32 = 1 << 0 // bit 0: Q7 payload
	FlagHasTraining uint32 = 1 << 1 // bit 1: training summary included
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .tfnn file.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the .tfnn format
	Version       string            `json:"tinyfnn_version"`    // Version of tinyfnn that created this file
	ID            string            `json:"id"`                 // Random file identifier
	Payload       string            `json:"payload"`            // PayloadFloat32 or PayloadQ7
	CreatedAt     time.Time         `json:"created_at"`         // When the file was created
	Inputs        int               `json:"inputs"`             // Model input width
	Layers        []nn.Spec         `json:"layers"`             // Topology
	Tensors       []TensorMeta      `json:"tensors"`            // Tensor metadata
	Quant         *QuantMeta        `json:"quant,omitempty"`    // Q7 parameters (Q7 payload only)
	Training      *TrainingMeta     `json:"training,omitempty"` // Summary of the run that produced the weights
	Metadata      map[string]string `json:"metadata,omitempty"` // Custom metadata
}

// QuantMeta describes a Q7 payload.
type QuantMeta struct {
	Scheme string          `json:"scheme"`
	Input  tensor.QParams  `json:"input"`
	Layers []nn.LayerQuant `json:"layers"`
	Ranges []tensor.Range  `json:"ranges,omitempty"` // Calibrated layer output ranges
}

// TrainingMeta summarizes the run that produced the stored weights.
type TrainingMeta struct {
	RunID     string  `json:"run_id"`
	State     string  `json:"state"`
	Epochs    int     `json:"epochs"`
	TrainLoss float32 `json:"train_loss"`
	ValLoss   float32 `json:"val_loss,omitempty"`
	BestEpoch int     `json:"best_epoch"`
}

// TensorMeta describes a tensor in the .tfnn file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "parameters")
	DType  string `json:"dtype"`  // Data type ("float32" or "uint8")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// flags derives the fixed-header flags from h.
func (h *Header) flags() uint32 {
	var f uint32
	if h.Payload == PayloadQ7 {
		f |= FlagQuantized
	}
	if h.Training != nil {
		f |= FlagHasTraining
	}
	if len(h.Metadata) > 0 {
		f |= FlagHasMetadata
	}
	return f
}

func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
