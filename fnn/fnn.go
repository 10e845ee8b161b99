// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package fnn

import (
	"time"

	"github.com/born-ml/tinyfnn/internal/metrics"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/quant"
	"github.com/born-ml/tinyfnn/internal/serialization"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/born-ml/tinyfnn/internal/train"
)

// Version is the tinyfnn release.
const Version = serialization.Version

// NewModel builds a model for inputs features from layer specs.
func NewModel(inputs int, specs ...nn.Spec) (*nn.Model, error) {
	return nn.NewModel(inputs, specs...)
}

// FlatWeightsCount returns the parameter count of a fully connected network
// given its layer widths, input first.
func FlatWeightsCount(structure []int) int {
	return nn.FlatWeightsCount(structure)
}

// ParameterCount returns the float32 values m's parameter buffer holds.
func ParameterCount(m *nn.Model) int {
	return m.ParameterCount()
}

// InferenceMemory returns the arena bytes Inference needs for batch rows.
func InferenceMemory(m *nn.Model, batch int) int {
	return m.InferenceMemory(batch)
}

// TrainingMemory returns the arena bytes Train needs for cfg.
func TrainingMemory(m *nn.Model, cfg train.Config) (int, error) {
	return train.Memory(m, cfg)
}

// Inference runs one forward pass of m with params over input, a float32
// batch [N, inputs], using work as the activation arena. The result is a
// view into work.
func Inference(m *nn.Model, params []float32, input *tensor.Tensor, work []byte) (*tensor.Tensor, error) {
	s := input.Shape()
	if len(s) != 2 || s[0] == 0 {
		return nil, tensor.Errorf(tensor.ShapeMismatch, "fnn.inference", "input shape %v, want [N, %d]", s, m.Inputs())
	}
	if err := m.BindParameters(params); err != nil {
		return nil, err
	}
	start := time.Now()
	exec, err := nn.NewExecutor(m, m.PlanInference(s[0]), s[0], work)
	if err != nil {
		return nil, err
	}
	out, err := exec.Forward(input)
	if err != nil {
		return nil, err
	}
	metrics.RecordInference(tensor.Float32.String(), time.Since(start))
	return out, nil
}

// Train initializes m's parameters in params according to cfg.Init and
// trains on trainSet until a terminal state. valSet may be nil.
func Train(m *nn.Model, cfg train.Config, trainSet, valSet *train.Dataset, params []float32, work []byte, opts ...train.Option) (train.Result, error) {
	if trainSet == nil {
		return train.Result{}, tensor.Errorf(tensor.ShapeMismatch, "fnn.train", "no training data")
	}
	t, err := train.New(m, cfg, params, work, trainSet.Rows(), opts...)
	if err != nil {
		return train.Result{}, err
	}
	return t.Run(trainSet, valSet)
}

// Quantize converts a trained m to Q7, calibrating ranges on the rows of
// calibration. A nil scheme selects Affine.
//
// Returns UnsupportedConfiguration if m was never initialized, trained or
// loaded.
func Quantize(m *nn.Model, params []float32, calibration *tensor.Tensor, scheme tensor.Scheme) (*quant.Result, error) {
	if !m.Initialized() {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "fnn.quantize", "model has no trained parameters")
	}
	if err := m.BindParameters(params); err != nil {
		return nil, err
	}
	return quant.CalibrateAndQuantize(m, calibration, scheme)
}

// InferenceQ7 runs one integer-only forward pass of q bound to the packed
// buffer qparams. input is a Q7 batch quantized with q.InputParams(), see
// quant.QuantizeInput.
func InferenceQ7(q *nn.QModel, qparams []byte, input *tensor.Tensor, work []byte) (*tensor.Tensor, error) {
	if err := q.Bind(qparams); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := quant.Inference(q, input, work)
	if err != nil {
		return nil, err
	}
	metrics.RecordInference(tensor.Q7.String(), time.Since(start))
	return out, nil
}

// InferenceQ7Memory returns the arena bytes InferenceQ7 needs for batch rows.
func InferenceQ7Memory(q *nn.QModel, batch int) int {
	return q.InferenceMemory(batch)
}

// Training and quantization types, re-exported for callers outside the
// module.
type (
	// Dataset pairs input rows with target rows.
	Dataset = train.Dataset
	// TrainConfig configures a training run.
	TrainConfig = train.Config
	// EarlyStopping configures patience-based stopping.
	EarlyStopping = train.EarlyStopping
	// TrainResult summarizes a finished training run.
	TrainResult = train.Result
	// TrainOption customizes a training run.
	TrainOption = train.Option
	// QuantResult is a quantized model with its packed parameters.
	QuantResult = quant.Result
)

// NewDataset wraps row-major x [rows, inputs] and y [rows, outputs].
func NewDataset(x []float32, inputs int, y []float32, outputs int) (*Dataset, error) {
	return train.NewDataset(x, inputs, y, outputs)
}

// DefaultTrainConfig returns the default training configuration for loss.
func DefaultTrainConfig(loss nn.LossKind) TrainConfig {
	return train.DefaultConfig(loss)
}

// QuantizeInput converts a float32 batch into q's Q7 input domain.
func QuantizeInput(q *nn.QModel, x *tensor.Tensor) (*tensor.Tensor, error) {
	return quant.QuantizeInput(q, x)
}

// Dequantize converts a Q7 output back to float32.
func Dequantize(t *tensor.Tensor) (*tensor.Tensor, error) {
	return quant.Dequantize(t)
}
