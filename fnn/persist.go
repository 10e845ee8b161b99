// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package fnn

import (
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/quant"
	"github.com/born-ml/tinyfnn/internal/serialization"
	"github.com/born-ml/tinyfnn/internal/train"
)

// SaveModel writes m's topology and params to path. result, when non-nil,
// is stored as the training summary.
func SaveModel(path string, m *nn.Model, params []float32, result *train.Result) error {
	f := &serialization.File{}
	if err := f.SetFloat(m, params); err != nil {
		return err
	}
	if result != nil {
		f.Header.Training = &serialization.TrainingMeta{
			RunID:     result.RunID,
			State:     result.State.String(),
			Epochs:    result.Epochs,
			TrainLoss: result.TrainLoss,
			ValLoss:   result.ValLoss,
			BestEpoch: result.BestEpoch,
		}
	}
	return serialization.Save(path, f)
}

// LoadModel reads a float32 model saved by SaveModel. The model is bound to
// the returned parameters and counts as trained, so it can be quantized
// directly or trained further with nn.InitNone.
func LoadModel(path string) (*nn.Model, []float32, error) {
	f, err := serialization.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return f.Float()
}

// SaveQ7 writes a quantized model and its packed buffer to path.
func SaveQ7(path string, res *quant.Result) error {
	f := &serialization.File{}
	if err := f.SetQ7(res.Model, res.Scheme, res.Ranges.Layers, res.Params); err != nil {
		return err
	}
	return serialization.Save(path, f)
}

// LoadQ7 reads a quantized model saved by SaveQ7, bound to the returned
// packed buffer.
func LoadQ7(path string) (*nn.QModel, []byte, error) {
	f, err := serialization.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return f.Q7()
}
