// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers and models of tinyfnn.
//
// # Overview
//
// This package contains:
//   - Layers: Dense and the element-wise activations ReLU, LeakyReLU, ELU,
//     Sigmoid, Tanh, Softsign and Linear, plus row-wise Softmax
//   - Model: an ordered chain of layers described by Spec values
//   - Losses: MSE and cross-entropy (fused with Softmax, binary with Sigmoid)
//   - QModel: the Q7 fixed-point form produced by quantization
//
// Models never own tensor memory. Parameters live in a caller []float32
// bound with BindParameters; activations live in an arena planned by
// PlanInference or PlanTraining.
//
// # Basic Usage
//
//	m, _ := nn.NewModel(2,
//	    nn.DenseOf(8), nn.Act(nn.KindReLU),
//	    nn.DenseOf(2), nn.Act(nn.KindSoftmax),
//	)
//	params := make([]float32, m.ParameterCount())
//	_ = m.BindParameters(params)
//
//	layout := m.PlanInference(16)
//	exec, _ := nn.NewExecutor(m, layout, 16, make([]byte, layout.Total))
//	probs, _ := exec.Forward(x)
package nn
