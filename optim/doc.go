// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used by tinyfnn training.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for driving updates manually
//
// Optimizer state is never allocated during training. StateSize reports
// how many float32 values an optimizer needs; Bind hands it a slice of the
// training arena once.
//
// # Basic Usage
//
//	opt, _ := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//	state := make([]float32, opt.StateSize(model.ParameterCount()))
//	_ = opt.Bind(model.Parameters(), state)
//
//	for _, batch := range batches {
//	    model.ZeroGrad()
//	    // forward, loss, backward
//	    _ = opt.Step()
//	}
//
// Most callers never touch optimizers directly: fnn.Train builds one from
// the optimizer section of a train.Config.
package optim
