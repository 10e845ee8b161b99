// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fnn is the entry point of tinyfnn, a feed-forward neural network
// engine for static memory.
//
// # Overview
//
// Every buffer is supplied by the caller. The sizing functions report how
// much memory a run needs; the run functions then work inside it:
//
//   - ParameterCount sizes the float32 parameter buffer
//   - InferenceMemory sizes the inference arena for a batch
//   - TrainingMemory sizes the training arena for a train.Config
//
// # Basic Usage
//
//	m, _ := fnn.NewModel(2,
//	    nn.DenseOf(8), nn.Act(nn.KindTanh),
//	    nn.DenseOf(2), nn.Act(nn.KindSoftmax),
//	)
//	params := make([]float32, fnn.ParameterCount(m))
//
//	cfg := train.DefaultConfig(nn.LossCrossEntropy)
//	need, _ := fnn.TrainingMemory(m, cfg)
//	result, err := fnn.Train(m, cfg, trainSet, valSet, params, make([]byte, need))
//
//	out, err := fnn.Inference(m, params, x, make([]byte, fnn.InferenceMemory(m, x.Shape()[0])))
//
// # Quantization
//
// Quantize calibrates a trained model on sample inputs and returns its Q7
// form with a packed parameter buffer. InferenceQ7 runs it with integer
// arithmetic only.
package fnn
