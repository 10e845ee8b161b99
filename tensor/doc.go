// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of tinyfnn.
//
// # Overview
//
// A Tensor is a shaped view over a byte buffer. Buffers are owned by the
// caller: inference and training arenas are plain []byte slices sized by
// the memory planner, and every activation is a view at a planned offset.
//
// # Basic Usage
//
//	import "github.com/born-ml/tinyfnn/tensor"
//
//	func main() {
//	    x, _ := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
//	    row, _ := x.Rows(1, 2) // shares memory with x
//	    _ = row
//	}
//
// # Supported Data Types
//
//   - Float32 for training and float inference
//   - Q7 for 8-bit fixed-point inference, with QParams mapping codes to reals
//   - Int32 for quantized Dense bias accumulators
//
// # Errors
//
// Every engine error is a *tensor.Error whose Kind can be matched with
// errors.Is against the Err* sentinels.
package tensor
