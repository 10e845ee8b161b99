// Package kernel holds the stateless numeric routines the layers are built
// from: activation functions and their derivatives, loss functions, the
// matrix products needed by Dense layers, and the integer arithmetic used by
// the Q7 forward pass.
//
// Every routine works on caller-provided slices. Nothing here allocates, and
// output slices must already have the right length.
package kernel

import (
	"math"
)

// ReLU computes y = max(0, x).
func ReLU(x, y []float32) {
	for i, v := range x {
		if v > 0 {
			y[i] = v
		} else {
			y[i] = 0
		}
	}
}

// ReLUGrad computes dx = dy where x > 0, else 0.
func ReLUGrad(x, dy, dx []float32) {
	for i, v := range x {
		if v > 0 {
			dx[i] = dy[i]
		} else {
			dx[i] = 0
		}
	}
}

// LeakyReLU computes y = x for x >= 0, alpha*x otherwise.
func LeakyReLU(x, y []float32, alpha float32) {
	for i, v := range x {
		if v >= 0 {
			y[i] = v
		} else {
			y[i] = alpha * v
		}
	}
}

// LeakyReLUGrad computes dx = dy for x >= 0, alpha*dy otherwise.
func LeakyReLUGrad(x, dy, dx []float32, alpha float32) {
	for i, v := range x {
		if v >= 0 {
			dx[i] = dy[i]
		} else {
			dx[i] = alpha * dy[i]
		}
	}
}

// ELU computes y = x for x >= 0, alpha*(e^x - 1) otherwise.
func ELU(x, y []float32, alpha float32) {
	for i, v := range x {
		if v >= 0 {
			y[i] = v
		} else {
			y[i] = alpha * (float32(math.Exp(float64(v))) - 1)
		}
	}
}

// ELUGrad computes dx = dy for x >= 0, (y+alpha)*dy otherwise,
// using y = alpha*(e^x - 1) so that alpha*e^x = y + alpha.
func ELUGrad(x, y, dy, dx []float32, alpha float32) {
	for i, v := range x {
		if v >= 0 {
			dx[i] = dy[i]
		} else {
			dx[i] = (y[i] + alpha) * dy[i]
		}
	}
}

// Sigmoid computes y = 1/(1+e^-x).
func Sigmoid(x, y []float32) {
	for i, v := range x {
		y[i] = sigmoid(v)
	}
}

func sigmoid(v float32) float32 {
	// Split on sign so exp never overflows.
	if v >= 0 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	}
	e := math.Exp(float64(v))
	return float32(e / (1 + e))
}

// SigmoidGrad computes dx = y*(1-y)*dy.
func SigmoidGrad(y, dy, dx []float32) {
	for i, s := range y {
		dx[i] = s * (1 - s) * dy[i]
	}
}

// Tanh computes y = tanh(x).
func Tanh(x, y []float32) {
	for i, v := range x {
		y[i] = float32(math.Tanh(float64(v)))
	}
}

// TanhGrad computes dx = (1-y^2)*dy.
func TanhGrad(y, dy, dx []float32) {
	for i, t := range y {
		dx[i] = (1 - t*t) * dy[i]
	}
}

// Softsign computes y = x/(1+|x|).
func Softsign(x, y []float32) {
	for i, v := range x {
		y[i] = v / (1 + abs32(v))
	}
}

// SoftsignGrad computes dx = dy/(1+|x|)^2.
func SoftsignGrad(x, dy, dx []float32) {
	for i, v := range x {
		d := 1 + abs32(v)
		dx[i] = dy[i] / (d * d)
	}
}

// Softmax computes a row-wise softmax of an [rows, cols] matrix.
// The row maximum is subtracted before exponentiating.
func Softmax(x, y []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		in := x[r*cols : (r+1)*cols]
		out := y[r*cols : (r+1)*cols]

		maxVal := in[0]
		for _, v := range in[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for i, v := range in {
			e := math.Exp(float64(v - maxVal))
			out[i] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for i := range out {
			out[i] *= inv
		}
	}
}

// SoftmaxGrad computes the Jacobian-vector product of softmax:
// dx_i = y_i * (dy_i - sum_j dy_j*y_j), row by row.
func SoftmaxGrad(y, dy, dx []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		yr := y[r*cols : (r+1)*cols]
		dyr := dy[r*cols : (r+1)*cols]
		dxr := dx[r*cols : (r+1)*cols]

		var dot float32
		for i := range yr {
			dot += dyr[i] * yr[i]
		}
		for i := range yr {
			dxr[i] = yr[i] * (dyr[i] - dot)
		}
	}
}

// Linear copies x into y.
func Linear(x, y []float32) {
	copy(y, x)
}

// LinearGrad copies dy into dx.
func LinearGrad(dy, dx []float32) {
	copy(dx, dy)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// AllFinite reports whether every element is neither NaN nor Inf.
func AllFinite(x []float32) bool {
	for _, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
