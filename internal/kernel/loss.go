package kernel

import (
	"math"
)

// Epsilon keeps log() away from zero in the cross-entropy losses.
const Epsilon = 1e-7

// MSE returns mean((p-t)^2) over all elements.
func MSE(pred, target []float32) float32 {
	var sum float64
	for i, p := range pred {
		d := float64(p - target[i])
		sum += d * d
	}
	return float32(sum / float64(len(pred)))
}

// MSEGrad writes d/dp MSE = 2*(p-t)/N.
func MSEGrad(pred, target, grad []float32) {
	scale := 2 / float32(len(pred))
	for i, p := range pred {
		grad[i] = scale * (p - target[i])
	}
}

// CrossEntropy returns -sum(t*log(p+eps)) divided by the number of rows.
// Targets are expected one-hot, predictions post-softmax probabilities.
func CrossEntropy(pred, target []float32, rows int) float32 {
	var sum float64
	for i, p := range pred {
		if target[i] != 0 {
			sum -= float64(target[i]) * math.Log(float64(p)+Epsilon)
		}
	}
	return float32(sum / float64(rows))
}

// BinaryCrossEntropy returns -sum(t*log(p+eps) + (1-t)*log(1-p+eps))
// divided by the number of rows. Used for sigmoid outputs.
func BinaryCrossEntropy(pred, target []float32, rows int) float32 {
	var sum float64
	for i, p := range pred {
		t := float64(target[i])
		sum -= t*math.Log(float64(p)+Epsilon) + (1-t)*math.Log(1-float64(p)+Epsilon)
	}
	return float32(sum / float64(rows))
}

// FusedCrossEntropyGrad writes the gradient of cross-entropy with respect to
// the pre-activation input of a softmax or sigmoid output: (p-t)/rows.
func FusedCrossEntropyGrad(pred, target, grad []float32, rows int) {
	inv := 1 / float32(rows)
	for i, p := range pred {
		grad[i] = (p - target[i]) * inv
	}
}
