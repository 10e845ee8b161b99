package train

import (
	"math"
)

// EarlyStopping configures patience-based stopping.
type EarlyStopping struct {
	Enabled  bool
	Patience int     // Epochs without improvement before stopping
	MinDelta float32 // Minimum decrease that counts as an improvement
}

// EarlyStopper tracks the best monitored loss across epochs.
type EarlyStopper struct {
	patience  int
	minDelta  float32
	best      float32
	bestEpoch int
	wait      int
}

// NewEarlyStopper creates a stopper. patience must be at least 1.
func NewEarlyStopper(patience int, minDelta float32) *EarlyStopper {
	return &EarlyStopper{
		patience: patience,
		minDelta: minDelta,
		best:     float32(math.Inf(1)),
	}
}

// Observe records the loss of epoch (1-based). It returns improved when
// the loss beat the best value by more than MinDelta, and stop once
// Patience consecutive epochs did not.
//
// If the last improvement happened at epoch k, stop becomes true exactly at
// epoch k+Patience.
func (s *EarlyStopper) Observe(epoch int, loss float32) (improved, stop bool) {
	if loss < s.best-s.minDelta {
		s.best = loss
		s.bestEpoch = epoch
		s.wait = 0
		return true, false
	}
	s.wait++
	return false, s.wait >= s.patience
}

// Best returns the best loss and the epoch it was observed at, or +Inf and
// 0 before any observation.
func (s *EarlyStopper) Best() (float32, int) {
	return s.best, s.bestEpoch
}
