// Package train runs the training state machine over a model.
//
// A Trainer moves from Idle to Running on its first epoch and ends in one of
// four terminal states:
//   - Converged: the monitored loss reached Config.TargetLoss
//   - EarlyStopped: Patience epochs passed without improvement
//   - EpochLimitReached: Config.Epochs epochs completed
//   - Failed: a loss or gradient became NaN or Inf
//
// All memory is caller-owned. Activations, deltas, parameter gradients,
// optimizer state and the optional best-parameter snapshot are regions of a
// single arena sized by Layout.
package train

// State is the trainer's lifecycle state.
type State int

// Trainer states.
const (
	Idle State = iota
	Running
	Converged
	EarlyStopped
	EpochLimitReached
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case EarlyStopped:
		return "early_stopped"
	case EpochLimitReached:
		return "epoch_limit_reached"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further epochs will run.
func (s State) Terminal() bool {
	return s >= Converged
}
