// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers never allocate while stepping. Their state (velocities, moment
// estimates) lives in a float32 slice the caller carves out of the training
// arena, sized by StateSize and handed over once with Bind.
//
// Example usage:
//
//	opt, _ := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//	state := make([]float32, opt.StateSize(model.ParameterCount()))
//	_ = opt.Bind(model.Parameters(), state)
//
//	for batch := range batches {
//	    model.ZeroGrad()
//	    // forward, loss, backward
//	    _ = opt.Step()
//	}
package optim

import (
	"strings"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters in place from the gradients that the
// backward pass accumulated in each Parameter.
type Optimizer interface {
	// Name returns the optimizer name ("sgd" or "adam").
	Name() string

	// StateSize returns the number of float32 state values needed for a
	// model with the given parameter count.
	StateSize(params int) int

	// Bind attaches the parameters to update and the state slice. State is
	// zeroed and the step counter reset.
	Bind(params []*nn.Parameter, state []float32) error

	// Step applies one update to every bound parameter. It is Propose
	// followed by Commit.
	Step() error

	// Propose writes the updated value of every bound parameter into that
	// parameter's gradient buffer, consuming the gradient. The parameters
	// themselves are not modified, so the candidate values can be checked
	// before Commit.
	Propose() error

	// Commit copies the values left by Propose into the parameters.
	Commit()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Kind selects an optimizer.
type Kind int

// Optimizer kinds.
const (
	KindSGD Kind = iota
	KindAdam
)

// String returns the optimizer name.
func (k Kind) String() string {
	if k == KindAdam {
		return "adam"
	}
	return "sgd"
}

// ParseKind converts "sgd" or "adam" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "sgd":
		return KindSGD, nil
	case "adam":
		return KindAdam, nil
	default:
		return 0, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.parse", "unknown optimizer %q", s)
	}
}

// Config is the union of every optimizer's settings, as carried by a
// training configuration.
//
// For Adam a zero beta or eps selects its default, see NewAdam.
type Config struct {
	Kind     Kind
	LR       float32    // Learning rate
	Momentum float32    // SGD only
	Betas    [2]float32 // Adam only; zero entries select the defaults
	Eps      float32    // Adam only; zero selects DefaultEps
}

// New creates the optimizer selected by cfg.Kind.
func New(cfg Config) (Optimizer, error) {
	switch cfg.Kind {
	case KindSGD:
		return NewSGD(SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum})
	case KindAdam:
		return NewAdam(AdamConfig{LR: cfg.LR, Betas: cfg.Betas, Eps: cfg.Eps})
	default:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.new", "unknown optimizer kind %d", cfg.Kind)
	}
}

// StateBytes returns the arena bytes an optimizer of kind cfg.Kind needs for
// params parameters.
func StateBytes(cfg Config, params int) (int, error) {
	opt, err := New(cfg)
	if err != nil {
		return 0, err
	}
	return 4 * opt.StateSize(params), nil
}

// bindState checks params/state sizes and zeroes state.
func bindState(op string, params []*nn.Parameter, state []float32, need func(int) int) (int, error) {
	total := 0
	for _, p := range params {
		if p.Grad() == nil {
			return 0, tensor.Errorf(tensor.InvalidState, op, "parameter %s has no gradient bound", p.Name())
		}
		total += p.NumElements()
	}
	if len(state) < need(total) {
		return 0, tensor.Errorf(tensor.BufferTooSmall, op, "need %d state values, got %d", need(total), len(state))
	}
	clear(state[:need(total)])
	return total, nil
}

// commit copies the proposed values held in each gradient buffer into the
// parameter.
func commit(params []*nn.Parameter) {
	for _, p := range params {
		copy(p.Value().Float32(), p.Grad().Float32())
	}
}

func zeroGrads(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
