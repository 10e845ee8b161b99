package optim

import (
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Example:
//
//	optimizer, _ := optim.NewSGD(optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params   []*nn.Parameter
	lr       float32
	momentum float32
	velocity []float32 // One slot per scalar parameter, in buffer order
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (>= 0)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
//
// Returns UnsupportedConfiguration for a negative learning rate or a
// momentum outside [0, 1).
func NewSGD(config SGDConfig) (*SGD, error) {
	if config.LR < 0 {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.sgd", "learning rate %g must not be negative", config.LR)
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.sgd", "momentum %g outside [0, 1)", config.Momentum)
	}
	return &SGD{lr: config.LR, momentum: config.Momentum}, nil
}

// Name implements Optimizer.
func (s *SGD) Name() string { return "sgd" }

// StateSize implements Optimizer. Plain SGD is stateless.
func (s *SGD) StateSize(params int) int {
	if s.momentum == 0 {
		return 0
	}
	return params
}

// Bind implements Optimizer.
func (s *SGD) Bind(params []*nn.Parameter, state []float32) error {
	total, err := bindState("optim.sgd.bind", params, state, s.StateSize)
	if err != nil {
		return err
	}
	s.params = params
	s.velocity = state[:s.StateSize(total)]
	return nil
}

// Step implements Optimizer.
func (s *SGD) Step() error {
	if err := s.Propose(); err != nil {
		return err
	}
	s.Commit()
	return nil
}

// Propose implements Optimizer.
func (s *SGD) Propose() error {
	offset := 0
	for _, p := range s.params {
		values := p.Value().Float32()
		grads := p.Grad().Float32()
		if s.momentum == 0 {
			for i, g := range grads {
				grads[i] = values[i] - s.lr*g
			}
			continue
		}
		vel := s.velocity[offset : offset+len(values)]
		for i, g := range grads {
			vel[i] = s.momentum*vel[i] + g
			grads[i] = values[i] - s.lr*vel[i]
		}
		offset += len(values)
	}
	return nil
}

// Commit implements Optimizer.
func (s *SGD) Commit() { commit(s.params) }

// ZeroGrad implements Optimizer.
func (s *SGD) ZeroGrad() { zeroGrads(s.params) }

// GetLR implements Optimizer.
func (s *SGD) GetLR() float32 { return s.lr }
