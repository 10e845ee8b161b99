package optim

import (
	"math"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer, _ := optim.NewAdam(optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float32{0.9, 0.999},
//	    Eps:   1e-7,
//	})
type Adam struct {
	params []*nn.Parameter
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int       // Timestep for bias correction
	m      []float32 // First moment estimates
	v      []float32 // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
//
// A zero entry in Betas or a zero Eps means "use the default", so a beta of
// exactly 0 cannot be expressed; use a small positive value instead.
type AdamConfig struct {
	LR    float32    // Learning rate (>= 0)
	Betas [2]float32 // Coefficients for computing running averages (zero: 0.9, 0.999)
	Eps   float32    // Term for numerical stability (zero: 1e-7)
}

// Default Adam hyperparameters.
const (
	DefaultBeta1 float32 = 0.9
	DefaultBeta2 float32 = 0.999
	DefaultEps   float32 = 1e-7
)

// NewAdam creates a new Adam optimizer.
//
// Zero Betas and Eps select the defaults (0.9, 0.999, 1e-7). The learning
// rate is taken as given; zero freezes the parameters.
func NewAdam(config AdamConfig) (*Adam, error) {
	// Set defaults
	if config.Betas[0] == 0 {
		config.Betas[0] = DefaultBeta1
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = DefaultBeta2
	}
	if config.Eps == 0 {
		config.Eps = DefaultEps
	}

	switch {
	case config.LR < 0:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.adam", "learning rate %g must not be negative", config.LR)
	case config.Betas[0] < 0 || config.Betas[0] >= 1 || config.Betas[1] < 0 || config.Betas[1] >= 1:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.adam", "betas %v outside [0, 1)", config.Betas)
	case config.Eps < 0:
		return nil, tensor.Errorf(tensor.UnsupportedConfiguration, "optim.adam", "eps %g must not be negative", config.Eps)
	}

	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}, nil
}

// Name implements Optimizer.
func (a *Adam) Name() string { return "adam" }

// StateSize implements Optimizer: one first and one second moment per
// parameter.
func (a *Adam) StateSize(params int) int { return 2 * params }

// Bind implements Optimizer.
func (a *Adam) Bind(params []*nn.Parameter, state []float32) error {
	total, err := bindState("optim.adam.bind", params, state, a.StateSize)
	if err != nil {
		return err
	}
	a.params = params
	a.m = state[:total]
	a.v = state[total : 2*total]
	a.t = 0
	return nil
}

// Steps returns the number of updates applied since Bind.
func (a *Adam) Steps() int { return a.t }

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step() error {
	if err := a.Propose(); err != nil {
		return err
	}
	a.Commit()
	return nil
}

// Propose implements Optimizer. The moment estimates and step counter
// advance even if the proposal is never committed.
func (a *Adam) Propose() error {
	a.t++

	// bias_correction1 = 1 - beta1^t
	// bias_correction2 = 1 - beta2^t
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	offset := 0
	for _, p := range a.params {
		values := p.Value().Float32()
		grads := p.Grad().Float32()
		m := a.m[offset : offset+len(values)]
		v := a.v[offset : offset+len(values)]
		for i, g := range grads {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g
			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2
			grads[i] = values[i] - a.lr*mHat/(float32(math.Sqrt(float64(vHat)))+a.eps)
		}
		offset += len(values)
	}
	return nil
}

// Commit implements Optimizer.
func (a *Adam) Commit() { commit(a.params) }

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() { zeroGrads(a.params) }

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 { return a.lr }
