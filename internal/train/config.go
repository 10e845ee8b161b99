package train

import (
	"go.uber.org/multierr"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// Config describes one training run.
type Config struct {
	Loss      nn.LossKind
	Optimizer optim.Config
	Init      nn.Init

	Epochs    int // Maximum number of epochs
	BatchSize int // Rows per optimizer step; the last batch of an epoch may be smaller

	EarlyStopping EarlyStopping

	// TargetLoss stops the run as Converged once the monitored loss is at or
	// below it. Zero disables the check.
	TargetLoss float32

	// RestoreBest copies the parameters of the best monitored epoch back
	// when the run ends early or hits the epoch limit. It costs one extra
	// parameter-sized arena region.
	RestoreBest bool

	Seed        int64 // Seeds parameter initialization
	LogInterval int   // Log every n epochs at info level; 0 logs only the outcome
}

// DefaultConfig returns the settings used when a caller only picks a loss:
// Adam at 1e-3, Glorot initialization, 100 epochs of batch 32.
func DefaultConfig(loss nn.LossKind) Config {
	return Config{
		Loss:      loss,
		Optimizer: optim.Config{Kind: optim.KindAdam, LR: 1e-3},
		Init:      nn.Init{Method: nn.InitGlorotUniform},
		Epochs:    100,
		BatchSize: 32,
		EarlyStopping: EarlyStopping{
			Patience: 10,
		},
		LogInterval: 10,
	}
}

// Validate checks the configuration against the model and the number of
// training rows. All problems are reported together.
func (c Config) Validate(m *nn.Model, rows int) error {
	var err error
	if c.Epochs < 1 {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "epochs %d must be at least 1", c.Epochs))
	}
	if c.BatchSize < 1 || c.BatchSize > rows {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "batch size %d outside [1, %d]", c.BatchSize, rows))
	}
	if c.EarlyStopping.Enabled && c.EarlyStopping.Patience < 1 {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "patience %d must be at least 1", c.EarlyStopping.Patience))
	}
	if c.EarlyStopping.MinDelta < 0 {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "min delta %g must not be negative", c.EarlyStopping.MinDelta))
	}
	if c.TargetLoss < 0 {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "target loss %g must not be negative", c.TargetLoss))
	}
	if c.LogInterval < 0 {
		err = multierr.Append(err, tensor.Errorf(tensor.UnsupportedConfiguration, "train.config", "log interval %d must not be negative", c.LogInterval))
	}
	err = multierr.Append(err, c.Init.Validate())
	if _, e := optim.New(c.Optimizer); e != nil {
		err = multierr.Append(err, e)
	}
	if _, e := nn.NewLoss(c.Loss, m); e != nil {
		err = multierr.Append(err, e)
	}
	return err
}

// Layout plans the training arena for m under cfg. Persistent regions hold,
// in order, the parameter gradients, the optimizer state and, with
// RestoreBest, the best-parameter snapshot.
func Layout(m *nn.Model, cfg Config) (plan.Layout, error) {
	loss, err := nn.NewLoss(cfg.Loss, m)
	if err != nil {
		return plan.Layout{}, err
	}
	if cfg.BatchSize < 1 {
		return plan.Layout{}, tensor.Errorf(tensor.UnsupportedConfiguration, "train.layout", "batch size %d must be positive", cfg.BatchSize)
	}
	stateBytes, err := optim.StateBytes(cfg.Optimizer, m.ParameterCount())
	if err != nil {
		return plan.Layout{}, err
	}
	paramBytes := 4 * m.ParameterCount()
	snapshot := 0
	if cfg.RestoreBest {
		snapshot = paramBytes
	}
	return m.PlanTraining(cfg.BatchSize, loss.Fused(), paramBytes, stateBytes, snapshot), nil
}

// Memory returns the arena bytes a run of cfg on m needs.
func Memory(m *nn.Model, cfg Config) (int, error) {
	l, err := Layout(m, cfg)
	if err != nil {
		return 0, err
	}
	return l.Total, nil
}
