package train

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/tinyfnn/internal/kernel"
	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/metrics"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
)

// EpochStats holds the losses measured after one epoch.
type EpochStats struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float32 `json:"train_loss"`
	ValLoss   float32 `json:"val_loss,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID     string       `json:"run_id"`
	State     State        `json:"-"`
	Outcome   string       `json:"state"`
	Epochs    int          `json:"epochs"`
	TrainLoss float32      `json:"train_loss"`
	ValLoss   float32      `json:"val_loss,omitempty"`
	HasVal    bool         `json:"has_validation"`
	BestEpoch int          `json:"best_epoch"`
	BestLoss  float32      `json:"best_loss"`
	Restored  bool         `json:"restored"`
	History   []EpochStats `json:"history"`
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger replaces the package logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Trainer) { t.log = l }
}

// Trainer drives mini-batch training of one model over a caller arena.
type Trainer struct {
	model  *nn.Model
	cfg    Config
	loss   nn.Loss
	opt    optim.Optimizer
	exec   *nn.Executor
	layout plan.Layout

	params   []float32
	grads    []float32
	snapshot []float32

	state   State
	epoch   int
	stopper *EarlyStopper
	best    float32
	bestAt  int
	runID   uuid.UUID
	log     *logger.Logger
	result  Result
}

// New prepares a run of m under cfg. params backs the model's parameters
// and must hold m.ParameterCount() values; work is the training arena and
// must hold Memory(m, cfg) bytes.
//
// Parameters are initialized with cfg.Init from cfg.Seed before New
// returns. trainRows is the size of the training set the run will see and
// bounds the batch size.
func New(m *nn.Model, cfg Config, params []float32, work []byte, trainRows int, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(m, trainRows); err != nil {
		return nil, err
	}
	layout, err := Layout(m, cfg)
	if err != nil {
		return nil, err
	}
	if err := layout.Check(work); err != nil {
		return nil, err
	}
	loss, err := nn.NewLoss(cfg.Loss, m)
	if err != nil {
		return nil, err
	}
	opt, err := optim.New(cfg.Optimizer)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		model:  m,
		cfg:    cfg,
		loss:   loss,
		opt:    opt,
		layout: layout,
		params: params,
		best:   float32(math.Inf(1)),
		runID:  uuid.New(),
		log:    logger.Log,
	}
	for _, o := range opts {
		o(t)
	}
	t.log = t.log.With("run_id", t.runID.String())

	if err := m.BindParameters(params); err != nil {
		return nil, err
	}
	if err := m.Initialize(cfg.Init, rand.New(rand.NewSource(cfg.Seed))); err != nil {
		return nil, err
	}

	count := m.ParameterCount()
	grads, state, snap := layout.Persistent[0], layout.Persistent[1], layout.Persistent[2]
	t.grads = tensor.BytesFloat32(work[grads.Offset:grads.End()])[:count]
	if err := m.BindGradients(t.grads); err != nil {
		return nil, err
	}
	if err := opt.Bind(m.Parameters(), tensor.BytesFloat32(work[state.Offset:state.End()])); err != nil {
		return nil, err
	}
	if cfg.RestoreBest {
		t.snapshot = tensor.BytesFloat32(work[snap.Offset:snap.End()])[:count]
	}
	if cfg.EarlyStopping.Enabled {
		t.stopper = NewEarlyStopper(cfg.EarlyStopping.Patience, cfg.EarlyStopping.MinDelta)
	}

	t.exec, err = nn.NewExecutor(m, layout, cfg.BatchSize, work)
	if err != nil {
		return nil, err
	}

	metrics.RecordArena("training", layout.Total)
	t.log.Debug("trainer ready",
		"structure", m.Structure(),
		"parameters", m.ParameterCount(),
		"arena_bytes", layout.Total,
		"optimizer", opt.Name(),
		"loss", loss.Kind().String(),
	)
	t.result = Result{RunID: t.runID.String(), State: Idle}
	return t, nil
}

// State returns the current lifecycle state.
func (t *Trainer) State() State { return t.state }

// RunID returns the identifier attached to this run's logs.
func (t *Trainer) RunID() string { return t.runID.String() }

// Layout returns the training arena layout.
func (t *Trainer) Layout() plan.Layout { return t.layout }

// Run trains until a terminal state. val may be nil, in which case the
// training loss is monitored for early stopping and the target loss.
//
// When the run fails, the returned Result carries State Failed and the
// error has kind NumericFailure.
func (t *Trainer) Run(train, val *Dataset) (Result, error) {
	for !t.state.Terminal() {
		if _, err := t.Epoch(train, val); err != nil {
			return t.result, err
		}
	}
	return t.result, nil
}

// Epoch runs one pass over train, then measures the epoch losses and
// advances the state machine. Calling it in a terminal state returns
// InvalidState.
func (t *Trainer) Epoch(train, val *Dataset) (State, error) {
	if t.state.Terminal() {
		return t.state, tensor.Errorf(tensor.InvalidState, "train.epoch", "run already %s", t.state)
	}
	if err := t.checkData(train, val); err != nil {
		return t.state, err
	}
	if t.state == Idle {
		t.state = Running
		t.log.Info("training started",
			"epochs", t.cfg.Epochs,
			"batch_size", t.cfg.BatchSize,
			"rows", train.Rows(),
		)
	}

	start := time.Now()
	t.epoch++
	for b := 0; b < train.batches(t.cfg.BatchSize); b++ {
		x, y := train.batch(b, t.cfg.BatchSize)
		if err := t.Step(x, y); err != nil {
			return t.state, err
		}
	}

	trainLoss, err := t.Evaluate(train)
	if err != nil {
		return t.state, err
	}
	monitored := trainLoss
	var valLoss float32
	if val != nil {
		valLoss, err = t.Evaluate(val)
		if err != nil {
			return t.state, err
		}
		monitored = valLoss
	}
	if !finite(monitored) {
		return t.state, t.fail("epoch_loss", []float32{monitored})
	}

	stats := EpochStats{Epoch: t.epoch, TrainLoss: trainLoss, ValLoss: valLoss}
	t.result.History = append(t.result.History, stats)
	t.result.Epochs = t.epoch
	t.result.TrainLoss = trainLoss
	t.result.ValLoss = valLoss
	t.result.HasVal = val != nil
	metrics.RecordEpoch(trainLoss, valLoss, val != nil, time.Since(start))

	if t.cfg.LogInterval > 0 && t.epoch%t.cfg.LogInterval == 0 {
		t.log.Info("epoch", "epoch", t.epoch, "train_loss", trainLoss, "val_loss", valLoss)
	} else {
		t.log.Debug("epoch", "epoch", t.epoch, "train_loss", trainLoss, "val_loss", valLoss)
	}

	t.advance(monitored)
	return t.state, nil
}

// advance updates the best-epoch bookkeeping and picks the next state.
func (t *Trainer) advance(monitored float32) {
	improved := monitored < t.best
	var stop bool
	if t.stopper != nil {
		improved, stop = t.stopper.Observe(t.epoch, monitored)
	}
	if improved {
		t.best, t.bestAt = monitored, t.epoch
		if t.snapshot != nil {
			copy(t.snapshot, t.params[:len(t.snapshot)])
		}
	}
	t.result.BestEpoch, t.result.BestLoss = t.bestAt, t.best

	switch {
	case t.cfg.TargetLoss > 0 && monitored <= t.cfg.TargetLoss:
		t.finish(Converged)
	case stop:
		t.finish(EarlyStopped)
	case t.epoch >= t.cfg.Epochs:
		t.finish(EpochLimitReached)
	}
}

func (t *Trainer) finish(s State) {
	t.state = s
	if t.snapshot != nil && s != Converged && t.bestAt > 0 && t.bestAt != t.epoch {
		copy(t.params[:len(t.snapshot)], t.snapshot)
		t.result.Restored = true
	}
	t.result.State = s
	t.result.Outcome = s.String()
	metrics.RecordRun(s.String())
	t.log.Info("training finished",
		"state", s.String(),
		"epochs", t.epoch,
		"train_loss", t.result.TrainLoss,
		"val_loss", t.result.ValLoss,
		"best_epoch", t.bestAt,
		"restored", t.result.Restored,
	)
}

// fail moves to Failed and returns a NumericFailure naming the tensor
// that went non-finite.
func (t *Trainer) fail(name string, values []float32) error {
	nan, inf := countNonFinite(values)
	metrics.RecordNumericalInstability(name, nan, inf)
	err := tensor.Errorf(tensor.NumericFailure, "train.step", "%s has %d NaN and %d Inf values at epoch %d", name, nan, inf, t.epoch)
	t.log.Error("numerical instability", "tensor", name, "nan", nan, "inf", inf, "epoch", t.epoch)
	t.finish(Failed)
	return err
}

// Step runs forward, loss, backward and one optimizer update on a single
// batch. Nothing is updated when the loss, any gradient or any updated
// parameter value is NaN or Inf; the trainer moves to Failed instead.
func (t *Trainer) Step(x, y *tensor.Tensor) error {
	if t.state.Terminal() {
		return tensor.Errorf(tensor.InvalidState, "train.step", "run already %s", t.state)
	}
	t.model.ZeroGrad()
	if _, err := t.exec.Forward(x); err != nil {
		return err
	}
	value, err := t.exec.Loss(t.loss, y)
	if err != nil {
		return err
	}
	if !finite(value) {
		return t.fail("loss", []float32{value})
	}
	if err := t.exec.Backward(t.loss, y); err != nil {
		return err
	}
	if !kernel.AllFinite(t.grads) {
		return t.fail("gradients", t.grads)
	}
	// Candidate values land in the gradient buffer; they reach the
	// parameters only when every one of them is finite.
	if err := t.opt.Propose(); err != nil {
		return err
	}
	if !kernel.AllFinite(t.grads) {
		return t.fail("parameters", t.grads)
	}
	t.opt.Commit()
	metrics.RecordBatch()
	return nil
}

// Evaluate returns the mean loss over d without touching parameters or
// gradients. Batches are weighted by their row count.
func (t *Trainer) Evaluate(d *Dataset) (float32, error) {
	if err := d.check(t.model.Inputs(), t.model.Outputs()); err != nil {
		return 0, err
	}
	var total float64
	for b := 0; b < d.batches(t.cfg.BatchSize); b++ {
		x, y := d.batch(b, t.cfg.BatchSize)
		if _, err := t.exec.Forward(x); err != nil {
			return 0, err
		}
		v, err := t.exec.Loss(t.loss, y)
		if err != nil {
			return 0, err
		}
		total += float64(v) * float64(x.Shape()[0])
	}
	return float32(total / float64(d.Rows())), nil
}

func (t *Trainer) checkData(train, val *Dataset) error {
	if train == nil {
		return tensor.Errorf(tensor.ShapeMismatch, "train.epoch", "no training data")
	}
	if err := train.check(t.model.Inputs(), t.model.Outputs()); err != nil {
		return err
	}
	if train.Rows() < t.cfg.BatchSize {
		return tensor.Errorf(tensor.UnsupportedConfiguration, "train.epoch", "batch size %d exceeds %d training rows", t.cfg.BatchSize, train.Rows())
	}
	if val != nil {
		return val.check(t.model.Inputs(), t.model.Outputs())
	}
	return nil
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func countNonFinite(values []float32) (nan, inf int) {
	for _, v := range values {
		switch {
		case math.IsNaN(float64(v)):
			nan++
		case math.IsInf(float64(v), 0):
			inf++
		}
	}
	return nan, inf
}
