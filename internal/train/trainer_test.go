package train_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/born-ml/tinyfnn/internal/train"
)

// separable returns n points in [-1,1]^2 labeled by the sign of x0+x1,
// keeping a margin around the boundary.
func separable(t *testing.T, n int, seed int64) *train.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := make([]float32, 0, 2*n)
	y := make([]float32, 0, 2*n)
	for len(x) < 2*n {
		a, b := rng.Float32()*2-1, rng.Float32()*2-1
		if math.Abs(float64(a+b)) < 0.3 {
			continue
		}
		x = append(x, a, b)
		if a+b > 0 {
			y = append(y, 0, 1)
		} else {
			y = append(y, 1, 0)
		}
	}
	d, err := train.NewDataset(x, 2, y, 2)
	require.NoError(t, err)
	return d
}

// line returns 16 evenly spaced samples of y = 2x + 1 on [-1, 1].
func line(t *testing.T) *train.Dataset {
	t.Helper()
	x := make([]float32, 16)
	y := make([]float32, 16)
	for i := range x {
		x[i] = -1 + 2*float32(i)/15
		y[i] = 2*x[i] + 1
	}
	d, err := train.NewDataset(x, 1, y, 1)
	require.NoError(t, err)
	return d
}

func newTrainer(t *testing.T, m *nn.Model, cfg train.Config, rows int) (*train.Trainer, []float32) {
	t.Helper()
	need, err := train.Memory(m, cfg)
	require.NoError(t, err)
	params := make([]float32, m.ParameterCount())
	tr, err := train.New(m, cfg, params, make([]byte, need), rows, train.WithLogger(logger.Nop()))
	require.NoError(t, err)
	return tr, params
}

func TestTrainSeparableClasses(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(8), nn.Act(nn.KindTanh), nn.DenseOf(2), nn.Act(nn.KindSoftmax))
	require.NoError(t, err)
	data := separable(t, 64, 1)

	cfg := train.Config{
		Loss:      nn.LossCrossEntropy,
		Optimizer: optim.Config{Kind: optim.KindAdam, LR: 0.05},
		Init:      nn.Init{Method: nn.InitGlorotUniform},
		Epochs:    200,
		BatchSize: 8,
		Seed:      7,
	}
	tr, _ := newTrainer(t, m, cfg, data.Rows())
	assert.Equal(t, train.Idle, tr.State())
	assert.NotEmpty(t, tr.RunID())

	res, err := tr.Run(data, nil)
	require.NoError(t, err)
	assert.Equal(t, train.EpochLimitReached, res.State)
	assert.Equal(t, "epoch_limit_reached", res.Outcome)
	assert.Equal(t, 200, res.Epochs)
	assert.Len(t, res.History, 200)
	assert.Less(t, res.TrainLoss, float32(0.1))
	assert.Less(t, res.TrainLoss, res.History[0].TrainLoss)
	assert.False(t, res.HasVal)

	_, err = tr.Epoch(data, nil)
	assert.ErrorIs(t, err, tensor.ErrInvalidState)
}

func TestEarlyStopOnFlatValidation(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	data := line(t)

	// A zero learning rate keeps the validation loss constant, so the best
	// epoch is the first and the run stops Patience epochs later.
	cfg := train.Config{
		Loss:          nn.LossMSE,
		Optimizer:     optim.Config{Kind: optim.KindSGD, LR: 0},
		Init:          nn.Init{Method: nn.InitUniform},
		Epochs:        50,
		BatchSize:     4,
		EarlyStopping: train.EarlyStopping{Enabled: true, Patience: 3},
	}
	tr, _ := newTrainer(t, m, cfg, data.Rows())
	res, err := tr.Run(data, data)
	require.NoError(t, err)
	assert.Equal(t, train.EarlyStopped, res.State)
	assert.Equal(t, 4, res.Epochs)
	assert.Equal(t, 1, res.BestEpoch)
	assert.True(t, res.HasVal)
	assert.Equal(t, res.TrainLoss, res.ValLoss)
}

func TestNaNFailsWithoutUpdate(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	x := []float32{1, float32(math.NaN()), 2, 3}
	y := []float32{1, 1, 1, 1}
	data, err := train.NewDataset(x, 1, y, 1)
	require.NoError(t, err)

	cfg := train.Config{
		Loss:      nn.LossMSE,
		Optimizer: optim.Config{Kind: optim.KindSGD, LR: 0.1},
		Init:      nn.Init{Method: nn.InitUniform},
		Epochs:    5,
		BatchSize: 4,
	}
	tr, params := newTrainer(t, m, cfg, data.Rows())
	before := append([]float32(nil), params...)

	res, err := tr.Run(data, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrNumericFailure)
	assert.Equal(t, train.Failed, res.State)
	assert.Equal(t, train.Failed, tr.State())
	assert.Equal(t, before, params)
}

// An update that overflows float32 must fail the run before any weight is
// written, even though the loss and gradients of the batch are finite.
func TestOverflowingUpdateFailsWithoutUpdate(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	data, err := train.NewDataset([]float32{1, 2, 3, 4}, 1, []float32{10, 20, 30, 40}, 1)
	require.NoError(t, err)

	cfg := train.Config{
		Loss:      nn.LossMSE,
		Optimizer: optim.Config{Kind: optim.KindSGD, LR: 1e38},
		Init:      nn.Init{Method: nn.InitNone},
		Epochs:    5,
		BatchSize: 4,
	}
	tr, params := newTrainer(t, m, cfg, data.Rows())
	before := append([]float32(nil), params...)

	// Loss 750, dW = -150 and db = -50 are finite; w and b would not be.
	x, err := data.X.Rows(0, 4)
	require.NoError(t, err)
	y, err := data.Y.Rows(0, 4)
	require.NoError(t, err)
	err = tr.Step(x, y)
	require.Error(t, err)
	assert.ErrorIs(t, err, tensor.ErrNumericFailure)
	assert.Equal(t, train.Failed, tr.State())
	for i := range before {
		assert.Equal(t, math.Float32bits(before[i]), math.Float32bits(params[i]), "param %d", i)
	}

	// The same holds when the update happens inside a full run.
	m2, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	tr2, params2 := newTrainer(t, m2, cfg, data.Rows())
	res, err := tr2.Run(data, nil)
	assert.ErrorIs(t, err, tensor.ErrNumericFailure)
	assert.Equal(t, train.Failed, res.State)
	assert.Equal(t, []float32{0, 0}, params2)
	assert.Empty(t, res.History)
}

func TestTargetLossConverges(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	data := line(t)

	cfg := train.Config{
		Loss:       nn.LossMSE,
		Optimizer:  optim.Config{Kind: optim.KindSGD, LR: 0.2},
		Init:       nn.Init{Method: nn.InitNone},
		Epochs:     1000,
		BatchSize:  16,
		TargetLoss: 1e-4,
	}
	tr, params := newTrainer(t, m, cfg, data.Rows())
	res, err := tr.Run(data, nil)
	require.NoError(t, err)
	assert.Equal(t, train.Converged, res.State)
	assert.Less(t, res.Epochs, 1000)
	assert.LessOrEqual(t, res.TrainLoss, float32(1e-4))
	assert.InDelta(t, 2, params[0], 0.05)
	assert.InDelta(t, 1, params[1], 0.05)
}

func TestEpochLimit(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	data := line(t)

	cfg := train.DefaultConfig(nn.LossMSE)
	cfg.Epochs = 3
	cfg.BatchSize = 5 // leaves a partial final batch
	tr, _ := newTrainer(t, m, cfg, data.Rows())

	state, err := tr.Epoch(data, nil)
	require.NoError(t, err)
	assert.Equal(t, train.Running, state)

	res, err := tr.Run(data, nil)
	require.NoError(t, err)
	assert.Equal(t, train.EpochLimitReached, res.State)
	assert.Equal(t, 3, res.Epochs)
	assert.Len(t, res.History, 3)
}

func TestRestoreBest(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	data := line(t)

	// A learning rate of 1.5 doubles the bias error every step, so the loss
	// grows after the first epoch.
	cfg := train.Config{
		Loss:          nn.LossMSE,
		Optimizer:     optim.Config{Kind: optim.KindSGD, LR: 1.5},
		Init:          nn.Init{Method: nn.InitNone},
		Epochs:        20,
		BatchSize:     16,
		EarlyStopping: train.EarlyStopping{Enabled: true, Patience: 2},
		RestoreBest:   true,
	}
	tr, params := newTrainer(t, m, cfg, data.Rows())
	_, err = tr.Epoch(data, nil)
	require.NoError(t, err)
	best := append([]float32(nil), params...)

	res, err := tr.Run(data, nil)
	require.NoError(t, err)
	assert.Equal(t, train.EarlyStopped, res.State)
	assert.Equal(t, 3, res.Epochs)
	assert.Equal(t, 1, res.BestEpoch)
	assert.True(t, res.Restored)
	assert.Equal(t, best, params)
}

func TestConfigValidation(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(2), nn.Act(nn.KindSoftmax))
	require.NoError(t, err)

	cfg := train.DefaultConfig(nn.LossCrossEntropy)
	cfg.Epochs = 0
	cfg.BatchSize = 100
	err = cfg.Validate(m, 10)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)
	assert.Len(t, multierr.Errors(err), 2)

	cfg = train.DefaultConfig(nn.LossMSE)
	assert.ErrorIs(t, cfg.Validate(m, 100), tensor.ErrUnsupportedConfiguration, "softmax needs cross-entropy")

	cfg = train.DefaultConfig(nn.LossCrossEntropy)
	cfg.EarlyStopping.Enabled = true
	cfg.EarlyStopping.Patience = 0
	assert.ErrorIs(t, cfg.Validate(m, 100), tensor.ErrUnsupportedConfiguration)

	cfg.EarlyStopping.Patience = 5
	assert.NoError(t, cfg.Validate(m, 100))
}

func TestArenaTooSmall(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(4), nn.Act(nn.KindReLU), nn.DenseOf(1))
	require.NoError(t, err)
	cfg := train.DefaultConfig(nn.LossMSE)
	cfg.BatchSize = 4

	need, err := train.Memory(m, cfg)
	require.NoError(t, err)
	layout, err := train.Layout(m, cfg)
	require.NoError(t, err)
	assert.Equal(t, need, layout.Total)
	assert.Len(t, layout.Persistent, 3)

	_, err = train.New(m, cfg, make([]float32, m.ParameterCount()), make([]byte, need-1), 16)
	assert.ErrorIs(t, err, tensor.ErrBufferTooSmall)
}

func TestDatasetShapes(t *testing.T) {
	_, err := train.NewDataset([]float32{1, 2, 3}, 2, []float32{1}, 1)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	_, err = train.NewDataset([]float32{1, 2}, 1, []float32{1}, 1)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	m, err := nn.NewModel(2, nn.DenseOf(1))
	require.NoError(t, err)
	cfg := train.DefaultConfig(nn.LossMSE)
	cfg.BatchSize = 1
	tr, _ := newTrainer(t, m, cfg, 2)

	wrong := line(t) // one input column
	_, err = tr.Epoch(wrong, nil)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.Equal(t, train.Idle, tr.State())
}

func TestEarlyStopper(t *testing.T) {
	s := train.NewEarlyStopper(3, 0.1)
	losses := []float32{1.0, 0.8, 0.75, 0.72, 0.5, 0.49, 0.48, 0.47, 0.1}
	var stopAt int
	for i, l := range losses {
		_, stop := s.Observe(i+1, l)
		if stop {
			stopAt = i + 1
			break
		}
	}
	// Improvements beyond 0.1 at epochs 1, 2 and 5; epochs 6 to 8 do not.
	assert.Equal(t, 8, stopAt)
	best, epoch := s.Best()
	assert.Equal(t, float32(0.5), best)
	assert.Equal(t, 5, epoch)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "early_stopped", train.EarlyStopped.String())
	assert.False(t, train.Running.Terminal())
	assert.True(t, train.Failed.Terminal())
}
