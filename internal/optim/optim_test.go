package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

// singleDense returns a 1->1 Dense model whose weight and bias are the two
// entries of params, with gradients bound to grads.
func singleDense(t *testing.T, params, grads []float32) *nn.Model {
	t.Helper()
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	require.NoError(t, m.BindParameters(params))
	require.NoError(t, m.BindGradients(grads))
	return m
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	params := []float32{2.0, -1.0}
	grads := []float32{1.0, -0.5}
	m := singleDense(t, params, grads)

	opt, err := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)
	assert.Zero(t, opt.StateSize(2))
	require.NoError(t, opt.Bind(m.Parameters(), nil))
	require.NoError(t, opt.Step())

	// Expected: x_new = x_old - lr * grad
	if !floatEqual(params[0], 1.9, 1e-6) {
		t.Errorf("weight = %f, want 1.9", params[0])
	}
	if !floatEqual(params[1], -0.95, 1e-6) {
		t.Errorf("bias = %f, want -0.95", params[1])
	}
}

// TestSGD_Momentum tests velocity accumulation across steps.
func TestSGD_Momentum(t *testing.T) {
	params := []float32{1.0, 0.0}
	grads := []float32{1.0, 0.0}
	m := singleDense(t, params, grads)

	opt, err := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, err)
	state := make([]float32, opt.StateSize(m.ParameterCount()))
	require.NoError(t, opt.Bind(m.Parameters(), state))

	require.NoError(t, opt.Step()) // v = 1, p = 1 - 0.1
	require.NoError(t, opt.Step()) // v = 1.9, p = 0.9 - 0.19
	assert.InDelta(t, 0.71, params[0], 1e-6)
	assert.InDelta(t, 1.9, state[0], 1e-6)
}

// TestAdam_FirstStep checks the bias-corrected first update: with m_hat =
// g and v_hat = g^2 the step is lr * g / (|g| + eps).
func TestAdam_FirstStep(t *testing.T) {
	params := []float32{0.5, 0.5}
	grads := []float32{0.2, -4.0}
	m := singleDense(t, params, grads)

	opt, err := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	require.NoError(t, err)
	require.Equal(t, 4, opt.StateSize(2))
	state := make([]float32, 4)
	require.NoError(t, opt.Bind(m.Parameters(), state))
	require.NoError(t, opt.Step())

	assert.InDelta(t, 0.5-0.01*0.2/(0.2+1e-7), params[0], 1e-6)
	assert.InDelta(t, 0.5+0.01*4/(4+1e-7), params[1], 1e-6)
	assert.Equal(t, 1, opt.Steps())
}

// TestAdam_MatchesReference runs several steps against a float64 reference.
func TestAdam_MatchesReference(t *testing.T) {
	params := []float32{1.0, -2.0}
	grads := []float32{0, 0}
	model := singleDense(t, params, grads)

	opt, err := optim.NewAdam(optim.AdamConfig{LR: 0.05, Betas: [2]float32{0.8, 0.99}, Eps: 1e-6})
	require.NoError(t, err)
	require.NoError(t, opt.Bind(model.Parameters(), make([]float32, 4)))

	ref := []float64{1.0, -2.0}
	var m, v [2]float64
	for step := 1; step <= 10; step++ {
		// Gradient of 0.5*p^2 is p.
		for i := range grads {
			grads[i] = params[i]
		}
		require.NoError(t, opt.Step())

		for i := range ref {
			g := ref[i]
			m[i] = 0.8*m[i] + 0.2*g
			v[i] = 0.99*v[i] + 0.01*g*g
			mHat := m[i] / (1 - math.Pow(0.8, float64(step)))
			vHat := v[i] / (1 - math.Pow(0.99, float64(step)))
			ref[i] -= 0.05 * mHat / (math.Sqrt(vHat) + 1e-6)
		}
	}
	assert.InDelta(t, ref[0], params[0], 1e-4)
	assert.InDelta(t, ref[1], params[1], 1e-4)
	assert.Less(t, math.Abs(float64(params[0])), 1.0, "moves towards the minimum")
}

func TestZeroGrad(t *testing.T) {
	grads := []float32{3, 4}
	m := singleDense(t, []float32{0, 0}, grads)
	opt, err := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	require.NoError(t, err)
	require.NoError(t, opt.Bind(m.Parameters(), make([]float32, 4)))
	opt.ZeroGrad()
	assert.Equal(t, []float32{0, 0}, grads)
}

func TestConfigValidation(t *testing.T) {
	_, err := optim.NewSGD(optim.SGDConfig{LR: -1})
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	_, err = optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: -0.5})
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	_, err = optim.NewAdam(optim.AdamConfig{LR: -0.1})
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	_, err = optim.NewAdam(optim.AdamConfig{LR: 0.1, Betas: [2]float32{1, 0.9}})
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	_, err = optim.ParseKind("rmsprop")
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	opt, err := optim.New(optim.Config{Kind: optim.KindAdam, LR: 0.01})
	require.NoError(t, err)
	assert.Equal(t, "adam", opt.Name())
	assert.Equal(t, float32(0.01), opt.GetLR())

	n, err := optim.StateBytes(optim.Config{Kind: optim.KindAdam}, 10)
	require.NoError(t, err)
	assert.Equal(t, 80, n)
}

func TestBindErrors(t *testing.T) {
	m, err := nn.NewModel(1, nn.DenseOf(1))
	require.NoError(t, err)
	require.NoError(t, m.BindParameters(make([]float32, 2)))

	opt, err := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	require.NoError(t, err)
	assert.ErrorIs(t, opt.Bind(m.Parameters(), make([]float32, 4)), tensor.ErrInvalidState)

	require.NoError(t, m.BindGradients(make([]float32, 2)))
	assert.ErrorIs(t, opt.Bind(m.Parameters(), make([]float32, 3)), tensor.ErrBufferTooSmall)
}

// TestProposeLeavesParameters checks that candidate values are written to
// the gradient buffer and reach the parameters only on Commit.
func TestProposeLeavesParameters(t *testing.T) {
	params := []float32{2.0, -1.0}
	grads := []float32{1.0, -0.5}
	m := singleDense(t, params, grads)

	opt, err := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	require.NoError(t, err)
	require.NoError(t, opt.Bind(m.Parameters(), nil))
	require.NoError(t, opt.Propose())

	assert.Equal(t, []float32{2.0, -1.0}, params)
	assert.InDelta(t, 1.9, grads[0], 1e-6)
	assert.InDelta(t, -0.95, grads[1], 1e-6)

	opt.Commit()
	assert.Equal(t, grads, params)
}

func TestProposeOverflowIsVisible(t *testing.T) {
	params := []float32{0, 0}
	grads := []float32{-150, -50}
	m := singleDense(t, params, grads)

	opt, err := optim.NewSGD(optim.SGDConfig{LR: 1e38})
	require.NoError(t, err)
	require.NoError(t, opt.Bind(m.Parameters(), nil))
	require.NoError(t, opt.Propose())

	assert.True(t, math.IsInf(float64(grads[0]), 1))
	assert.Equal(t, []float32{0, 0}, params)
}

// TestAdam_ZeroBetasSelectDefaults documents that zero betas and eps mean
// the defaults rather than literal zeros.
func TestAdam_ZeroBetasSelectDefaults(t *testing.T) {
	run := func(cfg optim.AdamConfig) []float32 {
		params := []float32{1.0, -2.0}
		grads := []float32{0, 0}
		m := singleDense(t, params, grads)
		opt, err := optim.NewAdam(cfg)
		require.NoError(t, err)
		require.NoError(t, opt.Bind(m.Parameters(), make([]float32, 4)))
		for step := 0; step < 5; step++ {
			copy(grads, params)
			require.NoError(t, opt.Step())
		}
		return params
	}

	implicit := run(optim.AdamConfig{LR: 0.05})
	explicit := run(optim.AdamConfig{
		LR:    0.05,
		Betas: [2]float32{optim.DefaultBeta1, optim.DefaultBeta2},
		Eps:   optim.DefaultEps,
	})
	assert.Equal(t, explicit, implicit)
}
