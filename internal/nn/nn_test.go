package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/plan"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainingSetup binds m for training at the given batch size and returns its
// executor. Gradients live in the first persistent region of the arena.
func trainingSetup(t *testing.T, m *nn.Model, params []float32, batch int, fused bool) *nn.Executor {
	t.Helper()
	require.NoError(t, m.BindParameters(params))
	layout := m.PlanTraining(batch, fused, 4*m.ParameterCount())
	work := make([]byte, layout.Total)
	g := layout.Persistent[0]
	require.NoError(t, m.BindGradients(tensor.BytesFloat32(work[g.Offset:g.End()])))
	e, err := nn.NewExecutor(m, layout, batch, work)
	require.NoError(t, err)
	return e
}

func inferenceSetup(t *testing.T, m *nn.Model, params []float32, batch int) *nn.Executor {
	t.Helper()
	require.NoError(t, m.BindParameters(params))
	layout := m.PlanInference(batch)
	e, err := nn.NewExecutor(m, layout, batch, make([]byte, layout.Total))
	require.NoError(t, err)
	return e
}

func TestDenseLinearScenario(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(1), nn.Act(nn.KindLinear))
	require.NoError(t, err)
	require.Equal(t, 3, m.ParameterCount())

	e := inferenceSetup(t, m, []float32{2.0, -1.0, 0.5}, 1)
	out, err := e.Forward(mustTensor(t, tensor.Shape{1, 2}, []float32{3.0, 4.0}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1}, out.Shape())
	assert.Equal(t, float32(2.5), out.Float32()[0])
}

func TestFlatWeightsCount(t *testing.T) {
	assert.Equal(t, 13, nn.FlatWeightsCount([]int{2, 3, 1}))
	assert.Equal(t, 0, nn.FlatWeightsCount([]int{4}))

	m, err := nn.NewModel(2, nn.DenseOf(3), nn.Act(nn.KindSigmoid), nn.DenseOf(1), nn.Act(nn.KindLinear))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, m.Structure())
	assert.Equal(t, nn.FlatWeightsCount(m.Structure()), m.ParameterCount())
}

func TestNewModelErrors(t *testing.T) {
	_, err := nn.NewModel(0, nn.DenseOf(1))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = nn.NewModel(2, nn.DenseOf(0))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = nn.NewModel(2)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)
}

func TestForwardDeterministic(t *testing.T) {
	m, err := nn.NewModel(3, nn.DenseOf(5), nn.Act(nn.KindELU), nn.DenseOf(4), nn.Act(nn.KindSoftmax))
	require.NoError(t, err)
	params := make([]float32, m.ParameterCount())
	require.NoError(t, m.BindParameters(params))
	require.NoError(t, m.Initialize(nn.Init{Method: nn.InitGlorotUniform}, rand.New(rand.NewSource(3))))

	e := inferenceSetup(t, m, params, 2)
	input := mustTensor(t, tensor.Shape{2, 3}, []float32{0.1, -0.4, 0.9, 1.5, 0.2, -0.7})

	first, err := e.Forward(input)
	require.NoError(t, err)
	want := append([]float32(nil), first.Float32()...)
	for i := 0; i < 5; i++ {
		out, err := e.Forward(input)
		require.NoError(t, err)
		assert.Equal(t, want, out.Float32())
	}
}

func TestPartialBatch(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(1), nn.Act(nn.KindLinear))
	require.NoError(t, err)
	e := inferenceSetup(t, m, []float32{1, 1, 0}, 4)

	out, err := e.Forward(mustTensor(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 7}, out.Float32())

	_, err = e.Forward(mustTensor(t, tensor.Shape{5, 2}, make([]float32, 10)))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPartialBatchBackward(t *testing.T) {
	grads := func(batch int) []float32 {
		m, err := nn.NewModel(2, nn.DenseOf(3), nn.Act(nn.KindTanh), nn.DenseOf(1))
		require.NoError(t, err)
		loss, err := nn.NewLoss(nn.LossMSE, m)
		require.NoError(t, err)
		e := trainingSetup(t, m, []float32{0.1, -0.2, 0.3, 0.4, -0.5, 0.6, 0.05, -0.05, 0.1, 0.7, -0.3, 0.2, 0.01}, batch, loss.Fused())

		m.ZeroGrad()
		_, err = e.Forward(mustTensor(t, tensor.Shape{2, 2}, []float32{1, -1, 0.5, 2}))
		require.NoError(t, err)
		v, err := e.Loss(loss, mustTensor(t, tensor.Shape{2, 1}, []float32{0.3, -0.4}))
		require.NoError(t, err)
		assert.Positive(t, v)
		require.NoError(t, e.Backward(loss, mustTensor(t, tensor.Shape{2, 1}, []float32{0.3, -0.4})))

		var out []float32
		for _, p := range m.Parameters() {
			out = append(out, p.Grad().Float32()...)
		}
		return out
	}

	full := grads(2)
	partial := grads(8)
	require.Len(t, partial, len(full))
	for i := range full {
		assert.InDelta(t, full[i], partial[i], 1e-6, "grad %d", i)
	}
}

func TestBufferTooSmall(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(8), nn.Act(nn.KindReLU), nn.DenseOf(1))
	require.NoError(t, err)

	err = m.BindParameters(make([]float32, m.ParameterCount()-1))
	assert.ErrorIs(t, err, tensor.ErrBufferTooSmall)

	require.NoError(t, m.BindParameters(make([]float32, m.ParameterCount())))
	layout := m.PlanInference(4)
	_, err = nn.NewExecutor(m, layout, 4, make([]byte, layout.Total-1))
	assert.ErrorIs(t, err, tensor.ErrBufferTooSmall)
}

func TestBackwardWithoutForward(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(2), nn.Act(nn.KindTanh))
	require.NoError(t, err)
	e := trainingSetup(t, m, make([]float32, m.ParameterCount()), 1, false)
	loss, err := nn.NewLoss(nn.LossMSE, m)
	require.NoError(t, err)
	target := mustTensor(t, tensor.Shape{1, 2}, []float32{0, 1})

	err = e.Backward(loss, target)
	assert.ErrorIs(t, err, tensor.ErrInvalidState)

	_, err = e.Forward(mustTensor(t, tensor.Shape{1, 2}, []float32{1, 2}))
	require.NoError(t, err)
	require.NoError(t, e.Backward(loss, target))
	assert.ErrorIs(t, e.Backward(loss, target), tensor.ErrInvalidState)
}

func TestBackwardOnInferenceLayout(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(1))
	require.NoError(t, err)
	e := inferenceSetup(t, m, make([]float32, 3), 1)
	loss, err := nn.NewLoss(nn.LossMSE, m)
	require.NoError(t, err)
	_, err = e.Forward(mustTensor(t, tensor.Shape{1, 2}, []float32{1, 2}))
	require.NoError(t, err)
	assert.ErrorIs(t, e.Backward(loss, mustTensor(t, tensor.Shape{1, 1}, []float32{0})), tensor.ErrInvalidState)
}

func TestNewLossValidation(t *testing.T) {
	softmax, _ := nn.NewModel(2, nn.DenseOf(2), nn.Act(nn.KindSoftmax))
	sigmoid, _ := nn.NewModel(2, nn.DenseOf(1), nn.Act(nn.KindSigmoid))
	relu, _ := nn.NewModel(2, nn.DenseOf(2), nn.Act(nn.KindReLU))

	_, err := nn.NewLoss(nn.LossMSE, softmax)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	_, err = nn.NewLoss(nn.LossCrossEntropy, relu)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	l, err := nn.NewLoss(nn.LossCrossEntropy, sigmoid)
	require.NoError(t, err)
	assert.True(t, l.Fused())

	l, err = nn.NewLoss(nn.LossMSE, relu)
	require.NoError(t, err)
	assert.False(t, l.Fused())
}

// lossAt runs a forward pass and returns the loss with the current params.
func lossAt(t *testing.T, e *nn.Executor, loss nn.Loss, x, y *tensor.Tensor) float64 {
	t.Helper()
	_, err := e.Forward(x)
	require.NoError(t, err)
	v, err := e.Loss(loss, y)
	require.NoError(t, err)
	return float64(v)
}

func checkParameterGradients(t *testing.T, m *nn.Model, kind nn.LossKind, x, y *tensor.Tensor) {
	t.Helper()
	params := make([]float32, m.ParameterCount())
	require.NoError(t, m.BindParameters(params))
	require.NoError(t, m.Initialize(nn.Init{Method: nn.InitUniform, Min: -0.8, Max: 0.8}, rand.New(rand.NewSource(11))))

	loss, err := nn.NewLoss(kind, m)
	require.NoError(t, err)
	e := trainingSetup(t, m, params, x.Shape().Rows(), loss.Fused())

	m.ZeroGrad()
	_, err = e.Forward(x)
	require.NoError(t, err)
	require.NoError(t, e.Backward(loss, y))

	var analytic []float32
	for _, p := range m.Parameters() {
		analytic = append(analytic, p.Grad().Float32()...)
	}
	require.Len(t, analytic, len(params))

	for i := range params {
		orig := params[i]
		params[i] = orig + gradStep
		plus := lossAt(t, e, loss, x, y)
		params[i] = orig - gradStep
		minus := lossAt(t, e, loss, x, y)
		params[i] = orig
		numeric := (plus - minus) / (2 * gradStep)
		assert.InDelta(t, numeric, analytic[i], gradTol, "param %d", i)
	}
}

func TestParameterGradientsMSE(t *testing.T) {
	m, err := nn.NewModel(3, nn.DenseOf(4), nn.Act(nn.KindTanh), nn.DenseOf(2), nn.Act(nn.KindLinear))
	require.NoError(t, err)
	x := mustTensor(t, tensor.Shape{2, 3}, []float32{0.5, -1, 0.25, -0.3, 0.8, 1.2})
	y := mustTensor(t, tensor.Shape{2, 2}, []float32{1, -1, 0.5, 0})
	checkParameterGradients(t, m, nn.LossMSE, x, y)
}

func TestParameterGradientsSoftmaxCrossEntropy(t *testing.T) {
	m, err := nn.NewModel(3, nn.DenseOf(4), nn.Act(nn.KindSigmoid), nn.DenseOf(3), nn.Act(nn.KindSoftmax))
	require.NoError(t, err)
	x := mustTensor(t, tensor.Shape{2, 3}, []float32{0.5, -1, 0.25, -0.3, 0.8, 1.2})
	y := mustTensor(t, tensor.Shape{2, 3}, []float32{1, 0, 0, 0, 0, 1})
	checkParameterGradients(t, m, nn.LossCrossEntropy, x, y)
}

func TestParameterGradientsBinaryCrossEntropy(t *testing.T) {
	m, err := nn.NewModel(2, nn.DenseOf(3), nn.Act(nn.KindTanh), nn.DenseOf(1), nn.Act(nn.KindSigmoid))
	require.NoError(t, err)
	x := mustTensor(t, tensor.Shape{3, 2}, []float32{0.5, -1, -0.3, 0.8, 1.1, 0.4})
	y := mustTensor(t, tensor.Shape{3, 1}, []float32{1, 0, 1})
	checkParameterGradients(t, m, nn.LossCrossEntropy, x, y)
}

func TestTrainingLayoutIsTighterThanNaive(t *testing.T) {
	m, err := nn.NewModel(4, nn.DenseOf(16), nn.Act(nn.KindReLU), nn.DenseOf(16), nn.Act(nn.KindReLU), nn.DenseOf(2))
	require.NoError(t, err)
	layout := m.PlanTraining(8, false)
	assert.Equal(t, plan.ModeTraining, layout.Mode)

	naive := 0
	for _, node := range m.Nodes(8, tensor.Float32) {
		naive += 2 * node.Bytes
	}
	assert.Less(t, layout.Total, naive)
}

func TestInitialize(t *testing.T) {
	m, err := nn.NewModel(3, nn.DenseOf(4))
	require.NoError(t, err)
	params := make([]float32, m.ParameterCount())

	assert.ErrorIs(t, m.Initialize(nn.Init{}, rand.New(rand.NewSource(1))), tensor.ErrInvalidState)
	require.NoError(t, m.BindParameters(params))
	assert.False(t, m.Initialized())

	err = m.Initialize(nn.Init{Method: nn.InitUniform, Min: 1, Max: 1}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)

	require.NoError(t, m.Initialize(nn.Init{Method: nn.InitUniform, Min: 0.5, Max: 0.75}, rand.New(rand.NewSource(1))))
	for _, v := range params {
		assert.GreaterOrEqual(t, v, float32(0.5))
		assert.LessOrEqual(t, v, float32(0.75))
	}

	require.NoError(t, m.Initialize(nn.Init{Method: nn.InitGlorotUniform}, rand.New(rand.NewSource(1))))
	for _, v := range params[12:] {
		assert.Zero(t, v, "glorot zeroes biases")
	}
	assert.True(t, m.Initialized())
}
