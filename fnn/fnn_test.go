// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package fnn_test

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/logger"
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/optim"
	"github.com/born-ml/tinyfnn/internal/tensor"
	"github.com/born-ml/tinyfnn/internal/train"
)

func TestInferenceDense(t *testing.T) {
	m, err := fnn.NewModel(2, nn.DenseOf(1))
	require.NoError(t, err)
	require.Equal(t, 3, fnn.ParameterCount(m))

	x, err := tensor.FromFloat32(tensor.Shape{1, 2}, []float32{1, 1.5})
	require.NoError(t, err)
	work := make([]byte, fnn.InferenceMemory(m, 1))

	out, err := fnn.Inference(m, []float32{0.5, 1, 0.5}, x, work)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 1}, out.Shape())
	assert.InDelta(t, 2.5, out.Float32()[0], 1e-6)
}

func TestInferenceErrors(t *testing.T) {
	m, err := fnn.NewModel(2, nn.DenseOf(4), nn.Act(nn.KindReLU), nn.DenseOf(1))
	require.NoError(t, err)
	params := make([]float32, fnn.ParameterCount(m))

	x, err := tensor.FromFloat32(tensor.Shape{2, 3}, make([]float32, 6))
	require.NoError(t, err)
	_, err = fnn.Inference(m, params, x, make([]byte, fnn.InferenceMemory(m, 2)))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	x, err = tensor.FromFloat32(tensor.Shape{2, 2}, make([]float32, 4))
	require.NoError(t, err)
	_, err = fnn.Inference(m, params, x, make([]byte, fnn.InferenceMemory(m, 2)-1))
	assert.ErrorIs(t, err, tensor.ErrBufferTooSmall)

	_, err = fnn.Inference(m, params[:3], x, make([]byte, fnn.InferenceMemory(m, 2)))
	assert.ErrorIs(t, err, tensor.ErrBufferTooSmall)
}

func TestFlatWeightsCount(t *testing.T) {
	assert.Equal(t, 13, fnn.FlatWeightsCount([]int{2, 3, 1}))
	assert.Equal(t, 0, fnn.FlatWeightsCount([]int{4}))
}

func TestQuantizeUntrained(t *testing.T) {
	m, err := fnn.NewModel(2, nn.DenseOf(1))
	require.NoError(t, err)
	x, err := tensor.FromFloat32(tensor.Shape{1, 2}, []float32{0, 0})
	require.NoError(t, err)
	_, err = fnn.Quantize(m, make([]float32, 3), x, nil)
	assert.ErrorIs(t, err, tensor.ErrUnsupportedConfiguration)
}

// separable returns n points in [-1,1]^2 labeled one-hot by the sign of
// x0+x1, away from the boundary.
func separable(t *testing.T, n int, seed int64) *fnn.Dataset {
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
	d, err := fnn.NewDataset(x, 2, y, 2)
	require.NoError(t, err)
	return d
}

func argmax2(row []float32) int {
	if row[1] > row[0] {
		return 1
	}
	return 0
}

func TestTrainQuantizeSaveLoad(t *testing.T) {
	m, err := fnn.NewModel(2, nn.DenseOf(8), nn.Act(nn.KindTanh), nn.DenseOf(2), nn.Act(nn.KindSoftmax))
	require.NoError(t, err)
	trainSet := separable(t, 64, 1)
	valSet := separable(t, 32, 2)

	cfg := fnn.DefaultTrainConfig(nn.LossCrossEntropy)
	cfg.Optimizer = optim.Config{Kind: optim.KindAdam, LR: 0.05}
	cfg.Epochs = 200
	cfg.BatchSize = 8
	cfg.Seed = 7

	need, err := fnn.TrainingMemory(m, cfg)
	require.NoError(t, err)
	params := make([]float32, fnn.ParameterCount(m))
	res, err := fnn.Train(m, cfg, trainSet, valSet, params, make([]byte, need), train.WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.True(t, res.State.Terminal())
	require.NotEqual(t, train.Failed, res.State)
	assert.True(t, res.HasVal)

	// Float predictions on the validation rows.
	rows := valSet.Rows()
	out, err := fnn.Inference(m, params, valSet.X, make([]byte, fnn.InferenceMemory(m, rows)))
	require.NoError(t, err)
	want := make([]int, rows)
	correct := 0
	for i := range want {
		want[i] = argmax2(out.Float32()[2*i : 2*i+2])
		if want[i] == argmax2(valSet.Y.Float32()[2*i:2*i+2]) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, rows*9/10)

	qres, err := fnn.Quantize(m, params, trainSet.X, nil)
	require.NoError(t, err)
	assert.Equal(t, "affine", qres.Scheme)

	qx, err := fnn.QuantizeInput(qres.Model, valSet.X)
	require.NoError(t, err)
	qwork := make([]byte, fnn.InferenceQ7Memory(qres.Model, rows))
	qout, err := fnn.InferenceQ7(qres.Model, qres.Params, qx, qwork)
	require.NoError(t, err)
	assert.Equal(t, tensor.Q7, qout.DType())
	deq, err := fnn.Dequantize(qout)
	require.NoError(t, err)

	agree := 0
	for i := range want {
		if argmax2(deq.Float32()[2*i:2*i+2]) == want[i] {
			agree++
		}
	}
	assert.GreaterOrEqual(t, agree, rows*9/10)
	firstQ := append([]int8(nil), qout.Int8()...)

	dir := t.TempDir()
	floatPath := filepath.Join(dir, "model.tfnn")
	require.NoError(t, fnn.SaveModel(floatPath, m, params, &res))
	m2, params2, err := fnn.LoadModel(floatPath)
	require.NoError(t, err)
	assert.Equal(t, params, params2)
	assert.Equal(t, m.Structure(), m2.Structure())
	assert.True(t, m2.Initialized())

	q7Path := filepath.Join(dir, "model.q7.tfnn")
	require.NoError(t, fnn.SaveQ7(q7Path, qres))
	q2, packed, err := fnn.LoadQ7(q7Path)
	require.NoError(t, err)
	assert.Equal(t, qres.Params, packed)

	qx2, err := fnn.QuantizeInput(q2, valSet.X)
	require.NoError(t, err)
	qout2, err := fnn.InferenceQ7(q2, packed, qx2, make([]byte, fnn.InferenceQ7Memory(q2, rows)))
	require.NoError(t, err)
	assert.Equal(t, firstQ, qout2.Int8())
}
