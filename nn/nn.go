// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/tinyfnn/internal/nn"
	"github.com/born-ml/tinyfnn/internal/plan"
)

// Layer is the interface every float32 layer implements.
type Layer = nn.Layer

// Parameter is a named trainable tensor with its gradient.
type Parameter = nn.Parameter

// Kind identifies a layer variant.
type Kind = nn.Kind

// Layer variants.
const (
	KindDense     = nn.KindDense
	KindReLU      = nn.KindReLU
	KindLeakyReLU = nn.KindLeakyReLU
	KindELU       = nn.KindELU
	KindSigmoid   = nn.KindSigmoid
	KindSoftmax   = nn.KindSoftmax
	KindTanh      = nn.KindTanh
	KindSoftsign  = nn.KindSoftsign
	KindLinear    = nn.KindLinear
)

// Spec describes one layer of a model to be built.
type Spec = nn.Spec

// DenseOf returns a Dense spec with the given number of units.
func DenseOf(units int) Spec { return nn.DenseOf(units) }

// Act returns a parameter-free activation spec.
func Act(kind Kind) Spec { return nn.Act(kind) }

// ActAlpha returns an activation spec with an explicit slope.
func ActAlpha(kind Kind, alpha float32) Spec { return nn.ActAlpha(kind, alpha) }

// ParseKind converts a layer type name into a Kind.
func ParseKind(s string) (Kind, error) { return nn.ParseKind(s) }

// Model is an ordered chain of layers.
type Model = nn.Model

// NewModel builds a model for inputs features from layer specs.
//
// Example:
//
//	m, err := nn.NewModel(2, nn.DenseOf(1))
func NewModel(inputs int, specs ...Spec) (*Model, error) {
	return nn.NewModel(inputs, specs...)
}

// FlatWeightsCount returns the parameter count of a fully connected network
// given its layer widths, input first.
func FlatWeightsCount(structure []int) int { return nn.FlatWeightsCount(structure) }

// Init configures parameter initialization.
type Init = nn.Init

// InitMethod selects how Dense parameters are filled.
type InitMethod = nn.InitMethod

// Initialization methods.
const (
	InitUniform       = nn.InitUniform
	InitGlorotUniform = nn.InitGlorotUniform
	InitNone          = nn.InitNone
)

// Loss scores predictions and seeds the backward pass.
type Loss = nn.Loss

// LossKind selects a training loss.
type LossKind = nn.LossKind

// Loss kinds.
const (
	LossMSE          = nn.LossMSE
	LossCrossEntropy = nn.LossCrossEntropy
)

// NewLoss returns the loss for kind, checked against m's output layer.
func NewLoss(kind LossKind, m *Model) (Loss, error) { return nn.NewLoss(kind, m) }

// Executor runs a Model over a caller-owned arena.
type Executor = nn.Executor

// Layout is a planned arena layout.
type Layout = plan.Layout

// NewExecutor binds the layout's regions in work for batch rows.
func NewExecutor(m *Model, layout Layout, batch int, work []byte) (*Executor, error) {
	return nn.NewExecutor(m, layout, batch, work)
}

// Quantized models

// QModel is the Q7 form of a Model.
type QModel = nn.QModel

// QLayer is a Q7 layer.
type QLayer = nn.QLayer

// LayerQuant holds a Q7 layer's quantization parameters.
type LayerQuant = nn.LayerQuant

// QExecutor runs a QModel over a caller-owned arena.
type QExecutor = nn.QExecutor

// NewQExecutor binds the layout's regions in work for batch rows.
func NewQExecutor(q *QModel, layout Layout, batch int, work []byte) (*QExecutor, error) {
	return nn.NewQExecutor(q, layout, batch, work)
}

// SoftmaxOutput is the fixed Q7 quantization of softmax probabilities.
var SoftmaxOutput = nn.SoftmaxOutput
