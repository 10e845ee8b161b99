// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/tinyfnn/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config is the union of every optimizer's settings.
type Config = optim.Config

// Kind selects an optimizer.
type Kind = optim.Kind

// Optimizer kinds.
const (
	KindSGD  = optim.KindSGD
	KindAdam = optim.KindAdam
)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer, err := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(config SGDConfig) (*SGD, error) {
	return optim.NewSGD(config)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer. Zero betas and eps select the
// defaults (0.9, 0.999, 1e-7).
func NewAdam(config AdamConfig) (*Adam, error) {
	return optim.NewAdam(config)
}

// New creates the optimizer selected by cfg.Kind.
func New(cfg Config) (Optimizer, error) {
	return optim.New(cfg)
}

// ParseKind converts "sgd" or "adam" into a Kind.
func ParseKind(s string) (Kind, error) {
	return optim.ParseKind(s)
}
