// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim defines the functional optimizer interface and the
// hand-designed baselines.
//
// An optimizer never mutates its state. Init builds the first state from the
// parameters and Update returns the next one:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 1e-3})
//	state, err := opt.Init(params, optim.WithModelState(bnStats))
//	for step := range steps {
//	    loss, grads := lossAndGrad(state.GetParams())
//	    state, err = opt.Update(state, grads, optim.WithLoss(loss))
//	}
package optim

import (
	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/tree"
)

// Optimizer is the functional optimizer interface.
type Optimizer = optim.Optimizer

// State is the immutable optimizer state.
type State = optim.State

// Base holds the fields every state carries.
type Base = optim.Base

// Option configures a single Init or Update call.
type Option = optim.Option

// Common errors.
var (
	ErrStateType         = optim.ErrStateType
	ErrStructureMismatch = optim.ErrStructureMismatch
	ErrNonFinite         = optim.ErrNonFinite
)

// WithModelState sets the model state carried by the optimizer state.
func WithModelState(ms tree.Tree) Option {
	return optim.WithModelState(ms)
}

// WithNumSteps tells Init how many updates the run is expected to take.
func WithNumSteps(n int) Option {
	return optim.WithNumSteps(n)
}

// WithLoss passes the loss at the current parameters to Update.
func WithLoss(loss float32) Option {
	return optim.WithLoss(loss)
}

// SGD (Stochastic Gradient Descent)

// SGD is plain gradient descent.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Momentum is SGD with heavy-ball momentum.
type Momentum = optim.Momentum

// MomentumConfig contains configuration for Momentum.
type MomentumConfig = optim.MomentumConfig

// NewMomentum creates a new momentum optimizer.
func NewMomentum(config MomentumConfig) *Momentum {
	return optim.NewMomentum(config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}

// Baseline returns a hand-designed optimizer by name.
func Baseline(name string) (Optimizer, error) {
	return optim.Baseline(name)
}
