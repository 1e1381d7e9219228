// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lopt provides learned optimizers: update rules whose own weights
// (theta) are meta-learned.
//
// # Basic Usage
//
//	lo := lopt.NewRNNHyperController(lopt.RNNHyperControllerConfig{})
//	theta, err := lo.Init(prng.NewKey(0))
//	opt, err := lo.Optimizer(theta)
//
//	state, err := opt.Init(params, optim.WithNumSteps(1000))
//	for step := range 1000 {
//	    loss, grads := lossAndGrad(state.GetParams())
//	    state, err = opt.Update(state, grads, optim.WithLoss(loss))
//	}
//
// # Architectures
//
//   - MetaSGDMomentum: learned learning rate and momentum.
//   - PerParamMLP: an MLP applied to every scalar parameter.
//   - RNNHyperController: an LSTM that sets the SGD learning rate each step.
//
// Thetas can be persisted with SaveTheta and LoadTheta.
package lopt

import (
	"github.com/born-ml/lopt/internal/checkpoint"
	"github.com/born-ml/lopt/internal/lopt"
	"github.com/born-ml/lopt/internal/tree"
)

// LearnedOptimizer is a parametrized family of optimizers.
type LearnedOptimizer = lopt.LearnedOptimizer

// LRReporter is implemented by states that record the learning rate used.
type LRReporter = lopt.LRReporter

// Common errors.
var (
	ErrInvalidTheta  = lopt.ErrInvalidTheta
	ErrInvalidConfig = lopt.ErrInvalidConfig
)

// MetaSGDMomentum

// MetaSGDMomentum is SGD with meta-learned learning rate and momentum.
type MetaSGDMomentum = lopt.MetaSGDMomentum

// MetaSGDMomentumConfig holds the starting hyperparameters.
type MetaSGDMomentumConfig = lopt.MetaSGDMomentumConfig

// MomentumState is the state of MetaSGDMomentum and PerParamMLP.
type MomentumState = lopt.MomentumState

// NewMetaSGDMomentum creates the learned optimizer.
func NewMetaSGDMomentum(cfg MetaSGDMomentumConfig) *MetaSGDMomentum {
	return lopt.NewMetaSGDMomentum(cfg)
}

// PerParamMLP

// PerParamMLP applies a small MLP to every scalar parameter.
type PerParamMLP = lopt.PerParamMLP

// PerParamMLPConfig configures the network and step scaling.
type PerParamMLPConfig = lopt.PerParamMLPConfig

// NewPerParamMLP creates the learned optimizer.
func NewPerParamMLP(cfg PerParamMLPConfig) *PerParamMLP {
	return lopt.NewPerParamMLP(cfg)
}

// RNNHyperController

// RNNHyperController is SGD whose learning rate is set by an LSTM.
type RNNHyperController = lopt.RNNHyperController

// RNNHyperControllerConfig configures the controller.
type RNNHyperControllerConfig = lopt.RNNHyperControllerConfig

// RNNState is the state of RNNHyperController.
type RNNState = lopt.RNNState

// NewRNNHyperController creates the learned optimizer.
func NewRNNHyperController(cfg RNNHyperControllerConfig) *RNNHyperController {
	return lopt.NewRNNHyperController(cfg)
}

// Registry

// New returns a registered learned optimizer with default configuration.
func New(name string) (LearnedOptimizer, error) {
	return lopt.New(name)
}

// Names lists registered learned optimizers.
func Names() []string {
	return lopt.Names()
}

// Persistence

// SaveTheta writes theta for lo to path.
func SaveTheta(path string, lo LearnedOptimizer, theta tree.Tree) error {
	return checkpoint.Save(path, theta, checkpoint.Meta{Optimizer: lo.Name()})
}

// LoadTheta reads a theta written for lo and validates it.
func LoadTheta(path string, lo LearnedOptimizer) (tree.Tree, error) {
	theta, _, err := checkpoint.LoadFor(path, lo.Name())
	if err != nil {
		return nil, err
	}
	if _, err := lo.Optimizer(theta); err != nil {
		return nil, err
	}
	return theta, nil
}
