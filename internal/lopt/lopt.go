// Package lopt implements learned optimizers: update rules whose own weights
// (theta) are produced by meta-training rather than chosen by hand.
//
// A LearnedOptimizer does two things. Init draws a fresh theta from a key.
// Optimizer binds a theta and returns an ordinary optim.Optimizer that can be
// used for inner training exactly like SGD or Adam:
//
//	lo := lopt.NewPerParamMLP(lopt.PerParamMLPConfig{})
//	theta, err := lo.Init(prng.NewKey(0))
//	opt, err := lo.Optimizer(theta)
//	state, err := opt.Init(params)
//	state, err = opt.Update(state, grads, optim.WithLoss(loss))
//
// Three architectures are provided:
//   - MetaSGDMomentum: theta is a learning rate and a momentum.
//   - PerParamMLP: a small MLP proposes a step for every scalar parameter.
//   - RNNHyperController: an LSTM reads training statistics and sets the
//     learning rate of SGD, carrying its hidden state between updates.
//
// Learning theta (the outer loop) is out of scope; thetas come from Init or
// from a checkpoint.
package lopt

import (
	"errors"
	"fmt"

	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tree"
)

// Common errors.
var (
	ErrInvalidTheta  = errors.New("invalid theta")
	ErrInvalidConfig = errors.New("invalid learned optimizer config")
)

// LearnedOptimizer is a parametrized family of optimizers.
type LearnedOptimizer interface {
	// Init returns freshly initialised optimizer weights.
	Init(key prng.Key) (tree.Tree, error)

	// Optimizer returns the optimizer defined by theta. theta is validated
	// here, so a returned optimizer never fails because of its weights.
	Optimizer(theta tree.Tree) (optim.Optimizer, error)

	// Name identifies the architecture.
	Name() string
}

// LRReporter is implemented by states that record the learning rate used by
// the update that produced them.
type LRReporter interface {
	LastLR() float32
}

// validateTheta checks theta against the structure of a reference theta.
func validateTheta(name string, theta, reference tree.Tree) error {
	if err := tree.SameStructure(reference, theta); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidTheta, name, err)
	}
	if !tree.AllFinite(theta) {
		return fmt.Errorf("%w for %s: non-finite values", ErrInvalidTheta, name)
	}
	return nil
}
