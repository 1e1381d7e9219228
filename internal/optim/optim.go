// Package optim defines the Optimizer abstraction shared by hand-designed and
// learned optimizers, plus the SGD, Momentum and Adam baselines.
//
// Optimizers are functional: Init builds a state record from a parameter tree
// and Update returns a brand new record. Neither ever writes to a tensor it
// received, so a caller may keep old states around (for evaluation, rollback or
// comparison) without copying them.
//
// Example usage:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 1e-3})
//	state, err := opt.Init(params)
//	for step := range steps {
//	    loss, grads := lossAndGrad(state.GetParams())
//	    state, err = opt.Update(state, grads, optim.WithLoss(loss))
//	}
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/lopt/internal/tree"
)

// Common errors.
var (
	// ErrStateType is returned when a state produced by another optimizer is passed to Update.
	ErrStateType = errors.New("optimizer state has wrong type")
	// ErrStructureMismatch is returned when grads do not have the structure of params.
	ErrStructureMismatch = tree.ErrStructureMismatch
	// ErrNonFinite is returned when gradients contain NaN or Inf.
	ErrNonFinite = errors.New("non-finite gradient")
)

// State is the record an optimizer threads through training.
//
// Every implementation carries the optimized parameters, an opaque model
// state that is passed through untouched, and the number of updates applied
// so far. Architecture-specific fields (momentums, recurrent state) live on
// the concrete types.
type State interface {
	GetParams() tree.Tree
	GetModelState() tree.Tree
	GetIteration() int
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Init creates the state for params at iteration 0.
	//
	// Accepts WithModelState and WithNumSteps.
	Init(params tree.Tree, opts ...Option) (State, error)

	// Update applies one step and returns the next state, whose iteration is
	// the input's plus one. The input state is left unchanged.
	//
	// Accepts WithLoss and WithModelState.
	Update(state State, grads tree.Tree, opts ...Option) (State, error)

	// Name identifies the optimizer in logs and run records.
	Name() string
}

// Base holds the fields every state record shares. Concrete states embed it.
type Base struct {
	Params     tree.Tree
	ModelState tree.Tree
	Iteration  int
}

// GetParams returns the optimized parameters.
func (b Base) GetParams() tree.Tree { return b.Params }

// GetModelState returns the pass-through model state.
func (b Base) GetModelState() tree.Tree { return b.ModelState }

// GetIteration returns the number of updates applied.
func (b Base) GetIteration() int { return b.Iteration }

// Next returns the Base of the following iteration with new params. The model
// state is replaced only if the options carry one.
func (b Base) Next(params tree.Tree, o Options) Base {
	ms := b.ModelState
	if o.hasModelState {
		ms = o.modelState
	}
	return Base{Params: params, ModelState: ms, Iteration: b.Iteration + 1}
}

// NewBase returns the iteration-0 Base for params.
func NewBase(params tree.Tree, o Options) Base {
	return Base{Params: params, ModelState: o.modelState, Iteration: 0}
}

// GetParams returns the parameters held by s.
func GetParams(s State) tree.Tree { return s.GetParams() }

// GetModelState returns the model state held by s.
func GetModelState(s State) tree.Tree { return s.GetModelState() }

// CheckGrads validates grads against params: same structure, finite values.
func CheckGrads(params, grads tree.Tree) error {
	if err := tree.SameStructure(params, grads); err != nil {
		return fmt.Errorf("grads: %w", err)
	}
	if !tree.AllFinite(grads) {
		return ErrNonFinite
	}
	return nil
}

// StateAs converts s to the concrete state type T or returns ErrStateType.
func StateAs[T State](s State, optimizer string) (T, error) {
	typed, ok := s.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s cannot update %T", ErrStateType, optimizer, s)
	}
	return typed, nil
}
