// Package tasks provides small inner training problems with closed-form
// gradients.
//
// A Task owns the data and the loss. Optimizers only ever see the parameter
// tree, the gradient tree, and an opaque model state that the task threads
// through every step.
package tasks

import (
	"errors"
	"fmt"
	"sort"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tree"
)

// ErrUnknownTask is returned by ByName for unregistered names.
var ErrUnknownTask = errors.New("unknown task")

// Task is an inner optimisation problem.
type Task interface {
	// Name identifies the task.
	Name() string

	// Init returns the starting parameters and model state.
	Init(key prng.Key) (params, modelState tree.Tree, err error)

	// LossAndGrad evaluates the loss at params on the batch drawn from key.
	// It returns the gradient with the structure of params and the model
	// state to use for the next step.
	LossAndGrad(key prng.Key, params, modelState tree.Tree) (loss float32, grads, nextModelState tree.Tree, err error)
}

var builtin = map[string]func() Task{
	"quadratic":  func() Task { return NewQuadratic(QuadraticConfig{}) },
	"rosenbrock": func() Task { return Rosenbrock{} },
	"linreg":     func() Task { return NewLinearRegression(LinearRegressionConfig{}) },
}

// ByName returns a built-in task with default configuration.
func ByName(name string) (Task, error) {
	f, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return f(), nil
}

// Names lists the built-in tasks in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// leaf fetches a parameter for a task.
func leaf(task string, params tree.Tree, name string, size int) ([]float32, error) {
	t, err := params.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task, err)
	}
	if t.Len() != size {
		return nil, fmt.Errorf("%s: %w: %q has %d elements, want %d", task, tree.ErrStructureMismatch, name, t.Len(), size)
	}
	return t.Data(), nil
}
