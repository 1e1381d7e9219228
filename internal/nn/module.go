// Package nn implements the small functional layers learned optimizers are made of.
//
// Layers hold only configuration. Their parameters live in a tree.Tree under
// the layer name, so theta for a learned optimizer is just the merged trees of
// its layers:
//
//	mlp := nn.MLP{Name: "mlp", Sizes: []int{3, 32, 32, 2}, Activation: nn.ReLU}
//	theta := mlp.Init(key)           // mlp.linear_0.weight, mlp.linear_0.bias, ...
//	out, err := mlp.Apply(theta, x)  // x: [batch, 3] -> [batch, 2]
//
// Apply never mutates params. Missing or mis-shaped parameters are reported
// as errors wrapping ErrMissingParam or ErrShape.
package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Common errors.
var (
	ErrMissingParam = errors.New("missing parameter")
	ErrShape        = errors.New("shape mismatch")
)

// Module is implemented by every layer.
type Module interface {
	// Init creates freshly initialised parameters, keyed under the module name.
	Init(key prng.Key) tree.Tree
}

var (
	_ Module = Linear{}
	_ Module = MLP{}
	_ Module = LSTM{}
)

// param fetches name from params and checks its shape.
func param(params tree.Tree, name string, shape tensor.Shape) (*tensor.Tensor, error) {
	t, ok := params[name]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingParam, name)
	}
	if !t.Shape().Equal(shape) {
		return nil, fmt.Errorf("%w: %q is %v, want %v", ErrShape, name, t.Shape(), shape)
	}
	return t, nil
}

// checkInput validates a [batch, features] input.
func checkInput(layer string, x *tensor.Tensor, features int) error {
	s := x.Shape()
	if len(s) != 2 {
		return fmt.Errorf("%w: %s expected 2D input [batch, features], got %v", ErrShape, layer, s)
	}
	if s[1] != features {
		return fmt.Errorf("%w: %s expected %d features, got %d", ErrShape, layer, features, s[1])
	}
	return nil
}
