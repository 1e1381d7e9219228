package tasks

import (
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Rosenbrock is the 2-D banana function
//
//	loss = (1 - x)^2 + 100 * (y - x^2)^2
//
// started at (-1.5, 2). The minimum is 0 at (1, 1).
type Rosenbrock struct{}

// Name implements Task.
func (Rosenbrock) Name() string { return "rosenbrock" }

// Init implements Task. The start point is fixed.
func (Rosenbrock) Init(_ prng.Key) (tree.Tree, tree.Tree, error) {
	x, err := tensor.FromSlice([]float32{-1.5, 2}, tensor.Shape{2})
	if err != nil {
		return nil, nil, err
	}
	return tree.Tree{"xy": x}, tree.Tree{}, nil
}

// LossAndGrad implements Task.
func (r Rosenbrock) LossAndGrad(_ prng.Key, params, modelState tree.Tree) (float32, tree.Tree, tree.Tree, error) {
	p, err := leaf(r.Name(), params, "xy", 2)
	if err != nil {
		return 0, nil, nil, err
	}
	x, y := float64(p[0]), float64(p[1])
	a := 1 - x
	b := y - x*x

	g, err := tensor.FromSlice([]float32{
		float32(-2*a - 400*x*b),
		float32(200 * b),
	}, tensor.Shape{2})
	if err != nil {
		return 0, nil, nil, err
	}
	return float32(a*a + 100*b*b), tree.Tree{"xy": g}, modelState, nil
}
