package tasks

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// QuadraticConfig configures Quadratic.
type QuadraticConfig struct {
	Dim       int     // default: 10
	Condition float32 // ratio of largest to smallest curvature (default: 10)
}

// Quadratic is the ill-conditioned bowl
//
//	loss = 0.5 * sum_i a_i * x_i^2
//
// with curvatures a_i log-spaced over [1, Condition].
type Quadratic struct {
	dim       int
	curvature []float32
}

// NewQuadratic creates the task.
func NewQuadratic(cfg QuadraticConfig) *Quadratic {
	if cfg.Dim == 0 {
		cfg.Dim = 10
	}
	if cfg.Condition == 0 {
		cfg.Condition = 10
	}
	a := make([]float32, max(cfg.Dim, 0))
	for i := range a {
		frac := 0.0
		if cfg.Dim > 1 {
			frac = float64(i) / float64(cfg.Dim-1)
		}
		a[i] = float32(math.Pow(float64(cfg.Condition), frac))
	}
	return &Quadratic{dim: cfg.Dim, curvature: a}
}

// Name implements Task.
func (q *Quadratic) Name() string { return "quadratic" }

// Curvature returns a copy of the per-coordinate curvatures.
func (q *Quadratic) Curvature() []float32 {
	return append([]float32(nil), q.curvature...)
}

// Init implements Task. The start point is N(0, 1).
func (q *Quadratic) Init(key prng.Key) (tree.Tree, tree.Tree, error) {
	if q.dim <= 0 {
		return nil, nil, fmt.Errorf("quadratic: dim must be positive, got %d", q.dim)
	}
	return tree.Tree{"x": key.Normal(tensor.Shape{q.dim})}, tree.Tree{}, nil
}

// LossAndGrad implements Task. The loss is deterministic, so key is unused.
func (q *Quadratic) LossAndGrad(_ prng.Key, params, modelState tree.Tree) (float32, tree.Tree, tree.Tree, error) {
	x, err := leaf(q.Name(), params, "x", q.dim)
	if err != nil {
		return 0, nil, nil, err
	}
	g := tensor.Zeros(tensor.Shape{q.dim})
	gd := g.Data()
	var loss float64
	for i, v := range x {
		loss += 0.5 * float64(q.curvature[i]) * float64(v) * float64(v)
		gd[i] = q.curvature[i] * v
	}
	return float32(loss), tree.Tree{"x": g}, modelState, nil
}
