package tasks

import (
	"fmt"

	"github.com/born-ml/lopt/internal/nn"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Model state paths of LinearRegression.
const (
	StatsMeanKey  = "stats.mean"
	StatsCountKey = "stats.count"
)

// LinearRegressionConfig configures LinearRegression.
type LinearRegressionConfig struct {
	Features int     // default: 8
	Batch    int     // default: 32
	Noise    float32 // target noise stddev (default: 0.1)
	Seed     uint64  // seed of the ground-truth weights
}

// LinearRegression fits y = w.x + b to synthetic data, with mean squared
// error loss. Each call to LossAndGrad draws a fresh batch from its key.
//
// The model state tracks the running mean of every input feature and the
// number of samples seen. It plays the role of normalisation statistics: it
// changes every step but is not trained by the optimizer.
type LinearRegression struct {
	cfg   LinearRegressionConfig
	model nn.Linear
	trueW *tensor.Tensor // [1, Features]
	trueB float32
}

// NewLinearRegression creates the task.
func NewLinearRegression(cfg LinearRegressionConfig) *LinearRegression {
	if cfg.Features == 0 {
		cfg.Features = 8
	}
	if cfg.Batch == 0 {
		cfg.Batch = 32
	}
	if cfg.Noise == 0 {
		cfg.Noise = 0.1
	}
	truth := prng.NewKey(cfg.Seed).Fold(0x7472757468)
	return &LinearRegression{
		cfg:   cfg,
		model: nn.Linear{Name: "linear", In: cfg.Features, Out: 1},
		trueW: truth.Normal(tensor.Shape{1, max(cfg.Features, 0)}),
		trueB: 0.5,
	}
}

// Name implements Task.
func (l *LinearRegression) Name() string { return "linreg" }

// Init implements Task.
func (l *LinearRegression) Init(key prng.Key) (tree.Tree, tree.Tree, error) {
	if l.cfg.Features <= 0 || l.cfg.Batch <= 0 {
		return nil, nil, fmt.Errorf("linreg: features and batch must be positive, got %d and %d", l.cfg.Features, l.cfg.Batch)
	}
	ms := tree.Tree{
		StatsMeanKey:  tensor.Zeros(tensor.Shape{l.cfg.Features}),
		StatsCountKey: tensor.Scalar(0),
	}
	return l.model.Init(key), ms, nil
}

// Batch draws the inputs and targets for key.
func (l *LinearRegression) Batch(key prng.Key) (x, y *tensor.Tensor) {
	kx, kn := key.Split()
	x = kx.Normal(tensor.Shape{l.cfg.Batch, l.cfg.Features})
	noise := kn.Normal(tensor.Shape{l.cfg.Batch, 1}).Scale(l.cfg.Noise)
	y = x.MatMul(l.trueW.Transpose()).AddScalar(l.trueB).Add(noise)
	return x, y
}

// LossAndGrad implements Task.
func (l *LinearRegression) LossAndGrad(key prng.Key, params, modelState tree.Tree) (float32, tree.Tree, tree.Tree, error) {
	x, y := l.Batch(key)
	pred, err := l.model.Apply(params, x)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("linreg: %w", err)
	}
	nextMS, err := l.updateStats(modelState, x)
	if err != nil {
		return 0, nil, nil, err
	}

	// loss = mean(r^2), dloss/dw = 2/B * r^T x, dloss/db = 2/B * sum(r)
	r := pred.Sub(y)
	scale := 2 / float32(l.cfg.Batch)
	gw := r.Transpose().MatMul(x).Scale(scale)
	gb := tensor.Full(tensor.Shape{1}, r.Sum()*scale)

	grads := tree.Tree{
		l.model.WeightName(): gw,
		l.model.BiasName():   gb,
	}
	return r.MeanSquare(), grads, nextMS, nil
}

// updateStats folds the batch into the running feature means.
func (l *LinearRegression) updateStats(ms tree.Tree, x *tensor.Tensor) (tree.Tree, error) {
	mean, err := leaf(l.Name(), ms, StatsMeanKey, l.cfg.Features)
	if err != nil {
		return nil, err
	}
	count, err := leaf(l.Name(), ms, StatsCountKey, 1)
	if err != nil {
		return nil, err
	}

	n := count[0]
	total := n + float32(l.cfg.Batch)
	next := tensor.Zeros(tensor.Shape{l.cfg.Features})
	nd, xd := next.Data(), x.Data()
	f := l.cfg.Features
	for j := range nd {
		var s float32
		for i := 0; i < l.cfg.Batch; i++ {
			s += xd[i*f+j]
		}
		nd[j] = (mean[j]*n + s) / total
	}
	return tree.Tree{
		StatsMeanKey:  next,
		StatsCountKey: tensor.Scalar(total),
	}, nil
}
