package lopt

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/nn"
	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/parallel"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Number of per-parameter input features: parameter, gradient, momentum.
const mlpFeatures = 3

// Second-moment normaliser epsilon.
const featureEps = 1e-5

// PerParamMLPConfig configures the network and the step scaling.
type PerParamMLPConfig struct {
	HiddenSize    int     // default: 32
	HiddenLayers  int     // default: 2
	ExpMult       float32 // magnitude scale inside exp (default: 1e-3)
	StepMult      float32 // overall step scale (default: 1e-3)
	MomentumDecay float32 // default: 0.9
}

// PerParamMLP applies one small MLP independently to every scalar parameter.
//
// For each scalar the network sees [p, g, m], each normalised by its second
// moment across the tensor it belongs to, and outputs a direction and a
// log-magnitude:
//
//	step = direction * exp(magnitude * ExpMult) * StepMult
//	p    = p - step
//
// Because the same weights serve every scalar, theta is small and does not
// depend on the model being trained.
type PerParamMLP struct {
	cfg PerParamMLPConfig
	net nn.MLP
}

// NewPerParamMLP creates the learned optimizer.
func NewPerParamMLP(cfg PerParamMLPConfig) *PerParamMLP {
	if cfg.HiddenSize == 0 {
		cfg.HiddenSize = 32
	}
	if cfg.HiddenLayers == 0 {
		cfg.HiddenLayers = 2
	}
	if cfg.ExpMult == 0 {
		cfg.ExpMult = 1e-3
	}
	if cfg.StepMult == 0 {
		cfg.StepMult = 1e-3
	}
	if cfg.MomentumDecay == 0 {
		cfg.MomentumDecay = 0.9
	}

	sizes := []int{mlpFeatures}
	for i := 0; i < cfg.HiddenLayers; i++ {
		sizes = append(sizes, cfg.HiddenSize)
	}
	sizes = append(sizes, 2)

	return &PerParamMLP{
		cfg: cfg,
		net: nn.MLP{Name: "mlp", Sizes: sizes, Activation: nn.ReLU},
	}
}

// Name implements LearnedOptimizer.
func (l *PerParamMLP) Name() string { return "per_param_mlp" }

// Init implements LearnedOptimizer.
func (l *PerParamMLP) Init(key prng.Key) (tree.Tree, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l.net.Init(key), nil
}

func (l *PerParamMLP) validate() error {
	if l.cfg.HiddenSize < 0 || l.cfg.HiddenLayers < 0 {
		return fmt.Errorf("%w: hidden size %d, layers %d", ErrInvalidConfig, l.cfg.HiddenSize, l.cfg.HiddenLayers)
	}
	if l.cfg.MomentumDecay < 0 || l.cfg.MomentumDecay >= 1 {
		return fmt.Errorf("%w: momentum decay %v outside [0, 1)", ErrInvalidConfig, l.cfg.MomentumDecay)
	}
	return nil
}

// Optimizer implements LearnedOptimizer.
func (l *PerParamMLP) Optimizer(theta tree.Tree) (optim.Optimizer, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	if err := validateTheta(l.Name(), theta, l.net.Init(prng.NewKey(0))); err != nil {
		return nil, err
	}
	return &PerParamMLPOptimizer{
		theta:       theta,
		net:         l.net,
		cfg:         l.cfg,
		parallelism: parallel.DefaultConfig(),
	}, nil
}

// PerParamMLPOptimizer is the optimizer bound to one theta.
type PerParamMLPOptimizer struct {
	theta       tree.Tree
	net         nn.MLP
	cfg         PerParamMLPConfig
	parallelism parallel.Config
}

// Name implements optim.Optimizer.
func (o *PerParamMLPOptimizer) Name() string { return "per_param_mlp" }

// Init implements optim.Optimizer.
func (o *PerParamMLPOptimizer) Init(params tree.Tree, opts ...optim.Option) (optim.State, error) {
	return &MomentumState{
		Base:      optim.NewBase(params, optim.Collect(opts...)),
		Momentums: tree.ZerosLike(params),
	}, nil
}

// Update implements optim.Optimizer.
//
// Leaves are independent and are processed concurrently.
func (o *PerParamMLPOptimizer) Update(state optim.State, grads tree.Tree, opts ...optim.Option) (optim.State, error) {
	st, err := optim.StateAs[*MomentumState](state, o.Name())
	if err != nil {
		return nil, err
	}
	if err := optim.CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}

	keys := st.Params.Keys()
	newParams := make([]*tensor.Tensor, len(keys))
	newMomentums := make([]*tensor.Tensor, len(keys))

	err = parallel.Each(len(keys), func(i int) error {
		k := keys[i]
		p, m, err := o.updateLeaf(st.Params[k], grads[k], st.Momentums[k])
		if err != nil {
			return fmt.Errorf("leaf %q: %w", k, err)
		}
		newParams[i], newMomentums[i] = p, m
		return nil
	}, o.parallelism)
	if err != nil {
		return nil, err
	}

	params := make(tree.Tree, len(keys))
	momentums := make(tree.Tree, len(keys))
	for i, k := range keys {
		params[k] = newParams[i]
		momentums[k] = newMomentums[i]
	}

	return &MomentumState{
		Base:      st.Next(params, optim.Collect(opts...)),
		Momentums: momentums,
	}, nil
}

// updateLeaf runs the network on every scalar of one tensor.
func (o *PerParamMLPOptimizer) updateLeaf(p, g, m *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, error) {
	d := o.cfg.MomentumDecay
	nextM := m.Zip(g, func(mv, gv float32) float32 { return d*mv + (1-d)*gv })

	inp := tensor.StackColumns(
		secondMomentNormalize(p),
		secondMomentNormalize(g),
		secondMomentNormalize(nextM),
	)
	out, err := o.net.Apply(o.theta, inp)
	if err != nil {
		return nil, nil, err
	}

	expMult, stepMult := o.cfg.ExpMult, o.cfg.StepMult
	nextP := tensor.ZerosLike(p)
	pd, od, np := p.Data(), out.Data(), nextP.Data()
	for i := range np {
		direction := od[2*i]
		magnitude := od[2*i+1]
		step := direction * float32(math.Exp(float64(magnitude*expMult))) * stepMult
		np[i] = pd[i] - step
	}
	return nextP, nextM, nil
}

// secondMomentNormalize returns x / sqrt(mean(x^2) + eps).
func secondMomentNormalize(x *tensor.Tensor) *tensor.Tensor {
	scale := float32(1 / math.Sqrt(float64(x.MeanSquare())+featureEps))
	return x.Scale(scale)
}
