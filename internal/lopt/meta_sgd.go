package lopt

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Theta leaf names of MetaSGDMomentum.
const (
	LogLRKey            = "log_lr"
	OneMinusMomentumKey = "one_minus_momentum"
)

// MomentumState is the state of optimizers that keep a momentum buffer per
// parameter.
type MomentumState struct {
	optim.Base
	Momentums tree.Tree
}

// MetaSGDMomentumConfig holds the starting hyperparameters.
type MetaSGDMomentumConfig struct {
	InitialLR       float32 // default: 1e-3
	InitialMomentum float32 // default: 0.9, range: [0, 1)
}

// MetaSGDMomentum is SGD with momentum whose learning rate and momentum are
// meta-learned.
//
// theta holds them in unconstrained form:
//
//	log_lr             = log(lr)
//	one_minus_momentum = log(1 - momentum)
//
// so any real theta maps to lr > 0 and momentum < 1.
type MetaSGDMomentum struct {
	cfg MetaSGDMomentumConfig
}

// NewMetaSGDMomentum creates the learned optimizer.
func NewMetaSGDMomentum(cfg MetaSGDMomentumConfig) *MetaSGDMomentum {
	if cfg.InitialLR == 0 {
		cfg.InitialLR = 1e-3
	}
	if cfg.InitialMomentum == 0 {
		cfg.InitialMomentum = 0.9
	}
	return &MetaSGDMomentum{cfg: cfg}
}

// Name implements LearnedOptimizer.
func (l *MetaSGDMomentum) Name() string { return "meta_sgd_momentum" }

// Init implements LearnedOptimizer. The key is unused: theta starts at the
// configured hyperparameters.
func (l *MetaSGDMomentum) Init(_ prng.Key) (tree.Tree, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	return tree.Tree{
		LogLRKey:            tensor.Scalar(float32(math.Log(float64(l.cfg.InitialLR)))),
		OneMinusMomentumKey: tensor.Scalar(float32(math.Log(float64(1 - l.cfg.InitialMomentum)))),
	}, nil
}

func (l *MetaSGDMomentum) validate() error {
	if l.cfg.InitialLR <= 0 {
		return fmt.Errorf("%w: initial lr %v must be positive", ErrInvalidConfig, l.cfg.InitialLR)
	}
	if l.cfg.InitialMomentum < 0 || l.cfg.InitialMomentum >= 1 {
		return fmt.Errorf("%w: initial momentum %v outside [0, 1)", ErrInvalidConfig, l.cfg.InitialMomentum)
	}
	return nil
}

// Optimizer implements LearnedOptimizer.
func (l *MetaSGDMomentum) Optimizer(theta tree.Tree) (optim.Optimizer, error) {
	reference := tree.Tree{LogLRKey: tensor.Scalar(0), OneMinusMomentumKey: tensor.Scalar(0)}
	if err := validateTheta(l.Name(), theta, reference); err != nil {
		return nil, err
	}
	return &MetaSGDMomentumOptimizer{
		lr:       float32(math.Exp(float64(theta[LogLRKey].Item()))),
		momentum: float32(1 - math.Exp(float64(theta[OneMinusMomentumKey].Item()))),
	}, nil
}

// MetaSGDMomentumOptimizer is the optimizer bound to one theta.
//
// Update rule:
//
//	m = momentum * m + (1 - momentum) * g
//	p = p - lr * m
type MetaSGDMomentumOptimizer struct {
	lr       float32
	momentum float32
}

// Name implements optim.Optimizer.
func (o *MetaSGDMomentumOptimizer) Name() string { return "meta_sgd_momentum" }

// LR returns the decoded learning rate.
func (o *MetaSGDMomentumOptimizer) LR() float32 { return o.lr }

// Momentum returns the decoded momentum.
func (o *MetaSGDMomentumOptimizer) Momentum() float32 { return o.momentum }

// Init implements optim.Optimizer.
func (o *MetaSGDMomentumOptimizer) Init(params tree.Tree, opts ...optim.Option) (optim.State, error) {
	return &MomentumState{
		Base:      optim.NewBase(params, optim.Collect(opts...)),
		Momentums: tree.ZerosLike(params),
	}, nil
}

// Update implements optim.Optimizer.
func (o *MetaSGDMomentumOptimizer) Update(state optim.State, grads tree.Tree, opts ...optim.Option) (optim.State, error) {
	st, err := optim.StateAs[*MomentumState](state, o.Name())
	if err != nil {
		return nil, err
	}
	if err := optim.CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}

	mu := o.momentum
	momentums, err := tree.Map2(st.Momentums, grads, func(m, g *tensor.Tensor) *tensor.Tensor {
		return m.Zip(g, func(mv, gv float32) float32 { return mu*mv + (1-mu)*gv })
	})
	if err != nil {
		return nil, err
	}

	lr := o.lr
	params, err := tree.Map2(st.Params, momentums, func(p, m *tensor.Tensor) *tensor.Tensor {
		return p.Zip(m, func(pv, mv float32) float32 { return pv - lr*mv })
	})
	if err != nil {
		return nil, err
	}

	return &MomentumState{
		Base:      st.Next(params, optim.Collect(opts...)),
		Momentums: momentums,
	}, nil
}
