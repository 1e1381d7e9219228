package optim

import (
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// SGDState is the state of SGD: only the shared fields.
type SGDState struct {
	Base
}

// SGD implements plain stochastic gradient descent.
//
// Update rule:
//
//	param = param - lr * gradient
type SGD struct {
	lr float32
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR float32 // Learning rate (default: 0.01)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR}
}

// Name implements Optimizer.
func (s *SGD) Name() string { return "sgd" }

// GetLR returns the learning rate.
func (s *SGD) GetLR() float32 { return s.lr }

// Init implements Optimizer.
func (s *SGD) Init(params tree.Tree, opts ...Option) (State, error) {
	return &SGDState{Base: NewBase(params, Collect(opts...))}, nil
}

// Update implements Optimizer.
func (s *SGD) Update(state State, grads tree.Tree, opts ...Option) (State, error) {
	st, err := StateAs[*SGDState](state, s.Name())
	if err != nil {
		return nil, err
	}
	if err := CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}

	lr := s.lr
	params, err := tree.Map2(st.Params, grads, func(p, g *tensor.Tensor) *tensor.Tensor {
		return p.Zip(g, func(pv, gv float32) float32 { return pv - lr*gv })
	})
	if err != nil {
		return nil, err
	}
	return &SGDState{Base: st.Next(params, Collect(opts...))}, nil
}

// MomentumState adds the velocity buffers to the shared fields.
type MomentumState struct {
	Base
	Velocities tree.Tree
}

// Momentum implements SGD with heavy-ball momentum.
//
// Update rule:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
type Momentum struct {
	lr       float32
	momentum float32
}

// MomentumConfig holds configuration for the Momentum optimizer.
type MomentumConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.9, range: [0, 1))
}

// NewMomentum creates a new Momentum optimizer.
func NewMomentum(config MomentumConfig) *Momentum {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Momentum == 0 {
		config.Momentum = 0.9
	}
	return &Momentum{lr: config.LR, momentum: config.Momentum}
}

// Name implements Optimizer.
func (m *Momentum) Name() string { return "momentum" }

// GetLR returns the learning rate.
func (m *Momentum) GetLR() float32 { return m.lr }

// Init implements Optimizer.
func (m *Momentum) Init(params tree.Tree, opts ...Option) (State, error) {
	return &MomentumState{
		Base:       NewBase(params, Collect(opts...)),
		Velocities: tree.ZerosLike(params),
	}, nil
}

// Update implements Optimizer.
func (m *Momentum) Update(state State, grads tree.Tree, opts ...Option) (State, error) {
	st, err := StateAs[*MomentumState](state, m.Name())
	if err != nil {
		return nil, err
	}
	if err := CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}

	mu := m.momentum
	velocities, err := tree.Map2(st.Velocities, grads, func(v, g *tensor.Tensor) *tensor.Tensor {
		return v.Zip(g, func(vv, gv float32) float32 { return mu*vv + gv })
	})
	if err != nil {
		return nil, err
	}

	lr := m.lr
	params, err := tree.Map2(st.Params, velocities, func(p, v *tensor.Tensor) *tensor.Tensor {
		return p.Zip(v, func(pv, vv float32) float32 { return pv - lr*vv })
	})
	if err != nil {
		return nil, err
	}

	return &MomentumState{
		Base:       st.Next(params, Collect(opts...)),
		Velocities: velocities,
	}, nil
}
