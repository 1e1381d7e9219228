package optim

import (
	"math"

	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// AdamState adds the first and second moment estimates to the shared fields.
type AdamState struct {
	Base
	M tree.Tree // First moment estimates
	V tree.Tree // Second moment estimates
}

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// t is the state's iteration plus one.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float32
	beta1 float32
	beta2 float32
	eps   float32
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Name implements Optimizer.
func (a *Adam) Name() string { return "adam" }

// GetLR returns the learning rate.
func (a *Adam) GetLR() float32 { return a.lr }

// Init implements Optimizer.
func (a *Adam) Init(params tree.Tree, opts ...Option) (State, error) {
	return &AdamState{
		Base: NewBase(params, Collect(opts...)),
		M:    tree.ZerosLike(params),
		V:    tree.ZerosLike(params),
	}, nil
}

// Update implements Optimizer.
func (a *Adam) Update(state State, grads tree.Tree, opts ...Option) (State, error) {
	st, err := StateAs[*AdamState](state, a.Name())
	if err != nil {
		return nil, err
	}
	if err := CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}

	t := float64(st.Iteration + 1)
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), t))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), t))

	b1, b2 := a.beta1, a.beta2
	m, err := tree.Map2(st.M, grads, func(m, g *tensor.Tensor) *tensor.Tensor {
		return m.Zip(g, func(mv, gv float32) float32 { return b1*mv + (1-b1)*gv })
	})
	if err != nil {
		return nil, err
	}
	v, err := tree.Map2(st.V, grads, func(v, g *tensor.Tensor) *tensor.Tensor {
		return v.Zip(g, func(vv, gv float32) float32 { return b2*vv + (1-b2)*gv*gv })
	})
	if err != nil {
		return nil, err
	}

	lr, eps := a.lr, a.eps
	params, err := tree.Map3(st.Params, m, v, func(p, m, v *tensor.Tensor) *tensor.Tensor {
		out := tensor.ZerosLike(p)
		pd, md, vd, od := p.Data(), m.Data(), v.Data(), out.Data()
		for i := range od {
			mHat := md[i] / biasCorrection1
			vHat := vd[i] / biasCorrection2
			od[i] = pd[i] - lr*mHat/(float32(math.Sqrt(float64(vHat)))+eps)
		}
		return out
	})
	if err != nil {
		return nil, err
	}

	return &AdamState{
		Base: st.Next(params, Collect(opts...)),
		M:    m,
		V:    v,
	}, nil
}
