package lopt

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/nn"
	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Number of training statistics fed to the controller per step.
const rnnFeatures = 3

// Progress horizon used when the run length is unknown.
const defaultHorizon = 1000

// RNNState is the state of RNNHyperController.
type RNNState struct {
	optim.Base
	RNNHiddenState nn.LSTMState
	NumSteps       int     // expected run length, 0 if unknown
	LR             float32 // learning rate applied by the update that produced this state
}

// LastLR implements LRReporter.
func (s *RNNState) LastLR() float32 { return s.LR }

// RNNHyperControllerConfig configures the controller.
type RNNHyperControllerConfig struct {
	HiddenSize int     // default: 32
	InitialLR  float32 // learning rate when the head outputs 0 (default: 1e-3)
	LRMult     float32 // scale of the head output in log space (default: 0.1)
}

// RNNHyperController is SGD whose learning rate is chosen every step by an
// LSTM.
//
// Each update feeds the LSTM three statistics of the current step
//
//	[log10(mean(g^2) + 1e-12) / 10,  sign(loss) * log1p(|loss|),  progress]
//
// where progress is iteration/NumSteps, or tanh(iteration/1000) when the run
// length is unknown. A linear head maps the new hidden state to a scalar y and
//
//	lr = InitialLR * exp(LRMult * y)
//	p  = p - lr * g
//
// The head starts at zero, so an untrained controller is plain SGD at
// InitialLR.
type RNNHyperController struct {
	cfg  RNNHyperControllerConfig
	lstm nn.LSTM
	head nn.Linear
}

// NewRNNHyperController creates the learned optimizer.
func NewRNNHyperController(cfg RNNHyperControllerConfig) *RNNHyperController {
	if cfg.HiddenSize == 0 {
		cfg.HiddenSize = 32
	}
	if cfg.InitialLR == 0 {
		cfg.InitialLR = 1e-3
	}
	if cfg.LRMult == 0 {
		cfg.LRMult = 0.1
	}
	return &RNNHyperController{
		cfg:  cfg,
		lstm: nn.LSTM{Name: "lstm", In: rnnFeatures, Hidden: cfg.HiddenSize},
		head: nn.Linear{Name: "head", In: cfg.HiddenSize, Out: 1},
	}
}

// Name implements LearnedOptimizer.
func (l *RNNHyperController) Name() string { return "rnn_hyper_controller" }

// Init implements LearnedOptimizer.
func (l *RNNHyperController) Init(key prng.Key) (tree.Tree, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	return l.init(key), nil
}

func (l *RNNHyperController) validate() error {
	if l.cfg.HiddenSize < 0 {
		return fmt.Errorf("%w: hidden size %d", ErrInvalidConfig, l.cfg.HiddenSize)
	}
	if l.cfg.InitialLR <= 0 {
		return fmt.Errorf("%w: initial lr %v must be positive", ErrInvalidConfig, l.cfg.InitialLR)
	}
	return nil
}

func (l *RNNHyperController) init(key prng.Key) tree.Tree {
	kl, kh := key.Split()
	head := l.head.Init(kh)
	head[l.head.WeightName()] = tensor.ZerosLike(head[l.head.WeightName()])

	theta, err := tree.Merge(l.lstm.Init(kl), head)
	if err != nil {
		// lstm.* and head.* never collide.
		panic(err)
	}
	return theta
}

// Optimizer implements LearnedOptimizer.
func (l *RNNHyperController) Optimizer(theta tree.Tree) (optim.Optimizer, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	if err := validateTheta(l.Name(), theta, l.init(prng.NewKey(0))); err != nil {
		return nil, err
	}
	return &RNNHyperControllerOptimizer{
		theta: theta,
		lstm:  l.lstm,
		head:  l.head,
		cfg:   l.cfg,
	}, nil
}

// RNNHyperControllerOptimizer is the optimizer bound to one theta.
type RNNHyperControllerOptimizer struct {
	theta tree.Tree
	lstm  nn.LSTM
	head  nn.Linear
	cfg   RNNHyperControllerConfig
}

// Name implements optim.Optimizer.
func (o *RNNHyperControllerOptimizer) Name() string { return "rnn_hyper_controller" }

// Init implements optim.Optimizer.
func (o *RNNHyperControllerOptimizer) Init(params tree.Tree, opts ...optim.Option) (optim.State, error) {
	opt := optim.Collect(opts...)
	if opt.NumSteps() < 0 {
		return nil, fmt.Errorf("%w: negative num steps %d", ErrInvalidConfig, opt.NumSteps())
	}
	return &RNNState{
		Base:           optim.NewBase(params, opt),
		RNNHiddenState: o.lstm.InitialState(1),
		NumSteps:       opt.NumSteps(),
		LR:             o.cfg.InitialLR,
	}, nil
}

// Update implements optim.Optimizer.
func (o *RNNHyperControllerOptimizer) Update(state optim.State, grads tree.Tree, opts ...optim.Option) (optim.State, error) {
	st, err := optim.StateAs[*RNNState](state, o.Name())
	if err != nil {
		return nil, err
	}
	if err := optim.CheckGrads(st.Params, grads); err != nil {
		return nil, err
	}
	opt := optim.Collect(opts...)

	x, err := tensor.FromSlice(o.features(st, grads, opt), tensor.Shape{1, rnnFeatures})
	if err != nil {
		return nil, err
	}
	h, hidden, err := o.lstm.Step(o.theta, st.RNNHiddenState, x)
	if err != nil {
		return nil, err
	}
	y, err := o.head.Apply(o.theta, h)
	if err != nil {
		return nil, err
	}

	lr := o.cfg.InitialLR * float32(math.Exp(float64(o.cfg.LRMult*y.Item())))
	params, err := tree.Map2(st.Params, grads, func(p, g *tensor.Tensor) *tensor.Tensor {
		return p.Zip(g, func(pv, gv float32) float32 { return pv - lr*gv })
	})
	if err != nil {
		return nil, err
	}

	return &RNNState{
		Base:           st.Next(params, opt),
		RNNHiddenState: hidden,
		NumSteps:       st.NumSteps,
		LR:             lr,
	}, nil
}

// features computes the controller input for one step.
func (o *RNNHyperControllerOptimizer) features(st *RNNState, grads tree.Tree, opt optim.Options) []float32 {
	var meanSq float64
	if n := grads.NumElements(); n > 0 {
		var sum float64
		for _, g := range grads {
			sum += g.SumSquares()
		}
		meanSq = sum / float64(n)
	}
	gradFeature := math.Log10(meanSq+1e-12) / 10

	var lossFeature float64
	if loss, ok := opt.Loss(); ok && !math.IsNaN(float64(loss)) && !math.IsInf(float64(loss), 0) {
		l := float64(loss)
		lossFeature = math.Copysign(math.Log1p(math.Abs(l)), l)
	}

	var progress float64
	if st.NumSteps > 0 {
		progress = float64(st.Iteration) / float64(st.NumSteps)
	} else {
		progress = math.Tanh(float64(st.Iteration) / defaultHorizon)
	}

	return []float32{float32(gradFeature), float32(lossFeature), float32(progress)}
}
