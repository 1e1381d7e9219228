package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func vec(vals ...float32) *tensor.Tensor {
	t, err := tensor.FromSlice(vals, tensor.Shape{len(vals)})
	if err != nil {
		panic(err)
	}
	return t
}

func step(t *testing.T, opt optim.Optimizer, s optim.State, grads tree.Tree, opts ...optim.Option) optim.State {
	t.Helper()
	next, err := opt.Update(s, grads, opts...)
	require.NoError(t, err)
	return next
}

// TestSGD_SimpleUpdate tests SGD without momentum.
func TestSGD_SimpleUpdate(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	s, err := opt.Init(tree.Tree{"x": vec(2.0)})
	require.NoError(t, err)

	s = step(t, opt, s, tree.Tree{"x": vec(1.0)})

	// Expected: x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	actual := s.GetParams()["x"].Item()
	if !floatEqual(actual, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want %f", actual, 1.9)
	}
	assert.Equal(t, 1, s.GetIteration())
}

// TestMomentum tests SGD with momentum.
func TestMomentum(t *testing.T) {
	opt := optim.NewMomentum(optim.MomentumConfig{LR: 0.1, Momentum: 0.9})
	s, err := opt.Init(tree.Tree{"x": vec(1.0)})
	require.NoError(t, err)

	grads := tree.Tree{"x": vec(1.0)}

	// v_1 = 0.9 * 0 + 1.0 = 1.0
	// x_1 = 1.0 - 0.1 * 1.0 = 0.9
	s = step(t, opt, s, grads)
	if got := s.GetParams()["x"].Item(); !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("momentum step 1: got %f, want 0.9", got)
	}

	// v_2 = 0.9 * 1.0 + 1.0 = 1.9
	// x_2 = 0.9 - 0.1 * 1.9 = 0.71
	s = step(t, opt, s, grads)
	if got := s.GetParams()["x"].Item(); !floatEqual(got, 0.71, 1e-5) {
		t.Errorf("momentum step 2: got %f, want 0.71", got)
	}
	ms := s.(*optim.MomentumState)
	assert.InDelta(t, 1.9, ms.Velocities["x"].Item(), 1e-6)
}

// TestAdam_SimpleUpdate tests Adam optimizer update.
func TestAdam_SimpleUpdate(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001, Betas: [2]float32{0.9, 0.999}, Eps: 1e-8})
	s, err := opt.Init(tree.Tree{"x": vec(1.0)})
	require.NoError(t, err)

	s = step(t, opt, s, tree.Tree{"x": vec(1.0)})

	// m_hat = v_hat = 1 after bias correction, so x_new ≈ 1 - 0.001
	if got := s.GetParams()["x"].Item(); !floatEqual(got, 0.999, 1e-5) {
		t.Errorf("Adam first step: got %f, want 0.999", got)
	}
}

// TestAdam_BiasCorrection checks that the effective step stays close to lr
// while the gradient is constant.
func TestAdam_BiasCorrection(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	s, err := opt.Init(tree.Tree{"x": vec(1.0)})
	require.NoError(t, err)

	prev := float32(1.0)
	for i := 1; i <= 3; i++ {
		s = step(t, opt, s, tree.Tree{"x": vec(1.0)})
		assert.Equal(t, i, s.GetIteration())
		cur := s.GetParams()["x"].Item()
		assert.InDelta(t, 0.01, prev-cur, 1e-4)
		prev = cur
	}
}

// TestConvergence_SimpleQuadratic tests optimizer convergence on f(x) = x².
func TestConvergence_SimpleQuadratic(t *testing.T) {
	tests := []struct {
		name string
		opt  optim.Optimizer
	}{
		{"SGD", optim.NewSGD(optim.SGDConfig{LR: 0.1})},
		{"Momentum", optim.NewMomentum(optim.MomentumConfig{LR: 0.1, Momentum: 0.9})},
		{"Adam", optim.NewAdam(optim.AdamConfig{LR: 0.1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.opt.Init(tree.Tree{"x": vec(3.0)})
			require.NoError(t, err)

			for i := 0; i < 100; i++ {
				x := s.GetParams()["x"].Item()
				s = step(t, tt.opt, s, tree.Tree{"x": vec(2 * x)})
			}

			final := s.GetParams()["x"].Item()
			if math.Abs(float64(final)) > 0.1 {
				t.Errorf("%s convergence: x = %f, expected close to 0", tt.name, final)
			}
		})
	}
}

// TestMultipleParameters tests optimizers with multiple parameters.
func TestMultipleParameters(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	s, err := opt.Init(tree.Tree{"x1": vec(1.0, 2.0), "x2": vec(3.0)})
	require.NoError(t, err)

	s = step(t, opt, s, tree.Tree{"x1": vec(1.0, 2.0), "x2": vec(0.5)})

	p := s.GetParams()
	assert.InDeltaSlice(t, []float32{0.9, 1.8}, p["x1"].Data(), 1e-6)
	assert.InDelta(t, 2.95, p["x2"].Item(), 1e-6)
}

func TestUpdateDoesNotMutateInput(t *testing.T) {
	for _, name := range optim.BaselineNames() {
		t.Run(name, func(t *testing.T) {
			opt, err := optim.Baseline(name)
			require.NoError(t, err)

			s0, err := opt.Init(tree.Tree{"x": vec(1, 2, 3)})
			require.NoError(t, err)
			before := tree.Flatten(s0.GetParams())

			s1 := step(t, opt, s0, tree.Tree{"x": vec(1, 1, 1)})

			assert.Equal(t, before, tree.Flatten(s0.GetParams()))
			assert.Equal(t, 0, s0.GetIteration())
			assert.Equal(t, 1, s1.GetIteration())
			assert.NotEqual(t, before, tree.Flatten(s1.GetParams()))
		})
	}
}

func TestModelStatePassThrough(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{})
	ms := tree.Tree{"bn.mean": vec(0.5)}
	s, err := opt.Init(tree.Tree{"x": vec(1)}, optim.WithModelState(ms))
	require.NoError(t, err)

	s = step(t, opt, s, tree.Tree{"x": vec(1)})
	assert.Equal(t, ms, s.GetModelState())

	replaced := tree.Tree{"bn.mean": vec(0.7)}
	s = step(t, opt, s, tree.Tree{"x": vec(1)}, optim.WithModelState(replaced))
	assert.Equal(t, replaced, optim.GetModelState(s))
}

func TestUpdateErrors(t *testing.T) {
	sgd := optim.NewSGD(optim.SGDConfig{})
	adam := optim.NewAdam(optim.AdamConfig{})

	s, err := sgd.Init(tree.Tree{"x": vec(1)})
	require.NoError(t, err)

	_, err = adam.Update(s, tree.Tree{"x": vec(1)})
	assert.ErrorIs(t, err, optim.ErrStateType)

	_, err = sgd.Update(s, tree.Tree{"y": vec(1)})
	assert.ErrorIs(t, err, optim.ErrStructureMismatch)

	_, err = sgd.Update(s, tree.Tree{"x": nil})
	assert.ErrorIs(t, err, optim.ErrStructureMismatch)

	_, err = sgd.Update(s, tree.Tree{"x": vec(float32(math.Inf(1)))})
	assert.ErrorIs(t, err, optim.ErrNonFinite)
}

func TestEmptyParams(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{})
	s, err := opt.Init(tree.Tree{})
	require.NoError(t, err)
	s = step(t, opt, s, tree.Tree{})
	assert.Equal(t, 1, s.GetIteration())
	assert.Equal(t, 0, s.GetParams().Len())
}

func TestBaselineDefaults(t *testing.T) {
	_, err := optim.Baseline("lbfgs")
	assert.Error(t, err)
	assert.Equal(t, []string{"adam", "momentum", "sgd"}, optim.BaselineNames())

	assert.Equal(t, float32(0.01), optim.NewSGD(optim.SGDConfig{}).GetLR())
	assert.Equal(t, float32(0.001), optim.NewAdam(optim.AdamConfig{}).GetLR())
}
