package train

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lopt/internal/lopt"
	"github.com/born-ml/lopt/internal/optim"
	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tasks"
	"github.com/born-ml/lopt/internal/tree"
)

var errBroken = errors.New("broken optimizer")

// brokenOptimizer fails on Init.
type brokenOptimizer struct{}

func (brokenOptimizer) Name() string { return "broken" }

func (brokenOptimizer) Init(tree.Tree, ...optim.Option) (optim.State, error) {
	return nil, errBroken
}

func (brokenOptimizer) Update(optim.State, tree.Tree, ...optim.Option) (optim.State, error) {
	return nil, errBroken
}

func learned(t *testing.T, name string) optim.Optimizer {
	t.Helper()
	lo, err := lopt.New(name)
	require.NoError(t, err)
	theta, err := lo.Init(prng.NewKey(0))
	require.NoError(t, err)
	opt, err := lo.Optimizer(theta)
	require.NoError(t, err)
	return opt
}

func TestRun_SGDReducesLoss(t *testing.T) {
	task := tasks.NewQuadratic(tasks.QuadraticConfig{Dim: 5})
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.05})

	res, err := Run(context.Background(), task, opt, Config{Steps: 50, Seed: 1}, nil)
	require.NoError(t, err)

	assert.Len(t, res.Losses, 50)
	assert.Equal(t, 50, res.Final.GetIteration())
	assert.Less(t, res.FinalLoss, res.Losses[0]/10)
	assert.Equal(t, "quadratic", res.Task)
	assert.Equal(t, "sgd", res.Optimizer)
	assert.Nil(t, res.LRs)
}

func TestRun_Deterministic(t *testing.T) {
	task := tasks.NewLinearRegression(tasks.LinearRegressionConfig{})
	cfg := Config{Steps: 20, Seed: 7}

	a, err := Run(context.Background(), task, learned(t, "per_param_mlp"), cfg, nil)
	require.NoError(t, err)
	b, err := Run(context.Background(), task, learned(t, "per_param_mlp"), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Losses, b.Losses)

	cfg.Seed = 8
	c, err := Run(context.Background(), task, learned(t, "per_param_mlp"), cfg, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Losses, c.Losses)
}

func TestRun_ThreadsModelState(t *testing.T) {
	task := tasks.NewLinearRegression(tasks.LinearRegressionConfig{Batch: 4})
	res, err := Run(context.Background(), task, learned(t, "meta_sgd_momentum"), Config{Steps: 6}, nil)
	require.NoError(t, err)

	ms := res.Final.GetModelState()
	assert.Equal(t, float32(24), ms[tasks.StatsCountKey].Item())
}

func TestRun_RecordsLearnedLR(t *testing.T) {
	res, err := Run(context.Background(), tasks.Rosenbrock{}, learned(t, "rnn_hyper_controller"), Config{Steps: 10}, nil)
	require.NoError(t, err)
	require.Len(t, res.LRs, 10)
	for _, lr := range res.LRs {
		assert.Greater(t, lr, float32(0))
	}
}

func TestRun_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	_, err := Run(context.Background(), tasks.Rosenbrock{}, optim.NewAdam(optim.AdamConfig{}), Config{Steps: 5, LogEvery: 2}, logger)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "rosenbrock/adam step 0 loss")
	assert.Contains(t, out, "step 2 ")
	assert.Contains(t, out, "step 4 ")
	assert.NotContains(t, out, "step 1 ")
	assert.Contains(t, out, "final loss")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, tasks.Rosenbrock{}, optim.NewSGD(optim.SGDConfig{}), Config{Steps: 10}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Diverged(t *testing.T) {
	task := tasks.NewQuadratic(tasks.QuadraticConfig{Dim: 4, Condition: 100})
	res, err := Run(context.Background(), task, optim.NewSGD(optim.SGDConfig{LR: 10}), Config{Steps: 100}, nil)
	assert.ErrorIs(t, err, ErrDiverged)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Losses)
	assert.Less(t, len(res.Losses), 100)
	assert.True(t, res.Diverged)
	assert.True(t, math.IsInf(float64(res.FinalLoss), 1))
	require.NotNil(t, res.Final)
	assert.Equal(t, len(res.Losses), res.Final.GetIteration())
}

func TestRun_InvalidSteps(t *testing.T) {
	_, err := Run(context.Background(), tasks.Rosenbrock{}, optim.NewSGD(optim.SGDConfig{}), Config{Steps: -1}, nil)
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	task := tasks.NewQuadratic(tasks.QuadraticConfig{})
	opts := []optim.Optimizer{
		optim.NewSGD(optim.SGDConfig{}),
		optim.NewAdam(optim.AdamConfig{}),
		learned(t, "meta_sgd_momentum"),
		learned(t, "per_param_mlp"),
		learned(t, "rnn_hyper_controller"),
	}

	results, err := Compare(context.Background(), task, opts, Config{Steps: 15, Seed: 3}, nil)
	require.NoError(t, err)
	require.Len(t, results, len(opts))

	for i, res := range results {
		assert.Equal(t, opts[i].Name(), res.Optimizer)
		assert.Len(t, res.Losses, 15)
		// Same seed, same starting point.
		assert.Equal(t, results[0].Losses[0], res.Losses[0])
	}
}

func TestCompare_KeepsDivergedRuns(t *testing.T) {
	opts := []optim.Optimizer{optim.NewSGD(optim.SGDConfig{}), optim.NewSGD(optim.SGDConfig{LR: 10})}
	task := tasks.NewQuadratic(tasks.QuadraticConfig{Condition: 100})

	results, err := Compare(context.Background(), task, opts, Config{Steps: 200}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Diverged)
	assert.Len(t, results[0].Losses, 200)
	assert.True(t, results[1].Diverged)
	assert.Less(t, len(results[1].Losses), 200)
}

func TestCompare_DefaultSGDOnRosenbrock(t *testing.T) {
	opts := []optim.Optimizer{optim.NewSGD(optim.SGDConfig{}), optim.NewAdam(optim.AdamConfig{})}

	results, err := Compare(context.Background(), tasks.Rosenbrock{}, opts, Config{Steps: 50}, nil)
	require.NoError(t, err)
	assert.True(t, results[0].Diverged)
	assert.False(t, results[1].Diverged)
	assert.Len(t, results[1].Losses, 50)
}

func TestCompare_Error(t *testing.T) {
	opts := []optim.Optimizer{optim.NewSGD(optim.SGDConfig{}), brokenOptimizer{}}

	_, err := Compare(context.Background(), tasks.Rosenbrock{}, opts, Config{Steps: 20}, nil)
	assert.ErrorIs(t, err, errBroken)
	assert.ErrorContains(t, err, "broken")
}
