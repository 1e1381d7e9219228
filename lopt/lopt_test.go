// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lopt_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lopt/lopt"
	"github.com/born-ml/lopt/optim"
	"github.com/born-ml/lopt/prng"
	"github.com/born-ml/lopt/tensor"
	"github.com/born-ml/lopt/tree"
)

func TestPublicAPI(t *testing.T) {
	lo := lopt.NewRNNHyperController(lopt.RNNHyperControllerConfig{HiddenSize: 4, InitialLR: 0.1})
	theta, err := lo.Init(prng.NewKey(0))
	require.NoError(t, err)
	opt, err := lo.Optimizer(theta)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, -1}, tensor.Shape{2})
	require.NoError(t, err)
	params := tree.Tree{"w": x}

	state, err := opt.Init(params, optim.WithNumSteps(2))
	require.NoError(t, err)
	state, err = opt.Update(state, params, optim.WithLoss(1))
	require.NoError(t, err)

	assert.Equal(t, 1, state.GetIteration())
	assert.InDelta(t, 0.1, state.(lopt.LRReporter).LastLR(), 1e-7)
	assert.InDeltaSlice(t, []float32{0.9, -0.9}, state.GetParams()["w"].Data(), 1e-6)
}

func TestSaveLoadTheta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theta.lopt")
	lo := lopt.NewMetaSGDMomentum(lopt.MetaSGDMomentumConfig{InitialLR: 0.05})
	theta, err := lo.Init(prng.NewKey(0))
	require.NoError(t, err)

	require.NoError(t, lopt.SaveTheta(path, lo, theta))
	loaded, err := lopt.LoadTheta(path, lo)
	require.NoError(t, err)
	assert.Equal(t, tree.Flatten(theta), tree.Flatten(loaded))

	_, err = lopt.LoadTheta(path, lopt.NewPerParamMLP(lopt.PerParamMLPConfig{}))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	for _, name := range lopt.Names() {
		lo, err := lopt.New(name)
		require.NoError(t, err)
		assert.Equal(t, name, lo.Name())
	}
}
