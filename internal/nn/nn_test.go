package nn

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

func mustTensor(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return x
}

func TestActivations(t *testing.T) {
	assert.Equal(t, float32(0), ReLU(-1))
	assert.Equal(t, float32(2), ReLU(2))
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-6)
	assert.InDelta(t, math.Tanh(0.3), Tanh(0.3), 1e-6)
	assert.Equal(t, float32(-3), Identity(-3))

	for _, name := range []string{"relu", "tanh", "sigmoid", "identity", ""} {
		_, err := ActivationByName(name)
		assert.NoError(t, err, name)
	}
	_, err := ActivationByName("gelu")
	assert.Error(t, err)
}

func TestXavierBounds(t *testing.T) {
	w := Xavier(prng.NewKey(0), 10, 20, tensor.Shape{20, 10})
	bound := float32(math.Sqrt(6.0 / 30.0))
	assert.LessOrEqual(t, w.MaxAbs(), bound)
}

func TestLinear_KnownWeights(t *testing.T) {
	l := Linear{Name: "fc", In: 2, Out: 1}
	params := tree.Tree{
		"fc.weight": mustTensor(t, []float32{2, 3}, tensor.Shape{1, 2}),
		"fc.bias":   mustTensor(t, []float32{1}, tensor.Shape{1}),
	}
	x := mustTensor(t, []float32{1, 1, 2, -1}, tensor.Shape{2, 2})

	y, err := l.Apply(params, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, y.Shape())
	// [1,1]·[2,3]+1 = 6 ; [2,-1]·[2,3]+1 = 2
	assert.Equal(t, []float32{6, 2}, y.Data())
}

func TestLinear_Errors(t *testing.T) {
	l := Linear{Name: "fc", In: 2, Out: 1}
	params := l.Init(prng.NewKey(1))

	_, err := l.Apply(params, tensor.Zeros(tensor.Shape{4, 3}))
	assert.ErrorIs(t, err, ErrShape)

	_, err = l.Apply(params, tensor.Zeros(tensor.Shape{4}))
	assert.ErrorIs(t, err, ErrShape)

	delete(params, "fc.bias")
	_, err = l.Apply(params, tensor.Zeros(tensor.Shape{4, 2}))
	assert.ErrorIs(t, err, ErrMissingParam)

	params["fc.bias"] = tensor.Zeros(tensor.Shape{2})
	_, err = l.Apply(params, tensor.Zeros(tensor.Shape{4, 2}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestMLP_InitAndApply(t *testing.T) {
	m := MLP{Name: "mlp", Sizes: []int{3, 8, 8, 2}, Activation: ReLU}
	params := m.Init(prng.NewKey(42))

	assert.Equal(t, []string{
		"mlp.linear_0.bias", "mlp.linear_0.weight",
		"mlp.linear_1.bias", "mlp.linear_1.weight",
		"mlp.linear_2.bias", "mlp.linear_2.weight",
	}, params.Keys())
	assert.Equal(t, tensor.Shape{8, 3}, params["mlp.linear_0.weight"].Shape())

	x := prng.NewKey(1).Normal(tensor.Shape{5, 3})
	y, err := m.Apply(params, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5, 2}, y.Shape())

	again := m.Init(prng.NewKey(42))
	assert.Equal(t, tree.Flatten(params), tree.Flatten(again), "same key must give same params")
}

func TestMLP_TooFewSizes(t *testing.T) {
	m := MLP{Name: "mlp", Sizes: []int{3}}
	_, err := m.Apply(tree.Tree{}, tensor.Zeros(tensor.Shape{1, 3}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestLSTM_Step(t *testing.T) {
	l := LSTM{Name: "lstm", In: 3, Hidden: 4}
	params := l.Init(prng.NewKey(7))

	bias := params["lstm.bias"].Data()
	for i := 4; i < 8; i++ {
		assert.Equal(t, float32(1), bias[i], "forget gate bias")
	}

	state := l.InitialState(2)
	x := prng.NewKey(8).Normal(tensor.Shape{2, 3})

	out, next, err := l.Step(params, state, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4}, out.Shape())
	assert.Equal(t, out.Data(), next.H.Data())
	assert.Equal(t, make([]float32, 8), state.H.Data(), "input state must be untouched")
	// |h| = |o * tanh(c)| < 1
	assert.Less(t, out.MaxAbs(), float32(1))

	_, next2, err := l.Step(params, next, x)
	require.NoError(t, err)
	assert.NotEqual(t, next.C.Data(), next2.C.Data())
}

func TestLSTM_ZeroWeightsKnownValue(t *testing.T) {
	l := LSTM{Name: "lstm", In: 1, Hidden: 1}
	params := tree.Tree{
		"lstm.wx":   tensor.Zeros(tensor.Shape{4, 1}),
		"lstm.wh":   tensor.Zeros(tensor.Shape{4, 1}),
		"lstm.bias": mustTensor(t, []float32{0, 0, 1, 0}, tensor.Shape{4}),
	}
	out, next, err := l.Step(params, l.InitialState(1), tensor.Zeros(tensor.Shape{1, 1}))
	require.NoError(t, err)

	// c = sigmoid(0)*0 + sigmoid(0)*tanh(1); h = sigmoid(0)*tanh(c)
	c := 0.5 * math.Tanh(1)
	assert.InDelta(t, c, next.C.Item(), 1e-6)
	assert.InDelta(t, 0.5*math.Tanh(c), out.Item(), 1e-6)
}

func TestLSTM_BadState(t *testing.T) {
	l := LSTM{Name: "lstm", In: 2, Hidden: 3}
	params := l.Init(prng.NewKey(0))
	_, _, err := l.Step(params, l.InitialState(2), tensor.Zeros(tensor.Shape{1, 2}))
	assert.ErrorIs(t, err, ErrShape)
	_, _, err = l.Step(params, LSTMState{}, tensor.Zeros(tensor.Shape{1, 2}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestModulesInitUnderTheirName(t *testing.T) {
	modules := map[string]Module{
		"proj": Linear{Name: "proj", In: 3, Out: 2},
		"mlp":  MLP{Name: "mlp", Sizes: []int{3, 4, 1}},
		"lstm": LSTM{Name: "lstm", In: 3, Hidden: 2},
	}
	for name, m := range modules {
		params := m.Init(prng.NewKey(1))
		require.NotZero(t, params.Len(), name)
		for _, k := range params.Keys() {
			assert.True(t, strings.HasPrefix(k, name+"."), "%s: %s", name, k)
		}
		assert.Equal(t, params, m.Init(prng.NewKey(1)), "%s init is deterministic", name)
	}
}
