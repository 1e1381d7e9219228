package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// LSTMState is the recurrent state of an LSTM: hidden and cell tensors,
// each with shape [batch, hidden].
type LSTMState struct {
	H *tensor.Tensor
	C *tensor.Tensor
}

// LSTM is a single long short-term memory cell.
//
// Gates are computed from one fused projection
//
//	z = x @ Wx.T + h @ Wh.T + b    // [batch, 4*hidden], gate order i, f, g, o
//	c' = sigmoid(f) * c + sigmoid(i) * tanh(g)
//	h' = sigmoid(o) * tanh(c')
//
// The forget-gate bias starts at 1 so a fresh cell keeps its memory.
type LSTM struct {
	Name   string
	In     int
	Hidden int
}

func (l LSTM) wxName() string   { return l.Name + ".wx" }
func (l LSTM) whName() string   { return l.Name + ".wh" }
func (l LSTM) biasName() string { return l.Name + ".bias" }

// Init creates the input, recurrent and bias leaves.
func (l LSTM) Init(key prng.Key) tree.Tree {
	kx, kh := key.Split()
	h4 := 4 * l.Hidden

	bias := Zeros(tensor.Shape{h4})
	b := bias.Data()
	for i := l.Hidden; i < 2*l.Hidden; i++ {
		b[i] = 1
	}

	return tree.Tree{
		l.wxName():   TruncatedNormal(kx, tensor.Shape{h4, l.In}, float32(1/math.Sqrt(float64(l.In)))),
		l.whName():   TruncatedNormal(kh, tensor.Shape{h4, l.Hidden}, float32(1/math.Sqrt(float64(l.Hidden)))),
		l.biasName(): bias,
	}
}

// InitialState returns an all-zero state for batch sequences.
func (l LSTM) InitialState(batch int) LSTMState {
	return LSTMState{
		H: tensor.Zeros(tensor.Shape{batch, l.Hidden}),
		C: tensor.Zeros(tensor.Shape{batch, l.Hidden}),
	}
}

// Step advances the cell by one timestep.
//
// x has shape [batch, In]. Returns the output (equal to the new hidden
// state) and the next state. The input state is not modified.
func (l LSTM) Step(params tree.Tree, state LSTMState, x *tensor.Tensor) (*tensor.Tensor, LSTMState, error) {
	if err := checkInput("LSTM "+l.Name, x, l.In); err != nil {
		return nil, LSTMState{}, err
	}
	batch := x.Shape()[0]
	want := tensor.Shape{batch, l.Hidden}
	if state.H == nil || state.C == nil || !state.H.Shape().Equal(want) || !state.C.Shape().Equal(want) {
		return nil, LSTMState{}, fmt.Errorf("%w: LSTM %s state must be %v", ErrShape, l.Name, want)
	}

	h4 := 4 * l.Hidden
	wx, err := param(params, l.wxName(), tensor.Shape{h4, l.In})
	if err != nil {
		return nil, LSTMState{}, err
	}
	wh, err := param(params, l.whName(), tensor.Shape{h4, l.Hidden})
	if err != nil {
		return nil, LSTMState{}, err
	}
	b, err := param(params, l.biasName(), tensor.Shape{h4})
	if err != nil {
		return nil, LSTMState{}, err
	}

	z := x.MatMul(wx.Transpose()).Add(state.H.MatMul(wh.Transpose())).AddRow(b)

	hs := l.Hidden
	ig := z.Slice(0, hs).Apply(Sigmoid)
	fg := z.Slice(hs, 2*hs).Apply(Sigmoid)
	gg := z.Slice(2*hs, 3*hs).Apply(Tanh)
	og := z.Slice(3*hs, 4*hs).Apply(Sigmoid)

	c := fg.Mul(state.C).Add(ig.Mul(gg))
	h := og.Mul(c.Apply(Tanh))

	return h, LSTMState{H: h, C: c}, nil
}
