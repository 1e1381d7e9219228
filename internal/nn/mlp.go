package nn

import (
	"fmt"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// MLP is a stack of Linear layers with an activation between them.
//
// Sizes lists the layer widths including input and output, so
// Sizes{3, 32, 32, 2} has three Linear layers. No activation is applied
// after the last layer. A nil Activation means ReLU.
type MLP struct {
	Name       string
	Sizes      []int
	Activation Activation
}

// Layers returns the Linear layers in order.
func (m MLP) Layers() []Linear {
	if len(m.Sizes) < 2 {
		return nil
	}
	layers := make([]Linear, len(m.Sizes)-1)
	for i := range layers {
		layers[i] = Linear{
			Name: fmt.Sprintf("%s.linear_%d", m.Name, i),
			In:   m.Sizes[i],
			Out:  m.Sizes[i+1],
		}
	}
	return layers
}

// Init creates parameters for every layer from independent child keys.
func (m MLP) Init(key prng.Key) tree.Tree {
	layers := m.Layers()
	keys := key.SplitN(len(layers))
	out := make(tree.Tree)
	for i, l := range layers {
		for k, v := range l.Init(keys[i]) {
			out[k] = v
		}
	}
	return out
}

// Apply runs the forward pass on x with shape [batch, Sizes[0]].
func (m MLP) Apply(params tree.Tree, x *tensor.Tensor) (*tensor.Tensor, error) {
	layers := m.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: MLP %s needs at least two sizes, got %v", ErrShape, m.Name, m.Sizes)
	}
	act := m.Activation
	if act == nil {
		act = ReLU
	}

	h := x
	for i, l := range layers {
		var err error
		h, err = l.Apply(params, h)
		if err != nil {
			return nil, err
		}
		if i < len(layers)-1 {
			h = h.Apply(act)
		}
	}
	return h, nil
}
