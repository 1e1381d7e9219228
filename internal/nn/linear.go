package nn

import (
	"math"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights use a truncated normal with stddev 1/sqrt(in_features).
// Biases are initialized to zeros.
//
// Example:
//
//	layer := nn.Linear{Name: "head", In: 32, Out: 1}
//	params := layer.Init(key)
//	y, err := layer.Apply(params, h)  // h: [batch, 32] -> y: [batch, 1]
type Linear struct {
	Name string
	In   int
	Out  int
}

// WeightName returns the tree path of the weight matrix.
func (l Linear) WeightName() string { return l.Name + ".weight" }

// BiasName returns the tree path of the bias vector.
func (l Linear) BiasName() string { return l.Name + ".bias" }

// Init creates the weight and bias leaves.
func (l Linear) Init(key prng.Key) tree.Tree {
	stddev := float32(1 / math.Sqrt(float64(l.In)))
	return tree.Tree{
		l.WeightName(): TruncatedNormal(key, tensor.Shape{l.Out, l.In}, stddev),
		l.BiasName():   Zeros(tensor.Shape{l.Out}),
	}
}

// Apply computes the layer output for x with shape [batch, In].
func (l Linear) Apply(params tree.Tree, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkInput("Linear "+l.Name, x, l.In); err != nil {
		return nil, err
	}
	w, err := param(params, l.WeightName(), tensor.Shape{l.Out, l.In})
	if err != nil {
		return nil, err
	}
	b, err := param(params, l.BiasName(), tensor.Shape{l.Out})
	if err != nil {
		return nil, err
	}

	// [batch, in] @ [in, out] = [batch, out]
	return x.MatMul(w.Transpose()).AddRow(b), nil
}
