// Package tensor implements the dense float32 arrays that parameter trees are made of.
//
// Tensors are values: every operation allocates its result and leaves the
// receiver untouched. Optimizer states rely on this to stay immutable across
// updates, so code outside this package must not write through Data() on a
// tensor it did not just create.
//
// Shape mismatches inside kernels are programmer errors and panic, the same
// way layer Forward methods validate their inputs.
package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense, row-major float32 array.
type Tensor struct {
	shape Shape
	data  []float32
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return &Tensor{shape: shape.Clone(), data: make([]float32, shape.NumElements())}
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scalar creates a rank-0 tensor.
func Scalar(value float32) *Tensor {
	return &Tensor{shape: Shape{}, data: []float32{value}}
}

// FromSlice creates a tensor from data, copying it.
//
// Returns an error if len(data) does not match the shape.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	out := make([]float32, len(data))
	copy(out, data)
	return &Tensor{shape: shape.Clone(), data: out}, nil
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.shape)
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the underlying storage.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := make([]float32, len(t.data))
	copy(out, t.data)
	return &Tensor{shape: t.shape.Clone(), data: out}
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float32 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor.Item: tensor with shape %v has %d elements", t.shape, len(t.data)))
	}
	return t.data[0]
}

// At returns the element at the given multi-dimensional index.
func (t *Tensor) At(idx ...int) float32 {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor.At: %d indices for shape %v", len(idx), t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor.At: index %v out of range for shape %v", idx, t.shape))
		}
		off = off*t.shape[i] + v
	}
	return t.data[off]
}

// AllFinite reports whether no element is NaN or Inf.
func (t *Tensor) AllFinite() bool {
	for _, v := range t.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	const maxShown = 8
	if len(t.data) <= maxShown {
		return fmt.Sprintf("Tensor%v%v", t.shape, t.data)
	}
	return fmt.Sprintf("Tensor%v%v...", t.shape, t.data[:maxShown])
}
