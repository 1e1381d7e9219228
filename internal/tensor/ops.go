package tensor

import (
	"fmt"
	"math"

	"github.com/born-ml/lopt/internal/parallel"
)

// Parallelism is used by the elementwise kernels and MatMul.
var Parallelism = parallel.DefaultConfig()

// Apply returns fn applied to every element.
func (t *Tensor) Apply(fn func(float32) float32) *Tensor {
	out := ZerosLike(t)
	parallel.For(len(t.data), func(i int) {
		out.data[i] = fn(t.data[i])
	}, Parallelism)
	return out
}

// Zip returns fn(t[i], other[i]) for every element.
//
// other must have the same shape as t, or exactly one element (broadcast).
func (t *Tensor) Zip(other *Tensor, fn func(a, b float32) float32) *Tensor {
	out := ZerosLike(t)
	if len(other.data) == 1 && len(t.data) != 1 {
		b := other.data[0]
		parallel.For(len(t.data), func(i int) {
			out.data[i] = fn(t.data[i], b)
		}, Parallelism)
		return out
	}
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor: shape mismatch %v vs %v", t.shape, other.shape))
	}
	parallel.For(len(t.data), func(i int) {
		out.data[i] = fn(t.data[i], other.data[i])
	}, Parallelism)
	return out
}

// Add returns t + other.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a + b })
}

// Sub returns t - other.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a - b })
}

// Mul returns the elementwise product t * other.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a * b })
}

// Scale returns t * s.
func (t *Tensor) Scale(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v * s })
}

// AddScalar returns t + s.
func (t *Tensor) AddScalar(s float32) *Tensor {
	return t.Apply(func(v float32) float32 { return v + s })
}

// Sum returns the sum of all elements, accumulated in float64.
func (t *Tensor) Sum() float32 {
	var s float64
	for _, v := range t.data {
		s += float64(v)
	}
	return float32(s)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float32 {
	if len(t.data) == 0 {
		return 0
	}
	return t.Sum() / float32(len(t.data))
}

// MeanSquare returns mean(t^2).
func (t *Tensor) MeanSquare() float32 {
	if len(t.data) == 0 {
		return 0
	}
	var s float64
	for _, v := range t.data {
		s += float64(v) * float64(v)
	}
	return float32(s / float64(len(t.data)))
}

// SumSquares returns sum(t^2) in float64.
func (t *Tensor) SumSquares() float64 {
	var s float64
	for _, v := range t.data {
		s += float64(v) * float64(v)
	}
	return s
}

// L2Norm returns sqrt(sum(t^2)).
func (t *Tensor) L2Norm() float32 {
	return float32(math.Sqrt(t.SumSquares()))
}

// MaxAbs returns max |t_i|.
func (t *Tensor) MaxAbs() float32 {
	var m float32
	for _, v := range t.data {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
