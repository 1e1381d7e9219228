package tensor

import (
	"fmt"

	"github.com/born-ml/lopt/internal/parallel"
)

// Reshape returns a copy of t with a new shape of the same size.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	s := Shape(shape)
	if s.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: cannot reshape %v into %v", t.shape, s))
	}
	out := t.Clone()
	out.shape = s.Clone()
	return out
}

// Transpose returns the transpose of a 2-D tensor.
func (t *Tensor) Transpose() *Tensor {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor.Transpose: expected 2D tensor, got shape %v", t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	out := Zeros(Shape{cols, rows})
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.data[c*rows+r] = t.data[r*cols+c]
		}
	}
	return out
}

// MatMul computes t @ other for 2-D tensors [m, k] @ [k, n] -> [m, n].
//
// Rows of the result are computed in parallel.
func (t *Tensor) MatMul(other *Tensor) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic(fmt.Sprintf("tensor.MatMul: expected 2D tensors, got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	if other.shape[0] != k {
		panic(fmt.Sprintf("tensor.MatMul: inner dimensions differ: %v @ %v", t.shape, other.shape))
	}
	n := other.shape[1]
	out := Zeros(Shape{m, n})

	cfg := Parallelism
	cfg.MinChunkSize = max(1, cfg.MinChunkSize*64/max(1, k*n))
	parallel.For(m, func(i int) {
		row := out.data[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			a := t.data[i*k+p]
			if a == 0 {
				continue
			}
			bRow := other.data[p*n : (p+1)*n]
			for j := range row {
				row[j] += a * bRow[j]
			}
		}
	}, cfg)
	return out
}

// AddRow adds a vector of length n to every row of a [m, n] tensor.
func (t *Tensor) AddRow(row *Tensor) *Tensor {
	if len(t.shape) != 2 || len(row.data) != t.shape[1] {
		panic(fmt.Sprintf("tensor.AddRow: cannot add %v to rows of %v", row.shape, t.shape))
	}
	out := t.Clone()
	n := t.shape[1]
	for i := range out.data {
		out.data[i] += row.data[i%n]
	}
	return out
}

// Column returns column j of a [m, n] tensor as a [m] tensor.
func (t *Tensor) Column(j int) *Tensor {
	if len(t.shape) != 2 || j < 0 || j >= t.shape[1] {
		panic(fmt.Sprintf("tensor.Column: column %d out of range for shape %v", j, t.shape))
	}
	m, n := t.shape[0], t.shape[1]
	out := Zeros(Shape{m})
	for i := 0; i < m; i++ {
		out.data[i] = t.data[i*n+j]
	}
	return out
}

// Slice returns columns [from, to) of a [m, n] tensor.
func (t *Tensor) Slice(from, to int) *Tensor {
	if len(t.shape) != 2 || from < 0 || to > t.shape[1] || from >= to {
		panic(fmt.Sprintf("tensor.Slice: columns [%d, %d) out of range for shape %v", from, to, t.shape))
	}
	m, n := t.shape[0], t.shape[1]
	w := to - from
	out := Zeros(Shape{m, w})
	for i := 0; i < m; i++ {
		copy(out.data[i*w:(i+1)*w], t.data[i*n+from:i*n+to])
	}
	return out
}

// StackColumns lays out same-sized tensors as the columns of a [k, len(ts)] matrix,
// flattening each input.
func StackColumns(ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor.StackColumns: no inputs")
	}
	k := len(ts[0].data)
	n := len(ts)
	out := Zeros(Shape{k, n})
	for j, c := range ts {
		if len(c.data) != k {
			panic(fmt.Sprintf("tensor.StackColumns: input %d has %d elements, want %d", j, len(c.data), k))
		}
		for i, v := range c.data {
			out.data[i*n+j] = v
		}
	}
	return out
}
