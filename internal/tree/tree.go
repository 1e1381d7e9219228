// Package tree holds parameter trees: named collections of tensors addressed by
// dotted paths such as "mlp.linear_0.weight".
//
// A Tree is the structure learned optimizers map over. Keys are visited in
// sorted order so that every traversal, flattening and checkpoint is
// deterministic. Functions in this package never modify their inputs.
package tree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/born-ml/lopt/internal/tensor"
)

// Common errors.
var (
	ErrStructureMismatch = errors.New("tree structure mismatch")
	ErrMissingLeaf       = errors.New("missing leaf")
)

// Tree maps dotted paths to tensors.
type Tree map[string]*tensor.Tensor

// Keys returns the paths in sorted order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Leaves returns the tensors in key order.
func (t Tree) Leaves() []*tensor.Tensor {
	keys := t.Keys()
	leaves := make([]*tensor.Tensor, len(keys))
	for i, k := range keys {
		leaves[i] = t[k]
	}
	return leaves
}

// Len returns the number of leaves.
func (t Tree) Len() int {
	return len(t)
}

// NumElements returns the total number of scalars across all leaves.
func (t Tree) NumElements() int {
	n := 0
	for _, v := range t {
		n += v.Len()
	}
	return n
}

// Get returns the leaf at path.
func (t Tree) Get(path string) (*tensor.Tensor, error) {
	v, ok := t[path]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingLeaf, path)
	}
	return v, nil
}

// Clone returns a deep copy.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = v.Clone()
	}
	return out
}

// ZerosLike returns a tree with the same structure and all-zero leaves.
func ZerosLike(t Tree) Tree {
	return Map(t, tensor.ZerosLike)
}

// Map applies fn to every leaf.
func Map(t Tree, fn func(*tensor.Tensor) *tensor.Tensor) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = fn(v)
	}
	return out
}

// Map2 applies fn leaf-wise to two trees of identical structure.
func Map2(a, b Tree, fn func(x, y *tensor.Tensor) *tensor.Tensor) (Tree, error) {
	if err := SameStructure(a, b); err != nil {
		return nil, err
	}
	out := make(Tree, len(a))
	for k, v := range a {
		out[k] = fn(v, b[k])
	}
	return out, nil
}

// Map3 applies fn leaf-wise to three trees of identical structure.
func Map3(a, b, c Tree, fn func(x, y, z *tensor.Tensor) *tensor.Tensor) (Tree, error) {
	if err := SameStructure(a, b); err != nil {
		return nil, err
	}
	if err := SameStructure(a, c); err != nil {
		return nil, err
	}
	out := make(Tree, len(a))
	for k, v := range a {
		out[k] = fn(v, b[k], c[k])
	}
	return out, nil
}

// SameStructure returns ErrStructureMismatch unless a and b have the same
// key set and the same leaf shapes. A nil leaf counts as missing.
func SameStructure(a, b Tree) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d leaves vs %d", ErrStructureMismatch, len(a), len(b))
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || w == nil {
			return fmt.Errorf("%w: %q missing", ErrStructureMismatch, k)
		}
		if v == nil {
			return fmt.Errorf("%w: %q is nil", ErrStructureMismatch, k)
		}
		if !v.Shape().Equal(w.Shape()) {
			return fmt.Errorf("%w: %q has shape %v vs %v", ErrStructureMismatch, k, v.Shape(), w.Shape())
		}
	}
	return nil
}

// GlobalNorm returns sqrt of the sum of squares over every leaf.
func GlobalNorm(t Tree) float32 {
	var s float64
	for _, v := range t {
		s += v.SumSquares()
	}
	return float32(math.Sqrt(s))
}

// AllFinite reports whether every leaf is free of NaN and Inf.
func AllFinite(t Tree) bool {
	for _, v := range t {
		if !v.AllFinite() {
			return false
		}
	}
	return true
}

// Subtree returns the leaves under prefix with the prefix and its dot removed.
func Subtree(t Tree, prefix string) Tree {
	p := prefix + "."
	out := make(Tree)
	for k, v := range t {
		if strings.HasPrefix(k, p) {
			out[strings.TrimPrefix(k, p)] = v
		}
	}
	return out
}

// WithPrefix returns t with every key prefixed by prefix and a dot.
func WithPrefix(t Tree, prefix string) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[prefix+"."+k] = v
	}
	return out
}

// Merge combines trees into one. Duplicate paths are an error.
func Merge(trees ...Tree) (Tree, error) {
	out := make(Tree)
	for _, t := range trees {
		for k, v := range t {
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("%w: duplicate path %q", ErrStructureMismatch, k)
			}
			out[k] = v
		}
	}
	return out, nil
}

// Flatten concatenates all leaves in key order.
func Flatten(t Tree) []float32 {
	out := make([]float32, 0, t.NumElements())
	for _, v := range t.Leaves() {
		out = append(out, v.Data()...)
	}
	return out
}

// Unflatten is the inverse of Flatten: it rebuilds a tree shaped like like
// from data.
func Unflatten(like Tree, data []float32) (Tree, error) {
	if len(data) != like.NumElements() {
		return nil, fmt.Errorf("%w: %d values for %d elements", ErrStructureMismatch, len(data), like.NumElements())
	}
	out := make(Tree, len(like))
	off := 0
	for _, k := range like.Keys() {
		shape := like[k].Shape()
		n := shape.NumElements()
		leaf := tensor.Zeros(shape)
		copy(leaf.Data(), data[off:off+n])
		out[k] = leaf
		off += n
	}
	return out, nil
}
