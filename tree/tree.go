// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tree provides parameter trees: tensors addressed by dotted paths
// such as "mlp.linear_0.weight".
//
// Params, gradients, model state and learned-optimizer weights (theta) are
// all trees. Traversal is always in sorted key order.
package tree

import (
	"github.com/born-ml/lopt/internal/tensor"
	"github.com/born-ml/lopt/internal/tree"
)

// Tree maps dotted paths to tensors.
type Tree = tree.Tree

// Common errors.
var (
	ErrStructureMismatch = tree.ErrStructureMismatch
	ErrMissingLeaf       = tree.ErrMissingLeaf
)

// ZerosLike returns a tree with the same structure and all-zero leaves.
func ZerosLike(t Tree) Tree {
	return tree.ZerosLike(t)
}

// Map applies fn to every leaf.
func Map(t Tree, fn func(*tensor.Tensor) *tensor.Tensor) Tree {
	return tree.Map(t, fn)
}

// Map2 applies fn leaf-wise to two trees of identical structure.
func Map2(a, b Tree, fn func(x, y *tensor.Tensor) *tensor.Tensor) (Tree, error) {
	return tree.Map2(a, b, fn)
}

// SameStructure returns ErrStructureMismatch unless a and b have the same
// paths and leaf shapes.
func SameStructure(a, b Tree) error {
	return tree.SameStructure(a, b)
}

// GlobalNorm returns the L2 norm over every leaf.
func GlobalNorm(t Tree) float32 {
	return tree.GlobalNorm(t)
}

// Flatten concatenates all leaves in key order.
func Flatten(t Tree) []float32 {
	return tree.Flatten(t)
}

// Unflatten rebuilds a tree shaped like like from data.
func Unflatten(like Tree, data []float32) (Tree, error) {
	return tree.Unflatten(like, data)
}
