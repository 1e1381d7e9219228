// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package prng provides splittable random keys.
//
// A key is a value: drawing from it twice gives the same numbers. Use Split
// to derive independent keys.
//
//	key := prng.NewKey(42)
//	initKey, dataKey := key.Split()
package prng

import "github.com/born-ml/lopt/internal/prng"

// Key is an immutable random key.
type Key = prng.Key

// NewKey creates a key from a seed.
func NewKey(seed uint64) Key {
	return prng.NewKey(seed)
}
