// Package prng provides explicit, splittable random keys.
//
// Nothing in lopt reads global randomness: initialisers and tasks receive a
// Key and derive child keys with Split, so a run is reproducible from one seed.
package prng

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/lopt/internal/tensor"
)

// Key is an immutable PRNG key.
type Key struct {
	hi, lo uint64
}

// NewKey creates the root key for seed.
func NewKey(seed uint64) Key {
	return Key{hi: mix(seed), lo: mix(seed ^ 0x9e3779b97f4a7c15)}
}

// mix is the splitmix64 finaliser.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Fold derives a new key from k and data.
func (k Key) Fold(data uint64) Key {
	return Key{
		hi: mix(k.hi ^ mix(data)),
		lo: mix(k.lo + mix(data^0xd6e8feb86659fd93)),
	}
}

// Split returns two keys independent of k and of each other.
func (k Key) Split() (Key, Key) {
	return k.Fold(1), k.Fold(2)
}

// SplitN returns n independent child keys.
func (k Key) SplitN(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = k.Fold(uint64(i) + 1)
	}
	return keys
}

// Rand returns a generator seeded by k. Two calls with the same key produce
// the same stream.
func (k Key) Rand() *rand.Rand {
	//nolint:gosec // Weight initialisation and synthetic data are not security-critical.
	return rand.New(rand.NewPCG(k.hi, k.lo))
}

// Normal returns a tensor of N(0, 1) samples.
func (k Key) Normal(shape tensor.Shape) *tensor.Tensor {
	r := k.Rand()
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		data[i] = float32(r.NormFloat64())
	}
	return t
}

// Uniform returns a tensor of U(lo, hi) samples.
func (k Key) Uniform(shape tensor.Shape, lo, hi float32) *tensor.Tensor {
	r := k.Rand()
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		data[i] = lo + (hi-lo)*r.Float32()
	}
	return t
}

// TruncatedNormal returns N(0, stddev^2) samples redrawn until they fall
// within two standard deviations.
func (k Key) TruncatedNormal(shape tensor.Shape, stddev float32) *tensor.Tensor {
	r := k.Rand()
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		v := r.NormFloat64()
		for math.Abs(v) > 2 {
			v = r.NormFloat64()
		}
		data[i] = float32(v) * stddev
	}
	return t
}
