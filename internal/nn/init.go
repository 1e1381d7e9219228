package nn

import (
	"math"

	"github.com/born-ml/lopt/internal/prng"
	"github.com/born-ml/lopt/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier(key prng.Key, fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return key.Uniform(shape, -bound, bound)
}

// TruncatedNormal draws weights from a normal distribution truncated at two
// standard deviations.
//
// With stddev = 1/sqrt(fanIn) this is the usual default for dense layers in
// small optimizer networks.
func TruncatedNormal(key prng.Key, shape tensor.Shape, stddev float32) *tensor.Tensor {
	return key.TruncatedNormal(shape, stddev)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.Zeros(shape)
}
