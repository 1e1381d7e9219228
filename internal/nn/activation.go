package nn

import (
	"fmt"
	"math"
)

// Activation is an element-wise nonlinearity.
type Activation func(float32) float32

// ReLU applies max(0, x).
func ReLU(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

// Tanh applies the hyperbolic tangent.
func Tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// Sigmoid applies 1 / (1 + exp(-x)).
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// Identity returns x unchanged.
func Identity(x float32) float32 {
	return x
}

// ActivationByName resolves "relu", "tanh", "sigmoid" or "identity".
// The empty name means ReLU.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "relu", "":
		return ReLU, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "identity", "linear":
		return Identity, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}
