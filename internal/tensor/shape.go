package tensor

import (
	"errors"
	"fmt"
	"slices"
)

// MaxElements bounds the element count of any shape accepted by Validate.
// Larger products would overflow int arithmetic on 32-bit platforms.
const MaxElements = 1 << 31

// ErrInvalidShape is returned by Validate.
var ErrInvalidShape = errors.New("invalid shape")

// Shape lists the dimensions of a tensor, outermost first. The empty shape
// is a scalar.
type Shape []int

// Rank is the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// NumElements is the product of the dimensions (1 for a scalar). It is only
// meaningful for shapes that pass Validate.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects non-positive dimensions and shapes with more than
// MaxElements elements.
func (s Shape) Validate() error {
	n := 1
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, d)
		}
		if n > MaxElements/d {
			return fmt.Errorf("%w: %v exceeds %d elements", ErrInvalidShape, []int(s), MaxElements)
		}
		n *= d
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns an independent copy. Cloning nil yields an empty scalar shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return Shape{}
	}
	return slices.Clone(s)
}
