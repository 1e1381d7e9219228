package prng

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/lopt/internal/tensor"
)

func TestSameKeySameStream(t *testing.T) {
	a := NewKey(7).Normal(tensor.Shape{16})
	b := NewKey(7).Normal(tensor.Shape{16})
	assert.Equal(t, a.Data(), b.Data())

	c := NewKey(8).Normal(tensor.Shape{16})
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestSplitIndependent(t *testing.T) {
	k := NewKey(1)
	a, b := k.Split()
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, k)
	assert.NotEqual(t, b, k)

	a2, b2 := k.Split()
	assert.Equal(t, a, a2)
	assert.Equal(t, b, b2)

	keys := k.SplitN(4)
	seen := map[Key]bool{}
	for _, key := range keys {
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestUniformRange(t *testing.T) {
	u := NewKey(3).Uniform(tensor.Shape{1000}, -2, 3)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-2))
		assert.Less(t, v, float32(3))
	}
}

func TestTruncatedNormalBounded(t *testing.T) {
	x := NewKey(5).TruncatedNormal(tensor.Shape{2000}, 0.5)
	assert.LessOrEqual(t, x.MaxAbs(), float32(1.0))
	assert.InDelta(t, 0, x.Mean(), 0.05)
}
