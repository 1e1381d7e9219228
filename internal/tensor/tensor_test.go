package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.False(t, Shape{2}.Equal(Shape{2, 1}))
	assert.Error(t, Shape{2, 0}.Validate())
	assert.NoError(t, Shape{}.Validate())
	assert.ErrorIs(t, Shape{-1}.Validate(), ErrInvalidShape)
	assert.ErrorIs(t, Shape{1 << 32, 1 << 32}.Validate(), ErrInvalidShape, "product wraps to zero")
	assert.ErrorIs(t, Shape{MaxElements, 2}.Validate(), ErrInvalidShape)
	assert.NoError(t, Shape{MaxElements}.Validate())
	assert.Equal(t, 2, Shape{3, 4}.Rank())

	s := Shape{1, 2}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 1, s[0])
}

func TestFromSlice(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	x, err := FromSlice(src, Shape{2, 2})
	require.NoError(t, err)
	src[0] = 100
	assert.Equal(t, float32(1), x.At(0, 0), "FromSlice must copy")
	assert.Equal(t, float32(3), x.At(1, 0))

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)
	_, err = FromSlice(nil, Shape{-1})
	assert.Error(t, err)
}

func TestElementwiseDoesNotMutate(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3}, Shape{3})
	b, _ := FromSlice([]float32{4, 5, 6}, Shape{3})

	assert.Equal(t, []float32{5, 7, 9}, a.Add(b).Data())
	assert.Equal(t, []float32{-3, -3, -3}, a.Sub(b).Data())
	assert.Equal(t, []float32{4, 10, 18}, a.Mul(b).Data())
	assert.Equal(t, []float32{2, 4, 6}, a.Scale(2).Data())
	assert.Equal(t, []float32{2, 3, 4}, a.AddScalar(1).Data())
	assert.Equal(t, []float32{1, 2, 3}, a.Data())
}

func TestZipBroadcastScalar(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3}, Shape{3})
	assert.Equal(t, []float32{3, 6, 9}, a.Mul(Scalar(3)).Data())
}

func TestZipShapeMismatchPanics(t *testing.T) {
	a := Zeros(Shape{3})
	b := Zeros(Shape{2})
	assert.Panics(t, func() { a.Add(b) })
}

func TestReductions(t *testing.T) {
	x, _ := FromSlice([]float32{3, -4}, Shape{2})
	assert.InDelta(t, -1, x.Sum(), 1e-6)
	assert.InDelta(t, -0.5, x.Mean(), 1e-6)
	assert.InDelta(t, 12.5, x.MeanSquare(), 1e-6)
	assert.InDelta(t, 5, x.L2Norm(), 1e-6)
	assert.InDelta(t, 4, x.MaxAbs(), 1e-6)
	assert.Equal(t, float32(7), Scalar(7).Item())
	assert.Panics(t, func() { x.Item() })
}

func TestAllFinite(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2}, Shape{2})
	assert.True(t, x.AllFinite())
	y, _ := FromSlice([]float32{1, float32(math.NaN())}, Shape{2})
	assert.False(t, y.AllFinite())
	z, _ := FromSlice([]float32{float32(math.Inf(1))}, Shape{1})
	assert.False(t, z.AllFinite())
}

func TestMatMul(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	b, _ := FromSlice([]float32{7, 8, 9, 10, 11, 12}, Shape{3, 2})
	c := a.MatMul(b)
	assert.Equal(t, Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.Data())

	assert.Panics(t, func() { a.MatMul(a) })
}

func TestMatMul_ParallelMatchesSequential(t *testing.T) {
	const m, k, n = 513, 7, 5
	a := Zeros(Shape{m, k})
	for i := range a.Data() {
		a.Data()[i] = float32(i%13) - 6
	}
	b := Zeros(Shape{k, n})
	for i := range b.Data() {
		b.Data()[i] = float32(i%5) * 0.5
	}

	par := a.MatMul(b)

	saved := Parallelism
	Parallelism.Enabled = false
	seq := a.MatMul(b)
	Parallelism = saved

	assert.Equal(t, seq.Data(), par.Data())
}

func TestTransposeReshape(t *testing.T) {
	a, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	at := a.Transpose()
	assert.Equal(t, Shape{3, 2}, at.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, at.Data())

	r := a.Reshape(3, 2)
	assert.Equal(t, Shape{3, 2}, r.Shape())
	assert.Panics(t, func() { a.Reshape(4) })
}

func TestColumnsAndRows(t *testing.T) {
	x, _ := FromSlice([]float32{1, 2, 3}, Shape{3})
	y, _ := FromSlice([]float32{4, 5, 6}, Shape{3})
	m := StackColumns(x, y)
	assert.Equal(t, Shape{3, 2}, m.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, m.Data())
	assert.Equal(t, []float32{4, 5, 6}, m.Column(1).Data())
	assert.Equal(t, []float32{4, 5, 6}, m.Slice(1, 2).Data())

	bias, _ := FromSlice([]float32{10, 20}, Shape{2})
	assert.Equal(t, []float32{11, 24, 12, 25, 13, 26}, m.AddRow(bias).Data())
}
