package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	a := &Grid{W: 2, H: 2, Pix: []float32{1, 1, 0, 1}}
	b := &Grid{W: 2, H: 2, Pix: []float32{1, 0, 1, 0}}

	prod, err := Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, prod.Pix)

	diff, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, -1, 1}, diff.Pix)

	diff.ClampMin(0)
	assert.Equal(t, []float32{0, 1, 0, 1}, diff.Pix)
}

func TestSizeMismatch(t *testing.T) {
	_, err := Mul(New(2, 2), New(3, 2))
	assert.Error(t, err)
	_, err = Argmax([]*Grid{New(2, 2), New(2, 3)})
	assert.Error(t, err)
}

func TestArgmaxTiesPickLowestIndex(t *testing.T) {
	g0 := &Grid{W: 3, H: 1, Pix: []float32{0, 0.5, 0.2}}
	g1 := &Grid{W: 3, H: 1, Pix: []float32{0, 0.9, 0.2}}
	g2 := &Grid{W: 3, H: 1, Pix: []float32{0, 0.1, 0.7}}

	idx, err := Argmax([]*Grid{g0, g1, g2})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, idx)
}

func TestGrayRoundTrip(t *testing.T) {
	g := &Grid{W: 3, H: 1, Pix: []float32{0, 1, 0}}
	back := FromImage(g.Gray())
	assert.Equal(t, g.Pix, back.Pix)
}

func TestThresholdAndInvert(t *testing.T) {
	g := &Grid{W: 4, H: 1, Pix: []float32{0, 0.05, 0.1, 0.9}}
	assert.Equal(t, []float32{0, 0, 1, 1}, g.Threshold(0.1).Pix)
	assert.Equal(t, []float32{1, 0, 0, 1}, (&Grid{W: 4, H: 1, Pix: []float32{0, 1, 1, 0}}).Invert().Pix)
	assert.Equal(t, 2, g.Threshold(0.1).Count(1))
	assert.True(t, g.Any())
	assert.False(t, New(2, 2).Any())
}
