package pointflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoiseField_RejectsBadSize(t *testing.T) {
	for _, dims := range [][2]int{{0, 16}, {16, 0}, {-1, 16}, {0, 0}} {
		_, err := NewNoiseField(dims[0], dims[1], 1)
		assert.ErrorIs(t, err, ErrBadNoiseSize, "dims %v", dims)
	}
}

func TestNoiseField_Determinism(t *testing.T) {
	a, err := NewNoiseField(32, 32, 123)
	require.NoError(t, err)
	b, err := NewNoiseField(32, 32, 123)
	require.NoError(t, err)

	for slot := 0; slot < 32*32; slot++ {
		a1, a2 := a.Sample(slot)
		b1, b2 := b.Sample(slot)
		assert.Equal(t, a1, b1)
		assert.Equal(t, a2, b2)
	}
}

func TestNoiseField_SampleRange(t *testing.T) {
	f, err := NewNoiseField(64, 64, 7)
	require.NoError(t, err)

	for slot := 0; slot < 64*64; slot++ {
		r1, r2 := f.Sample(slot)
		assert.GreaterOrEqual(t, r1, float32(0))
		assert.Less(t, r1, float32(1))
		assert.GreaterOrEqual(t, r2, float32(0))
		assert.Less(t, r2, float32(1))
	}
}

func TestNoiseField_CoordinateMapping(t *testing.T) {
	f, err := NewNoiseField(8, 4, 99)
	require.NoError(t, err)

	// slot -> (slot mod W, slot div W), wrapping by field height.
	r1, r2 := f.Sample(11)
	assert.Equal(t, f.pairs[1*8+3][0], r1)
	assert.Equal(t, f.pairs[1*8+3][1], r2)

	// Slots past the field wrap instead of reading out of bounds.
	w1, w2 := f.Sample(8*4 + 11)
	assert.Equal(t, r1, w1)
	assert.Equal(t, r2, w2)
}

func TestNoiseField_Texels(t *testing.T) {
	f, err := NewNoiseField(4, 2, 5)
	require.NoError(t, err)

	texels := f.Texels()
	require.Len(t, texels, 4*2*2)

	for i, p := range f.pairs {
		assert.Equal(t, p[0], texels[i*2])
		assert.Equal(t, p[1], texels[i*2+1])
	}
}
