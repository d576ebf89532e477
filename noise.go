package pointflow

import (
	"fmt"
	"math/rand"
)

// NoiseSource supplies the two uniform [0,1) values a slot consumes when it
// respawns. Sample must be pure in slot: the same slot always draws the same
// pair, so a respawned particle's direction and speed are reproducible.
type NoiseSource interface {
	Sample(slot int) (r1, r2 float32)
}

// NoiseField is a precomputed table of independent uniform pairs, addressed
// by (slot mod width, slot div width), wrapping by field size. The table is
// filled once at construction; there is no per-frame random generation.
// Spawn variation over time comes from state drift between respawns, not
// from re-randomizing a slot.
type NoiseField struct {
	width  int
	height int
	pairs  [][2]float32
}

const DefaultNoiseSize = 512

func NewNoiseField(width, height int, seed int64) (*NoiseField, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadNoiseSize, width, height)
	}

	rng := rand.New(rand.NewSource(seed))
	pairs := make([][2]float32, width*height)
	for i := range pairs {
		pairs[i] = [2]float32{rng.Float32(), rng.Float32()}
	}

	return &NoiseField{
		width:  width,
		height: height,
		pairs:  pairs,
	}, nil
}

func (f *NoiseField) Sample(slot int) (float32, float32) {
	x := slot % f.width
	y := (slot / f.width) % f.height
	p := f.pairs[y*f.width+x]
	return p[0], p[1]
}

func (f *NoiseField) Size() (width, height int) {
	return f.width, f.height
}

// Texels returns the table as interleaved RG float texels, row-major, for
// upload as an rg32float texture. The GPU kernel reads the exact values the
// CPU kernel does.
func (f *NoiseField) Texels() []float32 {
	texels := make([]float32, 0, len(f.pairs)*2)
	for _, p := range f.pairs {
		texels = append(texels, p[0], p[1])
	}
	return texels
}
