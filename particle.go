package pointflow

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Particle is one slot of the population. The slot index is fixed for the
// life of the process; a particle is respawned in place, never moved or
// removed. Layout is six packed float32s, identical to the WGSL storage
// buffer stride.
type Particle struct {
	Position mgl32.Vec2
	Age      float32
	Life     float32
	Velocity mgl32.Vec2
}

const particleStride = 6 * 4 // bytes, matches array<Particle> in WGSL

// initialParticles builds the population's starting state. Life is sampled
// once here and carried forward unchanged through every respawn. Age starts
// past life so every slot takes the respawn branch on its first update,
// which is what assigns the real initial velocity and position.
func initialParticles(n int, minLife, maxLife float32, rng *rand.Rand) []Particle {
	particles := make([]Particle, n)
	for i := range particles {
		life := minLife + rng.Float32()*(maxLife-minLife)
		particles[i] = Particle{
			Age:  life + 1,
			Life: life,
		}
	}
	return particles
}
