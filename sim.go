package pointflow

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrBadParticleCount   = errors.New("particle count must be positive")
	ErrBadNoiseSize       = errors.New("noise field size must be positive")
	ErrInvertedRange      = errors.New("range minimum exceeds maximum")
	ErrNonFiniteTimeDelta = errors.New("time delta is not finite")
)

// SimParams are the uniforms shared by every slot during one update.
type SimParams struct {
	TimeDelta   float32
	Gravity     mgl32.Vec2
	SpawnOrigin mgl32.Vec2
	MinTheta    float32 // radians from +x axis
	MaxTheta    float32
	MinSpeed    float32
	MaxSpeed    float32
}

// StepParticle is the per-slot transition function. It depends only on the
// slot's own prior state, its noise pair and the shared uniforms, so the
// runtime may apply it to every slot with no ordering guarantee.
//
// Once age reaches life the slot respawns in place: fresh position at the
// origin, fresh velocity from the slot's noise pair, life carried forward
// unchanged. Otherwise the state integrates: position moves by the old
// velocity, then gravity folds into velocity, so gravity reaches position
// on the following step.
func StepParticle(p Particle, slot int, noise NoiseSource, params SimParams) Particle {
	if p.Age >= p.Life {
		r1, r2 := noise.Sample(slot)
		theta := params.MinTheta + r1*(params.MaxTheta-params.MinTheta)
		dir := mgl32.Vec2{
			float32(math.Cos(float64(theta))),
			float32(math.Sin(float64(theta))),
		}
		speed := params.MinSpeed + r2*(params.MaxSpeed-params.MinSpeed)

		return Particle{
			Position: params.SpawnOrigin,
			Age:      0,
			Life:     p.Life,
			Velocity: dir.Mul(speed),
		}
	}

	dt := params.TimeDelta
	return Particle{
		Position: p.Position.Add(p.Velocity.Mul(dt)),
		Age:      p.Age + dt,
		Life:     p.Life,
		Velocity: p.Velocity.Add(params.Gravity.Mul(dt)),
	}
}

// BufferPair holds the two particle state arrays of the feedback loop.
// Exactly one is "current" (the last fully-committed frame) at any time;
// RunUpdate reads only from current, writes only to the other, then swaps
// roles. Exclusivity is structural, not lock-based: no slot ever observes
// another slot's in-progress output.
type BufferPair struct {
	bufs  [2][]Particle
	read  int
	noise NoiseSource
}

func NewBufferPair(initial []Particle, noise NoiseSource) (*BufferPair, error) {
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadParticleCount, len(initial))
	}
	if noise == nil {
		return nil, errors.New("noise source must not be nil")
	}

	bp := &BufferPair{noise: noise}
	bp.bufs[0] = make([]Particle, len(initial))
	bp.bufs[1] = make([]Particle, len(initial))
	copy(bp.bufs[0], initial)
	copy(bp.bufs[1], initial)
	return bp, nil
}

func (bp *BufferPair) Len() int {
	return len(bp.bufs[0])
}

// Current returns the committed buffer: safe to render, never mid-update.
func (bp *BufferPair) Current() []Particle {
	return bp.bufs[bp.read]
}

// RunUpdate advances every slot by one transition and swaps buffer roles.
func (bp *BufferPair) RunUpdate(params SimParams) error {
	return bp.update(params, bp.Len())
}

// update steps slots [0, born) and carries the unborn tail forward verbatim,
// so the freshly committed buffer never mixes state from two frames.
func (bp *BufferPair) update(params SimParams, born int) error {
	if !isFinite32(params.TimeDelta) {
		return fmt.Errorf("%w: %v", ErrNonFiniteTimeDelta, params.TimeDelta)
	}
	if born > bp.Len() {
		born = bp.Len()
	}

	src := bp.bufs[bp.read]
	dst := bp.bufs[1-bp.read]

	workers := runtime.NumCPU()
	if workers > born {
		workers = born
	}

	if workers <= 1 {
		for i := 0; i < born; i++ {
			dst[i] = StepParticle(src[i], i, bp.noise, params)
		}
	} else {
		chunk := (born + workers - 1) / workers
		var wg sync.WaitGroup
		for lo := 0; lo < born; lo += chunk {
			hi := lo + chunk
			if hi > born {
				hi = born
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					dst[i] = StepParticle(src[i], i, bp.noise, params)
				}
			}(lo, hi)
		}
		wg.Wait()
	}

	copy(dst[born:], src[born:])

	bp.read = 1 - bp.read
	return nil
}

// NonFiniteSlots reports the slots whose state contains a NaN or infinity.
// Slots are independent, so numeric degeneracy stays local to the slot that
// produced it; this is the post-update check that detects it.
func NonFiniteSlots(particles []Particle) []int {
	var bad []int
	for i, p := range particles {
		if !isFinite32(p.Position[0]) || !isFinite32(p.Position[1]) ||
			!isFinite32(p.Age) || !isFinite32(p.Life) ||
			!isFinite32(p.Velocity[0]) || !isFinite32(p.Velocity[1]) {
			bad = append(bad, i)
		}
	}
	return bad
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
