package pointflow

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModule() ParticlesModule {
	return ParticlesModule{NumParticles: 100}.withDefaults()
}

func TestParticlesModule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ParticlesModule)
		wantErr error
	}{
		{"valid defaults", func(m *ParticlesModule) {}, nil},
		{"zero particles", func(m *ParticlesModule) { m.NumParticles = 0 }, ErrBadParticleCount},
		{"negative particles", func(m *ParticlesModule) { m.NumParticles = -5 }, ErrBadParticleCount},
		{"inverted theta", func(m *ParticlesModule) { m.MinTheta = 1; m.MaxTheta = 0.5 }, ErrInvertedRange},
		{"inverted speed", func(m *ParticlesModule) { m.MinSpeed = 2; m.MaxSpeed = 1 }, ErrInvertedRange},
		{"inverted life", func(m *ParticlesModule) { m.MinLife = 3; m.MaxLife = 2 }, ErrInvertedRange},
		{"bad noise size", func(m *ParticlesModule) { m.NoiseSize = -1 }, ErrBadNoiseSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := validModule()
			tt.mutate(&mod)
			err := mod.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParticlesModule_Validate_NonFiniteConfig(t *testing.T) {
	mod := validModule()
	mod.Gravity = mgl32.Vec2{float32(math.NaN()), 0}
	assert.Error(t, mod.Validate(), "non-finite gravity must be rejected, never clamped")
}

func TestParticlesModule_WithDefaults(t *testing.T) {
	mod := ParticlesModule{NumParticles: 10}.withDefaults()

	assert.Equal(t, float32(-math.Pi), mod.MinTheta)
	assert.Equal(t, float32(math.Pi), mod.MaxTheta)
	assert.Equal(t, float32(0), mod.MinSpeed)
	assert.Equal(t, float32(1), mod.MaxSpeed)
	assert.Equal(t, float32(1), mod.MinLife)
	assert.Equal(t, float32(2), mod.MaxLife)
	assert.Equal(t, DefaultNoiseSize, mod.NoiseSize)
	assert.Equal(t, BackendGPU, mod.Backend)

	// Explicit settings survive.
	custom := ParticlesModule{
		NumParticles: 10,
		MinTheta:     0.1,
		MaxTheta:     0.2,
		Backend:      BackendCPU,
	}.withDefaults()
	assert.Equal(t, float32(0.1), custom.MinTheta)
	assert.Equal(t, float32(0.2), custom.MaxTheta)
	assert.Equal(t, BackendCPU, custom.Backend)
}

func TestRampBorn(t *testing.T) {
	var acc float32

	// Non-positive rate means the whole population is live immediately.
	assert.Equal(t, 500, rampBorn(0, 500, &acc, 0, 0.016))
	assert.Equal(t, 500, rampBorn(0, 500, &acc, -1, 0.016))

	// Fractional spawns accumulate across frames instead of stalling.
	acc = 0
	born := 0
	for frame := 0; frame < 10; frame++ {
		born = rampBorn(born, 500, &acc, 30, 0.016) // 0.48 per frame
	}
	assert.Equal(t, 4, born, "10 frames at 0.48 spawns/frame should have born 4")

	// The ramp caps at the population size.
	acc = 0
	born = rampBorn(490, 500, &acc, 1000, 1.0)
	assert.Equal(t, 500, born)

	// Once fully born the count stays put.
	assert.Equal(t, 500, rampBorn(500, 500, &acc, 1000, 1.0))
}

func TestParticleState_Stats(t *testing.T) {
	state := &ParticleState{
		born:  42,
		stats: Stats{Id: uuid.NewString(), TotalTime: 1.5, Frames: 90},
	}

	stats := state.Stats()
	assert.Equal(t, 42, stats.BornParticles)
	assert.Equal(t, 1.5, stats.TotalTime)
	assert.Equal(t, 90, stats.Frames)

	data, err := state.StatsJSON()
	require.NoError(t, err)

	var decoded Stats
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, stats, decoded)

	_, err = uuid.Parse(decoded.Id)
	assert.NoError(t, err)
}

func TestParticleState_SimParams(t *testing.T) {
	cfg := ParticlesModule{
		NumParticles: 10,
		Gravity:      mgl32.Vec2{0, -9.8},
		SpawnOrigin:  mgl32.Vec2{0.5, 0.1},
		MinTheta:     0.2,
		MaxTheta:     0.4,
		MinSpeed:     1,
		MaxSpeed:     3,
		MinLife:      1,
		MaxLife:      2,
	}
	state := &ParticleState{cfg: cfg}

	params := state.simParams(0.033)
	assert.Equal(t, float32(0.033), params.TimeDelta)
	assert.Equal(t, cfg.Gravity, params.Gravity)
	assert.Equal(t, cfg.SpawnOrigin, params.SpawnOrigin)
	assert.Equal(t, cfg.MinTheta, params.MinTheta)
	assert.Equal(t, cfg.MaxTheta, params.MaxTheta)
	assert.Equal(t, cfg.MinSpeed, params.MinSpeed)
	assert.Equal(t, cfg.MaxSpeed, params.MaxSpeed)
}
