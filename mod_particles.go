package pointflow

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"reflect"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ParticlesModule runs a fixed-size population of point particles through a
// feedback loop: each frame the update stage writes every slot's next state
// into the buffer the draw stage reads on the following frame. Population
// size is fixed at install; particles respawn in place, never appear or
// disappear.
//
// Zero-valued ranges take the classic defaults: theta -pi..pi, speed 0..1,
// life 1..2 seconds.
type ParticlesModule struct {
	NumParticles int

	// ParticleBirthRate is the advisory spawn ramp in particles per second.
	// Zero or negative means the whole population is live from frame one.
	ParticleBirthRate float32

	Gravity     mgl32.Vec2
	SpawnOrigin mgl32.Vec2

	MinTheta float32 // spawn direction range, radians from +x axis
	MaxTheta float32
	MinSpeed float32
	MaxSpeed float32
	MinLife  float32 // sampled once per slot, carried through every respawn
	MaxLife  float32

	// NoiseSize is the side length of the square random-pair field.
	// Zero means DefaultNoiseSize.
	NoiseSize int

	// Seed drives the noise field and initial life sampling. The same seed
	// reproduces the same population bit for bit.
	Seed int64

	Backend Backend
}

type Stats struct {
	Id            string  `json:"id"`
	BornParticles int     `json:"born_particles"`
	TotalTime     float64 `json:"total_time"`
	Frames        int     `json:"frames"`
}

// ParticleState is the installed particle system resource.
type ParticleState struct {
	cfg     ParticlesModule
	backend Backend

	noise *NoiseField
	pair  *BufferPair
	gpu   *particleGpu

	born     int
	spawnAcc float32

	pendingUpdate bool
	pendingParams SimParams

	stats Stats
}

func (s *ParticleState) Born() int { return s.born }

func (s *ParticleState) Stats() Stats {
	stats := s.stats
	stats.BornParticles = s.born
	return stats
}

func (s *ParticleState) StatsJSON() ([]byte, error) {
	return json.Marshal(s.Stats())
}

func (mod ParticlesModule) withDefaults() ParticlesModule {
	if mod.MinTheta == 0 && mod.MaxTheta == 0 {
		mod.MinTheta = -math.Pi
		mod.MaxTheta = math.Pi
	}
	if mod.MinSpeed == 0 && mod.MaxSpeed == 0 {
		mod.MaxSpeed = 1
	}
	if mod.MinLife == 0 && mod.MaxLife == 0 {
		mod.MinLife = 1
		mod.MaxLife = 2
	}
	if mod.NoiseSize == 0 {
		mod.NoiseSize = DefaultNoiseSize
	}
	if mod.Backend == "" {
		mod.Backend = BackendGPU
	}
	return mod
}

// Validate fails fast on configuration that the update rule would otherwise
// turn into silently negative ranges or degenerate state. Nothing is clamped.
func (mod ParticlesModule) Validate() error {
	if mod.NumParticles <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadParticleCount, mod.NumParticles)
	}
	if mod.NoiseSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadNoiseSize, mod.NoiseSize)
	}
	if mod.MaxTheta < mod.MinTheta {
		return fmt.Errorf("%w: theta [%v, %v]", ErrInvertedRange, mod.MinTheta, mod.MaxTheta)
	}
	if mod.MaxSpeed < mod.MinSpeed {
		return fmt.Errorf("%w: speed [%v, %v]", ErrInvertedRange, mod.MinSpeed, mod.MaxSpeed)
	}
	if mod.MaxLife < mod.MinLife {
		return fmt.Errorf("%w: life [%v, %v]", ErrInvertedRange, mod.MinLife, mod.MaxLife)
	}
	if mod.MinLife <= 0 {
		return fmt.Errorf("life minimum must be positive, got %v", mod.MinLife)
	}
	for _, v := range []float32{
		mod.Gravity[0], mod.Gravity[1], mod.SpawnOrigin[0], mod.SpawnOrigin[1],
		mod.MinTheta, mod.MaxTheta, mod.MinSpeed, mod.MaxSpeed, mod.MinLife, mod.MaxLife,
	} {
		if !isFinite32(v) {
			return fmt.Errorf("configuration contains non-finite value %v", v)
		}
	}
	return nil
}

func (mod ParticlesModule) Install(app *App) {
	cfg := mod.withDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	noise, err := NewNoiseField(cfg.NoiseSize, cfg.NoiseSize, rng.Int63())
	if err != nil {
		panic(err)
	}

	initial := initialParticles(cfg.NumParticles, cfg.MinLife, cfg.MaxLife, rng)

	pair, err := NewBufferPair(initial, noise)
	if err != nil {
		panic(err)
	}

	clientRes, ok := app.resources[reflect.TypeOf(clientState{})]
	if !ok {
		panic("ParticlesModule requires ClientModule to be installed first")
	}
	client := clientRes.(*clientState)

	gpu, err := newParticleGpu(client, initial, noise)
	if err != nil {
		panic(err)
	}

	state := &ParticleState{
		cfg:     cfg,
		backend: cfg.Backend,
		noise:   noise,
		pair:    pair,
		gpu:     gpu,
		stats:   Stats{Id: uuid.NewString()},
	}

	app.Logger().Infof("particle system %s: %d slots, %s backend",
		state.stats.Id, cfg.NumParticles, cfg.Backend.Name())

	app.UseSystem(System(particleUpdateSystem).InStage(Update))
	app.UseSystem(System(particleRenderSystem).InStage(Render))

	app.AddResources(state)
}

// rampBorn advances the live-slot count by the configured birth rate,
// keeping fractional spawns across frames.
func rampBorn(born, total int, acc *float32, rate, dt float32) int {
	if rate <= 0 {
		return total
	}
	if born >= total {
		return born
	}
	*acc += rate * dt
	spawned := int(*acc)
	*acc -= float32(spawned)
	if born+spawned > total {
		return total
	}
	return born + spawned
}

func (s *ParticleState) simParams(dt float32) SimParams {
	return SimParams{
		TimeDelta:   dt,
		Gravity:     s.cfg.Gravity,
		SpawnOrigin: s.cfg.SpawnOrigin,
		MinTheta:    s.cfg.MinTheta,
		MaxTheta:    s.cfg.MaxTheta,
		MinSpeed:    s.cfg.MinSpeed,
		MaxSpeed:    s.cfg.MaxSpeed,
	}
}

// particleUpdateSystem is the update half of the per-frame contract: one
// transition over every born slot, against the previous frame's committed
// buffer. The GPU backend records its pass later, inside the render frame,
// but the role swap still happens exactly once per update.
func particleUpdateSystem(app *App, t *Time, state *ParticleState) {
	dt := t.DtSeconds()
	if !isFinite32(dt) {
		app.Logger().Errorf("particle update: %v", fmt.Errorf("%w: %v", ErrNonFiniteTimeDelta, dt))
		app.Quit()
		return
	}

	state.born = rampBorn(state.born, state.cfg.NumParticles, &state.spawnAcc, state.cfg.ParticleBirthRate, dt)
	state.stats.TotalTime += float64(dt)
	state.stats.Frames++

	params := state.simParams(dt)

	switch state.backend {
	case BackendCPU:
		if err := state.pair.update(params, state.born); err != nil {
			app.Logger().Errorf("particle update: %v", err)
			app.Quit()
		}
	default:
		state.pendingParams = params
		state.pendingUpdate = true
	}
}

// particleRenderSystem encodes the device frame: the pending update pass
// (GPU backend) or state upload (CPU backend), then one point draw of the
// committed buffer. The draw always reads the read-role buffer, never the
// one the update is writing; roles swap only after the frame is submitted.
func particleRenderSystem(app *App, client *clientState, state *ParticleState) {
	log := app.Logger()

	nextTexture, err := client.surface.GetCurrentTexture()
	if err != nil {
		log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := client.device.CreateCommandEncoder(nil)
	if err != nil {
		log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	gpuUpdate := state.backend != BackendCPU && state.pendingUpdate
	if gpuUpdate {
		state.gpu.writeUniforms(state.pendingParams, state.born)
		state.gpu.encodeUpdate(encoder, state.born)
	} else if state.backend == BackendCPU {
		state.gpu.uploadState(state.pair.Current())
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	state.gpu.encodeDraw(rPass, state.born)
	if err := rPass.End(); err != nil {
		log.Errorf("render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		log.Errorf("encoder Finish failed: %v", err)
		return
	}
	client.queue.Submit(cmd)
	client.surface.Present()

	if gpuUpdate {
		state.gpu.swap()
		state.pendingUpdate = false
	}
}
