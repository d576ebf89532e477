package pointflow

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/math/f32"

	"github.com/gekko3d/pointflow/shaders"
)

// simUniforms matches SimUniforms in particles_update.wgsl. Uniform rows are
// 16 bytes, hence the tail padding.
type simUniforms struct {
	Gravity   f32.Vec2
	Origin    f32.Vec2
	TimeDelta float32
	MinTheta  float32
	MaxTheta  float32
	MinSpeed  float32
	MaxSpeed  float32
	Born      uint32
	_         [2]uint32
}

// particleVertex describes the draw stage's view of one buffer slot. Velocity
// is untagged: it pads the stride but only the update kernel reads it.
type particleVertex struct {
	Position [2]float32 `pointflow:"layout" format:"float2" location:"0"`
	Age      float32    `pointflow:"layout" format:"float" location:"1"`
	Life     float32    `pointflow:"layout" format:"float" location:"2"`
	Velocity [2]float32
}

// particleGpu owns the device-resident half of the feedback loop: the two
// state buffers, the update kernel and the point-draw pipeline. Bind group
// [read] pairs buffer[read] as source with buffer[write] as destination, so
// the double-buffer discipline is fixed at bind time, not re-decided per
// dispatch.
type particleGpu struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	bufs       [2]*wgpu.Buffer
	uniformBuf *wgpu.Buffer
	noiseView  *wgpu.TextureView

	updatePipeline *wgpu.ComputePipeline
	drawPipeline   *wgpu.RenderPipeline
	bindGroups     [2]*wgpu.BindGroup

	read  int
	write int
}

func newParticleGpu(client *clientState, initial []Particle, noise *NoiseField) (*particleGpu, error) {
	g := &particleGpu{
		device: client.device,
		queue:  client.queue,
		read:   0,
		write:  1,
	}

	// Both buffers start from the same initial state; the unborn tail is
	// never dispatched, so it stays identical in both until born.
	contents := particlesToBytes(initial)
	for i := range g.bufs {
		buf, err := g.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    fmt.Sprintf("Particle State %d", i),
			Contents: contents,
			Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("particle buffer %d: %w", i, err)
		}
		g.bufs[i] = buf
	}

	uniformBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Sim Uniforms",
		Size:  uint64(unsafe.Sizeof(simUniforms{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform buffer: %w", err)
	}
	g.uniformBuf = uniformBuf

	if err := g.createNoiseTexture(noise); err != nil {
		return nil, err
	}

	if err := g.createUpdatePipeline(); err != nil {
		return nil, err
	}

	if err := g.createDrawPipeline(client.surfaceConfig.Format); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *particleGpu) createNoiseTexture(noise *NoiseField) error {
	width, height := noise.Size()
	extent := wgpu.Extent3D{
		Width:              uint32(width),
		Height:             uint32(height),
		DepthOrArrayLayers: 1,
	}

	texture, err := g.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "RG Noise",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRG32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("noise texture: %w", err)
	}
	defer texture.Release()

	err = g.queue.WriteTexture(
		texture.AsImageCopy(),
		wgpu.ToBytes(noise.Texels()),
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(width) * 8, // two float32 per texel
			RowsPerImage: uint32(height),
		},
		&extent,
	)
	if err != nil {
		return fmt.Errorf("noise upload: %w", err)
	}

	view, err := texture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("noise view: %w", err)
	}
	g.noiseView = view
	return nil
}

func (g *particleGpu) createUpdatePipeline() error {
	module, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Update CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticlesUpdateWGSL},
	})
	if err != nil {
		return fmt.Errorf("update shader: %w", err)
	}
	defer module.Release()

	g.updatePipeline, err = g.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Particle Update Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}

	// One bind group per buffer direction. Rebinding the other group after a
	// swap is the whole role exchange.
	for read := range g.bindGroups {
		write := 1 - read
		bindGroup, err := g.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: g.updatePipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: g.uniformBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: g.bufs[read], Size: wgpu.WholeSize},
				{Binding: 2, Buffer: g.bufs[write], Size: wgpu.WholeSize},
				{Binding: 3, TextureView: g.noiseView, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return fmt.Errorf("update bind group %d: %w", read, err)
		}
		g.bindGroups[read] = bindGroup
	}
	return nil
}

func (g *particleGpu) createDrawPipeline(format wgpu.TextureFormat) error {
	module, err := g.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Draw VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ParticlesDrawWGSL},
	})
	if err != nil {
		return fmt.Errorf("draw shader: %w", err)
	}
	defer module.Release()

	g.drawPipeline, err = g.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Particle Draw Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{createVertexBufferLayout(particleVertex{})},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format: format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyPointList,
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return fmt.Errorf("draw pipeline: %w", err)
	}
	return nil
}

func (g *particleGpu) writeUniforms(params SimParams, born int) {
	uniforms := simUniforms{
		Gravity:   f32.Vec2{params.Gravity[0], params.Gravity[1]},
		Origin:    f32.Vec2{params.SpawnOrigin[0], params.SpawnOrigin[1]},
		TimeDelta: params.TimeDelta,
		MinTheta:  params.MinTheta,
		MaxTheta:  params.MaxTheta,
		MinSpeed:  params.MinSpeed,
		MaxSpeed:  params.MaxSpeed,
		Born:      uint32(born),
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&uniforms)), unsafe.Sizeof(uniforms))
	g.queue.WriteBuffer(g.uniformBuf, 0, data)
}

// encodeUpdate records one transition over slots [0, born) into buffer[write].
// The source buffer stays committed and untouched until the swap.
func (g *particleGpu) encodeUpdate(encoder *wgpu.CommandEncoder, born int) {
	if born <= 0 {
		return
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(g.updatePipeline)
	pass.SetBindGroup(0, g.bindGroups[g.read], nil)
	pass.DispatchWorkgroups(uint32((born+63)/64), 1, 1)
	pass.End()
}

// encodeDraw rasterizes the committed buffer as point primitives.
func (g *particleGpu) encodeDraw(pass *wgpu.RenderPassEncoder, born int) {
	if born <= 0 {
		return
	}
	pass.SetPipeline(g.drawPipeline)
	pass.SetVertexBuffer(0, g.bufs[g.read], 0, wgpu.WholeSize)
	pass.Draw(uint32(born), 1, 0, 0)
}

// uploadState overwrites the committed buffer with CPU-computed state. Only
// the CPU backend calls this; the compute path never copies state back.
func (g *particleGpu) uploadState(particles []Particle) {
	g.queue.WriteBuffer(g.bufs[g.read], 0, particlesToBytes(particles))
}

// swap exchanges buffer roles: the freshly written buffer becomes current.
// Call once per completed update, after submit.
func (g *particleGpu) swap() {
	g.read, g.write = g.write, g.read
}
