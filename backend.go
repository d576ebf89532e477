package pointflow

// Backend identifies where the per-slot transition runs.
// Keep names aligned with the update paths in mod_particles.go.
type Backend string

const (
	// BackendGPU runs the transition as a compute kernel; particle state
	// never leaves device memory between frames.
	BackendGPU Backend = "gpu"

	// BackendCPU runs the transition on goroutine-sharded buffers and
	// uploads the committed state for drawing. Same semantics, useful
	// headless and as the reference the tests pin down.
	BackendCPU Backend = "cpu"
)

func (b Backend) Name() string {
	switch b {
	case BackendGPU:
		return "GPU compute"
	case BackendCPU:
		return "CPU workers"
	default:
		return string(b)
	}
}
