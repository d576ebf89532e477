package pointflow

import (
	"time"
)

// A frame gap longer than this means the driver stalled (minimized window,
// background tab equivalent). The frame is treated as zero-length instead of
// integrating a multi-second jump.
const maxFrameDelta = 500 * time.Millisecond

type Time struct {
	Now time.Time
	Dt  time.Duration

	Frames int
	FPS    float64

	fpsFrames int
	fpsAccum  time.Duration
}

// DtSeconds is the uniform time-delta handed to the simulation.
func (t *Time) DtSeconds() float32 {
	return float32(t.Dt.Seconds())
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App) {
	app.AddResources(&Time{
		Now: time.Now(),
		Dt:  0,
	})
	app.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	dt := now.Sub(timeResource.Now)
	if dt > maxFrameDelta {
		dt = 0
	}

	timeResource.Dt = dt
	timeResource.Now = now
	timeResource.Frames++

	timeResource.fpsFrames++
	timeResource.fpsAccum += dt
	if timeResource.fpsAccum >= time.Second {
		timeResource.FPS = float64(timeResource.fpsFrames) / timeResource.fpsAccum.Seconds()
		timeResource.fpsFrames = 0
		timeResource.fpsAccum = 0
	}
}
