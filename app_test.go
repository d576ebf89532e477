package pointflow

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	frames int
}

func TestApp_AddResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := &MockResource1{name: "Resource1"}
	app.AddResources(resource1)

	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Adding the same resource type twice is a wiring bug.
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.AddResources(resource1)
	})

	resource2 := &MockResource2{}
	app.AddResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")
}

func TestApp_SystemInjection(t *testing.T) {
	app := NewAppBuilder().Build()
	app.AddResources(&MockResource1{name: "injected"})

	var got string
	app.UseSystem(System(func(r *MockResource1) {
		got = r.name
	}))

	app.RunFrame()
	assert.Equal(t, "injected", got)
}

func TestApp_SystemInjection_UnknownDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(r *MockResource1) {}))

	assert.Panics(t, func() { app.RunFrame() })
}

func TestApp_StageOrder(t *testing.T) {
	app := NewAppBuilder().Build()

	var order []string
	app.UseSystem(System(func(app *App) { order = append(order, "render") }).InStage(Render))
	app.UseSystem(System(func(app *App) { order = append(order, "update") }).InStage(Update))
	app.UseSystem(System(func(app *App) { order = append(order, "prelude") }).InStage(Prelude))

	app.RunFrame()
	assert.Equal(t, []string{"prelude", "update", "render"}, order)
}

func TestApp_UseStage(t *testing.T) {
	app := NewAppBuilder().Build()

	custom := Stage{Name: "Simulate"}
	app.UseStage(custom, BeforeStage(Render))

	var order []string
	app.UseSystem(System(func(app *App) { order = append(order, "simulate") }).InStage(custom))
	app.UseSystem(System(func(app *App) { order = append(order, "render") }).InStage(Render))
	app.UseSystem(System(func(app *App) { order = append(order, "update") }).InStage(Update))

	app.RunFrame()
	assert.Equal(t, []string{"update", "simulate", "render"}, order)

	assert.Panics(t, func() {
		app.UseStage(Stage{Name: "Orphan"}, AfterStage(Stage{Name: "Missing"}))
	})
}

func TestApp_UseSystem_UnknownStagePanics(t *testing.T) {
	app := NewAppBuilder().Build()

	assert.Panics(t, func() {
		app.UseSystem(System(func(app *App) {}).InStage(Stage{Name: "Missing"}))
	})
}

func TestApp_QuitStopsRun(t *testing.T) {
	app := NewAppBuilder().Build()
	counter := &MockResource2{}
	app.AddResources(counter)

	app.UseSystem(System(func(app *App, c *MockResource2) {
		c.frames++
		if c.frames >= 3 {
			app.Quit()
		}
	}))

	app.Run()
	assert.Equal(t, 3, counter.frames, "Run must complete the frame in which Quit was called, then stop")
}

type mockModule struct {
	installed *bool
}

func (m mockModule) Install(app *App) {
	*m.installed = true
	app.AddResources(&MockResource1{name: "from module"})
}

func TestAppBuilder_UseModule(t *testing.T) {
	installed := false
	app := NewAppBuilder().
		UseModule(mockModule{installed: &installed}).
		Build()

	assert.True(t, installed)
	assert.Contains(t, app.resources, reflect.TypeOf(MockResource1{}))
}

func TestApp_LoggerFallback(t *testing.T) {
	app := NewAppBuilder().Build()
	require.NotNil(t, app.Logger(), "Logger must never return nil")
	assert.False(t, app.Logger().DebugEnabled(), "fallback logger is a nop")

	LoggingModule{Prefix: "test", Debug: true}.Install(app)
	assert.True(t, app.Logger().DebugEnabled(), "installed logger should be found")
}
