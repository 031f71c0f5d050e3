package vplgi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/gpu"
	"github.com/gekko3d/vplgi/vplrt/rt/soft"
)

type Backend string

const (
	BackendSoft Backend = "soft"
	BackendWGPU Backend = "wgpu"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendSoft, BackendWGPU:
		return Backend(s), nil
	}
	return "", fmt.Errorf("unknown backend %q", s)
}

// DeviceState holds the graphics device every later module renders with.
type DeviceState struct {
	Backend Backend
	Device  gfx.Device
}

// DeviceModule opens a device at install time and releases it on shutdown.
type DeviceModule struct {
	Backend Backend
	// Workers sizes the software device pool; 0 uses GOMAXPROCS.
	Workers int
}

func (m DeviceModule) Install(app *App) {
	backend := m.Backend
	if backend == "" {
		backend = BackendSoft
	}
	state := &DeviceState{Backend: backend}

	switch backend {
	case BackendSoft:
		var opts []soft.Option
		if m.Workers > 0 {
			opts = append(opts, soft.WithWorkers(m.Workers))
		}
		state.Device = soft.NewDevice(opts...)
	case BackendWGPU:
		dev, err := gpu.NewDevice(app.Logger())
		if err != nil {
			// Surfaced by the startup system so Run reports it.
			app.Logger().Errorf("wgpu device: %v", err)
			app.UseSystem(System(func() error { return fmt.Errorf("open wgpu device: %w", err) }).InStage(Startup))
			app.addResources(state)
			return
		}
		state.Device = dev
	default:
		panic(fmt.Sprintf("unknown backend %q", backend))
	}

	app.Logger().Infof("device %s ready", state.Device.Name())
	app.addResources(state)
	app.UseSystem(System(releaseDevice).InStage(Shutdown))
}

func releaseDevice(state *DeviceState) {
	if state.Device != nil {
		state.Device.Release()
		state.Device = nil
	}
}
