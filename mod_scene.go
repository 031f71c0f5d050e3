package vplgi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// ScenePreset names a built-in procedural scene.
type ScenePreset string

const (
	PresetCornell ScenePreset = "cornell"
	PresetRoom    ScenePreset = "room"
	PresetEmpty   ScenePreset = "empty"
)

func ParseScenePreset(s string) (ScenePreset, error) {
	switch ScenePreset(s) {
	case PresetCornell, PresetRoom, PresetEmpty:
		return ScenePreset(s), nil
	}
	return "", fmt.Errorf("unknown scene %q", s)
}

type SceneState struct {
	Manager *scene.Manager
	Light   core.PointLight
}

// SceneModule builds the scene on startup. Build overrides Preset.
type SceneModule struct {
	Preset ScenePreset
	Bounds core.AABB
	Light  core.PointLight
	Build  func(prog gfx.Program) []scene.ModelDesc
}

// DefaultLight sits just below the ceiling of a unit room.
func DefaultLight() core.PointLight {
	return core.PointLight{
		Position:  mgl32.Vec3{0, 0.8, 0},
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 4,
	}
}

func (m SceneModule) Install(app *App) {
	if _, ok := Resource[DeviceState](app); !ok {
		panic("SceneModule requires DeviceModule")
	}
	bounds := m.Bounds
	if bounds.IsEmpty() {
		bounds = core.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	}
	light := m.Light
	if light.Intensity == 0 {
		light = DefaultLight()
	}
	state := &SceneState{Manager: scene.NewManager(), Light: light}
	app.addResources(state)

	build := m.Build
	if build == nil {
		build = func(prog gfx.Program) []scene.ModelDesc {
			switch m.Preset {
			case PresetRoom:
				return scene.Room(bounds, prog)
			case PresetEmpty:
				return nil
			default:
				return scene.CornellBox(bounds, prog)
			}
		}
	}

	app.UseSystem(System(func(ds *DeviceState, sc *SceneState) error {
		if ds.Device == nil {
			return nil
		}
		prog, err := ds.Device.LoadProgram(core.ProgramForward)
		if err != nil {
			return err
		}
		models, err := sc.Manager.AddAll(ds.Device, build(prog))
		if err != nil {
			return err
		}
		app.Logger().Infof("scene ready: %d models, bounds %v", len(models), sc.Manager.Bounds())
		return nil
	}).InStage(Startup))

	app.UseSystem(System(func(sc *SceneState) {
		sc.Manager.Release()
	}).InStage(Shutdown))
}
