package vplgi

import (
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
)

// GIState is the installed technique and the outcome of its last frame.
type GIState struct {
	Technique gi.Technique
	// Pipeline is set for the VPL technique only.
	Pipeline  *gi.Pipeline
	LastStats gi.FrameStats
	Frames    uint64
}

// GIModule runs the VPL pipeline once per frame against the scene light.
// Install it through UseTechnique or UseVPL.
type GIModule struct {
	Config gi.Config
}

func (m GIModule) Install(app *App) {
	ds, ok := Resource[DeviceState](app)
	if !ok {
		panic("GIModule requires DeviceModule")
	}
	sc, ok := Resource[SceneState](app)
	if !ok {
		panic("GIModule requires SceneModule")
	}

	state := &GIState{}
	app.addResources(state)

	app.UseSystem(System(func() error {
		if ds.Device == nil {
			return nil
		}
		state.Pipeline = gi.NewPipeline(ds.Device, sc.Manager, m.Config, app.Logger())
		state.Technique = gi.NewVPLTechnique(state.Pipeline)
		return state.Technique.Init()
	}).InStage(Startup))

	app.UseSystem(System(renderTechnique).InStage(Render))
	app.UseSystem(System(releaseTechnique).InStage(Shutdown))
}

// VoxelModule adapts an external voxel renderer as the GI technique.
type VoxelModule struct {
	Renderer gi.VoxelRenderer
}

func (m VoxelModule) Install(app *App) {
	if _, ok := Resource[SceneState](app); !ok {
		panic("VoxelModule requires SceneModule")
	}
	state := &GIState{Technique: &gi.VoxelTechnique{Renderer: m.Renderer}}
	app.addResources(state)

	app.UseSystem(System(func(st *GIState) error { return st.Technique.Init() }).InStage(Startup))
	app.UseSystem(System(renderTechnique).InStage(Render))
	app.UseSystem(System(releaseTechnique).InStage(Shutdown))
}

func renderTechnique(st *GIState, sc *SceneState) error {
	if st.Technique == nil {
		return gi.ErrNotInitialized
	}
	if err := st.Technique.Render(sc.Light); err != nil {
		return err
	}
	if vpl, ok := st.Technique.(*gi.VPLTechnique); ok {
		st.LastStats = vpl.LastStats
	}
	st.Frames++
	return nil
}

func releaseTechnique(st *GIState) {
	if st.Technique != nil {
		st.Technique.Release()
	}
}
