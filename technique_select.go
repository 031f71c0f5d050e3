package vplgi

import (
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
)

// UseTechnique installs exactly one GI technique module.
// Usage:
//
//	app.UseTechnique(gi.TechniqueVPL, GIModule{Config: gi.DefaultConfig()})
func (app *App) UseTechnique(name gi.TechniqueName, mod Module) *App {
	ensureSingleTechnique(app, string(name))
	app.Logger().Infof("Technique selected: %s", name)
	app.UseModules(mod)
	return app
}

// UseVPL selects the VPL technique with the given configuration.
func (app *App) UseVPL(cfg gi.Config) *App {
	return app.UseTechnique(gi.TechniqueVPL, GIModule{Config: cfg})
}

// UseVoxel selects the voxel technique backed by an external renderer.
func (app *App) UseVoxel(renderer gi.VoxelRenderer) *App {
	return app.UseTechnique(gi.TechniqueVoxel, VoxelModule{Renderer: renderer})
}
