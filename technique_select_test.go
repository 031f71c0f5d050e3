package vplgi

import (
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() gi.Config {
	cfg := gi.DefaultConfig()
	cfg.ThetaDirs, cfg.PhiDirs = 2, 2
	cfg.Resolution = 8
	cfg.RSMResolution = 16
	cfg.VisibilityResolution = 8
	return cfg
}

func newSoftApp(preset ScenePreset) *App {
	return NewAppBuilder().
		UseModule(DeviceModule{Backend: BackendSoft, Workers: 2}, SceneModule{Preset: preset}).
		Build()
}

func TestUseVPLRendersFrames(t *testing.T) {
	app := newSoftApp(PresetCornell)
	app.UseVPL(smallConfig())
	app.UseModules(ProfilerModule{})

	require.NoError(t, app.Run(2))

	st, ok := Resource[GIState](app)
	require.True(t, ok)
	assert.Equal(t, uint64(2), st.Frames)
	assert.Equal(t, gi.TechniqueVPL, st.Technique.Name())
	require.NotNil(t, st.Pipeline)
	assert.Equal(t, gi.StateReady, st.Pipeline.State())
	assert.Greater(t, st.LastStats.Reserved, uint32(0))
	assert.Equal(t, uint64(2), st.LastStats.Frame)

	tag, ok := Resource[TechniqueTag](app)
	require.True(t, ok)
	assert.Equal(t, "vpl", tag.Name)
}

func TestEmptySceneFailsRun(t *testing.T) {
	app := newSoftApp(PresetEmpty)
	app.UseVPL(smallConfig())

	err := app.Run(1)
	assert.ErrorIs(t, err, gi.ErrEmptyScene)
	assert.Equal(t, uint64(0), app.Frame())
}

func TestSingleTechniqueGuard(t *testing.T) {
	app := newSoftApp(PresetCornell)
	app.UseVPL(smallConfig())

	assert.PanicsWithValue(t, "Multiple techniques installed: vpl and voxel", func() {
		app.UseVoxel(nil)
	})
}

func TestVoxelWithoutRendererIsUnavailable(t *testing.T) {
	app := newSoftApp(PresetCornell)
	app.UseVoxel(nil)

	err := app.Run(1)
	assert.ErrorIs(t, err, gi.ErrTechniqueUnavailable)
}

type countingVoxel struct {
	inits, renders, releases int
	last                     core.PointLight
}

func (c *countingVoxel) InitVoxelGI() error { c.inits++; return nil }
func (c *countingVoxel) RenderVoxelGI(light core.PointLight) error {
	c.renders++
	c.last = light
	return nil
}
func (c *countingVoxel) ReleaseVoxelGI() { c.releases++ }

func TestVoxelDelegates(t *testing.T) {
	app := newSoftApp(PresetRoom)
	v := &countingVoxel{}
	app.UseVoxel(v)

	require.NoError(t, app.Run(3))
	assert.Equal(t, 1, v.inits)
	assert.Equal(t, 3, v.renders)
	assert.Equal(t, 1, v.releases)
	assert.Equal(t, DefaultLight(), v.last)
}

func TestModulesRequireDevice(t *testing.T) {
	assert.Panics(t, func() { NewAppBuilder().UseModule(SceneModule{}).Build() })
	assert.Panics(t, func() {
		NewAppBuilder().UseModule(DeviceModule{}).Build().UseVPL(smallConfig())
	})
}

func TestParsers(t *testing.T) {
	b, err := ParseBackend("wgpu")
	require.NoError(t, err)
	assert.Equal(t, BackendWGPU, b)
	_, err = ParseBackend("metal")
	assert.Error(t, err)

	p, err := ParseScenePreset("room")
	require.NoError(t, err)
	assert.Equal(t, PresetRoom, p)
	_, err = ParseScenePreset("sponza")
	assert.Error(t, err)
}
