package gi

import (
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
	"github.com/gekko3d/vplgi/vplrt/rt/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = 16
	cfg.RSMResolution = 32
	cfg.VisibilityResolution = 16
	return cfg
}

func unitRoom() core.AABB {
	return core.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
}

func testLight() core.PointLight {
	return core.PointLight{
		Position:  mgl32.Vec3{0, 0.3, 0.1},
		Color:     mgl32.Vec3{1, 1, 1},
		Intensity: 4,
	}
}

// rig wires every stage by hand so tests can stop between them.
type rig struct {
	dev *soft.Device
	sc  *scene.Manager
	cfg Config

	planner    *Planner
	rsm        *ReflectiveShadowMapStage
	sampling   *VPLSamplingStage
	visibility *VPLVisibilityStage
	capture    *FragmentCaptureStage
	resolve    *RadianceResolveStage
}

func newRig(t *testing.T, cfg Config, build func(prog gfx.Program) []scene.ModelDesc, opts ...soft.Option) *rig {
	t.Helper()
	dev := soft.NewDevice(opts...)
	t.Cleanup(dev.Release)

	sc := scene.NewManager()
	if build != nil {
		prog, err := dev.LoadProgram(core.ProgramForward)
		require.NoError(t, err)
		_, err = sc.AddAll(dev, build(prog))
		require.NoError(t, err)
	}

	r := &rig{
		dev:        dev,
		sc:         sc,
		cfg:        cfg,
		planner:    NewPlanner(cfg),
		rsm:        NewReflectiveShadowMapStage(cfg),
		sampling:   NewVPLSamplingStage(cfg),
		visibility: NewVPLVisibilityStage(cfg),
		capture:    NewFragmentCaptureStage(cfg),
		resolve:    NewRadianceResolveStage(cfg),
	}
	for _, s := range []stage{r.rsm, r.sampling, r.visibility, r.capture, r.resolve} {
		require.NoError(t, s.Init(dev))
		t.Cleanup(s.Release)
	}
	return r
}

func room(prog gfx.Program) []scene.ModelDesc {
	return scene.Room(unitRoom(), prog)
}

// slabs returns count full size quads facing +X, spread along X.
func slabs(count int) func(gfx.Program) []scene.ModelDesc {
	return func(prog gfx.Program) []scene.ModelDesc {
		var out []scene.ModelDesc
		step := 2 / float32(count-1)
		for i := 0; i < count; i++ {
			x := -1 + step*float32(i)
			out = append(out, scene.ModelDesc{
				Name:      "slab",
				Vertices:  scene.Rect(mgl32.Vec3{x, -1, -1}, mgl32.Vec3{0, 2, 0}, mgl32.Vec3{0, 0, 2}),
				Transform: core.NewTransform(),
				Albedo:    mgl32.Vec4{0.5, 0.5, 0.5, 1},
				Roughness: 1,
				Program:   prog,
			})
		}
		return out
	}
}

func (r *rig) runUntilCapture(t *testing.T, light core.PointLight) {
	t.Helper()
	_, err := r.planner.Update(r.sc.Bounds())
	require.NoError(t, err)
	require.NoError(t, r.rsm.Run(r.dev, r.sc, light))
	require.NoError(t, r.sampling.Run(r.dev, r.rsm, r.planner))
	vpls, err := r.sampling.ReadAll(r.dev)
	require.NoError(t, err)
	require.NoError(t, r.visibility.Run(r.dev, r.sc, vpls, light))
	require.NoError(t, r.capture.Reset(r.dev))
	require.NoError(t, r.capture.Run(r.dev, r.sc, r.planner))
}

func (r *rig) snapshot(t *testing.T) *Snapshot {
	t.Helper()
	s, err := TakeSnapshot(r.dev, r.cfg, r.capture, r.sampling)
	require.NoError(t, err)
	return s
}

func newRoomPipeline(t *testing.T, cfg Config, opts ...soft.Option) *Pipeline {
	t.Helper()
	dev := soft.NewDevice(opts...)
	t.Cleanup(dev.Release)

	prog, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	sc := scene.NewManager()
	_, err = sc.AddAll(dev, scene.CornellBox(unitRoom(), prog))
	require.NoError(t, err)

	p := NewPipeline(dev, sc, cfg, nil)
	require.NoError(t, p.Init())
	t.Cleanup(p.Release)
	return p
}
