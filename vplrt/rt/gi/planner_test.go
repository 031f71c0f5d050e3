package gi

import (
	"math"
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDirectionsLayout(t *testing.T) {
	const theta, phi = 4, 5
	dirs := PlanDirections(theta, phi)
	require.Len(t, dirs, theta*phi)

	for p := 0; p < phi; p++ {
		for th := 0; th < theta; th++ {
			d := dirs[p*theta+th]
			assert.InDelta(t, 1, d.Len(), 1e-5)
			assert.Less(t, math.Abs(float64(d[1])), 0.999, "direction %d is parallel to up", p*theta+th)

			lat := math.Pi / float64(theta+1) * float64(th+1)
			assert.InDelta(t, math.Cos(lat), float64(d[1]), 1e-5)
		}
	}

	for i := range dirs {
		for j := i + 1; j < len(dirs); j++ {
			assert.False(t, dirs[i].ApproxEqualThreshold(dirs[j], 1e-4), "directions %d and %d coincide", i, j)
		}
	}
}

func TestFitRayBundleCameraContainsBounds(t *testing.T) {
	boxes := []core.AABB{
		core.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}),
		core.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, 1, 2}),
		core.NewAABB(mgl32.Vec3{100, -5, 30}, mgl32.Vec3{103, 5, 31}),
		// A floor plane is flat on one axis and still frames.
		core.NewAABB(mgl32.Vec3{-4, 0, -4}, mgl32.Vec3{4, 0, 4}),
	}
	for bi, box := range boxes {
		for i, dir := range PlanDirections(4, 5) {
			cam, err := FitRayBundleCamera(box, dir, 0.5, 1.5)
			require.NoError(t, err)

			planes := core.ExtractFrustum(cam.ViewProj())
			assert.True(t, core.AABBContainedInFrustum(box, planes, 1e-3), "box %d direction %d", bi, i)
			assert.False(t, box.Contains(cam.Position), "box %d direction %d: camera inside bounds", bi, i)
			assert.InDelta(t, 1, cam.Direction.Dot(dir.Mul(-1)), 1e-5)

			for _, c := range box.Corners() {
				ndc := cam.Project(c)
				for a := 0; a < 3; a++ {
					assert.LessOrEqual(t, math.Abs(float64(ndc[a])), 1.0+1e-4, "box %d direction %d corner %v", bi, i, c)
				}
			}
		}
	}
}

func TestFitRayBundleCameraDegenerate(t *testing.T) {
	dir := mgl32.Vec3{0, 0, 1}
	_, err := FitRayBundleCamera(core.EmptyAABB(), dir, 0.5, 1.5)
	assert.ErrorIs(t, err, ErrEmptyScene)

	line := core.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	_, err = FitRayBundleCamera(line, dir, 0.5, 1.5)
	assert.ErrorIs(t, err, ErrEmptyScene)

	inf := float32(math.Inf(1))
	_, err = FitRayBundleCamera(core.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{inf, 1, 1}), dir, 0.5, 1.5)
	assert.ErrorIs(t, err, ErrEmptyScene)
}

func TestPlannerRefitsOnlyOnChange(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPlanner(cfg)
	assert.False(t, p.Planned())
	assert.Len(t, p.Directions(), cfg.SampleCount())

	box := core.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	changed, err := p.Update(box)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, p.Cameras(), cfg.SampleCount())
	assert.Len(t, p.Records(), cfg.SampleCount())
	assert.Len(t, p.InverseViewProjs(), cfg.SampleCount())

	changed, err = p.Update(box)
	require.NoError(t, err)
	assert.False(t, changed)

	grown := box.Extend(mgl32.Vec3{3, 0, 0})
	changed, err = p.Update(grown)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, grown, p.Bounds())

	_, err = p.Update(core.EmptyAABB())
	assert.ErrorIs(t, err, ErrEmptyScene)
	// A rejected update keeps the last fit.
	assert.Equal(t, grown, p.Bounds())

	_, ok := p.Camera(cfg.SampleCount())
	assert.False(t, ok)
	cam, ok := p.Camera(0)
	require.True(t, ok)
	assert.Equal(t, p.Cameras()[0], cam)
}

func TestInverseViewProjRoundTrip(t *testing.T) {
	p := NewPlanner(DefaultConfig())
	_, err := p.Update(core.NewAABB(mgl32.Vec3{-2, 0, -1}, mgl32.Vec3{2, 3, 1}))
	require.NoError(t, err)

	point := mgl32.Vec3{0.5, 1.2, -0.3}
	for i, cam := range p.Cameras() {
		clip := cam.ViewProj().Mul4x1(point.Vec4(1))
		back := p.InverseViewProjs()[i].Mul4x1(clip)
		assert.True(t, back.Vec3().Mul(1/back[3]).ApproxEqualThreshold(point, 1e-3), "camera %d", i)
	}
}
