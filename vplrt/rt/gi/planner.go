package gi

import (
	"fmt"
	"math"

	"github.com/gekko3d/vplgi/vplrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// PlanDirections lays out theta×phi unit directions on the sphere, Y up.
// Index i = phi*thetaDirs + theta. Latitudes stay strictly inside (0, π) so
// no direction is parallel to the up axis.
func PlanDirections(thetaDirs, phiDirs int) []mgl32.Vec3 {
	dirs := make([]mgl32.Vec3, thetaDirs*phiDirs)
	for p := 0; p < phiDirs; p++ {
		lon := 2 * math.Pi / float64(phiDirs) * float64(p)
		for t := 0; t < thetaDirs; t++ {
			lat := math.Pi / float64(thetaDirs+1) * float64(t+1)
			dirs[p*thetaDirs+t] = mgl32.Vec3{
				float32(math.Sin(lat) * math.Cos(lon)),
				float32(math.Cos(lat)),
				float32(math.Sin(lat) * math.Sin(lon)),
			}.Normalize()
		}
	}
	return dirs
}

// FitRayBundleCamera places an orthographic camera outside bounds along dir,
// looking back at the centre, sized so every corner projects inside the
// image and between the near and far planes.
func FitRayBundleCamera(bounds core.AABB, dir mgl32.Vec3, margin, extentScale float32) (core.RayBundleCamera, error) {
	if bounds.Degenerate() {
		return core.RayBundleCamera{}, ErrEmptyScene
	}
	dir = dir.Normalize()
	center := bounds.Center()
	exit, ok := bounds.ExitDistance(center, dir)
	if !ok {
		return core.RayBundleCamera{}, fmt.Errorf("%w: no exit along %v", ErrEmptyScene, dir)
	}

	eye := center.Add(dir.Mul(exit + margin))
	up := core.StableUp(dir)
	view := mgl32.LookAtV(eye, center, up)

	local := bounds.Transform(view)
	size := local.Size()
	extent := max(size[0], size[1], size[2])
	half := extent * extentScale * 0.5

	// View space looks down -Z, so depth is -z.
	pad := max(margin, 1e-3)
	near := -local.Max[2] - pad
	far := -local.Min[2] + pad

	return core.RayBundleCamera{
		Camera: core.Camera{
			Position:  eye,
			Direction: dir.Mul(-1),
			Up:        up,
			View:      view,
			Proj:      mgl32.Ortho(-half, half, -half, half, near, far),
		},
		HalfExtent: half,
		Near:       near,
		Far:        far,
	}, nil
}

// Planner owns the sample directions and the ray bundle cameras fitted to the
// current scene bounds. Cameras are refitted only when the bounds change.
type Planner struct {
	margin      float32
	extentScale float32

	directions []mgl32.Vec3
	cameras    []core.RayBundleCamera
	bounds     core.AABB
	planned    bool
}

func NewPlanner(cfg Config) *Planner {
	return &Planner{
		margin:      cfg.CameraMargin,
		extentScale: cfg.ExtentScale,
		directions:  PlanDirections(cfg.ThetaDirs, cfg.PhiDirs),
	}
}

// Update refits the cameras if bounds differ from the last fit. It reports
// whether a refit happened.
func (p *Planner) Update(bounds core.AABB) (bool, error) {
	if bounds.Degenerate() {
		return false, ErrEmptyScene
	}
	if p.planned && bounds == p.bounds {
		return false, nil
	}

	cams := make([]core.RayBundleCamera, len(p.directions))
	for i, d := range p.directions {
		c, err := FitRayBundleCamera(bounds, d, p.margin, p.extentScale)
		if err != nil {
			return false, fmt.Errorf("direction %d: %w", i, err)
		}
		cams[i] = c
	}
	p.cameras = cams
	p.bounds = bounds
	p.planned = true
	return true, nil
}

func (p *Planner) Planned() bool {
	return p.planned
}

func (p *Planner) Bounds() core.AABB {
	return p.bounds
}

func (p *Planner) Directions() []mgl32.Vec3 {
	return p.directions
}

func (p *Planner) Cameras() []core.RayBundleCamera {
	return p.cameras
}

// Camera returns the ray bundle camera for sample i.
func (p *Planner) Camera(i int) (core.RayBundleCamera, bool) {
	if i < 0 || i >= len(p.cameras) {
		return core.RayBundleCamera{}, false
	}
	return p.cameras[i], true
}

// Records serializes every camera in sample order.
func (p *Planner) Records() []core.CameraRecord {
	out := make([]core.CameraRecord, len(p.cameras))
	for i, c := range p.cameras {
		out[i] = c.Record()
	}
	return out
}

// InverseViewProjs returns one inverse view-projection per camera. The
// resolve pass uses them to rebuild world positions from stored depth.
func (p *Planner) InverseViewProjs() []mgl32.Mat4 {
	out := make([]mgl32.Mat4, len(p.cameras))
	for i, c := range p.cameras {
		out[i] = c.ViewProj().Inv()
	}
	return out
}
