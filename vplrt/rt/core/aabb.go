package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis aligned box in world space.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that any Extend call will overwrite.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func NewAABB(min, max mgl32.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// IsEmpty reports whether nothing has been added to the box.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Degenerate reports a box with no volume. Flat boxes (a single quad) count as
// degenerate only when two or more axes collapse, so a floor plane still frames.
func (b AABB) Degenerate() bool {
	if b.IsEmpty() {
		return true
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(float64(b.Min[i])) || math.IsInf(float64(b.Min[i]), 0) ||
			math.IsNaN(float64(b.Max[i])) || math.IsInf(float64(b.Max[i]), 0) {
			return true
		}
	}
	flat := 0
	size := b.Size()
	for i := 0; i < 3; i++ {
		if size[i] <= 1e-6 {
			flat++
		}
	}
	return flat >= 2
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Corners() [8]mgl32.Vec3 {
	return [8]mgl32.Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the box enclosing all eight transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out = out.Extend(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}

// Contains reports whether p lies inside the box, boundary included.
func (b AABB) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// ExitDistance returns the distance along dir from origin to the point where
// the ray leaves the box. ok is false when the ray misses it.
func (b AABB) ExitDistance(origin, dir mgl32.Vec3) (t float32, ok bool) {
	tmin := float32(math.Inf(-1))
	tmax := float32(math.Inf(1))
	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if origin[i] < b.Min[i] || origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t0 := (b.Min[i] - origin[i]) * inv
		t1 := (b.Max[i] - origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
	}
	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	return tmax, true
}
