package scene

import (
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
)

// Rect emits two counter-clockwise triangles spanning origin, origin+u,
// origin+u+v, origin+v. The normal is u x v.
func Rect(origin, u, v mgl32.Vec3) []gfx.Vertex {
	n := u.Cross(v).Normalize()
	p0 := origin
	p1 := origin.Add(u)
	p2 := origin.Add(u).Add(v)
	p3 := origin.Add(v)
	vert := func(p mgl32.Vec3) gfx.Vertex { return gfx.Vertex{Position: p, Normal: n} }
	return []gfx.Vertex{
		vert(p0), vert(p1), vert(p2),
		vert(p0), vert(p2), vert(p3),
	}
}

// Box emits a closed box with outward normals.
func Box(minB, maxB mgl32.Vec3) []gfx.Vertex {
	s := maxB.Sub(minB)
	x := mgl32.Vec3{s[0], 0, 0}
	y := mgl32.Vec3{0, s[1], 0}
	z := mgl32.Vec3{0, 0, s[2]}

	var out []gfx.Vertex
	out = append(out, Rect(minB, z, y)...)                                  // -X
	out = append(out, Rect(mgl32.Vec3{maxB[0], minB[1], minB[2]}, y, z)...) // +X
	out = append(out, Rect(minB, x, z)...)                                  // -Y
	out = append(out, Rect(mgl32.Vec3{minB[0], maxB[1], minB[2]}, z, x)...) // +Y
	out = append(out, Rect(minB, y, x)...)                                  // -Z
	out = append(out, Rect(mgl32.Vec3{minB[0], minB[1], maxB[2]}, x, y)...) // +Z
	return out
}

// Room returns the six inward facing walls of a box, Cornell style: red on
// -X, green on +X, white elsewhere.
func Room(bounds core.AABB, prog gfx.Program) []ModelDesc {
	minB, maxB := bounds.Min, bounds.Max
	s := bounds.Size()
	x := mgl32.Vec3{s[0], 0, 0}
	y := mgl32.Vec3{0, s[1], 0}
	z := mgl32.Vec3{0, 0, s[2]}

	white := mgl32.Vec4{0.8, 0.8, 0.8, 1}
	red := mgl32.Vec4{0.8, 0.1, 0.1, 1}
	green := mgl32.Vec4{0.1, 0.8, 0.1, 1}

	wall := func(name string, verts []gfx.Vertex, albedo mgl32.Vec4) ModelDesc {
		return ModelDesc{
			Name:      name,
			Vertices:  verts,
			Transform: core.NewTransform(),
			Albedo:    albedo,
			Roughness: 0.9,
			Program:   prog,
		}
	}
	return []ModelDesc{
		wall("wall-left", Rect(minB, y, z), red),
		wall("wall-right", Rect(mgl32.Vec3{maxB[0], minB[1], minB[2]}, z, y), green),
		wall("floor", Rect(minB, z, x), white),
		wall("ceiling", Rect(mgl32.Vec3{minB[0], maxB[1], minB[2]}, x, z), white),
		wall("wall-back", Rect(minB, x, y), white),
		wall("wall-front", Rect(mgl32.Vec3{minB[0], minB[1], maxB[2]}, y, x), white),
	}
}

// CornellBox is a room with two blocks inside.
func CornellBox(bounds core.AABB, prog gfx.Program) []ModelDesc {
	descs := Room(bounds, prog)
	s := bounds.Size()
	c := bounds.Center()
	floor := bounds.Min[1]

	block := func(name string, offset mgl32.Vec3, size mgl32.Vec3, yaw float32) ModelDesc {
		t := core.NewTransform()
		t.Position = mgl32.Vec3{c[0] + offset[0], floor + size[1]*0.5, c[2] + offset[2]}
		t.Rotation = mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
		half := size.Mul(0.5)
		return ModelDesc{
			Name:      name,
			Vertices:  Box(half.Mul(-1), half),
			Transform: t,
			Albedo:    mgl32.Vec4{0.75, 0.75, 0.7, 1},
			Roughness: 0.6,
			Program:   prog,
		}
	}
	descs = append(descs,
		block("block-tall", mgl32.Vec3{-s[0] * 0.18, 0, -s[2] * 0.15}, mgl32.Vec3{s[0] * 0.28, s[1] * 0.6, s[2] * 0.28}, 0.3),
		block("block-short", mgl32.Vec3{s[0] * 0.2, 0, s[2] * 0.18}, mgl32.Vec3{s[0] * 0.28, s[1] * 0.3, s[2] * 0.28}, -0.3),
	)
	return descs
}

// AddAll uploads every description.
func (s *Manager) AddAll(dev gfx.Device, descs []ModelDesc) ([]*Model, error) {
	out := make([]*Model, 0, len(descs))
	for _, d := range descs {
		m, err := s.Add(dev, d)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}
