package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraRecordFloats is the number of floats in a serialized camera.
const CameraRecordFloats = 24

// CameraRecordSize is the byte size of a serialized camera.
const CameraRecordSize = CameraRecordFloats * 4

// CameraRecord matches the WGSL struct
// struct Camera { view_proj: mat4x4<f32>, origin: vec4<f32>, direction: vec4<f32> }
type CameraRecord [CameraRecordFloats]float32

// Camera is a posed view with its projection.
type Camera struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Up        mgl32.Vec3
	View      mgl32.Mat4
	Proj      mgl32.Mat4
}

// NewPerspectiveCamera looks from eye along dir with a square aspect.
func NewPerspectiveCamera(eye, dir mgl32.Vec3, fovDeg, near, far float32) Camera {
	dir = dir.Normalize()
	up := StableUp(dir)
	return Camera{
		Position:  eye,
		Direction: dir,
		Up:        up,
		View:      mgl32.LookAtV(eye, eye.Add(dir), up),
		Proj:      mgl32.Perspective(mgl32.DegToRad(fovDeg), 1.0, near, far),
	}
}

// StableUp picks a world up vector that is never parallel to dir.
func StableUp(dir mgl32.Vec3) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	if abs32(dir.Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return up
}

func (c Camera) ViewProj() mgl32.Mat4 {
	return c.Proj.Mul4(c.View)
}

func (c Camera) Record() CameraRecord {
	var r CameraRecord
	vp := c.ViewProj()
	copy(r[0:16], vp[:])
	r[16], r[17], r[18], r[19] = c.Position[0], c.Position[1], c.Position[2], 1
	r[20], r[21], r[22], r[23] = c.Direction[0], c.Direction[1], c.Direction[2], 0
	return r
}

// Project maps a world point to normalized device coordinates.
func (c Camera) Project(p mgl32.Vec3) mgl32.Vec3 {
	clip := c.ViewProj().Mul4x1(p.Vec4(1))
	if clip[3] == 0 {
		return mgl32.Vec3{}
	}
	return clip.Vec3().Mul(1 / clip[3])
}

// RayBundleCamera is an orthographic camera fitted around the scene bounds
// for one sample direction.
type RayBundleCamera struct {
	Camera
	HalfExtent float32
	Near       float32
	Far        float32
}

func (r CameraRecord) Marshal() []byte {
	buf := make([]byte, CameraRecordSize)
	for i, v := range r {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func UnmarshalCameraRecord(buf []byte) CameraRecord {
	var r CameraRecord
	for i := range r {
		r[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return r
}

// ViewProj returns the matrix part of the record.
func (r CameraRecord) ViewProj() mgl32.Mat4 {
	var m mgl32.Mat4
	copy(m[:], r[0:16])
	return m
}

func (r CameraRecord) Origin() mgl32.Vec3 {
	return mgl32.Vec3{r[16], r[17], r[18]}
}

func (r CameraRecord) Direction() mgl32.Vec3 {
	return mgl32.Vec3{r[20], r[21], r[22]}
}

// MarshalCameras packs records back to back.
func MarshalCameras(records []CameraRecord) []byte {
	buf := make([]byte, 0, len(records)*CameraRecordSize)
	for _, r := range records {
		buf = append(buf, r.Marshal()...)
	}
	return buf
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0, normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0)
	planes[1] = r3.Sub(r0)
	planes[2] = r3.Add(r1)
	planes[3] = r3.Sub(r1)
	// OpenGL-style -1..1 depth, shaders remap to 0..1.
	planes[4] = r3.Add(r2)
	planes[5] = r3.Sub(r2)

	for i := 0; i < 6; i++ {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum checks if an AABB is at least partly inside the frustum.
func AABBInFrustum(box AABB, planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]
		// Most inside vertex; if it is behind the plane, every vertex is.
		var p mgl32.Vec3
		for a := 0; a < 3; a++ {
			if plane[a] > 0 {
				p[a] = box.Max[a]
			} else {
				p[a] = box.Min[a]
			}
		}
		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}

// AABBContainedInFrustum checks that every corner of the box is inside all planes.
func AABBContainedInFrustum(box AABB, planes [6]mgl32.Vec4, eps float32) bool {
	for _, c := range box.Corners() {
		for i := 0; i < 6; i++ {
			if planes[i].Vec3().Dot(c)+planes[i][3] < -eps {
				return false
			}
		}
	}
	return true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
