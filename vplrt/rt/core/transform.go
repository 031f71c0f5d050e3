package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// ObjectToWorld returns M = T * R * S.
func (t Transform) ObjectToWorld() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// NormalMatrix is the inverse transpose of the object-to-world matrix.
// Built from the components so a zero scale axis does not poison the result.
func (t Transform) NormalMatrix() mgl32.Mat4 {
	inv := func(v float32) float32 {
		if v == 0 {
			return 0
		}
		return 1 / v
	}
	invScale := mgl32.Scale3D(inv(t.Scale.X()), inv(t.Scale.Y()), inv(t.Scale.Z()))
	return t.Rotation.Mat4().Mul4(invScale)
}
