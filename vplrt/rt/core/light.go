package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PointLight is the primary light the indirect bounce is computed from.
type PointLight struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
}

// Radiant returns color scaled by intensity.
func (l PointLight) Radiant() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

// Equal compares two lights exactly.
func (l PointLight) Equal(o PointLight) bool {
	return l.Position == o.Position && l.Color == o.Color && l.Intensity == o.Intensity
}
