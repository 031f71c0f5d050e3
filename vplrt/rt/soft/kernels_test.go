package soft

import (
	"math"
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A VPL only sees receivers inside its capture frustum. Receivers further
// off its normal than half the field of view get no light from it.
func TestVisibleFromIsLimitedToCaptureFrustum(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	cam := core.NewPerspectiveCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, 120, 0.01, 10)
	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: core.BindVisibilityCameras, Size: core.CameraRecordSize})
	require.NoError(t, err)
	require.NoError(t, dev.WriteBuffer(buf, 0, cam.Record().Marshal()))
	tex, err := dev.CreateTexture(gfx.TextureDesc{Label: core.BindVisibility, Width: 4, Height: 4, Layers: 1, Format: gfx.FormatRGBA32Float})
	require.NoError(t, err)

	c := &computeContext{
		params: core.ComputeParams{VisibilityResolution: 4},
		bound: &bound{
			buffers:  map[string]*Buffer{core.BindVisibilityCameras: buf.(*Buffer)},
			textures: map[string]*Texture{core.BindVisibility: tex.(*Texture)},
		},
	}
	offAxis := func(deg float64) mgl32.Vec3 {
		r := deg * math.Pi / 180
		return mgl32.Vec3{float32(math.Sin(r)), 0, float32(math.Cos(r))}
	}

	assert.True(t, visibleFrom(c, 0, offAxis(0)))
	assert.True(t, visibleFrom(c, 0, offAxis(45)))
	assert.False(t, visibleFrom(c, 0, offAxis(75)))
	assert.False(t, visibleFrom(c, 0, offAxis(180)))
}
