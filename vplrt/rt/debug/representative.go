package debug

import (
	"errors"
	"fmt"
	"image"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
)

// ErrNoRepresentative is returned when no representative viewpoint has been
// read back yet, or the last readback was skipped.
var ErrNoRepresentative = errors.New("debug: no representative viewpoint")

// RepresentativeView renders the scene with the forward program from the
// representative VPL, looking along its normal.
func RepresentativeView(p *gi.Pipeline, res uint32) (*image.RGBA, error) {
	vp, ok := p.Representative()
	if !ok {
		return nil, ErrNoRepresentative
	}
	dev, sc := p.Device(), p.Scene()

	prog, err := dev.LoadProgram(core.ProgramForward)
	if err != nil {
		return nil, fmt.Errorf("debug: representative: %w", err)
	}
	color, err := dev.CreateTexture(gfx.TextureDesc{
		Label: "representative", Width: res, Height: res, Layers: 1,
		Format: gfx.FormatRGBA32Float, RenderTarget: true, Sampled: true,
	})
	if err != nil {
		return nil, fmt.Errorf("debug: representative: %w", err)
	}
	defer color.Release()
	depth, err := dev.CreateTexture(gfx.TextureDesc{
		Label: "representative_depth", Width: res, Height: res, Layers: 1,
		Format: gfx.FormatDepth32Float, RenderTarget: true,
	})
	if err != nil {
		return nil, fmt.Errorf("debug: representative: %w", err)
	}
	defer depth.Release()

	far := float32(1)
	if b := sc.Bounds(); !b.IsEmpty() {
		far += 2 * b.Size().Len()
	}
	cam := gi.VisibilityCamera(core.VPLSample{Position: vp.Position, Normal: vp.Normal}, p.Config().VisibilityFOV, far)
	light := p.RSM().Light()

	restore := sc.SwapPrograms(prog)
	defer restore()
	pass := &gfx.RenderPass{
		Label:       "representative view",
		Width:       res,
		Height:      res,
		Color:       []gfx.Attachment{{Texture: color}},
		Depth:       &gfx.Attachment{Texture: depth},
		Clear:       true,
		DepthTest:   true,
		ColorWrites: true,
		Params: core.PassParams{
			ViewProj:     cam.ViewProj(),
			Eye:          cam.Position,
			LightPos:     light.Position,
			LightRadiant: light.Radiant(),
		}.Marshal(),
	}
	if err := sc.RenderAll(dev, pass, sc.Cull(cam.ViewProj())); err != nil {
		return nil, fmt.Errorf("debug: representative: %w", err)
	}
	return TextureLayer(dev, color, 0, ChannelRGB)
}
