package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
)

func release(rs ...gfx.Resource) {
	for _, r := range rs {
		if r != nil {
			r.Release()
		}
	}
}

func createBuffer(dev gfx.Device, label string, size uint64, usage gfx.BufferUsage, atomic bool) (gfx.Buffer, error) {
	buf, err := dev.CreateBuffer(gfx.BufferDesc{
		Label:  label,
		Size:   size,
		Usage:  usage,
		Atomic: atomic,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s (%d bytes): %w", label, size, err)
	}
	return buf, nil
}

func createLayers(dev gfx.Device, label string, res, layers uint32, format gfx.Format) (gfx.Texture, error) {
	tex, err := dev.CreateTexture(gfx.TextureDesc{
		Label:        label,
		Width:        res,
		Height:       res,
		Layers:       layers,
		Format:       format,
		RenderTarget: true,
		Sampled:      format != gfx.FormatDepth32Float,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}
	return tex, nil
}
