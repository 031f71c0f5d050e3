package debug

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
)

// Channel selects how texels of a capture are turned into pixels.
type Channel int

const (
	// ChannelRGB tonemaps the colour channels.
	ChannelRGB Channel = iota
	ChannelR
	ChannelG
	ChannelB
	ChannelA
	// ChannelNormal maps a unit vector in xyz to n*0.5+0.5.
	ChannelNormal
)

var channelNames = map[string]Channel{
	"rgb":    ChannelRGB,
	"r":      ChannelR,
	"g":      ChannelG,
	"b":      ChannelB,
	"a":      ChannelA,
	"normal": ChannelNormal,
}

func ParseChannel(s string) (Channel, error) {
	c, ok := channelNames[s]
	if !ok {
		return 0, fmt.Errorf("debug: unknown channel %q", s)
	}
	return c, nil
}

// tonemap is Reinhard per component.
func tonemap(v float32) uint8 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	return unorm(v / (1 + v))
}

func unorm(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// heat maps t in [0,1] onto a blue to red ramp.
func heat(t float32) color.RGBA {
	t = max(0, min(1, t))
	switch {
	case t < 0.5:
		s := t * 2
		return color.RGBA{R: 0, G: unorm(s), B: unorm(1 - s), A: 255}
	default:
		s := (t - 0.5) * 2
		return color.RGBA{R: unorm(s), G: unorm(1 - s), B: 0, A: 255}
	}
}

// Texels converts one layer of floats into an image. Single channels are
// normalized by the largest magnitude in the layer.
func Texels(texels []float32, width, height, channels int, ch Channel) (*image.RGBA, error) {
	if len(texels) < width*height*channels {
		return nil, fmt.Errorf("debug: %d floats for %dx%dx%d", len(texels), width, height, channels)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	at := func(i, c int) float32 {
		if c >= channels {
			return 0
		}
		return texels[i*channels+c]
	}

	var scale float32 = 1
	single := -1
	switch ch {
	case ChannelR, ChannelG, ChannelB, ChannelA:
		single = int(ch - ChannelR)
		if channels == 1 {
			single = 0
		}
		var peak float32
		for i := 0; i < width*height; i++ {
			peak = max(peak, float32(math.Abs(float64(at(i, single)))))
		}
		if peak > 0 {
			scale = 1 / peak
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			var c color.RGBA
			switch {
			case single >= 0:
				g := unorm(float32(math.Abs(float64(at(i, single)))) * scale)
				c = color.RGBA{R: g, G: g, B: g, A: 255}
			case ch == ChannelNormal:
				c = color.RGBA{
					R: unorm(at(i, 0)*0.5 + 0.5),
					G: unorm(at(i, 1)*0.5 + 0.5),
					B: unorm(at(i, 2)*0.5 + 0.5),
					A: 255,
				}
			default:
				c = color.RGBA{R: tonemap(at(i, 0)), G: tonemap(at(i, 1)), B: tonemap(at(i, 2)), A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

// TextureLayer reads one layer of a capture back and renders it.
func TextureLayer(dev gfx.Device, tex gfx.Texture, layer uint32, ch Channel) (*image.RGBA, error) {
	desc := tex.Desc()
	texels, err := dev.ReadTexture(tex, layer)
	if err != nil {
		return nil, fmt.Errorf("debug: read %s layer %d: %w", desc.Label, layer, err)
	}
	return Texels(texels, int(desc.Width), int(desc.Height), desc.Format.Channels(), ch)
}

// HeadOccupancy renders list lengths of one sample as a heat map. Empty
// pixels stay black.
func HeadOccupancy(s *gi.Snapshot, sample int) (*image.RGBA, error) {
	lengths, err := s.ListLengths(sample)
	if err != nil {
		return nil, err
	}
	longest := 0
	for _, n := range lengths {
		longest = max(longest, n)
	}
	img := image.NewRGBA(image.Rect(0, 0, s.Resolution, s.Resolution))
	for i, n := range lengths {
		x, y := i%s.Resolution, i/s.Resolution
		if n == 0 {
			img.SetRGBA(x, y, color.RGBA{A: 255})
			continue
		}
		t := float32(1)
		if longest > 1 {
			t = float32(n-1) / float32(longest-1)
		}
		img.SetRGBA(x, y, heat(t))
	}
	return img, nil
}

// RadianceView renders the resolved radiance of the nearest fragment of
// every pixel of one sample.
func RadianceView(s *gi.Snapshot, sample int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.Resolution, s.Resolution))
	for y := 0; y < s.Resolution; y++ {
		for x := 0; x < s.Resolution; x++ {
			frags, err := s.Fragments(sample, x, y)
			if err != nil {
				return nil, err
			}
			c := color.RGBA{A: 255}
			nearest := float32(math.MaxFloat32)
			for _, f := range frags {
				if f.Depth < nearest {
					nearest = f.Depth
					c = color.RGBA{R: tonemap(f.Radiance[0]), G: tonemap(f.Radiance[1]), B: tonemap(f.Radiance[2]), A: 255}
				}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}
