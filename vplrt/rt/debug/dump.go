package debug

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
)

// View names one debug presentation.
type View string

const (
	ViewRSMFlux        View = "rsm-flux"
	ViewRSMNormal      View = "rsm-normal"
	ViewVisibility     View = "visibility"
	ViewOccupancy      View = "occupancy"
	ViewRadiance       View = "radiance"
	// ViewRepresentative is the forward shaded scene seen from the
	// representative VPL.
	ViewRepresentative View = "representative"
)

var Views = []View{ViewRSMFlux, ViewRSMNormal, ViewVisibility, ViewOccupancy, ViewRadiance, ViewRepresentative}

func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("debug: unknown view %q", s)
}

// Render produces one view for index i: an RSM face, a VPL or a sample.
// snap is only needed by the list views.
func Render(p *gi.Pipeline, snap *gi.Snapshot, view View, i int) (*image.RGBA, error) {
	switch view {
	case ViewRSMFlux:
		return TextureLayer(p.Device(), p.RSM().Target(core.RSMTargetFlux), uint32(i), ChannelRGB)
	case ViewRSMNormal:
		return TextureLayer(p.Device(), p.RSM().Target(core.RSMTargetNormal), uint32(i), ChannelNormal)
	case ViewVisibility:
		return TextureLayer(p.Device(), p.VisibilityCaptures(), uint32(i), ChannelR)
	case ViewOccupancy:
		return HeadOccupancy(snap, i)
	case ViewRadiance:
		return RadianceView(snap, i)
	case ViewRepresentative:
		return RepresentativeView(p, uint32(p.Config().VisibilityResolution))
	}
	return nil, fmt.Errorf("debug: unknown view %q", view)
}

// Count is how many images a view has.
func Count(cfg gi.Config, view View) int {
	switch view {
	case ViewRSMFlux, ViewRSMNormal:
		return 6
	case ViewRepresentative:
		return 1
	}
	return cfg.SampleCount()
}

// Dump writes every view of the last frame as PNGs under dir and returns
// the written paths. The representative view is skipped when its readback
// failed.
func Dump(p *gi.Pipeline, dir string, scale int) ([]string, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, view := range Views {
		for i := 0; i < Count(p.Config(), view); i++ {
			img, err := Render(p, snap, view, i)
			if errors.Is(err, ErrNoRepresentative) {
				continue
			}
			if err != nil {
				return paths, err
			}
			path := filepath.Join(dir, fmt.Sprintf("%s_%02d.png", view, i))
			if err := WritePNG(path, Upscale(img, scale)); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
