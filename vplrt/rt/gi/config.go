package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
)

// Config fixes the sample grid and buffer sizes for the lifetime of a
// Pipeline.
type Config struct {
	ThetaDirs            int     `json:"theta_dirs"`
	PhiDirs              int     `json:"phi_dirs"`
	Resolution           int     `json:"resolution"`
	OverdrawFactor       int     `json:"overdraw_factor"`
	RecordSize           int     `json:"record_size"`
	RSMResolution        int     `json:"rsm_resolution"`
	VisibilityResolution int     `json:"visibility_resolution"`
	CameraMargin         float32 `json:"camera_margin"`
	ExtentScale          float32 `json:"extent_scale"`
	RepresentativeSlot   int     `json:"representative_slot"`
	VisibilityFOV        float32 `json:"visibility_fov"`
	// SearchRadius bounds the texel ring search around a projected
	// direction. Zero means RSMResolution / 4.
	SearchRadius int  `json:"search_radius"`
	BoundsCheck  bool `json:"bounds_check"`
}

func DefaultConfig() Config {
	return Config{
		ThetaDirs:            4,
		PhiDirs:              5,
		Resolution:           64,
		OverdrawFactor:       4,
		RecordSize:           core.FragmentRecordSize,
		RSMResolution:        128,
		VisibilityResolution: 64,
		CameraMargin:         0.5,
		ExtentScale:          1.5,
		RepresentativeSlot:   0,
		VisibilityFOV:        120,
		BoundsCheck:          true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ThetaDirs <= 0 || c.PhiDirs <= 0:
		return fmt.Errorf("%w: sample grid %dx%d", ErrInvalidConfig, c.ThetaDirs, c.PhiDirs)
	case c.Resolution <= 0 || c.RSMResolution <= 0 || c.VisibilityResolution <= 0:
		return fmt.Errorf("%w: resolutions must be positive", ErrInvalidConfig)
	case c.OverdrawFactor <= 0:
		return fmt.Errorf("%w: overdraw factor %d", ErrInvalidConfig, c.OverdrawFactor)
	case c.RecordSize != core.FragmentRecordSize:
		return fmt.Errorf("%w: record size %d, layout is %d bytes", ErrInvalidConfig, c.RecordSize, core.FragmentRecordSize)
	case c.CameraMargin < 0 || c.ExtentScale < 1:
		return fmt.Errorf("%w: margin %.3f extent scale %.3f", ErrInvalidConfig, c.CameraMargin, c.ExtentScale)
	case c.RepresentativeSlot < 0 || c.RepresentativeSlot >= c.SampleCount():
		return fmt.Errorf("%w: representative slot %d of %d", ErrInvalidConfig, c.RepresentativeSlot, c.SampleCount())
	case c.VisibilityFOV <= 0 || c.VisibilityFOV >= 180:
		return fmt.Errorf("%w: visibility fov %.1f", ErrInvalidConfig, c.VisibilityFOV)
	case c.SearchRadius < 0:
		return fmt.Errorf("%w: search radius %d", ErrInvalidConfig, c.SearchRadius)
	case uint64(c.FragmentCapacity()) >= uint64(core.Sentinel):
		return fmt.Errorf("%w: fragment capacity %d collides with the sentinel", ErrInvalidConfig, c.FragmentCapacity())
	}
	return nil
}

// SampleCount is N, the number of directions, VPLs and ray bundle cameras.
func (c Config) SampleCount() int {
	return c.ThetaDirs * c.PhiDirs
}

// FragmentCapacity is Resolution² × OverdrawFactor × N records.
func (c Config) FragmentCapacity() int {
	return c.Resolution * c.Resolution * c.OverdrawFactor * c.SampleCount()
}

// HeadCount is one list head per pixel per sample.
func (c Config) HeadCount() int {
	return c.Resolution * c.Resolution * c.SampleCount()
}

func (c Config) searchRadius() int {
	if c.SearchRadius > 0 {
		return c.SearchRadius
	}
	return max(c.RSMResolution/4, 1)
}

func (c Config) flags() uint32 {
	if c.BoundsCheck {
		return core.FlagBoundsCheck
	}
	return 0
}
