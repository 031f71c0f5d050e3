package gi

import (
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.SampleCount())
	assert.Equal(t, 64*64*20, cfg.HeadCount())
	assert.Equal(t, 64*64*4*20, cfg.FragmentCapacity())
	assert.Equal(t, 32, cfg.searchRadius())
	assert.Equal(t, core.FlagBoundsCheck, cfg.flags())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty grid":          func(c *Config) { c.PhiDirs = 0 },
		"zero resolution":     func(c *Config) { c.Resolution = 0 },
		"zero rsm":            func(c *Config) { c.RSMResolution = 0 },
		"zero overdraw":       func(c *Config) { c.OverdrawFactor = 0 },
		"record size":         func(c *Config) { c.RecordSize = 48 },
		"negative margin":     func(c *Config) { c.CameraMargin = -1 },
		"shrinking extent":    func(c *Config) { c.ExtentScale = 0.5 },
		"representative slot": func(c *Config) { c.RepresentativeSlot = 20 },
		"fov":                 func(c *Config) { c.VisibilityFOV = 180 },
		"search radius":       func(c *Config) { c.SearchRadius = -1 },
		"capacity":            func(c *Config) { c.Resolution = 1 << 14 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
}
