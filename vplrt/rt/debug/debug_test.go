package debug

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
	"github.com/gekko3d/vplgi/vplrt/rt/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexelsChannels(t *testing.T) {
	// 2x1 RGBA: one lit texel, one empty.
	texels := []float32{1, 3, 0, 2, 0, 0, 0, 0}

	rgb, err := Texels(texels, 2, 1, 4, ChannelRGB)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 128, G: 191, B: 0, A: 255}, rgb.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, rgb.RGBAAt(1, 0))

	g, err := Texels(texels, 2, 1, 4, ChannelG)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), g.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(0), g.RGBAAt(1, 0).R)

	n, err := Texels([]float32{0, 0, -1, 0}, 1, 1, 4, ChannelNormal)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 0, A: 255}, n.RGBAAt(0, 0))

	_, err = Texels(texels, 4, 4, 4, ChannelRGB)
	assert.Error(t, err)
}

func TestParseChannelAndView(t *testing.T) {
	c, err := ParseChannel("normal")
	require.NoError(t, err)
	assert.Equal(t, ChannelNormal, c)
	_, err = ParseChannel("depth")
	assert.Error(t, err)

	v, err := ParseView("occupancy")
	require.NoError(t, err)
	assert.Equal(t, ViewOccupancy, v)
	_, err = ParseView("nope")
	assert.Error(t, err)
}

func TestHeadOccupancy(t *testing.T) {
	s := &gi.Snapshot{
		Resolution:  2,
		SampleCount: 1,
		Capacity:    8,
		Reserved:    3,
		Heads:       []uint32{2, core.Sentinel, 0, core.Sentinel},
		Records: []core.FragmentRecord{
			{Next: core.Sentinel},
			{Next: core.Sentinel},
			{Next: 1},
		},
	}
	img, err := HeadOccupancy(s, 0)
	require.NoError(t, err)
	assert.Equal(t, heat(1), img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(1, 0))
	assert.Equal(t, heat(0), img.RGBAAt(0, 1))

	_, err = HeadOccupancy(s, 3)
	assert.ErrorIs(t, err, gi.ErrListOutOfRange)
}

func TestRadianceViewPicksNearest(t *testing.T) {
	s := &gi.Snapshot{
		Resolution:  1,
		SampleCount: 1,
		Capacity:    4,
		Reserved:    2,
		Heads:       []uint32{1},
		Records: []core.FragmentRecord{
			{Depth: 0.2, Radiance: [4]float32{1, 0, 0, 1}, Next: core.Sentinel},
			{Depth: 0.7, Radiance: [4]float32{0, 1, 0, 1}, Next: 0},
		},
	}
	img, err := RadianceView(s, 0)
	require.NoError(t, err)
	px := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(128), px.R)
	assert.Equal(t, uint8(0), px.G)
}

func TestUpscaleAndFit(t *testing.T) {
	src, err := Texels([]float32{1, 0, 0, 1}, 1, 1, 4, ChannelRGB)
	require.NoError(t, err)

	up := Upscale(src, 4)
	assert.Equal(t, 4, up.Bounds().Dx())
	assert.Equal(t, src.RGBAAt(0, 0), up.RGBAAt(3, 3))

	assert.Equal(t, 1, Upscale(src, 0).Bounds().Dx())
	assert.Equal(t, 10, Fit(src, 10, 6).Bounds().Dx())
}

func newDumpPipeline(t *testing.T) (*gi.Pipeline, *soft.Device) {
	dev := soft.NewDevice()
	t.Cleanup(dev.Release)
	prog, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	sc := scene.NewManager()
	_, err = sc.AddAll(dev, scene.CornellBox(core.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}), prog))
	require.NoError(t, err)

	cfg := gi.DefaultConfig()
	cfg.ThetaDirs, cfg.PhiDirs = 1, 2
	cfg.Resolution = 8
	cfg.RSMResolution = 8
	cfg.VisibilityResolution = 8
	p := gi.NewPipeline(dev, sc, cfg, nil)
	require.NoError(t, p.Init())
	t.Cleanup(p.Release)
	return p, dev
}

var dumpLight = core.PointLight{Position: mgl32.Vec3{0, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 2}

func TestDumpWritesEveryView(t *testing.T) {
	p, _ := newDumpPipeline(t)
	_, err := p.RenderFrame(dumpLight)
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := Dump(p, dir, 2)
	require.NoError(t, err)
	assert.Len(t, paths, 6+6+2+2+2+1)
	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
	assert.FileExists(t, filepath.Join(dir, "radiance_01.png"))
	assert.FileExists(t, filepath.Join(dir, "representative_00.png"))
}

func TestRepresentativeViewIsForwardShaded(t *testing.T) {
	p, _ := newDumpPipeline(t)
	_, err := p.RenderFrame(dumpLight)
	require.NoError(t, err)

	img, err := RepresentativeView(p, 8)
	require.NoError(t, err)
	lit := 0
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if px := img.RGBAAt(x, y); px.R > 0 || px.G > 0 || px.B > 0 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 0)
}

func TestFailedReadbackSkipsOnlyRepresentativeView(t *testing.T) {
	p, dev := newDumpPipeline(t)
	// The representative slot is the first readback of a frame.
	dev.FailNextMaps(1)
	_, err := p.RenderFrame(dumpLight)
	require.NoError(t, err)
	_, ok := p.Representative()
	require.False(t, ok)

	_, err = RepresentativeView(p, 8)
	assert.ErrorIs(t, err, ErrNoRepresentative)

	dir := t.TempDir()
	paths, err := Dump(p, dir, 1)
	require.NoError(t, err)
	assert.Len(t, paths, 6+6+2+2+2)
	assert.FileExists(t, filepath.Join(dir, "radiance_00.png"))
	assert.NoFileExists(t, filepath.Join(dir, "representative_00.png"))
}
