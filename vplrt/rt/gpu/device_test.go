package gpu

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/gekko3d/vplgi/log"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDevice needs a real adapter, so these tests only run when
// VPLGI_GPU_TESTS is set.
func newTestDevice(t *testing.T) *Device {
	t.Helper()
	if os.Getenv("VPLGI_GPU_TESTS") == "" {
		t.Skip("set VPLGI_GPU_TESTS to run against a wgpu adapter")
	}
	dev, err := NewDevice(log.NewNop())
	if err != nil {
		t.Skipf("no adapter: %v", err)
	}
	t.Cleanup(dev.Release)
	return dev
}

func TestBufferRoundTrip(t *testing.T) {
	dev := newTestDevice(t)

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "heads", Size: 64, Usage: gfx.BufferStorage | gfx.BufferReadback})
	require.NoError(t, err)
	defer buf.Release()

	require.NoError(t, dev.FillBuffer(buf, core.Sentinel))
	require.NoError(t, dev.WriteBuffer(buf, 8, []byte{7, 0, 0, 0}))

	data, err := dev.ReadBuffer(buf, 0, 16)
	require.NoError(t, err)
	assert.Equal(t, uint32(core.Sentinel), binary.LittleEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[8:]))
}

func TestInvalidRangesRejected(t *testing.T) {
	dev := newTestDevice(t)

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "small", Size: 16, Usage: gfx.BufferStorage})
	require.NoError(t, err)
	defer buf.Release()

	assert.ErrorIs(t, dev.WriteBuffer(buf, 12, make([]byte, 8)), gfx.ErrInvalidDescriptor)
	_, err = dev.ReadBuffer(buf, 0, 32)
	assert.ErrorIs(t, err, gfx.ErrInvalidDescriptor)

	_, err = dev.CreateBuffer(gfx.BufferDesc{Label: "odd", Size: 6})
	assert.ErrorIs(t, err, gfx.ErrInvalidDescriptor)
}

func TestProgramsCompileAndCache(t *testing.T) {
	dev := newTestDevice(t)

	for _, name := range []string{core.ProgramPPLLCapture, core.ProgramRadianceResolve, core.ProgramVPLSample} {
		p, err := dev.LoadProgram(name)
		require.NoError(t, err, name)
		again, err := dev.LoadProgram(name)
		require.NoError(t, err)
		assert.Same(t, p, again)
	}

	_, err := dev.LoadProgram("missing")
	assert.ErrorIs(t, err, gfx.ErrProgramNotFound)
}

func TestClearedTargetReadsBack(t *testing.T) {
	dev := newTestDevice(t)

	tex, err := dev.CreateTexture(gfx.TextureDesc{Label: "target", Width: 8, Height: 4, Layers: 2, Format: gfx.FormatRGBA32Float, RenderTarget: true, Sampled: true})
	require.NoError(t, err)
	defer tex.Release()

	pass := &gfx.RenderPass{
		Label:      "clear",
		Width:      8,
		Height:     4,
		Color:      []gfx.Attachment{{Texture: tex, Layer: 1}},
		Clear:      true,
		ClearColor: [4]float32{0.25, 0.5, 0.75, 1},
		Params:     core.PassParams{}.Marshal(),
	}
	require.NoError(t, dev.Draw(pass, nil))

	texels, err := dev.ReadTexture(tex, 1)
	require.NoError(t, err)
	require.Len(t, texels, 8*4*4)
	assert.Equal(t, []float32{0.25, 0.5, 0.75, 1}, texels[len(texels)-4:])
}
