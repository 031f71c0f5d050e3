package soft

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(z float32) []gfx.Vertex {
	n := mgl32.Vec3{0, 0, 1}
	p := func(x, y float32) gfx.Vertex { return gfx.Vertex{Position: mgl32.Vec3{x, y, z}, Normal: n} }
	return []gfx.Vertex{
		p(-1, -1), p(1, -1), p(1, 1),
		p(-1, -1), p(1, 1), p(-1, 1),
	}
}

func drawParams(albedo mgl32.Vec4) []byte {
	return core.DrawParams{
		Model:        mgl32.Ident4(),
		NormalMatrix: mgl32.Ident4(),
		Albedo:       albedo,
		Roughness:    0.5,
	}.Marshal()
}

func TestAtomicAppendIsUnique(t *testing.T) {
	dev := NewDevice(WithWorkers(4))
	defer dev.Release()

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "counter", Size: 16, Atomic: true})
	require.NoError(t, err)
	b := buf.(*Buffer)

	const n = 10000
	seen := make([]uint32, n)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n/8; i++ {
				k := b.AtomicAdd(0, 1)
				seen[k]++
			}
		}()
	}
	wg.Wait()

	for k, c := range seen {
		assert.Equal(t, uint32(1), c, "slot %d", k)
	}
	assert.Equal(t, uint32(n), b.AtomicLoad(0))
}

func TestFillAndReadBuffer(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "heads", Size: 64})
	require.NoError(t, err)
	require.NoError(t, dev.FillBuffer(buf, core.Sentinel))

	data, err := dev.ReadBuffer(buf, 0, 64)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		assert.Equal(t, core.Sentinel, binary.LittleEndian.Uint32(data[i*4:]))
	}

	_, err = dev.CreateBuffer(gfx.BufferDesc{Label: "bad", Size: 6})
	assert.ErrorIs(t, err, gfx.ErrInvalidDescriptor)
}

func TestFailNextMaps(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "vpls", Size: 64})
	require.NoError(t, err)

	dev.FailNextMaps(1)
	_, err = dev.ReadBuffer(buf, 0, 16)
	assert.ErrorIs(t, err, gfx.ErrMapFailed)

	_, err = dev.ReadBuffer(buf, 0, 16)
	assert.NoError(t, err)
}

func TestReleasedBufferRejected(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	buf, err := dev.CreateBuffer(gfx.BufferDesc{Label: "gone", Size: 16})
	require.NoError(t, err)
	buf.Release()
	assert.ErrorIs(t, dev.FillBuffer(buf, 0), gfx.ErrReleased)
}

func TestUnknownProgram(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	_, err := dev.LoadProgram("does_not_exist")
	assert.ErrorIs(t, err, gfx.ErrProgramNotFound)

	p1, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	p2, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestDrawDepthTest(t *testing.T) {
	dev := NewDevice(WithWorkers(3))
	defer dev.Release()

	const res = 16
	color, err := dev.CreateTexture(gfx.TextureDesc{Label: "color", Width: res, Height: res, Layers: 1, Format: gfx.FormatRGBA32Float, RenderTarget: true})
	require.NoError(t, err)
	depth, err := dev.CreateTexture(gfx.TextureDesc{Label: "depth", Width: res, Height: res, Layers: 1, Format: gfx.FormatDepth32Float, RenderTarget: true})
	require.NoError(t, err)

	prog, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	near, err := dev.CreateMesh("near", quad(0.5))
	require.NoError(t, err)
	far, err := dev.CreateMesh("far", quad(-0.5))
	require.NoError(t, err)

	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Ortho(-2, 2, -2, 2, 0.1, 10)
	params := core.PassParams{ViewProj: proj.Mul4(view), LightPos: mgl32.Vec3{0, 0, 3}, LightRadiant: mgl32.Vec3{1, 1, 1}}

	pass := &gfx.RenderPass{
		Width: res, Height: res,
		Color:       []gfx.Attachment{{Texture: color}},
		Depth:       &gfx.Attachment{Texture: depth},
		Clear:       true,
		DepthTest:   true,
		ColorWrites: true,
		Params:      params.Marshal(),
	}
	// Near quad drawn first: the far red quad must lose every depth test.
	err = dev.Draw(pass, []gfx.DrawCall{
		{Program: prog, Mesh: near, Params: drawParams(mgl32.Vec4{0, 1, 0, 1})},
		{Program: prog, Mesh: far, Params: drawParams(mgl32.Vec4{1, 0, 0, 1})},
	})
	require.NoError(t, err)

	texels, err := dev.ReadTexture(color, 0)
	require.NoError(t, err)
	c := (res/2*res + res/2) * 4
	assert.Greater(t, texels[c+1], float32(0), "green expected in the centre")
	assert.Equal(t, float32(0), texels[c], "red quad should be hidden")
	assert.Equal(t, float32(1), texels[c+3])

	// Quad spans half the view in each axis.
	corner := 0
	assert.Equal(t, float32(0), texels[corner+3], "corner stays clear")
}

func TestDrawCoversEachPixelOnce(t *testing.T) {
	dev := NewDevice(WithWorkers(4))
	defer dev.Release()

	const res = 8
	depth, err := dev.CreateTexture(gfx.TextureDesc{Label: "dummy", Width: res, Height: res, Layers: 1, Format: gfx.FormatDepth32Float})
	require.NoError(t, err)
	heads, err := dev.CreateBuffer(gfx.BufferDesc{Label: "heads", Size: res * res * 4, Atomic: true})
	require.NoError(t, err)
	require.NoError(t, dev.FillBuffer(heads, core.Sentinel))
	records, err := dev.CreateBuffer(gfx.BufferDesc{Label: "records", Size: res * res * 4 * core.FragmentRecordSize})
	require.NoError(t, err)
	counter, err := dev.CreateBuffer(gfx.BufferDesc{Label: "counter", Size: core.CounterSize, Atomic: true})
	require.NoError(t, err)

	prog, err := dev.LoadProgram(core.ProgramPPLLCapture)
	require.NoError(t, err)
	mesh, err := dev.CreateMesh("fullscreen", quad(0))
	require.NoError(t, err)

	params := core.PassParams{
		ViewProj:   mgl32.Ortho(-1, 1, -1, 1, -1, 1),
		Eye:        mgl32.Vec3{0, 0, 5},
		Resolution: res,
		Capacity:   res * res * 4,
		Flags:      core.FlagBoundsCheck,
	}
	pass := &gfx.RenderPass{
		Width: res, Height: res,
		Depth:  &gfx.Attachment{Texture: depth},
		Params: params.Marshal(),
		Bindings: gfx.Bindings{
			core.BindHeads:   heads,
			core.BindRecords: records,
			core.BindCounter: counter,
		},
	}
	require.NoError(t, dev.Draw(pass, []gfx.DrawCall{{Program: prog, Mesh: mesh, Params: drawParams(mgl32.Vec4{1, 1, 1, 1})}}))

	cw := counter.(*Buffer).Words()
	assert.Equal(t, uint32(res*res), cw[core.CounterWordNext], "two triangles sharing a diagonal cover each pixel exactly once")
	assert.Zero(t, cw[core.CounterWordOverflow])

	rw := records.(*Buffer).Words()
	for i, h := range heads.(*Buffer).Words() {
		require.NotEqual(t, core.Sentinel, h, "pixel %d", i)
		assert.Equal(t, core.Sentinel, rw[int(h)*core.RecordWords+core.RecordWordNext])
	}
}

func TestPPLLOverflowIsCounted(t *testing.T) {
	dev := NewDevice(WithWorkers(2))
	defer dev.Release()

	const res = 4
	depth, _ := dev.CreateTexture(gfx.TextureDesc{Label: "dummy", Width: res, Height: res, Layers: 1, Format: gfx.FormatDepth32Float})
	heads, _ := dev.CreateBuffer(gfx.BufferDesc{Label: "heads", Size: res * res * 4})
	records, _ := dev.CreateBuffer(gfx.BufferDesc{Label: "records", Size: 4 * core.FragmentRecordSize})
	counter, _ := dev.CreateBuffer(gfx.BufferDesc{Label: "counter", Size: core.CounterSize})
	require.NoError(t, dev.FillBuffer(heads, core.Sentinel))

	prog, err := dev.LoadProgram(core.ProgramPPLLCapture)
	require.NoError(t, err)
	mesh, _ := dev.CreateMesh("fullscreen", quad(0))

	params := core.PassParams{ViewProj: mgl32.Ortho(-1, 1, -1, 1, -1, 1), Resolution: res, Capacity: 4, Flags: core.FlagBoundsCheck}
	pass := &gfx.RenderPass{
		Width: res, Height: res,
		Depth:    &gfx.Attachment{Texture: depth},
		Params:   params.Marshal(),
		Bindings: gfx.Bindings{core.BindHeads: heads, core.BindRecords: records, core.BindCounter: counter},
	}
	require.NoError(t, dev.Draw(pass, []gfx.DrawCall{{Program: prog, Mesh: mesh, Params: drawParams(mgl32.Vec4{1, 1, 1, 1})}}))

	cw := counter.(*Buffer).Words()
	assert.Equal(t, uint32(res*res), cw[core.CounterWordNext])
	assert.Equal(t, uint32(res*res-4), cw[core.CounterWordOverflow])

	linked := 0
	for _, h := range heads.(*Buffer).Words() {
		if h != core.Sentinel {
			assert.Less(t, h, uint32(4))
			linked++
		}
	}
	assert.Equal(t, 4, linked)
}

func TestDispatchMissingBinding(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	prog, err := dev.LoadProgram(core.ProgramRadianceResolve)
	require.NoError(t, err)
	err = dev.Dispatch(prog, gfx.Bindings{}, core.ComputeParams{}.Marshal(), 1, 1, 1)
	assert.ErrorIs(t, err, gfx.ErrUnsupportedBinding)
}

func TestMemoryLimit(t *testing.T) {
	dev := NewDevice(WithMemoryLimit(1024))
	defer dev.Release()

	a, err := dev.CreateBuffer(gfx.BufferDesc{Label: "a", Size: 512})
	require.NoError(t, err)
	tex, err := dev.CreateTexture(gfx.TextureDesc{Label: "t", Width: 4, Height: 4, Layers: 2, Format: gfx.FormatDepth32Float})
	require.NoError(t, err)
	assert.Equal(t, uint64(512+4*4*2*4), dev.Allocated())

	_, err = dev.CreateBuffer(gfx.BufferDesc{Label: "b", Size: 512})
	assert.ErrorIs(t, err, gfx.ErrAllocation)

	a.Release()
	a.Release()
	tex.Release()
	assert.Zero(t, dev.Allocated())
	_, err = dev.CreateBuffer(gfx.BufferDesc{Label: "b", Size: 1024})
	assert.NoError(t, err)
}

func TestLargeTextureSizeDoesNotWrap(t *testing.T) {
	dev := NewDevice()
	defer dev.Release()

	// 65536² × 2 layers wraps to zero in 32 bits.
	_, err := dev.CreateTexture(gfx.TextureDesc{Label: "huge", Width: 1 << 16, Height: 1 << 16, Layers: 2, Format: gfx.FormatRGBA32Float})
	assert.ErrorIs(t, err, gfx.ErrAllocation)
	assert.Zero(t, dev.Allocated())
}
