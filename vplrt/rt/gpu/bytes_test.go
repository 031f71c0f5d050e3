package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignTo(t *testing.T) {
	assert.Equal(t, uint64(0), alignTo(0, 256))
	assert.Equal(t, uint64(256), alignTo(1, 256))
	assert.Equal(t, uint64(256), alignTo(256, 256))
	assert.Equal(t, uint64(512), alignTo(257, 256))
	assert.Equal(t, uint64(7), alignTo(7, 0))
}

func TestVertexBytesStride(t *testing.T) {
	verts := []gfx.Vertex{
		{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec3{-1, -2, -3}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	buf := vertexBytes(verts)
	require.Len(t, buf, 2*gfx.VertexSize)

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(3), f(8))
	assert.Equal(t, float32(1), f(16))
	assert.Equal(t, float32(-1), f(gfx.VertexSize))
	assert.Equal(t, float32(1), f(gfx.VertexSize+20))
}

func TestFillWords(t *testing.T) {
	buf := fillWords(0xFFFFFFFF, 16)
	for i := 0; i < 16; i += 4 {
		assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(buf[i:]))
	}
}

func TestPackStrided(t *testing.T) {
	out := packStrided([][]byte{{1, 2}, {3}}, uniformStride)
	require.Len(t, out, 2*uniformStride)
	assert.Equal(t, byte(2), out[1])
	assert.Equal(t, byte(3), out[uniformStride])
	assert.Equal(t, byte(0), out[uniformStride+1])

	assert.Len(t, padTo([]byte{1}, 16), 16)
	assert.Len(t, padTo(make([]byte, 32), 16), 32)
}

func TestUnpackRows(t *testing.T) {
	const width, height, channels = 3, 2, 4
	pitch := paddedRow(width, channels*4)
	require.Equal(t, uint32(256), pitch)

	data := make([]byte, pitch*height)
	for y := uint32(0); y < height; y++ {
		for i := uint32(0); i < width*channels; i++ {
			v := float32(y*100 + i)
			binary.LittleEndian.PutUint32(data[y*pitch+i*4:], math.Float32bits(v))
		}
	}
	out := unpackRows(data, width, height, channels, pitch)
	require.Len(t, out, width*height*channels)
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(11), out[11])
	assert.Equal(t, float32(100), out[12])
	assert.Equal(t, float32(111), out[23])
}
