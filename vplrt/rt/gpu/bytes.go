package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
)

const (
	// uniformStride keeps per draw params on the minimum uniform offset alignment.
	uniformStride = 256
	rowAlignment  = 256
)

func alignTo(n, a uint64) uint64 {
	if a == 0 {
		return n
	}
	return (n + a - 1) / a * a
}

func float32ToBytes(ff float32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, math.Float32bits(ff))
	return bytes
}

// vertexBytes packs vertices with the gfx.VertexSize stride.
func vertexBytes(vertices []gfx.Vertex) []byte {
	buf := make([]byte, 0, len(vertices)*gfx.VertexSize)
	for _, v := range vertices {
		for _, f := range v.Position {
			buf = append(buf, float32ToBytes(f)...)
		}
		for _, f := range v.Normal {
			buf = append(buf, float32ToBytes(f)...)
		}
	}
	return buf
}

// fillWords returns size bytes with every 32-bit word set to value.
func fillWords(value uint32, size uint64) []byte {
	buf := make([]byte, size)
	for i := uint64(0); i+4 <= size; i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], value)
	}
	return buf
}

// padTo copies data into a zeroed slice of at least size bytes.
func padTo(data []byte, size int) []byte {
	out := make([]byte, max(size, len(data)))
	copy(out, data)
	return out
}

// packStrided lays blocks out at a fixed stride.
func packStrided(blocks [][]byte, stride int) []byte {
	out := make([]byte, len(blocks)*stride)
	for i, b := range blocks {
		copy(out[i*stride:], b[:min(len(b), stride)])
	}
	return out
}

// paddedRow is the copy row pitch for width texels of texelSize bytes.
func paddedRow(width, texelSize uint32) uint32 {
	return uint32(alignTo(uint64(width*texelSize), rowAlignment))
}

// unpackRows strips row padding from a texture copy and decodes floats.
func unpackRows(data []byte, width, height, channels, bytesPerRow uint32) []float32 {
	out := make([]float32, width*height*channels)
	rowFloats := width * channels
	for y := uint32(0); y < height; y++ {
		row := data[y*bytesPerRow:]
		for i := uint32(0); i < rowFloats; i++ {
			out[y*rowFloats+i] = math.Float32frombits(binary.LittleEndian.Uint32(row[i*4:]))
		}
	}
	return out
}
