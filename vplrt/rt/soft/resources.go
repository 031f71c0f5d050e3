package soft

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
)

// Buffer is word addressed so programs can use sync/atomic on any slot.
type Buffer struct {
	label    string
	desc     gfx.BufferDesc
	words    []uint32
	owner    *Device
	released atomic.Bool
}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.words)) * 4 }

func (b *Buffer) Release() {
	if b.released.CompareAndSwap(false, true) && b.owner != nil {
		b.owner.free(b.Size())
	}
}

// Words exposes the backing storage to kernels.
func (b *Buffer) Words() []uint32 { return b.words }

func (b *Buffer) AtomicAdd(i int, delta uint32) uint32 {
	return atomic.AddUint32(&b.words[i], delta) - delta
}

func (b *Buffer) AtomicExchange(i int, v uint32) uint32 {
	return atomic.SwapUint32(&b.words[i], v)
}

func (b *Buffer) AtomicLoad(i int) uint32 {
	return atomic.LoadUint32(&b.words[i])
}

func (b *Buffer) Float(i int) float32 {
	return math.Float32frombits(b.words[i])
}

func (b *Buffer) SetFloat(i int, v float32) {
	b.words[i] = math.Float32bits(v)
}

func (b *Buffer) Vec4(i int) [4]float32 {
	return [4]float32{b.Float(i), b.Float(i + 1), b.Float(i + 2), b.Float(i + 3)}
}

func (b *Buffer) SetVec4(i int, v [4]float32) {
	for c := 0; c < 4; c++ {
		b.SetFloat(i+c, v[c])
	}
}

func (b *Buffer) write(offset uint64, data []byte) {
	first := int(offset / 4)
	for i := 0; i+4 <= len(data); i += 4 {
		b.words[first+i/4] = binary.LittleEndian.Uint32(data[i:])
	}
}

func (b *Buffer) read(offset, size uint64) []byte {
	out := make([]byte, size)
	first := int(offset / 4)
	for i := 0; i+4 <= int(size); i += 4 {
		binary.LittleEndian.PutUint32(out[i:], atomic.LoadUint32(&b.words[first+i/4]))
	}
	return out
}

// Texture stores layers of float texels, Format.Channels() floats each.
type Texture struct {
	desc     gfx.TextureDesc
	texels   []float32
	owner    *Device
	released atomic.Bool
}

func (t *Texture) Label() string         { return t.desc.Label }
func (t *Texture) Desc() gfx.TextureDesc { return t.desc }

func (t *Texture) Release() {
	if t.released.CompareAndSwap(false, true) && t.owner != nil {
		t.owner.free(uint64(len(t.texels)) * 4)
	}
}

func (t *Texture) index(x, y, layer int) int {
	w, h := int(t.desc.Width), int(t.desc.Height)
	return ((layer*h+y)*w + x) * t.desc.Format.Channels()
}

// Load returns the texel at (x, y) of layer. Depth formats fill only x.
func (t *Texture) Load(x, y, layer int) [4]float32 {
	var out [4]float32
	i := t.index(x, y, layer)
	copy(out[:t.desc.Format.Channels()], t.texels[i:])
	return out
}

func (t *Texture) Store(x, y, layer int, v [4]float32) {
	i := t.index(x, y, layer)
	copy(t.texels[i:i+t.desc.Format.Channels()], v[:])
}

func (t *Texture) clearLayer(layer int, v [4]float32) {
	ch := t.desc.Format.Channels()
	n := int(t.desc.Width * t.desc.Height)
	base := t.index(0, 0, layer)
	for i := 0; i < n; i++ {
		copy(t.texels[base+i*ch:base+(i+1)*ch], v[:ch])
	}
}

func (t *Texture) layer(layer int) []float32 {
	n := int(t.desc.Width*t.desc.Height) * t.desc.Format.Channels()
	base := t.index(0, 0, layer)
	out := make([]float32, n)
	copy(out, t.texels[base:base+n])
	return out
}

type Mesh struct {
	label    string
	vertices []gfx.Vertex
}

func (m *Mesh) Label() string    { return m.label }
func (m *Mesh) Release()         {}
func (m *Mesh) VertexCount() int { return len(m.vertices) }

type Program struct {
	name string
	kind gfx.ProgramKind
}

func (p *Program) Name() string          { return p.name }
func (p *Program) Kind() gfx.ProgramKind { return p.kind }
