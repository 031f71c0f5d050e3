package gfx

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrMapFailed          = errors.New("gfx: map for read failed")
	ErrProgramNotFound    = errors.New("gfx: program not found")
	ErrAllocation         = errors.New("gfx: resource allocation failed")
	ErrInvalidDescriptor  = errors.New("gfx: invalid descriptor")
	ErrReleased           = errors.New("gfx: resource already released")
	ErrUnsupportedBinding = errors.New("gfx: unsupported binding")
)

type Format int

const (
	FormatRGBA32Float Format = iota
	FormatDepth32Float
)

func (f Format) String() string {
	switch f {
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatDepth32Float:
		return "depth32float"
	default:
		return "unknown"
	}
}

// Channels is the number of float components one texel holds.
func (f Format) Channels() int {
	if f == FormatDepth32Float {
		return 1
	}
	return 4
}

type BufferUsage uint32

const (
	BufferStorage BufferUsage = 1 << iota
	BufferUniform
	BufferVertex
	BufferReadback
)

type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
	// Atomic marks buffers touched with atomic add/exchange by programs.
	Atomic bool
}

type TextureDesc struct {
	Label         string
	Width, Height uint32
	Layers        uint32
	Format        Format
	RenderTarget  bool
	Sampled       bool
}

// Resource is anything that can be bound to a named program slot.
type Resource interface {
	Label() string
	Release()
}

type Buffer interface {
	Resource
	Size() uint64
}

type Texture interface {
	Resource
	Desc() TextureDesc
}

type ProgramKind int

const (
	ProgramRaster ProgramKind = iota
	ProgramCompute
)

type Program interface {
	Name() string
	Kind() ProgramKind
}

// Bindings maps program slot names to resources.
type Bindings map[string]Resource

// Attachment targets one layer of a texture array.
type Attachment struct {
	Texture Texture
	Layer   uint32
}

// RenderPass describes targets and fixed-function state. Programs come from
// each draw so the scene's active program assignment is honoured.
type RenderPass struct {
	Label       string
	Width       uint32
	Height      uint32
	Color       []Attachment
	Depth       *Attachment
	Clear       bool
	ClearColor  [4]float32
	CullBack    bool
	DepthTest   bool
	ColorWrites bool
	Params      []byte
	Bindings    Bindings
}

// Vertex matches the WGSL vertex input: position at location 0, normal at location 1.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// VertexSize is the byte stride of Vertex.
const VertexSize = 24

type Mesh interface {
	Resource
	VertexCount() int
}

type DrawCall struct {
	Program Program
	Mesh    Mesh
	Params  []byte
}

// Device is the graphics backend the pipeline drives. Every call is
// synchronous from the caller's view: when it returns, later calls observe
// its writes.
type Device interface {
	Name() string

	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateMesh(label string, vertices []Vertex) (Mesh, error)
	LoadProgram(name string) (Program, error)

	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	// FillBuffer sets every 32-bit word to value.
	FillBuffer(buf Buffer, value uint32) error

	Draw(pass *RenderPass, draws []DrawCall) error
	Dispatch(prog Program, bindings Bindings, params []byte, x, y, z uint32) error

	// ReadBuffer maps a CPU visible copy. Returns ErrMapFailed when the map
	// does not complete.
	ReadBuffer(buf Buffer, offset, size uint64) ([]byte, error)
	// ReadTexture returns one layer as tightly packed floats.
	ReadTexture(tex Texture, layer uint32) ([]float32, error)

	Release()
}

// Validate checks a texture descriptor.
func (d TextureDesc) Validate() error {
	if d.Width == 0 || d.Height == 0 || d.Layers == 0 {
		return ErrInvalidDescriptor
	}
	return nil
}

func (d BufferDesc) Validate() error {
	if d.Size == 0 || d.Size%4 != 0 {
		return ErrInvalidDescriptor
	}
	return nil
}

// GroupCount returns how many workgroups of size cover n items.
func GroupCount(n, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (n + size - 1) / size
}
