package soft

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"
)

// Device executes every program on the CPU. Atomics in programs map to
// sync/atomic on word addressed buffers, so concurrent appends behave as they
// do on a GPU.
type Device struct {
	pool *WorkerPool

	mu       sync.Mutex
	programs map[string]*Program

	failMaps atomic.Int32
	released atomic.Bool

	memoryLimit uint64
	allocated   atomic.Uint64

	// Stats
	Draws      atomic.Uint64
	Dispatches atomic.Uint64
	Fragments  atomic.Uint64
}

type Option func(*config)

// DefaultMemoryLimit caps the bytes held by live buffers and textures.
const DefaultMemoryLimit = 4 << 30

type config struct {
	workers     int
	memoryLimit uint64
}

// WithWorkers sets the rasterizer and dispatcher parallelism.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithMemoryLimit sets how many bytes buffers and textures may hold at once.
// Allocations past it fail with gfx.ErrAllocation.
func WithMemoryLimit(bytes uint64) Option {
	return func(c *config) { c.memoryLimit = bytes }
}

func NewDevice(opts ...Option) *Device {
	cfg := config{memoryLimit: DefaultMemoryLimit}
	for _, o := range opts {
		o(&cfg)
	}
	return &Device{
		pool:        NewWorkerPool(cfg.workers),
		programs:    make(map[string]*Program),
		memoryLimit: cfg.memoryLimit,
	}
}

// Allocated is the number of bytes held by unreleased buffers and textures.
func (d *Device) Allocated() uint64 {
	return d.allocated.Load()
}

func (d *Device) reserve(label string, bytes uint64) error {
	for {
		cur := d.allocated.Load()
		if bytes > d.memoryLimit || cur > d.memoryLimit-bytes {
			return fmt.Errorf("%w: %q needs %d bytes, %d of %d in use", gfx.ErrAllocation, label, bytes, cur, d.memoryLimit)
		}
		if d.allocated.CompareAndSwap(cur, cur+bytes) {
			return nil
		}
	}
}

func (d *Device) free(bytes uint64) {
	d.allocated.Add(^(bytes - 1))
}

func (d *Device) Name() string { return "soft" }

// FailNextMaps makes the next n ReadBuffer calls report ErrMapFailed.
func (d *Device) FailNextMaps(n int) {
	d.failMaps.Store(int32(n))
}

func (d *Device) CreateBuffer(desc gfx.BufferDesc) (gfx.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: buffer %q size %d", err, desc.Label, desc.Size)
	}
	if err := d.reserve(desc.Label, desc.Size); err != nil {
		return nil, err
	}
	return &Buffer{
		label: desc.Label,
		desc:  desc,
		words: make([]uint32, desc.Size/4),
		owner: d,
	}, nil
}

func (d *Device) CreateTexture(desc gfx.TextureDesc) (gfx.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: texture %q %dx%dx%d", err, desc.Label, desc.Width, desc.Height, desc.Layers)
	}
	n := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Layers) * uint64(desc.Format.Channels())
	if err := d.reserve(desc.Label, n*4); err != nil {
		return nil, err
	}
	return &Texture{desc: desc, texels: make([]float32, n), owner: d}, nil
}

func (d *Device) CreateMesh(label string, vertices []gfx.Vertex) (gfx.Mesh, error) {
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("%w: mesh %q has %d vertices", gfx.ErrInvalidDescriptor, label, len(vertices))
	}
	v := make([]gfx.Vertex, len(vertices))
	copy(v, vertices)
	return &Mesh{label: label, vertices: v}, nil
}

func (d *Device) LoadProgram(name string) (gfx.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.programs[name]; ok {
		return p, nil
	}
	info, err := shaders.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gfx.ErrProgramNotFound, err)
	}
	switch info.Kind {
	case gfx.ProgramRaster:
		if _, ok := fragmentKernels[name]; !ok {
			return nil, fmt.Errorf("%w: no fragment kernel for %q", gfx.ErrProgramNotFound, name)
		}
	case gfx.ProgramCompute:
		if _, ok := computeKernels[name]; !ok {
			return nil, fmt.Errorf("%w: no compute kernel for %q", gfx.ErrProgramNotFound, name)
		}
	}
	p := &Program{name: name, kind: info.Kind}
	d.programs[name] = p
	return p, nil
}

func (d *Device) WriteBuffer(buf gfx.Buffer, offset uint64, data []byte) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	if offset%4 != 0 || len(data)%4 != 0 || offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("%w: write %d bytes at %d into %q (%d bytes)", gfx.ErrInvalidDescriptor, len(data), offset, b.label, b.Size())
	}
	b.write(offset, data)
	return nil
}

func (d *Device) FillBuffer(buf gfx.Buffer, value uint32) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	for i := range b.words {
		b.words[i] = value
	}
	return nil
}

func (d *Device) ReadBuffer(buf gfx.Buffer, offset, size uint64) ([]byte, error) {
	b, err := asBuffer(buf)
	if err != nil {
		return nil, err
	}
	for {
		n := d.failMaps.Load()
		if n <= 0 {
			break
		}
		if d.failMaps.CompareAndSwap(n, n-1) {
			return nil, fmt.Errorf("%w: %q", gfx.ErrMapFailed, b.label)
		}
	}
	if offset%4 != 0 || size%4 != 0 || offset+size > b.Size() {
		return nil, fmt.Errorf("%w: read %d bytes at %d from %q", gfx.ErrInvalidDescriptor, size, offset, b.label)
	}
	return b.read(offset, size), nil
}

func (d *Device) ReadTexture(tex gfx.Texture, layer uint32) ([]float32, error) {
	t, err := asTexture(tex)
	if err != nil {
		return nil, err
	}
	if layer >= t.desc.Layers {
		return nil, fmt.Errorf("%w: layer %d of %q", gfx.ErrInvalidDescriptor, layer, t.desc.Label)
	}
	return t.layer(int(layer)), nil
}

func (d *Device) Release() {
	if d.released.CompareAndSwap(false, true) {
		d.pool.Close()
	}
}

func asBuffer(r gfx.Resource) (*Buffer, error) {
	b, ok := r.(*Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("%w: %T is not a soft buffer", gfx.ErrUnsupportedBinding, r)
	}
	if b.released.Load() {
		return nil, fmt.Errorf("%w: %q", gfx.ErrReleased, b.label)
	}
	return b, nil
}

func asTexture(r gfx.Resource) (*Texture, error) {
	t, ok := r.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %T is not a soft texture", gfx.ErrUnsupportedBinding, r)
	}
	if t.released.Load() {
		return nil, fmt.Errorf("%w: %q", gfx.ErrReleased, t.desc.Label)
	}
	return t, nil
}
