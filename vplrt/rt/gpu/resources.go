package gpu

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

type Buffer struct {
	desc gfx.BufferDesc
	buf  *wgpu.Buffer
}

func (b *Buffer) Label() string { return b.desc.Label }
func (b *Buffer) Size() uint64  { return b.desc.Size }

func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Texture keeps one 2D view per layer for attachments and a 2D array view
// over every layer for sampling.
type Texture struct {
	desc       gfx.TextureDesc
	tex        *wgpu.Texture
	layerViews []*wgpu.TextureView
	arrayView  *wgpu.TextureView
}

func (t *Texture) Label() string         { return t.desc.Label }
func (t *Texture) Desc() gfx.TextureDesc { return t.desc }

func (t *Texture) Release() {
	for _, v := range t.layerViews {
		if v != nil {
			v.Release()
		}
	}
	t.layerViews = nil
	if t.arrayView != nil {
		t.arrayView.Release()
		t.arrayView = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type Mesh struct {
	label string
	buf   *wgpu.Buffer
	count int
}

func (m *Mesh) Label() string    { return m.label }
func (m *Mesh) VertexCount() int { return m.count }

func (m *Mesh) Release() {
	if m.buf != nil {
		m.buf.Release()
		m.buf = nil
	}
}

// Program holds the compiled module and explicit bind group layouts.
// Raster pipelines depend on pass state and are built on first use.
type Program struct {
	info    shaders.ProgramInfo
	module  *wgpu.ShaderModule
	groups  []*wgpu.BindGroupLayout
	layout  *wgpu.PipelineLayout
	compute *wgpu.ComputePipeline
	raster  map[rasterKey]*wgpu.RenderPipeline
}

func (p *Program) Name() string          { return p.info.Name }
func (p *Program) Kind() gfx.ProgramKind { return p.info.Kind }

func (p *Program) release() {
	for _, rp := range p.raster {
		rp.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	for _, g := range p.groups {
		g.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

func toBufferUsage(u gfx.BufferUsage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if u&gfx.BufferStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&gfx.BufferUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&gfx.BufferVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	return out
}

func toTextureFormat(f gfx.Format) (wgpu.TextureFormat, error) {
	switch f {
	case gfx.FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float, nil
	case gfx.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return 0, fmt.Errorf("%w: format %v", gfx.ErrInvalidDescriptor, f)
}

func asBuffer(r gfx.Resource) (*Buffer, error) {
	b, ok := r.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a wgpu buffer", gfx.ErrUnsupportedBinding, r)
	}
	if b.buf == nil {
		return nil, fmt.Errorf("%w: buffer %q", gfx.ErrReleased, b.desc.Label)
	}
	return b, nil
}

func asTexture(r gfx.Resource) (*Texture, error) {
	t, ok := r.(*Texture)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a wgpu texture", gfx.ErrUnsupportedBinding, r)
	}
	if t.tex == nil {
		return nil, fmt.Errorf("%w: texture %q", gfx.ErrReleased, t.desc.Label)
	}
	return t, nil
}
