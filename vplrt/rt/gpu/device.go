package gpu

import (
	"fmt"
	"sync"

	"github.com/gekko3d/vplgi/log"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// Device drives a headless WebGPU device. Calls are serialized and each
// Draw or Dispatch is its own submission, so later calls observe earlier
// writes.
type Device struct {
	mu sync.Mutex

	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	logger   log.Logger
	programs map[string]*Program

	// Per pass parameter blocks, grown on demand.
	passParamsBuf *wgpu.Buffer
	drawParamsBuf *wgpu.Buffer
	computeBuf    *wgpu.Buffer
}

// NewDevice requests a high performance adapter without a surface.
func NewDevice(logger log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}
	logger.Infof("wgpu device ready")
	return &Device{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
		logger:   logger,
		programs: make(map[string]*Program),
	}, nil
}

func (d *Device) Name() string { return "wgpu" }

func (d *Device) CreateBuffer(desc gfx.BufferDesc) (gfx.Buffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: buffer %q size %d", err, desc.Label, desc.Size)
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gfx.ErrAllocation, desc.Label, err)
	}
	return &Buffer{desc: desc, buf: buf}, nil
}

func (d *Device) CreateTexture(desc gfx.TextureDesc) (gfx.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: texture %q", err, desc.Label)
	}
	format, err := toTextureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	usage := wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if desc.Sampled {
		usage |= wgpu.TextureUsageTextureBinding
	}

	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.Layers},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gfx.ErrAllocation, desc.Label, err)
	}

	t := &Texture{desc: desc, tex: tex}
	t.layerViews = make([]*wgpu.TextureView, desc.Layers)
	for i := range t.layerViews {
		t.layerViews[i], err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s layer %d", desc.Label, i),
			Format:          format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  uint32(i),
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: %s view: %v", gfx.ErrAllocation, desc.Label, err)
		}
	}
	if desc.Sampled {
		t.arrayView, err = tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           desc.Label + " array",
			Format:          format,
			Dimension:       wgpu.TextureViewDimension2DArray,
			BaseMipLevel:    0,
			MipLevelCount:   1,
			BaseArrayLayer:  0,
			ArrayLayerCount: desc.Layers,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			t.Release()
			return nil, fmt.Errorf("%w: %s array view: %v", gfx.ErrAllocation, desc.Label, err)
		}
	}
	return t, nil
}

func (d *Device) CreateMesh(label string, vertices []gfx.Vertex) (gfx.Mesh, error) {
	data := vertexBytes(vertices)
	if len(data) == 0 {
		data = make([]byte, gfx.VertexSize)
	}
	buf, err := d.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mesh %s: %v", gfx.ErrAllocation, label, err)
	}
	return &Mesh{label: label, buf: buf, count: len(vertices)}, nil
}

// LoadProgram compiles the named program once and caches it.
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
	if _, err := shaders.Validate(name); err != nil {
		d.logger.Errorf("program %s rejected: %v", name, err)
		return nil, fmt.Errorf("gpu: %w", err)
	}
	module, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: info.Source()},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %s: %w", name, err)
	}

	p := &Program{info: info, module: module, raster: make(map[rasterKey]*wgpu.RenderPipeline)}
	if err := d.createLayouts(p); err != nil {
		p.release()
		return nil, err
	}
	if info.Kind == gfx.ProgramCompute {
		p.compute, err = d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:  name,
			Layout: p.layout,
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: "cs_main",
			},
		})
		if err != nil {
			p.release()
			return nil, fmt.Errorf("gpu: compute pipeline %s: %w", name, err)
		}
	}
	d.programs[name] = p
	d.logger.Debugf("loaded program %s", name)
	return p, nil
}

func uniformEntry(visibility wgpu.ShaderStage, size uint64) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: visibility,
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: size,
		},
	}
}

// createLayouts builds the params groups and the slot group from the
// program description instead of relying on reflected layouts, so float
// textures bind as unfilterable.
func (d *Device) createLayouts(p *Program) error {
	var entries [][]wgpu.BindGroupLayoutEntry
	slotStage := wgpu.ShaderStageCompute
	if p.info.Kind == gfx.ProgramCompute {
		entries = append(entries, []wgpu.BindGroupLayoutEntry{uniformEntry(wgpu.ShaderStageCompute, core.ComputeParamsSize)})
	} else {
		rasterStages := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
		entries = append(entries,
			[]wgpu.BindGroupLayoutEntry{uniformEntry(rasterStages, core.PassParamsSize)},
			[]wgpu.BindGroupLayoutEntry{uniformEntry(rasterStages, core.DrawParamsSize)},
		)
		slotStage = wgpu.ShaderStageFragment
	}

	if len(p.info.Slots) > 0 {
		var slots []wgpu.BindGroupLayoutEntry
		for _, s := range p.info.Slots {
			e := wgpu.BindGroupLayoutEntry{Binding: s.Binding, Visibility: slotStage}
			switch s.Type {
			case shaders.SlotUniform:
				e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
			case shaders.SlotStorageRead:
				e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
			case shaders.SlotStorageReadWrite:
				e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
			case shaders.SlotTexture2DArray:
				e.Texture = wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2DArray,
				}
			}
			slots = append(slots, e)
		}
		entries = append(entries, slots)
	}

	for i, group := range entries {
		bgl, err := d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", p.info.Name, i),
			Entries: group,
		})
		if err != nil {
			return fmt.Errorf("gpu: %s layout %d: %w", p.info.Name, i, err)
		}
		p.groups = append(p.groups, bgl)
	}

	layout, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.info.Name,
		BindGroupLayouts: p.groups,
	})
	if err != nil {
		return fmt.Errorf("gpu: %s pipeline layout: %w", p.info.Name, err)
	}
	p.layout = layout
	return nil
}

// rasterKey is the fixed-function state a render pipeline is baked with.
type rasterKey struct {
	cull        bool
	depthTest   bool
	colorWrites bool
	targets     int
	depth       bool
}

func (d *Device) renderPipeline(p *Program, key rasterKey) (*wgpu.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rp, ok := p.raster[key]; ok {
		return rp, nil
	}

	writeMask := wgpu.ColorWriteMaskNone
	if key.colorWrites {
		writeMask = wgpu.ColorWriteMaskAll
	}
	targets := make([]wgpu.ColorTargetState, key.targets)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{
			Format:    wgpu.TextureFormatRGBA32Float,
			WriteMask: writeMask,
		}
	}

	cull := wgpu.CullModeNone
	if key.cull {
		cull = wgpu.CullModeBack
	}

	var depth *wgpu.DepthStencilState
	if key.depth {
		compare := wgpu.CompareFunctionAlways
		if key.depthTest {
			compare = wgpu.CompareFunctionLess
		}
		keep := wgpu.StencilFaceState{
			Compare:     wgpu.CompareFunctionAlways,
			FailOp:      wgpu.StencilOperationKeep,
			DepthFailOp: wgpu.StencilOperationKeep,
			PassOp:      wgpu.StencilOperationKeep,
		}
		depth = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: key.depthTest,
			DepthCompare:      compare,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	rp, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.info.Name,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: gfx.VertexSize,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: render pipeline %s: %w", p.info.Name, err)
	}
	p.raster[key] = rp
	return rp, nil
}

// ensureBuffer grows buf to hold data and uploads it.
func (d *Device) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage) error {
	neededSize := alignTo(uint64(len(data)), 4)
	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  neededSize,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			*buf = nil
			return fmt.Errorf("%w: %s: %v", gfx.ErrAllocation, name, err)
		}
		*buf = newBuf
	}
	if len(data) > 0 {
		d.Queue.WriteBuffer(*buf, 0, data)
	}
	return nil
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.programs {
		p.release()
	}
	d.programs = map[string]*Program{}
	for _, b := range []**wgpu.Buffer{&d.passParamsBuf, &d.drawParamsBuf, &d.computeBuf} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	if d.Device != nil {
		d.Device.Release()
		d.Device = nil
	}
	if d.Adapter != nil {
		d.Adapter.Release()
		d.Adapter = nil
	}
	if d.Instance != nil {
		d.Instance.Release()
		d.Instance = nil
	}
}
