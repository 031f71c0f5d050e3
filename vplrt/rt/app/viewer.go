package app

import (
	"fmt"
	"image"

	"github.com/gekko3d/vplgi/log"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Viewer presents debug images in a window. The GI pipeline runs on its own
// device; the viewer only uploads and blits finished images.
type Viewer struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	RenderPipeline *wgpu.RenderPipeline
	Sampler        *wgpu.Sampler

	ViewTexture *wgpu.Texture
	ViewView    *wgpu.TextureView
	RenderBG    *wgpu.BindGroup
	viewW       int
	viewH       int

	Profiler *Profiler
	logger   log.Logger

	LastRenderTime float64
	FrameCount     int
	FPS            float64
	FPSTime        float64
}

func NewViewer(window *glfw.Window, logger log.Logger) *Viewer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Viewer{
		Window:   window,
		Profiler: NewProfiler(),
		logger:   logger,
	}
}

func (v *Viewer) Init() error {
	v.Instance = wgpu.CreateInstance(nil)
	v.Surface = v.Instance.CreateSurface(GetSurfaceDescriptor(v.Window))

	adapter, err := v.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: v.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	v.Adapter = adapter

	v.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	v.Queue = v.Device.GetQueue()

	width, height := v.Window.GetFramebufferSize()
	caps := v.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	v.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	v.Surface.Configure(adapter, v.Device, v.Config)

	module, err := v.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	v.RenderPipeline, err = v.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	// Nearest so individual ray bundle pixels stay visible.
	v.Sampler, err = v.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeNearest,
		MagFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	v.LastRenderTime = glfw.GetTime()
	v.logger.Infof("viewer ready (%dx%d, %v)", width, height, format)
	return nil
}

func (v *Viewer) setupTexture(w, h int) error {
	if v.ViewTexture != nil && v.viewW == w && v.viewH == h {
		return nil
	}
	if v.RenderBG != nil {
		v.RenderBG.Release()
		v.RenderBG = nil
	}
	if v.ViewView != nil {
		v.ViewView.Release()
	}
	if v.ViewTexture != nil {
		v.ViewTexture.Release()
	}

	var err error
	v.ViewTexture, err = v.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Debug View",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	v.ViewView, err = v.ViewTexture.CreateView(nil)
	if err != nil {
		return err
	}
	v.RenderBG, err = v.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: v.RenderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: v.ViewView},
			{Binding: 1, Sampler: v.Sampler},
		},
	})
	if err != nil {
		return err
	}
	v.viewW, v.viewH = w, h
	return nil
}

// Upload replaces the displayed image.
func (v *Viewer) Upload(img *image.RGBA) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return fmt.Errorf("app: empty view image")
	}
	if err := v.setupTexture(w, h); err != nil {
		return err
	}
	v.Queue.WriteTexture(v.ViewTexture.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	return nil
}

func (v *Viewer) Resize(w, h int) {
	if w > 0 && h > 0 {
		v.Config.Width = uint32(w)
		v.Config.Height = uint32(h)
		v.Surface.Configure(v.Adapter, v.Device, v.Config)
	}
}

func (v *Viewer) Render() {
	if v.RenderBG == nil {
		return
	}
	nextTexture, err := v.Surface.GetCurrentTexture()
	if err != nil {
		v.logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		v.logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := v.Device.CreateCommandEncoder(nil)
	if err != nil {
		v.logger.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}
	defer encoder.Release()

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(v.RenderPipeline)
	rPass.SetBindGroup(0, v.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		v.logger.Errorf("blit pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		v.logger.Errorf("encoder Finish failed: %v", err)
		return
	}
	defer cmd.Release()
	v.Queue.Submit(cmd)
	v.Surface.Present()

	now := glfw.GetTime()
	if v.LastRenderTime > 0 {
		v.FrameCount++
		v.FPSTime += now - v.LastRenderTime
		if v.FPSTime >= 1.0 {
			v.FPS = float64(v.FrameCount) / v.FPSTime
			v.FrameCount = 0
			v.FPSTime = 0
		}
	}
	v.LastRenderTime = now
}

func (v *Viewer) Release() {
	if v.RenderBG != nil {
		v.RenderBG.Release()
	}
	if v.ViewView != nil {
		v.ViewView.Release()
	}
	if v.ViewTexture != nil {
		v.ViewTexture.Release()
	}
	if v.Sampler != nil {
		v.Sampler.Release()
	}
	if v.RenderPipeline != nil {
		v.RenderPipeline.Release()
	}
	if v.Surface != nil {
		v.Surface.Release()
	}
	if v.Device != nil {
		v.Device.Release()
	}
	if v.Adapter != nil {
		v.Adapter.Release()
	}
	if v.Instance != nil {
		v.Instance.Release()
	}
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}
