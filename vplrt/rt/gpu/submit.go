package gpu

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// slotGroup binds the program's named slots at its resource group.
func (d *Device) slotGroup(p *Program, bindings gfx.Bindings) (*wgpu.BindGroup, error) {
	if len(p.info.Slots) == 0 {
		return nil, nil
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(p.info.Slots))
	for _, slot := range p.info.Slots {
		res, ok := bindings[slot.Name]
		if !ok || res == nil {
			return nil, fmt.Errorf("%w: %s needs %q", gfx.ErrUnsupportedBinding, p.info.Name, slot.Name)
		}
		if slot.Type == shaders.SlotTexture2DArray {
			t, err := asTexture(res)
			if err != nil {
				return nil, err
			}
			if t.arrayView == nil {
				return nil, fmt.Errorf("%w: %q is not sampled", gfx.ErrUnsupportedBinding, t.desc.Label)
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: slot.Binding, TextureView: t.arrayView})
			continue
		}
		b, err := asBuffer(res)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: slot.Binding, Buffer: b.buf, Size: b.desc.Size})
	}
	group := p.groups[p.info.ResourceGroup()]
	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.info.Name + " slots",
		Layout:  group,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: %s slots: %w", p.info.Name, err)
	}
	return bg, nil
}

func (d *Device) paramsGroup(layout *wgpu.BindGroupLayout, label string, buf *wgpu.Buffer, offset, size uint64) (*wgpu.BindGroup, error) {
	return d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label,
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  offset,
			Size:    size,
		}},
	})
}

func (d *Device) submit(encoder *wgpu.CommandEncoder) error {
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	d.Queue.Submit(cmd)
	return nil
}

func (d *Device) Dispatch(prog gfx.Program, bindings gfx.Bindings, params []byte, x, y, z uint32) error {
	p, ok := prog.(*Program)
	if !ok || p.compute == nil {
		return fmt.Errorf("%w: %v is not a compute program", gfx.ErrProgramNotFound, prog)
	}
	if len(params) < core.ComputeParamsSize {
		return fmt.Errorf("%w: %s params %d bytes", gfx.ErrInvalidDescriptor, p.info.Name, len(params))
	}
	if x*y*z == 0 {
		return nil
	}
	if err := d.ensureBuffer("compute params", &d.computeBuf, padTo(params, core.ComputeParamsSize), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	paramsBG, err := d.paramsGroup(p.groups[0], p.info.Name+" params", d.computeBuf, 0, core.ComputeParamsSize)
	if err != nil {
		return err
	}
	defer paramsBG.Release()
	slotsBG, err := d.slotGroup(p, bindings)
	if err != nil {
		return err
	}
	if slotsBG != nil {
		defer slotsBG.Release()
	}

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(p.compute)
	cPass.SetBindGroup(0, paramsBG, nil)
	if slotsBG != nil {
		cPass.SetBindGroup(1, slotsBG, nil)
	}
	cPass.DispatchWorkgroups(x, y, z)
	if err := cPass.End(); err != nil {
		return err
	}
	return d.submit(encoder)
}

func (d *Device) Draw(pass *gfx.RenderPass, draws []gfx.DrawCall) error {
	if pass == nil || pass.Width == 0 || pass.Height == 0 {
		return fmt.Errorf("%w: render pass without size", gfx.ErrInvalidDescriptor)
	}

	loadOp := wgpu.LoadOpLoad
	if pass.Clear {
		loadOp = wgpu.LoadOpClear
	}
	colors := make([]wgpu.RenderPassColorAttachment, len(pass.Color))
	for i, a := range pass.Color {
		t, err := asTexture(a.Texture)
		if err != nil {
			return err
		}
		if a.Layer >= uint32(len(t.layerViews)) {
			return fmt.Errorf("%w: layer %d of %q", gfx.ErrInvalidDescriptor, a.Layer, t.desc.Label)
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:    t.layerViews[a.Layer],
			LoadOp:  loadOp,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(pass.ClearColor[0]),
				G: float64(pass.ClearColor[1]),
				B: float64(pass.ClearColor[2]),
				A: float64(pass.ClearColor[3]),
			},
		}
	}
	var depth *wgpu.RenderPassDepthStencilAttachment
	if pass.Depth != nil {
		t, err := asTexture(pass.Depth.Texture)
		if err != nil {
			return err
		}
		if pass.Depth.Layer >= uint32(len(t.layerViews)) {
			return fmt.Errorf("%w: depth layer %d of %q", gfx.ErrInvalidDescriptor, pass.Depth.Layer, t.desc.Label)
		}
		depth = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.layerViews[pass.Depth.Layer],
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}

	if err := d.ensureBuffer("pass params", &d.passParamsBuf, padTo(pass.Params, core.PassParamsSize), wgpu.BufferUsageUniform); err != nil {
		return err
	}
	blocks := make([][]byte, len(draws))
	for i, dc := range draws {
		blocks[i] = padTo(dc.Params, core.DrawParamsSize)
	}
	if len(draws) > 0 {
		if err := d.ensureBuffer("draw params", &d.drawParamsBuf, packStrided(blocks, uniformStride), wgpu.BufferUsageUniform); err != nil {
			return err
		}
	}

	key := rasterKey{
		cull:        pass.CullBack,
		depthTest:   pass.DepthTest,
		colorWrites: pass.ColorWrites,
		targets:     len(colors),
		depth:       depth != nil,
	}

	// Bind groups live until the submission is recorded.
	var groups []*wgpu.BindGroup
	defer func() {
		for _, g := range groups {
			g.Release()
		}
	}()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:                  pass.Label,
		ColorAttachments:       colors,
		DepthStencilAttachment: depth,
	})

	bound := map[*Program]*wgpu.BindGroup{}
	for i, dc := range draws {
		p, ok := dc.Program.(*Program)
		if !ok || p.info.Kind != gfx.ProgramRaster {
			rPass.End()
			return fmt.Errorf("%w: %v is not a raster program", gfx.ErrProgramNotFound, dc.Program)
		}
		m, ok := dc.Mesh.(*Mesh)
		if !ok || m.buf == nil {
			rPass.End()
			return fmt.Errorf("%w: mesh %T", gfx.ErrUnsupportedBinding, dc.Mesh)
		}
		if m.count == 0 {
			continue
		}
		rp, err := d.renderPipeline(p, key)
		if err != nil {
			rPass.End()
			return err
		}

		passBG, err := d.paramsGroup(p.groups[0], "pass params", d.passParamsBuf, 0, core.PassParamsSize)
		if err != nil {
			rPass.End()
			return err
		}
		groups = append(groups, passBG)
		drawBG, err := d.paramsGroup(p.groups[1], "draw params", d.drawParamsBuf, uint64(i*uniformStride), core.DrawParamsSize)
		if err != nil {
			rPass.End()
			return err
		}
		groups = append(groups, drawBG)

		slotsBG, seen := bound[p]
		if !seen {
			slotsBG, err = d.slotGroup(p, pass.Bindings)
			if err != nil {
				rPass.End()
				return err
			}
			if slotsBG != nil {
				groups = append(groups, slotsBG)
			}
			bound[p] = slotsBG
		}

		rPass.SetPipeline(rp)
		rPass.SetBindGroup(0, passBG, nil)
		rPass.SetBindGroup(1, drawBG, nil)
		if slotsBG != nil {
			rPass.SetBindGroup(2, slotsBG, nil)
		}
		rPass.SetVertexBuffer(0, m.buf, 0, wgpu.WholeSize)
		rPass.Draw(uint32(m.count), 1, 0, 0)
	}
	if err := rPass.End(); err != nil {
		return err
	}
	return d.submit(encoder)
}
