package soft

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"
)

// bound holds the resolved resources for one pass or dispatch.
type bound struct {
	buffers  map[string]*Buffer
	textures map[string]*Texture
}

func bindSlots(info shaders.ProgramInfo, bindings gfx.Bindings) (*bound, error) {
	b := &bound{
		buffers:  make(map[string]*Buffer),
		textures: make(map[string]*Texture),
	}
	for _, slot := range info.Slots {
		res, ok := bindings[slot.Name]
		if !ok || res == nil {
			return nil, fmt.Errorf("%w: %s needs %q", gfx.ErrUnsupportedBinding, info.Name, slot.Name)
		}
		switch slot.Type {
		case shaders.SlotTexture2DArray:
			t, err := asTexture(res)
			if err != nil {
				return nil, err
			}
			b.textures[slot.Name] = t
		default:
			buf, err := asBuffer(res)
			if err != nil {
				return nil, err
			}
			b.buffers[slot.Name] = buf
		}
	}
	return b, nil
}

type computeContext struct {
	params core.ComputeParams
	*bound
}

type computeKernel func(c *computeContext, gid [3]uint32)

func (d *Device) Dispatch(prog gfx.Program, bindings gfx.Bindings, params []byte, x, y, z uint32) error {
	p, ok := prog.(*Program)
	if !ok || p.kind != gfx.ProgramCompute {
		return fmt.Errorf("%w: %v is not a compute program", gfx.ErrProgramNotFound, prog)
	}
	info, err := shaders.Lookup(p.name)
	if err != nil {
		return err
	}
	kernel := computeKernels[p.name]
	b, err := bindSlots(info, bindings)
	if err != nil {
		return err
	}
	if len(params) < core.ComputeParamsSize {
		return fmt.Errorf("%w: %s params %d bytes", gfx.ErrInvalidDescriptor, p.name, len(params))
	}
	ctx := &computeContext{params: core.UnmarshalComputeParams(params), bound: b}
	d.Dispatches.Add(1)

	total := int(x * y * z)
	if total == 0 {
		return nil
	}
	wg := info.WorkgroupSize
	chunks := d.pool.Workers() * 2
	if chunks > total {
		chunks = total
	}
	per := (total + chunks - 1) / chunks

	work := make([]func(), 0, chunks)
	for start := 0; start < total; start += per {
		end := start + per
		if end > total {
			end = total
		}
		work = append(work, func() {
			for g := start; g < end; g++ {
				gx := uint32(g) % x
				gy := (uint32(g) / x) % y
				gz := uint32(g) / (x * y)
				for lz := uint32(0); lz < wg[2]; lz++ {
					for ly := uint32(0); ly < wg[1]; ly++ {
						for lx := uint32(0); lx < wg[0]; lx++ {
							kernel(ctx, [3]uint32{gx*wg[0] + lx, gy*wg[1] + ly, gz*wg[2] + lz})
						}
					}
				}
			}
		})
	}
	d.pool.ExecuteAll(work)
	return nil
}
