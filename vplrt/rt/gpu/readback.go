package gpu

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/cogentcore/webgpu/wgpu"
)

// mapPollLimit bounds how long a readback waits for the map callback.
const mapPollLimit = 1000

func (d *Device) WriteBuffer(buf gfx.Buffer, offset uint64, data []byte) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	if offset%4 != 0 || len(data)%4 != 0 || offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write %d bytes at %d into %q (%d bytes)", gfx.ErrInvalidDescriptor, len(data), offset, b.desc.Label, b.desc.Size)
	}
	if len(data) == 0 {
		return nil
	}
	d.Queue.WriteBuffer(b.buf, offset, data)
	return nil
}

func (d *Device) FillBuffer(buf gfx.Buffer, value uint32) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	d.Queue.WriteBuffer(b.buf, 0, fillWords(value, b.desc.Size))
	return nil
}

// mapRead records encode into a staging buffer of size bytes and maps it.
func (d *Device) mapRead(label string, encode func(*wgpu.CommandEncoder, *wgpu.Buffer) error, size uint64) ([]byte, error) {
	staging, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s readback: %v", gfx.ErrAllocation, label, err)
	}
	defer staging.Release()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	if err := encode(encoder, staging); err != nil {
		return nil, err
	}
	if err := d.submit(encoder); err != nil {
		return nil, err
	}

	done := false
	ok := false
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done = true
		ok = status == wgpu.BufferMapAsyncStatusSuccess
	})
	for i := 0; !done && i < mapPollLimit; i++ {
		d.Device.Poll(true, nil)
	}
	if !done || !ok {
		return nil, fmt.Errorf("%w: %q", gfx.ErrMapFailed, label)
	}
	defer staging.Unmap()

	mapped := staging.GetMappedRange(0, uint(size))
	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}

func (d *Device) ReadBuffer(buf gfx.Buffer, offset, size uint64) ([]byte, error) {
	b, err := asBuffer(buf)
	if err != nil {
		return nil, err
	}
	if offset%4 != 0 || size%4 != 0 || offset+size > b.desc.Size {
		return nil, fmt.Errorf("%w: read %d bytes at %d from %q", gfx.ErrInvalidDescriptor, size, offset, b.desc.Label)
	}
	if size == 0 {
		return []byte{}, nil
	}
	return d.mapRead(b.desc.Label, func(enc *wgpu.CommandEncoder, staging *wgpu.Buffer) error {
		enc.CopyBufferToBuffer(b.buf, offset, staging, 0, size)
		return nil
	}, size)
}

// ReadTexture copies one layer out. Only colour targets can be read back.
func (d *Device) ReadTexture(tex gfx.Texture, layer uint32) ([]float32, error) {
	t, err := asTexture(tex)
	if err != nil {
		return nil, err
	}
	if layer >= t.desc.Layers {
		return nil, fmt.Errorf("%w: layer %d of %q", gfx.ErrInvalidDescriptor, layer, t.desc.Label)
	}
	if t.desc.Format != gfx.FormatRGBA32Float {
		return nil, fmt.Errorf("%w: read back %v", gfx.ErrUnsupportedBinding, t.desc.Format)
	}

	channels := uint32(t.desc.Format.Channels())
	bytesPerRow := paddedRow(t.desc.Width, channels*4)
	size := uint64(bytesPerRow) * uint64(t.desc.Height)
	data, err := d.mapRead(t.desc.Label, func(enc *wgpu.CommandEncoder, staging *wgpu.Buffer) error {
		enc.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  t.tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: layer},
				Aspect:   wgpu.TextureAspectAll,
			},
			&wgpu.ImageCopyBuffer{
				Buffer: staging,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  bytesPerRow,
					RowsPerImage: t.desc.Height,
				},
			},
			&wgpu.Extent3D{Width: t.desc.Width, Height: t.desc.Height, DepthOrArrayLayers: 1},
		)
		return nil
	}, size)
	if err != nil {
		return nil, err
	}
	return unpackRows(data, t.desc.Width, t.desc.Height, channels, bytesPerRow), nil
}
