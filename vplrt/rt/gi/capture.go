package gi

import (
	"encoding/binary"
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
)

// FragmentCaptureStage rasterizes the scene through every ray bundle camera
// and appends each fragment to its pixel's linked list.
type FragmentCaptureStage struct {
	cfg     Config
	program gfx.Program

	heads      gfx.Buffer
	records    gfx.Buffer
	counter    gfx.Buffer
	cameraBuf  gfx.Buffer
	inverseBuf gfx.Buffer
	// The pass needs a depth attachment even though nothing is tested.
	dummyDepth gfx.Texture
}

func NewFragmentCaptureStage(cfg Config) *FragmentCaptureStage {
	return &FragmentCaptureStage{cfg: cfg}
}

func (s *FragmentCaptureStage) Init(dev gfx.Device) error {
	prog, err := dev.LoadProgram(core.ProgramPPLLCapture)
	if err != nil {
		return fmt.Errorf("fragment capture: %w", err)
	}
	s.program = prog

	n := uint64(s.cfg.SampleCount())
	steps := []struct {
		dst    *gfx.Buffer
		label  string
		size   uint64
		usage  gfx.BufferUsage
		atomic bool
	}{
		{&s.heads, core.BindHeads, uint64(s.cfg.HeadCount()) * 4, gfx.BufferStorage | gfx.BufferReadback, true},
		{&s.records, core.BindRecords, uint64(s.cfg.FragmentCapacity()) * core.FragmentRecordSize, gfx.BufferStorage | gfx.BufferReadback, false},
		{&s.counter, core.BindCounter, core.CounterSize, gfx.BufferStorage | gfx.BufferReadback, true},
		{&s.cameraBuf, "ray_cameras", n * core.CameraRecordSize, gfx.BufferStorage, false},
		{&s.inverseBuf, core.BindRayInverse, n * 64, gfx.BufferStorage, false},
	}
	for _, st := range steps {
		buf, err := createBuffer(dev, st.label, st.size, st.usage, st.atomic)
		if err != nil {
			return fmt.Errorf("fragment capture: %w", err)
		}
		*st.dst = buf
	}

	res := uint32(s.cfg.Resolution)
	if s.dummyDepth, err = createLayers(dev, "ppll_depth", res, 1, gfx.FormatDepth32Float); err != nil {
		return fmt.Errorf("fragment capture: %w", err)
	}
	return nil
}

// Reset marks every list empty and rewinds the allocator.
func (s *FragmentCaptureStage) Reset(dev gfx.Device) error {
	if err := dev.FillBuffer(s.heads, core.Sentinel); err != nil {
		return fmt.Errorf("fragment capture: reset heads: %w", err)
	}
	if err := dev.FillBuffer(s.counter, 0); err != nil {
		return fmt.Errorf("fragment capture: reset counter: %w", err)
	}
	return nil
}

// Run renders every sample into the lists. Reset must have been called for
// the frame. Appends past capacity are dropped and counted.
func (s *FragmentCaptureStage) Run(dev gfx.Device, sc *scene.Manager, planner *Planner) error {
	cams := planner.Cameras()
	if len(cams) != s.cfg.SampleCount() {
		return fmt.Errorf("fragment capture: %d cameras planned for %d samples", len(cams), s.cfg.SampleCount())
	}
	if err := dev.WriteBuffer(s.cameraBuf, 0, core.MarshalCameras(planner.Records())); err != nil {
		return fmt.Errorf("fragment capture: cameras: %w", err)
	}
	if err := dev.WriteBuffer(s.inverseBuf, 0, core.MarshalMat4s(planner.InverseViewProjs())); err != nil {
		return fmt.Errorf("fragment capture: inverses: %w", err)
	}

	restore := sc.SwapPrograms(s.program)
	defer restore()

	res := uint32(s.cfg.Resolution)
	bindings := gfx.Bindings{
		core.BindHeads:   s.heads,
		core.BindRecords: s.records,
		core.BindCounter: s.counter,
	}
	for i, cam := range cams {
		pass := &gfx.RenderPass{
			Label:    fmt.Sprintf("ppll sample %d", i),
			Width:    res,
			Height:   res,
			Depth:    &gfx.Attachment{Texture: s.dummyDepth},
			Clear:    true,
			Bindings: bindings,
			Params: core.PassParams{
				ViewProj:    cam.ViewProj(),
				Eye:         cam.Position,
				SampleIndex: uint32(i),
				Resolution:  res,
				Capacity:    uint32(s.cfg.FragmentCapacity()),
				Flags:       s.cfg.flags(),
			}.Marshal(),
		}
		if err := sc.RenderAll(dev, pass, nil); err != nil {
			return fmt.Errorf("fragment capture sample %d: %w", i, err)
		}
	}
	return nil
}

// ReadCounters returns the number of reserved slots and rejected appends.
// Reserved may exceed capacity; only the first capacity slots hold records.
func (s *FragmentCaptureStage) ReadCounters(dev gfx.Device) (reserved, overflow uint32, err error) {
	raw, err := dev.ReadBuffer(s.counter, 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("fragment counter: %w", err)
	}
	return binary.LittleEndian.Uint32(raw[core.CounterWordNext*4:]),
		binary.LittleEndian.Uint32(raw[core.CounterWordOverflow*4:]), nil
}

func (s *FragmentCaptureStage) Heads() gfx.Buffer {
	return s.heads
}

func (s *FragmentCaptureStage) Records() gfx.Buffer {
	return s.records
}

func (s *FragmentCaptureStage) Counter() gfx.Buffer {
	return s.counter
}

// CameraBuffer holds the ray bundle camera records in sample order.
func (s *FragmentCaptureStage) CameraBuffer() gfx.Buffer {
	return s.cameraBuf
}

func (s *FragmentCaptureStage) InverseBuffer() gfx.Buffer {
	return s.inverseBuf
}

func (s *FragmentCaptureStage) Release() {
	release(s.heads, s.records, s.counter, s.cameraBuf, s.inverseBuf, s.dummyDepth)
	s.heads, s.records, s.counter, s.cameraBuf, s.inverseBuf = nil, nil, nil, nil, nil
	s.dummyDepth = nil
}
