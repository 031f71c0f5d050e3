package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
)

const vplWorkgroupSize = 64

// Viewpoint is the position and normal of one VPL read back to the CPU.
type Viewpoint struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Valid    bool
}

// VPLSamplingStage picks one virtual point light per sample direction from the
// reflective shadow map.
type VPLSamplingStage struct {
	cfg     Config
	program gfx.Program

	directions gfx.Buffer
	vpls       gfx.Buffer
}

func NewVPLSamplingStage(cfg Config) *VPLSamplingStage {
	return &VPLSamplingStage{cfg: cfg}
}

func (s *VPLSamplingStage) Init(dev gfx.Device) error {
	prog, err := dev.LoadProgram(core.ProgramVPLSample)
	if err != nil {
		return fmt.Errorf("vpl sampling: %w", err)
	}
	s.program = prog

	n := uint64(s.cfg.SampleCount())
	if s.directions, err = createBuffer(dev, core.BindDirections, n*16, gfx.BufferStorage, false); err != nil {
		return fmt.Errorf("vpl sampling: %w", err)
	}
	if s.vpls, err = createBuffer(dev, core.BindVPLs, n*core.VPLSampleSize, gfx.BufferStorage|gfx.BufferReadback, false); err != nil {
		return fmt.Errorf("vpl sampling: %w", err)
	}
	return nil
}

// Run fills every VPL slot. Slots whose direction finds no lit texel get the
// light position with the valid flag cleared.
func (s *VPLSamplingStage) Run(dev gfx.Device, rsm *ReflectiveShadowMapStage, planner *Planner) error {
	dirs := planner.Directions()
	if err := dev.WriteBuffer(s.directions, 0, core.MarshalDirections(dirs)); err != nil {
		return fmt.Errorf("vpl sampling: directions: %w", err)
	}

	light := rsm.Light()
	params := core.ComputeParams{
		SampleCount:   uint32(len(dirs)),
		RSMResolution: uint32(s.cfg.RSMResolution),
		SearchRadius:  uint32(s.cfg.searchRadius()),
		Flags:         s.cfg.flags(),
		LightPos:      light.Position,
		LightRadiant:  light.Radiant(),
	}

	bindings := rsm.bindings()
	bindings[core.BindDirections] = s.directions
	bindings[core.BindVPLs] = s.vpls

	groups := gfx.GroupCount(uint32(len(dirs)), vplWorkgroupSize)
	if err := dev.Dispatch(s.program, bindings, params.Marshal(), groups, 1, 1); err != nil {
		return fmt.Errorf("vpl sampling: %w", err)
	}
	return nil
}

// ReadRepresentative maps the configured slot back to the CPU. A failed map
// surfaces as gfx.ErrMapFailed.
func (s *VPLSamplingStage) ReadRepresentative(dev gfx.Device) (Viewpoint, error) {
	slot := uint64(s.cfg.RepresentativeSlot)
	raw, err := dev.ReadBuffer(s.vpls, slot*core.VPLSampleSize, core.VPLSampleSize)
	if err != nil {
		return Viewpoint{}, fmt.Errorf("vpl slot %d: %w", slot, err)
	}
	v := core.UnmarshalVPLSample(raw)
	return Viewpoint{Position: v.Position, Normal: v.Normal, Valid: v.Valid}, nil
}

// ReadAll maps every VPL back to the CPU.
func (s *VPLSamplingStage) ReadAll(dev gfx.Device) ([]core.VPLSample, error) {
	n := s.cfg.SampleCount()
	raw, err := dev.ReadBuffer(s.vpls, 0, uint64(n)*core.VPLSampleSize)
	if err != nil {
		return nil, fmt.Errorf("vpls: %w", err)
	}
	out := make([]core.VPLSample, n)
	for i := range out {
		out[i] = core.UnmarshalVPLSample(raw[i*core.VPLSampleSize:])
	}
	return out, nil
}

func (s *VPLSamplingStage) Buffer() gfx.Buffer {
	return s.vpls
}

func (s *VPLSamplingStage) Release() {
	release(s.directions, s.vpls)
	s.directions, s.vpls = nil, nil
}
