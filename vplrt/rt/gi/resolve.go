package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
)

const resolveTile = 8

// RadianceResolveStage walks every captured list and writes each record's
// single bounce radiance gathered from the VPLs.
type RadianceResolveStage struct {
	cfg     Config
	program gfx.Program
}

func NewRadianceResolveStage(cfg Config) *RadianceResolveStage {
	return &RadianceResolveStage{cfg: cfg}
}

func (s *RadianceResolveStage) Init(dev gfx.Device) error {
	prog, err := dev.LoadProgram(core.ProgramRadianceResolve)
	if err != nil {
		return fmt.Errorf("radiance resolve: %w", err)
	}
	s.program = prog
	return nil
}

// Run dispatches one resolution² grid per sample. Only the radiance field of
// each record is written.
func (s *RadianceResolveStage) Run(dev gfx.Device, capture *FragmentCaptureStage, vpls *VPLSamplingStage, vis *VPLVisibilityStage) error {
	bindings := gfx.Bindings{
		core.BindHeads:             capture.Heads(),
		core.BindRecords:           capture.Records(),
		core.BindRayInverse:        capture.InverseBuffer(),
		core.BindVPLs:              vpls.Buffer(),
		core.BindVisibility:        vis.Captures(),
		core.BindVisibilityCameras: vis.CameraBuffer(),
	}
	res := uint32(s.cfg.Resolution)
	groups := gfx.GroupCount(res, resolveTile)
	for i := 0; i < s.cfg.SampleCount(); i++ {
		params := core.ComputeParams{
			SampleCount:          uint32(s.cfg.SampleCount()),
			Resolution:           res,
			SampleIndex:          uint32(i),
			Capacity:             uint32(s.cfg.FragmentCapacity()),
			VisibilityResolution: uint32(s.cfg.VisibilityResolution),
			Flags:                s.cfg.flags(),
		}
		if err := dev.Dispatch(s.program, bindings, params.Marshal(), groups, groups, 1); err != nil {
			return fmt.Errorf("radiance resolve sample %d: %w", i, err)
		}
	}
	return nil
}

func (s *RadianceResolveStage) Release() {}
