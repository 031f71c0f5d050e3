package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
)

// TechniqueName identifies a global illumination technique.
type TechniqueName string

const (
	TechniqueVPL   TechniqueName = "vpl"
	TechniqueVoxel TechniqueName = "voxel"
)

func ParseTechnique(s string) (TechniqueName, error) {
	switch TechniqueName(s) {
	case TechniqueVPL, TechniqueVoxel:
		return TechniqueName(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrTechniqueUnavailable, s)
}

// Technique is one way of producing indirect lighting for a frame. Exactly
// one is selected per application.
type Technique interface {
	Name() TechniqueName
	Init() error
	Render(light core.PointLight) error
	Release()
}

// VPLTechnique runs the VPL and per pixel list pipeline.
type VPLTechnique struct {
	Pipeline *Pipeline
	// LastStats is the result of the last successful Render.
	LastStats FrameStats
}

func NewVPLTechnique(p *Pipeline) *VPLTechnique {
	return &VPLTechnique{Pipeline: p}
}

func (t *VPLTechnique) Name() TechniqueName { return TechniqueVPL }

func (t *VPLTechnique) Init() error {
	if t.Pipeline == nil {
		return fmt.Errorf("%w: no pipeline", ErrTechniqueUnavailable)
	}
	return t.Pipeline.Init()
}

func (t *VPLTechnique) Render(light core.PointLight) error {
	if t.Pipeline == nil {
		return fmt.Errorf("%w: no pipeline", ErrTechniqueUnavailable)
	}
	stats, err := t.Pipeline.RenderFrame(light)
	if err != nil {
		return err
	}
	t.LastStats = stats
	return nil
}

func (t *VPLTechnique) Release() {
	if t.Pipeline != nil {
		t.Pipeline.Release()
	}
}

// VoxelRenderer is an external voxel based GI implementation.
type VoxelRenderer interface {
	InitVoxelGI() error
	RenderVoxelGI(light core.PointLight) error
	ReleaseVoxelGI()
}

// VoxelTechnique adapts a VoxelRenderer. Without one every call fails with
// ErrTechniqueUnavailable.
type VoxelTechnique struct {
	Renderer VoxelRenderer
}

func (t *VoxelTechnique) Name() TechniqueName { return TechniqueVoxel }

func (t *VoxelTechnique) Init() error {
	if t.Renderer == nil {
		return fmt.Errorf("%w: no voxel renderer", ErrTechniqueUnavailable)
	}
	return t.Renderer.InitVoxelGI()
}

func (t *VoxelTechnique) Render(light core.PointLight) error {
	if t.Renderer == nil {
		return fmt.Errorf("%w: no voxel renderer", ErrTechniqueUnavailable)
	}
	return t.Renderer.RenderVoxelGI(light)
}

func (t *VoxelTechnique) Release() {
	if t.Renderer != nil {
		t.Renderer.ReleaseVoxelGI()
	}
}
