package shaders

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/gogpu/naga"
)

//go:embed common.wgsl
var CommonWGSL string

//go:embed raster_common.wgsl
var RasterCommonWGSL string

//go:embed forward.wgsl
var ForwardWGSL string

//go:embed rsm_capture.wgsl
var RSMCaptureWGSL string

//go:embed vpl_sample.wgsl
var VPLSampleWGSL string

//go:embed vpl_visibility.wgsl
var VPLVisibilityWGSL string

//go:embed ppll_capture.wgsl
var PPLLCaptureWGSL string

// BlitWGSL draws a sampled 2D texture over the whole target. It is not a
// pipeline program and has no ProgramInfo.
//
//go:embed blit.wgsl
var BlitWGSL string

//go:embed radiance_resolve.wgsl
var RadianceResolveWGSL string

var (
	ErrUnknownProgram = errors.New("shaders: unknown program")
	ErrCompile        = errors.New("shaders: compile failed")
)

type SlotType int

const (
	SlotUniform SlotType = iota
	SlotStorageRead
	SlotStorageReadWrite
	SlotTexture2DArray
)

// Slot is one named resource in the program's resource group.
type Slot struct {
	Name    string
	Binding uint32
	Type    SlotType
}

// ProgramInfo describes how a program is laid out for the device backends.
//
// Raster programs: group 0 pass params, group 1 draw params, group 2 Slots.
// Compute programs: group 0 compute params, group 1 Slots.
type ProgramInfo struct {
	Name          string
	Kind          gfx.ProgramKind
	Body          string
	WorkgroupSize [3]uint32
	ColorTargets  int
	Depth         bool
	Slots         []Slot
}

// ResourceGroup is the bind group index holding Slots.
func (p ProgramInfo) ResourceGroup() uint32 {
	if p.Kind == gfx.ProgramCompute {
		return 1
	}
	return 2
}

// Source returns the complete WGSL module.
func (p ProgramInfo) Source() string {
	var sb strings.Builder
	sb.WriteString(CommonWGSL)
	sb.WriteString("\n")
	if p.Kind == gfx.ProgramRaster {
		sb.WriteString(RasterCommonWGSL)
		sb.WriteString("\n")
	}
	sb.WriteString(p.Body)
	return sb.String()
}

var programs = map[string]ProgramInfo{
	core.ProgramForward: {
		Name:         core.ProgramForward,
		Kind:         gfx.ProgramRaster,
		Body:         ForwardWGSL,
		ColorTargets: 1,
		Depth:        true,
	},
	core.ProgramRSMCapture: {
		Name:         core.ProgramRSMCapture,
		Kind:         gfx.ProgramRaster,
		Body:         RSMCaptureWGSL,
		ColorTargets: core.RSMTargetCount,
		Depth:        true,
	},
	core.ProgramVPLVisibility: {
		Name:         core.ProgramVPLVisibility,
		Kind:         gfx.ProgramRaster,
		Body:         VPLVisibilityWGSL,
		ColorTargets: 1,
		Depth:        true,
	},
	core.ProgramPPLLCapture: {
		Name: core.ProgramPPLLCapture,
		Kind: gfx.ProgramRaster,
		Body: PPLLCaptureWGSL,
		// Depth is a dummy attachment that only sets the raster size.
		Depth: true,
		Slots: []Slot{
			{Name: core.BindHeads, Binding: 0, Type: SlotStorageReadWrite},
			{Name: core.BindRecords, Binding: 1, Type: SlotStorageReadWrite},
			{Name: core.BindCounter, Binding: 2, Type: SlotStorageReadWrite},
		},
	},
	core.ProgramVPLSample: {
		Name:          core.ProgramVPLSample,
		Kind:          gfx.ProgramCompute,
		Body:          VPLSampleWGSL,
		WorkgroupSize: [3]uint32{64, 1, 1},
		Slots: []Slot{
			{Name: core.BindRSMPosition, Binding: 0, Type: SlotTexture2DArray},
			{Name: core.BindRSMNormal, Binding: 1, Type: SlotTexture2DArray},
			{Name: core.BindRSMFlux, Binding: 2, Type: SlotTexture2DArray},
			{Name: core.BindRSMDiffuse, Binding: 3, Type: SlotTexture2DArray},
			{Name: core.BindRSMRoughness, Binding: 4, Type: SlotTexture2DArray},
			{Name: core.BindRSMCameras, Binding: 5, Type: SlotStorageRead},
			{Name: core.BindDirections, Binding: 6, Type: SlotStorageRead},
			{Name: core.BindVPLs, Binding: 7, Type: SlotStorageReadWrite},
		},
	},
	core.ProgramRadianceResolve: {
		Name:          core.ProgramRadianceResolve,
		Kind:          gfx.ProgramCompute,
		Body:          RadianceResolveWGSL,
		WorkgroupSize: [3]uint32{8, 8, 1},
		Slots: []Slot{
			{Name: core.BindHeads, Binding: 0, Type: SlotStorageRead},
			{Name: core.BindRecords, Binding: 1, Type: SlotStorageReadWrite},
			{Name: core.BindVPLs, Binding: 2, Type: SlotStorageRead},
			{Name: core.BindVisibility, Binding: 3, Type: SlotTexture2DArray},
			{Name: core.BindVisibilityCameras, Binding: 4, Type: SlotStorageRead},
			{Name: core.BindRayInverse, Binding: 5, Type: SlotStorageRead},
		},
	},
}

// Lookup returns the layout for a named program.
func Lookup(name string) (ProgramInfo, error) {
	p, ok := programs[name]
	if !ok {
		return ProgramInfo{}, fmt.Errorf("%w: %q", ErrUnknownProgram, name)
	}
	return p, nil
}

// Names lists every known program in a stable order.
func Names() []string {
	return []string{
		core.ProgramForward,
		core.ProgramRSMCapture,
		core.ProgramVPLSample,
		core.ProgramVPLVisibility,
		core.ProgramPPLLCapture,
		core.ProgramRadianceResolve,
	}
}

// Validate compiles a program's WGSL to SPIR-V and returns the words.
func Validate(name string) ([]uint32, error) {
	info, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return compile(name, info.Source())
}

func compile(name, source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCompile, name, err)
	}
	if len(spirvBytes) < 4 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: truncated SPIR-V (%d bytes)", ErrCompile, name, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
