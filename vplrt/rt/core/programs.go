package core

import "github.com/go-gl/mathgl/mgl32"

// Shading programs known to every device backend.
const (
	ProgramForward         = "forward"
	ProgramRSMCapture      = "rsm_capture"
	ProgramVPLSample       = "vpl_sample"
	ProgramVPLVisibility   = "vpl_visibility"
	ProgramPPLLCapture     = "ppll_capture"
	ProgramRadianceResolve = "radiance_resolve"
)

// Named resource slots shared by programs.
const (
	BindRSMPosition       = "rsm_position"
	BindRSMNormal         = "rsm_normal"
	BindRSMFlux           = "rsm_flux"
	BindRSMDiffuse        = "rsm_diffuse"
	BindRSMRoughness      = "rsm_roughness"
	BindRSMCameras        = "rsm_cameras"
	BindDirections        = "directions"
	BindVPLs              = "vpls"
	BindHeads             = "heads"
	BindRecords           = "records"
	BindCounter           = "counter"
	BindVisibility        = "visibility"
	BindVisibilityCameras = "visibility_cameras"
	BindRayInverse        = "ray_inverse"
)

// RSM colour targets in attachment order.
const (
	RSMTargetPosition = iota
	RSMTargetNormal
	RSMTargetFlux
	RSMTargetDiffuse
	RSMTargetRoughness
	RSMTargetCount
)

// CubeFaces lists +X, -X, +Y, -Y, +Z, -Z.
var CubeFaces = [6]mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// CubeFace returns the face whose axis dominates dir.
func CubeFace(dir mgl32.Vec3) int {
	ax, ay, az := abs32(dir[0]), abs32(dir[1]), abs32(dir[2])
	switch {
	case ax >= ay && ax >= az:
		if dir[0] >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if dir[1] >= 0 {
			return 2
		}
		return 3
	default:
		if dir[2] >= 0 {
			return 4
		}
		return 5
	}
}
