package core

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
)

// Param block sizes in bytes. Each matches a WGSL uniform struct.
const (
	PassParamsSize    = 128
	DrawParamsSize    = 160
	ComputeParamsSize = 64
)

// Flags shared by pass and compute params.
const (
	FlagBoundsCheck uint32 = 1 << iota
	FlagFlipFace
)

// PassParams is bound once per render pass.
//
//	struct PassParams {
//	  view_proj: mat4x4<f32>,
//	  eye: vec4<f32>,
//	  light_pos: vec4<f32>,
//	  light_radiant: vec4<f32>,
//	  sample_index: u32, resolution: u32, capacity: u32, flags: u32,
//	}
type PassParams struct {
	ViewProj     mgl32.Mat4
	Eye          mgl32.Vec3
	LightPos     mgl32.Vec3
	LightRadiant mgl32.Vec3
	SampleIndex  uint32
	Resolution   uint32
	Capacity     uint32
	Flags        uint32
}

func (p PassParams) Marshal() []byte {
	buf := make([]byte, PassParamsSize)
	putMat4(buf[0:], p.ViewProj)
	putVec4(buf[64:], [4]float32{p.Eye[0], p.Eye[1], p.Eye[2], 1})
	putVec4(buf[80:], [4]float32{p.LightPos[0], p.LightPos[1], p.LightPos[2], 1})
	putVec4(buf[96:], [4]float32{p.LightRadiant[0], p.LightRadiant[1], p.LightRadiant[2], 0})
	binary.LittleEndian.PutUint32(buf[112:], p.SampleIndex)
	binary.LittleEndian.PutUint32(buf[116:], p.Resolution)
	binary.LittleEndian.PutUint32(buf[120:], p.Capacity)
	binary.LittleEndian.PutUint32(buf[124:], p.Flags)
	return buf
}

func UnmarshalPassParams(buf []byte) PassParams {
	eye := getVec4(buf[64:])
	light := getVec4(buf[80:])
	rad := getVec4(buf[96:])
	return PassParams{
		ViewProj:     getMat4(buf[0:]),
		Eye:          mgl32.Vec3{eye[0], eye[1], eye[2]},
		LightPos:     mgl32.Vec3{light[0], light[1], light[2]},
		LightRadiant: mgl32.Vec3{rad[0], rad[1], rad[2]},
		SampleIndex:  binary.LittleEndian.Uint32(buf[112:]),
		Resolution:   binary.LittleEndian.Uint32(buf[116:]),
		Capacity:     binary.LittleEndian.Uint32(buf[120:]),
		Flags:        binary.LittleEndian.Uint32(buf[124:]),
	}
}

// DrawParams is bound per model.
//
//	struct DrawParams { model: mat4x4<f32>, normal_matrix: mat4x4<f32>, albedo: vec4<f32>, material: vec4<f32> }
//
// material.x is roughness.
type DrawParams struct {
	Model        mgl32.Mat4
	NormalMatrix mgl32.Mat4
	Albedo       mgl32.Vec4
	Roughness    float32
}

func (p DrawParams) Marshal() []byte {
	buf := make([]byte, DrawParamsSize)
	putMat4(buf[0:], p.Model)
	putMat4(buf[64:], p.NormalMatrix)
	putVec4(buf[128:], p.Albedo)
	putVec4(buf[144:], [4]float32{p.Roughness, 0, 0, 0})
	return buf
}

func UnmarshalDrawParams(buf []byte) DrawParams {
	mat := getVec4(buf[144:])
	return DrawParams{
		Model:        getMat4(buf[0:]),
		NormalMatrix: getMat4(buf[64:]),
		Albedo:       getVec4(buf[128:]),
		Roughness:    mat[0],
	}
}

// ComputeParams is bound by the sampling and resolve kernels.
//
//	struct ComputeParams {
//	  sample_count: u32, resolution: u32, sample_index: u32, capacity: u32,
//	  rsm_resolution: u32, visibility_resolution: u32, flags: u32, search_radius: u32,
//	  light_pos: vec4<f32>,
//	  light_radiant: vec4<f32>,
//	}
type ComputeParams struct {
	SampleCount          uint32
	Resolution           uint32
	SampleIndex          uint32
	Capacity             uint32
	RSMResolution        uint32
	VisibilityResolution uint32
	Flags                uint32
	SearchRadius         uint32
	LightPos             mgl32.Vec3
	LightRadiant         mgl32.Vec3
}

func (p ComputeParams) Marshal() []byte {
	buf := make([]byte, ComputeParamsSize)
	words := []uint32{
		p.SampleCount, p.Resolution, p.SampleIndex, p.Capacity,
		p.RSMResolution, p.VisibilityResolution, p.Flags, p.SearchRadius,
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	putVec4(buf[32:], [4]float32{p.LightPos[0], p.LightPos[1], p.LightPos[2], 1})
	putVec4(buf[48:], [4]float32{p.LightRadiant[0], p.LightRadiant[1], p.LightRadiant[2], 0})
	return buf
}

func UnmarshalComputeParams(buf []byte) ComputeParams {
	w := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[i*4:]) }
	light := getVec4(buf[32:])
	rad := getVec4(buf[48:])
	return ComputeParams{
		SampleCount:          w(0),
		Resolution:           w(1),
		SampleIndex:          w(2),
		Capacity:             w(3),
		RSMResolution:        w(4),
		VisibilityResolution: w(5),
		Flags:                w(6),
		SearchRadius:         w(7),
		LightPos:             mgl32.Vec3{light[0], light[1], light[2]},
		LightRadiant:         mgl32.Vec3{rad[0], rad[1], rad[2]},
	}
}
