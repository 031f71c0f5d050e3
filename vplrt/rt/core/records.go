package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sentinel marks an empty per-pixel list and terminates every chain.
const Sentinel uint32 = 0xFFFFFFFF

// FragmentRecordSize is the byte stride of one record.
const FragmentRecordSize = 64

// Word offsets inside a FragmentRecord.
const (
	RecordWordAlbedo    = 0
	RecordWordNormal    = 4
	RecordWordRadiance  = 8
	RecordWordDepth     = 12
	RecordWordRoughness = 13
	RecordWordNext      = 14
	RecordWords         = FragmentRecordSize / 4
)

// FragmentRecord matches the WGSL layout
// struct Fragment { albedo: vec4, normal: vec4, radiance: vec4, depth: f32, roughness: f32, next: u32, _pad: u32 }
type FragmentRecord struct {
	Albedo    [4]float32
	Normal    [4]float32
	Radiance  [4]float32
	Depth     float32
	Roughness float32
	Next      uint32
}

func (r FragmentRecord) Marshal() []byte {
	buf := make([]byte, FragmentRecordSize)
	putVec4(buf[0:], r.Albedo)
	putVec4(buf[16:], r.Normal)
	putVec4(buf[32:], r.Radiance)
	putF32(buf[48:], r.Depth)
	putF32(buf[52:], r.Roughness)
	binary.LittleEndian.PutUint32(buf[56:], r.Next)
	return buf
}

func UnmarshalFragmentRecord(buf []byte) FragmentRecord {
	return FragmentRecord{
		Albedo:    getVec4(buf[0:]),
		Normal:    getVec4(buf[16:]),
		Radiance:  getVec4(buf[32:]),
		Depth:     getF32(buf[48:]),
		Roughness: getF32(buf[52:]),
		Next:      binary.LittleEndian.Uint32(buf[56:]),
	}
}

// SameCapture reports whether every field written at capture time matches.
// Radiance is ignored. Comparison is bitwise so NaN payloads count as equal.
func (r FragmentRecord) SameCapture(o FragmentRecord) bool {
	for i := 0; i < 4; i++ {
		if math.Float32bits(r.Albedo[i]) != math.Float32bits(o.Albedo[i]) ||
			math.Float32bits(r.Normal[i]) != math.Float32bits(o.Normal[i]) {
			return false
		}
	}
	return math.Float32bits(r.Depth) == math.Float32bits(o.Depth) &&
		math.Float32bits(r.Roughness) == math.Float32bits(o.Roughness) &&
		r.Next == o.Next
}

// VPLSampleSize is the byte stride of one VPL.
const VPLSampleSize = 64

// VPLSample matches the WGSL layout
// struct VPL { position: vec4, normal: vec4, diffuse: vec4, intensity: vec4 }
// position.w is 1 for a VPL recovered from the capture and 0 for a fallback;
// normal.w carries roughness.
type VPLSample struct {
	Position  mgl32.Vec3
	Valid     bool
	Normal    mgl32.Vec3
	Roughness float32
	Diffuse   mgl32.Vec4
	Intensity mgl32.Vec3
}

func (v VPLSample) Marshal() []byte {
	buf := make([]byte, VPLSampleSize)
	valid := float32(0)
	if v.Valid {
		valid = 1
	}
	putVec4(buf[0:], [4]float32{v.Position[0], v.Position[1], v.Position[2], valid})
	putVec4(buf[16:], [4]float32{v.Normal[0], v.Normal[1], v.Normal[2], v.Roughness})
	putVec4(buf[32:], v.Diffuse)
	putVec4(buf[48:], [4]float32{v.Intensity[0], v.Intensity[1], v.Intensity[2], 0})
	return buf
}

func UnmarshalVPLSample(buf []byte) VPLSample {
	p := getVec4(buf[0:])
	n := getVec4(buf[16:])
	i := getVec4(buf[48:])
	return VPLSample{
		Position:  mgl32.Vec3{p[0], p[1], p[2]},
		Valid:     p[3] > 0.5,
		Normal:    mgl32.Vec3{n[0], n[1], n[2]},
		Roughness: n[3],
		Diffuse:   getVec4(buf[32:]),
		Intensity: mgl32.Vec3{i[0], i[1], i[2]},
	}
}

// Finite reports whether position and normal are free of NaN and Inf.
func (v VPLSample) Finite() bool {
	for i := 0; i < 3; i++ {
		for _, f := range []float32{v.Position[i], v.Normal[i]} {
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				return false
			}
		}
	}
	return true
}

// Counter buffer words: next free record slot, then rejected appends.
const (
	CounterWordNext     = 0
	CounterWordOverflow = 1
	CounterSize         = 16
)

// MarshalDirections packs directions as vec4 with w = 0.
func MarshalDirections(dirs []mgl32.Vec3) []byte {
	buf := make([]byte, 16*len(dirs))
	for i, d := range dirs {
		putVec4(buf[i*16:], [4]float32{d[0], d[1], d[2], 0})
	}
	return buf
}

// MarshalMat4s packs column major matrices back to back.
func MarshalMat4s(ms []mgl32.Mat4) []byte {
	buf := make([]byte, 64*len(ms))
	for i, m := range ms {
		putMat4(buf[i*64:], m)
	}
	return buf
}

func putF32(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func getF32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func putVec4(buf []byte, v [4]float32) {
	for i := 0; i < 4; i++ {
		putF32(buf[i*4:], v[i])
	}
}

func getVec4(buf []byte) [4]float32 {
	var v [4]float32
	for i := 0; i < 4; i++ {
		v[i] = getF32(buf[i*4:])
	}
	return v
}

func putMat4(buf []byte, m mgl32.Mat4) {
	for i := 0; i < 16; i++ {
		putF32(buf[i*4:], m[i])
	}
}

func getMat4(buf []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := 0; i < 16; i++ {
		m[i] = getF32(buf[i*4:])
	}
	return m
}
