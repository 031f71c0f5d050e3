package soft

import (
	"math"

	"github.com/gekko3d/vplgi/vplrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

var fragmentKernels = map[string]fragmentKernel{
	core.ProgramForward:       forwardFragment,
	core.ProgramRSMCapture:    rsmCaptureFragment,
	core.ProgramVPLVisibility: visibilityFragment,
	core.ProgramPPLLCapture:   ppllCaptureFragment,
}

var computeKernels = map[string]computeKernel{
	core.ProgramVPLSample:       vplSampleKernel,
	core.ProgramRadianceResolve: radianceResolveKernel,
}

func lightFlux(pass *core.PassParams, pos, n mgl32.Vec3, albedo mgl32.Vec4) mgl32.Vec3 {
	toLight := pass.LightPos.Sub(pos)
	d2 := max(toLight.Dot(toLight), 1e-8)
	cos := max(n.Dot(toLight.Mul(1/float32(math.Sqrt(float64(d2))))), 0)
	s := cos / (1 + d2)
	return mgl32.Vec3{
		pass.LightRadiant[0] * albedo[0] * s,
		pass.LightRadiant[1] * albedo[1] * s,
		pass.LightRadiant[2] * albedo[2] * s,
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

func forwardFragment(rc *rasterContext, f *fragment, out *targets) bool {
	n := safeNormalize(f.Normal)
	direct := lightFlux(&rc.pass, f.WorldPos, n, f.Draw.Albedo)
	a := f.Draw.Albedo
	out[0] = [4]float32{direct[0] + a[0]*0.05, direct[1] + a[1]*0.05, direct[2] + a[2]*0.05, 1}
	return true
}

func rsmCaptureFragment(rc *rasterContext, f *fragment, out *targets) bool {
	n := safeNormalize(f.Normal)
	if n.Dot(rc.pass.LightPos.Sub(f.WorldPos)) < 0 {
		n = n.Mul(-1)
	}
	flux := lightFlux(&rc.pass, f.WorldPos, n, f.Draw.Albedo)
	out[core.RSMTargetPosition] = [4]float32{f.WorldPos[0], f.WorldPos[1], f.WorldPos[2], 1}
	out[core.RSMTargetNormal] = [4]float32{n[0], n[1], n[2], 0}
	out[core.RSMTargetFlux] = [4]float32{flux[0], flux[1], flux[2], 1}
	out[core.RSMTargetDiffuse] = f.Draw.Albedo
	out[core.RSMTargetRoughness] = [4]float32{f.Draw.Roughness, 0, 0, 1}
	return true
}

func visibilityFragment(rc *rasterContext, f *fragment, out *targets) bool {
	dist := f.WorldPos.Sub(rc.pass.Eye).Len()
	n := safeNormalize(f.Normal)
	flux := lightFlux(&rc.pass, f.WorldPos, n, f.Draw.Albedo)
	lum := flux.Dot(mgl32.Vec3{0.2126, 0.7152, 0.0722})
	out[0] = [4]float32{dist, lum, 0, 1}
	return true
}

// ppllCaptureFragment prepends one record to the pixel's list: reserve a slot
// with an atomic add, swap it into the head, link to the previous head.
func ppllCaptureFragment(rc *rasterContext, f *fragment, _ *targets) bool {
	res := int(rc.pass.Resolution)
	if f.X >= res || f.Y >= res {
		return false
	}
	heads := rc.buffers[core.BindHeads]
	records := rc.buffers[core.BindRecords]
	counter := rc.buffers[core.BindCounter]

	k := counter.AtomicAdd(core.CounterWordNext, 1)
	capacity := min(rc.pass.Capacity, uint32(len(records.words)/core.RecordWords))
	if k >= capacity {
		if rc.pass.Flags&core.FlagBoundsCheck != 0 {
			counter.AtomicAdd(core.CounterWordOverflow, 1)
		}
		return true
	}

	headIndex := int(rc.pass.SampleIndex)*res*res + f.Y*res + f.X
	if headIndex >= len(heads.words) {
		return false
	}
	prev := heads.AtomicExchange(headIndex, k)

	n := safeNormalize(f.Normal)
	if n.Dot(rc.pass.Eye.Sub(f.WorldPos)) < 0 {
		n = n.Mul(-1)
	}
	base := int(k) * core.RecordWords
	records.SetVec4(base+core.RecordWordAlbedo, f.Draw.Albedo)
	records.SetVec4(base+core.RecordWordNormal, [4]float32{n[0], n[1], n[2], 0})
	records.SetVec4(base+core.RecordWordRadiance, [4]float32{})
	records.SetFloat(base+core.RecordWordDepth, f.Depth)
	records.SetFloat(base+core.RecordWordRoughness, f.Draw.Roughness)
	records.words[base+core.RecordWordNext] = prev
	records.words[base+core.RecordWordNext+1] = 0
	return true
}

func texelOf(ndc mgl32.Vec2, res uint32) (int, int) {
	r := float32(res)
	x := clampF((ndc[0]*0.5+0.5)*r, 0, r-1)
	y := clampF((0.5-ndc[1]*0.5)*r, 0, r-1)
	return int(x), int(y)
}

func clampF(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

func readCamera(b *Buffer, i int) core.CameraRecord {
	var r core.CameraRecord
	base := i * core.CameraRecordFloats
	for j := range r {
		r[j] = b.Float(base + j)
	}
	return r
}

func vplSampleKernel(c *computeContext, gid [3]uint32) {
	i := gid[0]
	if i >= c.params.SampleCount {
		return
	}
	dirs := c.buffers[core.BindDirections]
	d := dirs.Vec4(int(i) * 4)
	dir := mgl32.Vec3{d[0], d[1], d[2]}
	face := core.CubeFace(dir)
	cam := readCamera(c.buffers[core.BindRSMCameras], face)

	clip := cam.ViewProj().Mul4x1(c.params.LightPos.Add(dir).Vec4(1))
	ndc := mgl32.Vec2{clip[0] / clip[3], clip[1] / clip[3]}
	cx, cy := texelOf(ndc, c.params.RSMResolution)

	position := c.textures[core.BindRSMPosition]
	res := int(c.params.RSMResolution)
	covered := func(x, y int) bool {
		if x < 0 || y < 0 || x >= res || y >= res {
			return false
		}
		return position.Load(x, y, face)[3] > 0.5
	}

	found := false
	hx, hy := cx, cy
	radius := int(c.params.SearchRadius)
	for r := 0; r <= radius && !found; r++ {
		for dy := -r; dy <= r && !found; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(absInt(dx), absInt(dy)) != r {
					continue
				}
				if covered(cx+dx, cy+dy) {
					hx, hy = cx+dx, cy+dy
					found = true
					break
				}
			}
		}
	}

	var v core.VPLSample
	if found {
		pos := position.Load(hx, hy, face)
		nrm := c.textures[core.BindRSMNormal].Load(hx, hy, face)
		rough := c.textures[core.BindRSMRoughness].Load(hx, hy, face)
		flux := c.textures[core.BindRSMFlux].Load(hx, hy, face)
		v = core.VPLSample{
			Position:  mgl32.Vec3{pos[0], pos[1], pos[2]},
			Valid:     true,
			Normal:    safeNormalize(mgl32.Vec3{nrm[0], nrm[1], nrm[2]}),
			Roughness: rough[0],
			Diffuse:   c.textures[core.BindRSMDiffuse].Load(hx, hy, face),
			Intensity: mgl32.Vec3{flux[0], flux[1], flux[2]},
		}
	} else {
		v = core.VPLSample{
			Position:  c.params.LightPos,
			Normal:    dir.Mul(-1),
			Roughness: 1,
		}
	}
	c.buffers[core.BindVPLs].write(uint64(i)*core.VPLSampleSize, v.Marshal())
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func visibleFrom(c *computeContext, j int, p mgl32.Vec3) bool {
	cam := readCamera(c.buffers[core.BindVisibilityCameras], j)
	clip := cam.ViewProj().Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return false
	}
	ndc := mgl32.Vec2{clip[0] / clip[3], clip[1] / clip[3]}
	if abs32(ndc[0]) > 1 || abs32(ndc[1]) > 1 {
		return false
	}
	x, y := texelOf(ndc, c.params.VisibilityResolution)
	stored := c.textures[core.BindVisibility].Load(x, y, j)
	if stored[3] < 0.5 {
		return true
	}
	d := p.Sub(cam.Origin()).Len()
	return d <= stored[0]+0.02+0.02*d
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func radianceResolveKernel(c *computeContext, gid [3]uint32) {
	res := c.params.Resolution
	if gid[0] >= res || gid[1] >= res {
		return
	}
	s := c.params.SampleIndex
	heads := c.buffers[core.BindHeads]
	records := c.buffers[core.BindRecords]
	vplBuf := c.buffers[core.BindVPLs]

	invBuf := c.buffers[core.BindRayInverse]
	var inv mgl32.Mat4
	for i := range inv {
		inv[i] = invBuf.Float(int(s)*16 + i)
	}
	ndcX := (float32(gid[0])+0.5)/float32(res)*2 - 1
	ndcY := 1 - (float32(gid[1])+0.5)/float32(res)*2

	count := int(c.params.SampleCount)
	vpls := make([]core.VPLSample, count)
	raw := vplBuf.read(0, uint64(count)*core.VPLSampleSize)
	for j := range vpls {
		vpls[j] = core.UnmarshalVPLSample(raw[j*core.VPLSampleSize:])
	}

	k := heads.AtomicLoad(int(s*res*res + gid[1]*res + gid[0]))
	capacity := c.params.Capacity
	for hops := uint32(0); k != core.Sentinel && k < capacity && hops < capacity; hops++ {
		base := int(k) * core.RecordWords
		depth := records.Float(base + core.RecordWordDepth)
		wh := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, depth*2 - 1, 1})
		p := wh.Vec3().Mul(1 / wh[3])
		nv := records.Vec4(base + core.RecordWordNormal)
		n := mgl32.Vec3{nv[0], nv[1], nv[2]}
		albedo := records.Vec4(base + core.RecordWordAlbedo)

		var sum mgl32.Vec3
		for j, v := range vpls {
			if !v.Valid {
				continue
			}
			l := v.Position.Sub(p)
			d2 := max(l.Dot(l), 1e-6)
			ld := l.Mul(1 / float32(math.Sqrt(float64(d2))))
			cosF := max(n.Dot(ld), 0)
			cosV := max(v.Normal.Dot(ld.Mul(-1)), 0)
			if cosF <= 0 || cosV <= 0 || !visibleFrom(c, j, p) {
				continue
			}
			w := cosF * cosV / (1 + d2)
			sum = sum.Add(mgl32.Vec3{
				v.Intensity[0] * albedo[0] * w,
				v.Intensity[1] * albedo[1] * w,
				v.Intensity[2] * albedo[2] * w,
			})
		}
		sum = sum.Mul(1 / float32(max(count, 1)))
		records.SetVec4(base+core.RecordWordRadiance, [4]float32{sum[0], sum[1], sum[2], 1})

		k = records.words[base+core.RecordWordNext]
	}
}
