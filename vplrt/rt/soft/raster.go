package soft

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/shaders"

	"github.com/go-gl/mathgl/mgl32"
)

const maxTargets = core.RSMTargetCount

type targets [maxTargets][4]float32

type fragment struct {
	X, Y     int
	Depth    float32
	WorldPos mgl32.Vec3
	Normal   mgl32.Vec3
	Draw     *core.DrawParams
}

type rasterContext struct {
	pass core.PassParams
	*bound
}

// fragmentKernel shades one fragment. Returning false discards it.
type fragmentKernel func(rc *rasterContext, f *fragment, out *targets) bool

// clipVertex is a post-transform vertex with attributes premultiplied by 1/w
// once projected.
type clipVertex struct {
	clip   mgl32.Vec4
	world  mgl32.Vec3
	normal mgl32.Vec3
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	worldW  mgl32.Vec3
	normalW mgl32.Vec3
}

type triangle struct {
	v      [3]screenVertex
	area   float32
	minX   int
	maxX   int
	minY   int
	maxY   int
	draw   *core.DrawParams
	kernel fragmentKernel
}

func (d *Device) Draw(pass *gfx.RenderPass, draws []gfx.DrawCall) error {
	if pass == nil || pass.Width == 0 || pass.Height == 0 {
		return fmt.Errorf("%w: render pass without size", gfx.ErrInvalidDescriptor)
	}
	if len(pass.Color) > maxTargets {
		return fmt.Errorf("%w: %d colour targets, at most %d", gfx.ErrInvalidDescriptor, len(pass.Color), maxTargets)
	}
	width, height := int(pass.Width), int(pass.Height)

	colors := make([]*Texture, len(pass.Color))
	for i, a := range pass.Color {
		t, err := asTexture(a.Texture)
		if err != nil {
			return err
		}
		if err := checkAttachment(t, a.Layer, pass); err != nil {
			return err
		}
		colors[i] = t
	}
	var depth *Texture
	if pass.Depth != nil {
		t, err := asTexture(pass.Depth.Texture)
		if err != nil {
			return err
		}
		if err := checkAttachment(t, pass.Depth.Layer, pass); err != nil {
			return err
		}
		depth = t
	}

	if pass.Clear {
		for i, t := range colors {
			t.clearLayer(int(pass.Color[i].Layer), pass.ClearColor)
		}
		if depth != nil {
			depth.clearLayer(int(pass.Depth.Layer), [4]float32{1, 0, 0, 0})
		}
	}

	rc := &rasterContext{bound: &bound{buffers: map[string]*Buffer{}, textures: map[string]*Texture{}}}
	if len(pass.Params) >= core.PassParamsSize {
		rc.pass = core.UnmarshalPassParams(pass.Params)
	}

	var tris []triangle
	bindingsResolved := false
	for _, dc := range draws {
		p, ok := dc.Program.(*Program)
		if !ok || p.kind != gfx.ProgramRaster {
			return fmt.Errorf("%w: draw %v is not a raster program", gfx.ErrProgramNotFound, dc.Program)
		}
		if !bindingsResolved {
			info, err := shaders.Lookup(p.name)
			if err != nil {
				return err
			}
			b, err := bindSlots(info, pass.Bindings)
			if err != nil {
				return err
			}
			rc.bound = b
			bindingsResolved = true
		}
		m, ok := dc.Mesh.(*Mesh)
		if !ok {
			return fmt.Errorf("%w: %T is not a soft mesh", gfx.ErrUnsupportedBinding, dc.Mesh)
		}
		if len(dc.Params) < core.DrawParamsSize {
			return fmt.Errorf("%w: draw params %d bytes", gfx.ErrInvalidDescriptor, len(dc.Params))
		}
		dp := core.UnmarshalDrawParams(dc.Params)
		tris = setupTriangles(tris, m.vertices, &dp, fragmentKernels[p.name], rc.pass.ViewProj, width, height, pass.CullBack)
	}
	d.Draws.Add(1)
	if len(tris) == 0 {
		return nil
	}

	// Rows are split into bands; a band owns its pixels so depth tests and
	// target writes need no locking. Within a band triangles run in order.
	bands := d.pool.Workers() * 2
	if bands > height {
		bands = height
	}
	rows := (height + bands - 1) / bands
	work := make([]func(), 0, bands)
	for y0 := 0; y0 < height; y0 += rows {
		y1 := y0 + rows
		if y1 > height {
			y1 = height
		}
		work = append(work, func() {
			var n uint64
			for i := range tris {
				n += rasterize(&tris[i], y0, y1, width, pass, rc, colors, depth)
			}
			d.Fragments.Add(n)
		})
	}
	d.pool.ExecuteAll(work)
	return nil
}

func checkAttachment(t *Texture, layer uint32, pass *gfx.RenderPass) error {
	if layer >= t.desc.Layers || t.desc.Width < pass.Width || t.desc.Height < pass.Height {
		return fmt.Errorf("%w: attachment %q layer %d smaller than pass %dx%d", gfx.ErrInvalidDescriptor, t.desc.Label, layer, pass.Width, pass.Height)
	}
	return nil
}

func setupTriangles(out []triangle, verts []gfx.Vertex, dp *core.DrawParams, kernel fragmentKernel, viewProj mgl32.Mat4, width, height int, cullBack bool) []triangle {
	for i := 0; i+2 < len(verts); i += 3 {
		var in [3]clipVertex
		for j := 0; j < 3; j++ {
			v := verts[i+j]
			world := dp.Model.Mul4x1(v.Position.Vec4(1))
			in[j] = clipVertex{
				clip:   viewProj.Mul4x1(world),
				world:  world.Vec3(),
				normal: dp.NormalMatrix.Mul4x1(v.Normal.Vec4(0)).Vec3(),
			}
		}
		poly := clipNear(in[:])
		if len(poly) < 3 {
			continue
		}
		sv := make([]screenVertex, len(poly))
		for j, cv := range poly {
			invW := 1 / cv.clip[3]
			ndc := cv.clip.Vec3().Mul(invW)
			sv[j] = screenVertex{
				x:       (ndc[0]*0.5 + 0.5) * float32(width),
				y:       (0.5 - ndc[1]*0.5) * float32(height),
				z:       ndc[2]*0.5 + 0.5,
				invW:    invW,
				worldW:  cv.world.Mul(invW),
				normalW: cv.normal.Mul(invW),
			}
		}
		for j := 1; j+1 < len(sv); j++ {
			t, ok := makeTriangle(sv[0], sv[j], sv[j+1], width, height, cullBack)
			if !ok {
				continue
			}
			t.draw = dp
			t.kernel = kernel
			out = append(out, t)
		}
	}
	return out
}

// clipNear clips against z >= -w, the near plane of -1..1 clip space.
func clipNear(in []clipVertex) []clipVertex {
	dist := func(v clipVertex) float32 { return v.clip[2] + v.clip[3] }
	out := make([]clipVertex, 0, 4)
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, clipVertex{
				clip:   a.clip.Add(b.clip.Sub(a.clip).Mul(t)),
				world:  a.world.Add(b.world.Sub(a.world).Mul(t)),
				normal: a.normal.Add(b.normal.Sub(a.normal).Mul(t)),
			})
		}
	}
	return out
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// ownsEdge breaks ties for pixels exactly on an edge so a shared edge
// belongs to one of its two triangles only.
func ownsEdge(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x < a.x)
}

func makeTriangle(v0, v1, v2 screenVertex, width, height int, cullBack bool) (triangle, bool) {
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 {
		return triangle{}, false
	}
	// Counter-clockwise in NDC is front facing; the y flip makes it negative here.
	if cullBack && area > 0 {
		return triangle{}, false
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}
	t := triangle{v: [3]screenVertex{v0, v1, v2}, area: area}
	minX, maxX := min(v0.x, v1.x, v2.x), max(v0.x, v1.x, v2.x)
	minY, maxY := min(v0.y, v1.y, v2.y), max(v0.y, v1.y, v2.y)
	t.minX = clampInt(int(minX), 0, width-1)
	t.maxX = clampInt(int(maxX)+1, 0, width-1)
	t.minY = clampInt(int(minY), 0, height-1)
	t.maxY = clampInt(int(maxY)+1, 0, height-1)
	if maxX < 0 || maxY < 0 || minX >= float32(width) || minY >= float32(height) {
		return triangle{}, false
	}
	return t, true
}

func rasterize(t *triangle, y0, y1, width int, pass *gfx.RenderPass, rc *rasterContext, colors []*Texture, depth *Texture) uint64 {
	lo, hi := max(t.minY, y0), min(t.maxY, y1-1)
	if lo > hi {
		return 0
	}
	v0, v1, v2 := t.v[0], t.v[1], t.v[2]
	own0, own1, own2 := ownsEdge(v1, v2), ownsEdge(v2, v0), ownsEdge(v0, v1)
	inv := 1 / t.area

	var n uint64
	var out targets
	f := fragment{Draw: t.draw}
	for py := lo; py <= hi; py++ {
		cy := float32(py) + 0.5
		for px := t.minX; px <= t.maxX && px < width; px++ {
			cx := float32(px) + 0.5
			w0 := edge(v1, v2, cx, cy)
			w1 := edge(v2, v0, cx, cy)
			w2 := edge(v0, v1, cx, cy)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !own0) || (w1 == 0 && !own1) || (w2 == 0 && !own2) {
				continue
			}
			b0, b1, b2 := w0*inv, w1*inv, w2*inv
			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < 0 || z > 1 {
				continue
			}
			layer := 0
			if depth != nil {
				layer = int(pass.Depth.Layer)
			}
			if pass.DepthTest && depth != nil {
				if z >= depth.Load(px, py, layer)[0] {
					continue
				}
			}

			invW := b0*v0.invW + b1*v1.invW + b2*v2.invW
			wscale := 1 / invW
			f.X, f.Y, f.Depth = px, py, z
			f.WorldPos = v0.worldW.Mul(b0).Add(v1.worldW.Mul(b1)).Add(v2.worldW.Mul(b2)).Mul(wscale)
			f.Normal = v0.normalW.Mul(b0).Add(v1.normalW.Mul(b1)).Add(v2.normalW.Mul(b2)).Mul(wscale)
			if !t.kernel(rc, &f, &out) {
				continue
			}
			n++
			if pass.DepthTest && depth != nil {
				depth.Store(px, py, layer, [4]float32{z})
			}
			if pass.ColorWrites {
				for i, c := range colors {
					c.Store(px, py, int(pass.Color[i].Layer), out[i])
				}
			}
		}
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
