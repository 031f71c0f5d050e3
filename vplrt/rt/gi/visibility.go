package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
)

const (
	visibilityNear   = 0.01
	visibilityOffset = 0.01
)

// VPLVisibilityStage renders a distance capture from every VPL, one texture
// layer per sample. The resolve pass uses them as shadow maps.
type VPLVisibilityStage struct {
	cfg     Config
	program gfx.Program

	captures  gfx.Texture
	depth     gfx.Texture
	cameraBuf gfx.Buffer
	cameras   []core.Camera
}

func NewVPLVisibilityStage(cfg Config) *VPLVisibilityStage {
	return &VPLVisibilityStage{cfg: cfg}
}

func (s *VPLVisibilityStage) Init(dev gfx.Device) error {
	prog, err := dev.LoadProgram(core.ProgramVPLVisibility)
	if err != nil {
		return fmt.Errorf("vpl visibility: %w", err)
	}
	s.program = prog

	n := uint32(s.cfg.SampleCount())
	res := uint32(s.cfg.VisibilityResolution)
	if s.captures, err = createLayers(dev, core.BindVisibility, res, n, gfx.FormatRGBA32Float); err != nil {
		return fmt.Errorf("vpl visibility: %w", err)
	}
	if s.depth, err = createLayers(dev, "visibility_depth", res, n, gfx.FormatDepth32Float); err != nil {
		return fmt.Errorf("vpl visibility: %w", err)
	}
	if s.cameraBuf, err = createBuffer(dev, core.BindVisibilityCameras, uint64(n)*core.CameraRecordSize, gfx.BufferStorage, false); err != nil {
		return fmt.Errorf("vpl visibility: %w", err)
	}
	s.cameras = make([]core.Camera, n)
	return nil
}

// VisibilityCamera poses the capture camera for one VPL: just off the
// surface, looking along its normal.
func VisibilityCamera(v core.VPLSample, fov, far float32) core.Camera {
	n := v.Normal
	if n.Len() < 1e-6 {
		n = core.CubeFaces[0]
	}
	n = n.Normalize()
	eye := v.Position.Add(n.Mul(visibilityOffset))
	return core.NewPerspectiveCamera(eye, n, fov, visibilityNear, far)
}

// Run renders one capture per VPL. Layers are cleared to w = 0, which the
// resolve pass treats as unoccluded.
func (s *VPLVisibilityStage) Run(dev gfx.Device, sc *scene.Manager, vpls []core.VPLSample, light core.PointLight) error {
	if len(vpls) != len(s.cameras) {
		return fmt.Errorf("vpl visibility: %d vpls for %d layers", len(vpls), len(s.cameras))
	}

	far := float32(1)
	if b := sc.Bounds(); !b.IsEmpty() {
		far += 2 * b.Size().Len()
	}

	restore := sc.SwapPrograms(s.program)
	defer restore()

	res := uint32(s.cfg.VisibilityResolution)
	records := make([]core.CameraRecord, len(vpls))
	for i, v := range vpls {
		cam := VisibilityCamera(v, s.cfg.VisibilityFOV, far)
		s.cameras[i] = cam
		records[i] = cam.Record()

		pass := &gfx.RenderPass{
			Label:       fmt.Sprintf("vpl visibility %d", i),
			Width:       res,
			Height:      res,
			Color:       []gfx.Attachment{{Texture: s.captures, Layer: uint32(i)}},
			Depth:       &gfx.Attachment{Texture: s.depth, Layer: uint32(i)},
			Clear:       true,
			DepthTest:   true,
			ColorWrites: true,
			Params: core.PassParams{
				ViewProj:     cam.ViewProj(),
				Eye:          cam.Position,
				LightPos:     light.Position,
				LightRadiant: light.Radiant(),
				SampleIndex:  uint32(i),
			}.Marshal(),
		}
		if err := sc.RenderAll(dev, pass, sc.Cull(cam.ViewProj())); err != nil {
			return fmt.Errorf("vpl visibility %d: %w", i, err)
		}
	}

	if err := dev.WriteBuffer(s.cameraBuf, 0, core.MarshalCameras(records)); err != nil {
		return fmt.Errorf("vpl visibility: cameras: %w", err)
	}
	return nil
}

func (s *VPLVisibilityStage) Captures() gfx.Texture {
	return s.captures
}

func (s *VPLVisibilityStage) CameraBuffer() gfx.Buffer {
	return s.cameraBuf
}

func (s *VPLVisibilityStage) Cameras() []core.Camera {
	return s.cameras
}

func (s *VPLVisibilityStage) Release() {
	release(s.captures, s.depth, s.cameraBuf)
	s.captures, s.depth, s.cameraBuf = nil, nil, nil
}
