package gi

import (
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
)

const (
	rsmFOV  = 90
	rsmNear = 0.01
)

var rsmTargetLabels = [core.RSMTargetCount]string{
	core.RSMTargetPosition:  core.BindRSMPosition,
	core.RSMTargetNormal:    core.BindRSMNormal,
	core.RSMTargetFlux:      core.BindRSMFlux,
	core.RSMTargetDiffuse:   core.BindRSMDiffuse,
	core.RSMTargetRoughness: core.BindRSMRoughness,
}

// ReflectiveShadowMapStage renders the scene from the light into a six face
// cube of position, normal, flux, diffuse and roughness targets.
type ReflectiveShadowMapStage struct {
	cfg     Config
	program gfx.Program

	targets   [core.RSMTargetCount]gfx.Texture
	depth     gfx.Texture
	cameraBuf gfx.Buffer
	cameras   [6]core.Camera
	light     core.PointLight
}

func NewReflectiveShadowMapStage(cfg Config) *ReflectiveShadowMapStage {
	return &ReflectiveShadowMapStage{cfg: cfg}
}

func (s *ReflectiveShadowMapStage) Init(dev gfx.Device) error {
	prog, err := dev.LoadProgram(core.ProgramRSMCapture)
	if err != nil {
		return fmt.Errorf("rsm: %w", err)
	}
	s.program = prog

	res := uint32(s.cfg.RSMResolution)
	for i, label := range rsmTargetLabels {
		if s.targets[i], err = createLayers(dev, label, res, 6, gfx.FormatRGBA32Float); err != nil {
			return fmt.Errorf("rsm: %w", err)
		}
	}
	if s.depth, err = createLayers(dev, "rsm_depth", res, 6, gfx.FormatDepth32Float); err != nil {
		return fmt.Errorf("rsm: %w", err)
	}
	if s.cameraBuf, err = createBuffer(dev, core.BindRSMCameras, 6*core.CameraRecordSize, gfx.BufferStorage, false); err != nil {
		return fmt.Errorf("rsm: %w", err)
	}
	return nil
}

// Run captures all six faces. Every model is drawn with the capture program
// for the duration of the call and restored afterwards.
func (s *ReflectiveShadowMapStage) Run(dev gfx.Device, sc *scene.Manager, light core.PointLight) error {
	far := float32(rsmNear + 1)
	if b := sc.Bounds(); !b.IsEmpty() {
		for _, c := range b.Corners() {
			far = max(far, c.Sub(light.Position).Len()+1)
		}
	}

	restore := sc.SwapPrograms(s.program)
	defer restore()

	records := make([]core.CameraRecord, 6)
	res := uint32(s.cfg.RSMResolution)
	for face, dir := range core.CubeFaces {
		cam := core.NewPerspectiveCamera(light.Position, dir, rsmFOV, rsmNear, far)
		s.cameras[face] = cam
		records[face] = cam.Record()

		color := make([]gfx.Attachment, core.RSMTargetCount)
		for i, t := range s.targets {
			color[i] = gfx.Attachment{Texture: t, Layer: uint32(face)}
		}
		pass := &gfx.RenderPass{
			Label:       fmt.Sprintf("rsm face %d", face),
			Width:       res,
			Height:      res,
			Color:       color,
			Depth:       &gfx.Attachment{Texture: s.depth, Layer: uint32(face)},
			Clear:       true,
			DepthTest:   true,
			ColorWrites: true,
			Params: core.PassParams{
				ViewProj:     cam.ViewProj(),
				Eye:          light.Position,
				LightPos:     light.Position,
				LightRadiant: light.Radiant(),
			}.Marshal(),
		}
		if err := sc.RenderAll(dev, pass, sc.Cull(cam.ViewProj())); err != nil {
			return fmt.Errorf("rsm face %d: %w", face, err)
		}
	}

	if err := dev.WriteBuffer(s.cameraBuf, 0, core.MarshalCameras(records)); err != nil {
		return fmt.Errorf("rsm: cameras: %w", err)
	}
	s.light = light
	return nil
}

// Target returns the texture array for one of the RSMTarget* indices.
func (s *ReflectiveShadowMapStage) Target(i int) gfx.Texture {
	return s.targets[i]
}

func (s *ReflectiveShadowMapStage) CameraBuffer() gfx.Buffer {
	return s.cameraBuf
}

func (s *ReflectiveShadowMapStage) Cameras() [6]core.Camera {
	return s.cameras
}

// Light is the light of the last completed capture.
func (s *ReflectiveShadowMapStage) Light() core.PointLight {
	return s.light
}

func (s *ReflectiveShadowMapStage) bindings() gfx.Bindings {
	b := gfx.Bindings{core.BindRSMCameras: s.cameraBuf}
	for i, label := range rsmTargetLabels {
		b[label] = s.targets[i]
	}
	return b
}

func (s *ReflectiveShadowMapStage) Release() {
	for i, t := range s.targets {
		if t != nil {
			t.Release()
			s.targets[i] = nil
		}
	}
	release(s.depth, s.cameraBuf)
	s.depth, s.cameraBuf = nil, nil
}
