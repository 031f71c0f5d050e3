package gi

import (
	"errors"
	"fmt"
	"time"

	"github.com/gekko3d/vplgi/log"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
)

// FrameState is the position of a frame in the stage sequence.
type FrameState int

const (
	StateIdle FrameState = iota
	StateRSMBuilding
	StateVPLSampling
	StateVPLVisibilityBuilding
	StatePPLLBuilding
	StateRadianceResolving
	StateReady
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRSMBuilding:
		return "RSMBuilding"
	case StateVPLSampling:
		return "VPLSampling"
	case StateVPLVisibilityBuilding:
		return "VPLVisibilityBuilding"
	case StatePPLLBuilding:
		return "PPLLBuilding"
	case StateRadianceResolving:
		return "RadianceResolving"
	case StateReady:
		return "Ready"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

type StageTiming struct {
	State    FrameState
	Duration time.Duration
}

// FrameStats describes one completed RenderFrame call.
type FrameStats struct {
	Frame     uint64
	Replanned bool
	Stages    []StageTiming
	Total     time.Duration

	// Reserved counts slot reservations, including rejected ones.
	Reserved uint32
	Overflow uint32

	Representative   Viewpoint
	RepresentativeOK bool
}

// Pipeline drives the stages in order once per frame. It is not safe for
// concurrent use; callers render from a single goroutine.
type Pipeline struct {
	dev    gfx.Device
	sc     *scene.Manager
	cfg    Config
	logger log.Logger

	planner    *Planner
	rsm        *ReflectiveShadowMapStage
	sampling   *VPLSamplingStage
	visibility *VPLVisibilityStage
	capture    *FragmentCaptureStage
	resolve    *RadianceResolveStage

	state       FrameState
	initialized bool
	frame       uint64

	vpls             []core.VPLSample
	representative   Viewpoint
	representativeOK bool
}

func NewPipeline(dev gfx.Device, sc *scene.Manager, cfg Config, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		dev:        dev,
		sc:         sc,
		cfg:        cfg,
		logger:     logger,
		planner:    NewPlanner(cfg),
		rsm:        NewReflectiveShadowMapStage(cfg),
		sampling:   NewVPLSamplingStage(cfg),
		visibility: NewVPLVisibilityStage(cfg),
		capture:    NewFragmentCaptureStage(cfg),
		resolve:    NewRadianceResolveStage(cfg),
	}
}

type stage interface {
	Init(dev gfx.Device) error
	Release()
}

func (p *Pipeline) stages() []stage {
	return []stage{p.rsm, p.sampling, p.visibility, p.capture, p.resolve}
}

// Init validates the config and allocates every stage's programs and
// buffers. Any failure releases what was allocated and is fatal.
func (p *Pipeline) Init() error {
	if p.initialized {
		return nil
	}
	if err := p.cfg.Validate(); err != nil {
		p.logger.Errorf("config rejected: %v", err)
		return err
	}
	for _, s := range p.stages() {
		if err := s.Init(p.dev); err != nil {
			p.logger.Errorf("init on %s failed: %v", p.dev.Name(), err)
			p.releaseStages()
			return fmt.Errorf("gi init: %w", err)
		}
	}
	if err := p.capture.Reset(p.dev); err != nil {
		p.releaseStages()
		return fmt.Errorf("gi init: %w", err)
	}

	p.initialized = true
	p.state = StateIdle
	p.logger.Infof("initialized on %s: %d samples at %dx%d, %d record slots",
		p.dev.Name(), p.cfg.SampleCount(), p.cfg.Resolution, p.cfg.Resolution, p.cfg.FragmentCapacity())
	return nil
}

func (p *Pipeline) advance(next FrameState) error {
	ok := next == p.state+1
	if next == StateRSMBuilding {
		ok = p.state == StateIdle || p.state == StateReady
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", ErrStageOrder, next, p.state)
	}
	p.state = next
	return nil
}

// RenderFrame runs every stage for light. On error the frame is abandoned
// and the pipeline returns to Idle; the next call starts over.
func (p *Pipeline) RenderFrame(light core.PointLight) (FrameStats, error) {
	if !p.initialized {
		return FrameStats{}, ErrNotInitialized
	}
	p.frame++
	stats := FrameStats{Frame: p.frame}
	start := time.Now()

	if err := p.renderFrame(light, &stats); err != nil {
		p.state = StateIdle
		if !errors.Is(err, ErrEmptyScene) {
			p.logger.Errorf("frame %d abandoned: %v", p.frame, err)
		}
		return stats, err
	}
	stats.Total = time.Since(start)
	p.logger.Debugf("frame %d ready in %v, %d fragments, %d overflowed",
		p.frame, stats.Total, stats.Reserved-stats.Overflow, stats.Overflow)
	return stats, nil
}

func (p *Pipeline) renderFrame(light core.PointLight, stats *FrameStats) error {
	replanned, err := p.planner.Update(p.sc.Bounds())
	if err != nil {
		// Consumers still see empty lists for this frame.
		if rerr := p.capture.Reset(p.dev); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	stats.Replanned = replanned
	if replanned {
		b := p.planner.Bounds()
		p.logger.Debugf("refitted %d ray bundle cameras to %v..%v", len(p.planner.Cameras()), b.Min, b.Max)
	}

	run := func(state FrameState, fn func() error) error {
		if err := p.advance(state); err != nil {
			return err
		}
		t := time.Now()
		if err := fn(); err != nil {
			return err
		}
		d := time.Since(t)
		p.logger.Debugf("frame %d: %s took %v", p.frame, state, d)
		stats.Stages = append(stats.Stages, StageTiming{State: state, Duration: d})
		return nil
	}

	if err := run(StateRSMBuilding, func() error {
		return p.rsm.Run(p.dev, p.sc, light)
	}); err != nil {
		return err
	}

	if err := run(StateVPLSampling, func() error {
		if err := p.sampling.Run(p.dev, p.rsm, p.planner); err != nil {
			return err
		}
		vp, err := p.sampling.ReadRepresentative(p.dev)
		if err != nil {
			if !errors.Is(err, gfx.ErrMapFailed) {
				return err
			}
			// Debug readback only; the previous viewpoint is kept.
			p.logger.Warnf("representative readback skipped: %v", err)
			p.representativeOK = false
			return nil
		}
		p.representative, p.representativeOK = vp, true
		return nil
	}); err != nil {
		return err
	}
	stats.Representative, stats.RepresentativeOK = p.representative, p.representativeOK

	if err := run(StateVPLVisibilityBuilding, func() error {
		vpls, err := p.sampling.ReadAll(p.dev)
		if err != nil {
			return err
		}
		p.vpls = vpls
		return p.visibility.Run(p.dev, p.sc, vpls, light)
	}); err != nil {
		return err
	}

	if err := run(StatePPLLBuilding, func() error {
		if err := p.capture.Reset(p.dev); err != nil {
			return err
		}
		return p.capture.Run(p.dev, p.sc, p.planner)
	}); err != nil {
		return err
	}

	if err := run(StateRadianceResolving, func() error {
		return p.resolve.Run(p.dev, p.capture, p.sampling, p.visibility)
	}); err != nil {
		return err
	}

	if reserved, overflow, err := p.capture.ReadCounters(p.dev); err != nil {
		p.logger.Warnf("fragment counter readback skipped: %v", err)
	} else {
		stats.Reserved, stats.Overflow = reserved, overflow
		if overflow > 0 {
			p.logger.Warnf("frame %d: %d fragments dropped, capacity %d", p.frame, overflow, p.cfg.FragmentCapacity())
		}
	}

	return p.advance(StateReady)
}

func (p *Pipeline) State() FrameState {
	return p.state
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Planner() *Planner {
	return p.planner
}

func (p *Pipeline) Device() gfx.Device {
	return p.dev
}

func (p *Pipeline) Scene() *scene.Manager {
	return p.sc
}

// Heads is the per pixel list head buffer, Resolution² entries per sample.
func (p *Pipeline) Heads() gfx.Buffer {
	return p.capture.Heads()
}

func (p *Pipeline) Records() gfx.Buffer {
	return p.capture.Records()
}

func (p *Pipeline) Counter() gfx.Buffer {
	return p.capture.Counter()
}

// VPLSamples is the device buffer of N VPL records.
func (p *Pipeline) VPLSamples() gfx.Buffer {
	return p.sampling.Buffer()
}

// VPLs returns the VPLs read back during the last frame.
func (p *Pipeline) VPLs() []core.VPLSample {
	return p.vpls
}

func (p *Pipeline) VisibilityCaptures() gfx.Texture {
	return p.visibility.Captures()
}

// CameraBuffer holds the ray bundle camera records in sample order.
func (p *Pipeline) CameraBuffer() gfx.Buffer {
	return p.capture.CameraBuffer()
}

func (p *Pipeline) RayBundleCamera(i int) (core.RayBundleCamera, bool) {
	return p.planner.Camera(i)
}

// Representative returns the last successfully read VPL viewpoint.
func (p *Pipeline) Representative() (Viewpoint, bool) {
	return p.representative, p.representativeOK
}

func (p *Pipeline) RSM() *ReflectiveShadowMapStage {
	return p.rsm
}

func (p *Pipeline) releaseStages() {
	for _, s := range p.stages() {
		s.Release()
	}
}

// Release frees every stage resource. The pipeline must be initialized
// again before rendering.
func (p *Pipeline) Release() {
	p.releaseStages()
	p.initialized = false
	p.state = StateIdle
	p.vpls = nil
}
