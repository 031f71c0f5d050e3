package gi

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/gekko3d/vplgi/log"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
	"github.com/gekko3d/vplgi/vplrt/rt/scene"
	"github.com/gekko3d/vplgi/vplrt/rt/soft"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFrameRequiresInit(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Release()

	p := NewPipeline(dev, scene.NewManager(), testConfig(), nil)
	_, err := p.RenderFrame(testLight())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = p.Snapshot()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Release()

	cfg := testConfig()
	cfg.OverdrawFactor = 0
	p := NewPipeline(dev, scene.NewManager(), cfg, nil)
	assert.ErrorIs(t, p.Init(), ErrInvalidConfig)
}

func TestRenderFrame(t *testing.T) {
	p := newRoomPipeline(t, testConfig())
	assert.Equal(t, StateIdle, p.State())

	stats, err := p.RenderFrame(testLight())
	require.NoError(t, err)
	assert.Equal(t, StateReady, p.State())
	assert.True(t, stats.Replanned)
	assert.True(t, stats.RepresentativeOK)
	assert.Zero(t, stats.Overflow)
	assert.Positive(t, stats.Reserved)

	require.Len(t, stats.Stages, 5)
	for i, st := range stats.Stages {
		assert.Equal(t, FrameState(i+1), st.State)
	}

	snap, err := p.Snapshot()
	require.NoError(t, err)
	require.NoError(t, snap.CheckInvariants())
	assert.Equal(t, stats.Reserved, uint32(len(snap.Records)))

	bounds := unitRoom()
	grown := core.NewAABB(bounds.Min.Sub(onesVec(1e-3)), bounds.Max.Add(onesVec(1e-3)))
	require.Len(t, snap.VPLs, 20)
	for i, v := range snap.VPLs {
		assert.True(t, v.Valid, "vpl %d", i)
		assert.True(t, v.Finite(), "vpl %d", i)
		assert.True(t, grown.Contains(v.Position), "vpl %d at %v", i, v.Position)
	}
	assert.Equal(t, snap.VPLs, p.VPLs())

	rep, ok := p.Representative()
	require.True(t, ok)
	assert.Equal(t, snap.VPLs[0].Position, rep.Position)
	assert.Equal(t, snap.VPLs[0].Normal, rep.Normal)

	for i, rec := range snap.Records {
		require.Equal(t, float32(1), rec.Radiance[3], "record %d", i)
	}

	// A second frame with unchanged bounds reuses the cameras.
	stats, err = p.RenderFrame(testLight())
	require.NoError(t, err)
	assert.False(t, stats.Replanned)
	assert.Equal(t, uint64(2), stats.Frame)
}

func TestCameraBufferMatchesPlanner(t *testing.T) {
	p := newRoomPipeline(t, testConfig())
	_, err := p.RenderFrame(testLight())
	require.NoError(t, err)

	raw, err := p.dev.ReadBuffer(p.CameraBuffer(), 0, uint64(p.cfg.SampleCount())*core.CameraRecordSize)
	require.NoError(t, err)
	for i := 0; i < p.cfg.SampleCount(); i++ {
		cam, ok := p.RayBundleCamera(i)
		require.True(t, ok)
		rec := core.UnmarshalCameraRecord(raw[i*core.CameraRecordSize:])
		assert.Equal(t, cam.Record(), rec, "camera %d", i)
	}
}

func TestRepresentativeReadbackFailureIsAbsorbed(t *testing.T) {
	var buf bytes.Buffer
	log.SetSink(&buf)
	defer log.SetSink(os.Stderr)

	dev := soft.NewDevice()
	defer dev.Release()
	prog, err := dev.LoadProgram(core.ProgramForward)
	require.NoError(t, err)
	sc := scene.NewManager()
	_, err = sc.AddAll(dev, scene.Room(unitRoom(), prog))
	require.NoError(t, err)

	p := NewPipeline(dev, sc, testConfig(), log.New("gi-readback"))
	require.NoError(t, p.Init())
	defer p.Release()

	dev.FailNextMaps(1)
	stats, err := p.RenderFrame(testLight())
	require.NoError(t, err)
	assert.False(t, stats.RepresentativeOK)
	assert.Equal(t, StateReady, p.State())
	assert.Contains(t, buf.String(), "representative readback skipped")

	stats, err = p.RenderFrame(testLight())
	require.NoError(t, err)
	assert.True(t, stats.RepresentativeOK)
}

func TestEmptySceneFrame(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Release()

	p := NewPipeline(dev, scene.NewManager(), testConfig(), nil)
	require.NoError(t, p.Init())
	defer p.Release()

	_, err := p.RenderFrame(testLight())
	assert.ErrorIs(t, err, ErrEmptyScene)
	assert.Equal(t, StateIdle, p.State())

	raw, err := dev.ReadBuffer(p.Heads(), 0, uint64(p.cfg.HeadCount())*4)
	require.NoError(t, err)
	for i := 0; i < p.cfg.HeadCount(); i++ {
		require.Equal(t, core.Sentinel, binary.LittleEndian.Uint32(raw[i*4:]))
	}
}

func TestStageOrder(t *testing.T) {
	p := &Pipeline{}
	assert.ErrorIs(t, p.advance(StateVPLSampling), ErrStageOrder)
	require.NoError(t, p.advance(StateRSMBuilding))
	assert.ErrorIs(t, p.advance(StatePPLLBuilding), ErrStageOrder)
	for s := StateVPLSampling; s <= StateReady; s++ {
		require.NoError(t, p.advance(s))
	}
	require.NoError(t, p.advance(StateRSMBuilding))
	assert.Equal(t, "RSMBuilding", p.State().String())
}

// Record indices depend on scheduling; list contents do not.
func TestFramesAreDeterministicAcrossWorkers(t *testing.T) {
	frame := func(workers int) *Snapshot {
		p := newRoomPipeline(t, testConfig(), soft.WithWorkers(workers))
		_, err := p.RenderFrame(testLight())
		require.NoError(t, err)
		snap, err := p.Snapshot()
		require.NoError(t, err)
		return snap
	}
	a, b := frame(1), frame(4)

	assert.Equal(t, a.VPLs, b.VPLs)
	assert.Equal(t, a.Reserved, b.Reserved)
	for s := 0; s < a.SampleCount; s++ {
		for y := 0; y < a.Resolution; y++ {
			for x := 0; x < a.Resolution; x++ {
				fa, err := a.Fragments(s, x, y)
				require.NoError(t, err)
				fb, err := b.Fragments(s, x, y)
				require.NoError(t, err)
				require.Len(t, fb, len(fa), "sample %d pixel (%d,%d)", s, x, y)
				for i := range fa {
					fa[i].Next, fb[i].Next = 0, 0
				}
				require.Equal(t, fa, fb, "sample %d pixel (%d,%d)", s, x, y)
			}
		}
	}
}

func onesVec(v float32) mgl32.Vec3 {
	return mgl32.Vec3{v, v, v}
}

func TestListIndicesDecrease(t *testing.T) {
	for _, workers := range []int{1, 8} {
		p := newRoomPipeline(t, testConfig(), soft.WithWorkers(workers))
		_, err := p.RenderFrame(testLight())
		require.NoError(t, err)
		snap, err := p.Snapshot()
		require.NoError(t, err)
		require.NoError(t, snap.CheckInvariants(), "workers %d", workers)

		links := 0
		for s := 0; s < snap.SampleCount; s++ {
			for y := 0; y < snap.Resolution; y++ {
				for x := 0; x < snap.Resolution; x++ {
					idx, err := snap.WalkList(s, x, y)
					require.NoError(t, err)
					for i := 1; i < len(idx); i++ {
						require.Less(t, idx[i], idx[i-1], "workers %d sample %d pixel (%d,%d)", workers, s, x, y)
						links++
					}
				}
			}
		}
		assert.Greater(t, links, 0, "workers %d", workers)
	}
}

func TestCheckInvariantsRejectsIncreasingLink(t *testing.T) {
	s := &Snapshot{
		Resolution:  1,
		SampleCount: 1,
		Capacity:    4,
		Reserved:    2,
		Heads:       []uint32{0},
		Records: []core.FragmentRecord{
			{Next: 1},
			{Next: core.Sentinel},
		},
		VPLs: make([]core.VPLSample, 1),
	}
	assert.ErrorIs(t, s.CheckInvariants(), ErrListOrder)
}

func TestInitAllocationFailureReleasesEverything(t *testing.T) {
	dev := soft.NewDevice(soft.WithMemoryLimit(64 << 20))
	defer dev.Release()

	// 1024² pixels × 20 samples of heads alone exceed the budget.
	cfg := testConfig()
	cfg.Resolution = 1024
	require.NoError(t, cfg.Validate())

	p := NewPipeline(dev, scene.NewManager(), cfg, nil)
	err := p.Init()
	assert.ErrorIs(t, err, gfx.ErrAllocation)
	assert.Zero(t, dev.Allocated())
	assert.Nil(t, p.Heads())
	assert.Nil(t, p.VisibilityCaptures())

	_, err = p.RenderFrame(testLight())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStageTimingsAreLoggedAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log.SetSink(&buf)
	defer log.SetSink(os.Stderr)

	logger := log.New("gi-stages")
	logger.SetDebug(true)
	p := newRoomPipeline(t, testConfig())
	p.logger = logger

	stats, err := p.RenderFrame(testLight())
	require.NoError(t, err)
	out := buf.String()
	for _, st := range stats.Stages {
		assert.Contains(t, out, "frame 1: "+st.State.String()+" took")
	}
	assert.Len(t, stats.Stages, 5)
}
