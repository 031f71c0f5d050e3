package app

import (
	"testing"
	"time"

	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/stretchr/testify/assert"
)

func TestProfilerKeepsScopeOrder(t *testing.T) {
	p := NewProfiler()
	p.BeginScope("rsm")
	p.EndScope("rsm")
	p.BeginScope("capture")
	p.EndScope("capture")
	p.BeginScope("rsm")
	p.EndScope("rsm")

	assert.Equal(t, []string{"rsm", "capture"}, p.Order)
	assert.Equal(t, 2, p.Samples["rsm"])
	assert.Equal(t, 1, p.Samples["capture"])
}

func TestEndScopeWithoutBegin(t *testing.T) {
	p := NewProfiler()
	p.EndScope("never")
	assert.Empty(t, p.Order)
	assert.Zero(t, p.Samples["never"])
}

func TestRecordFrame(t *testing.T) {
	p := NewProfiler()
	stats := gi.FrameStats{
		Replanned: true,
		Stages: []gi.StageTiming{
			{State: gi.StateRSMBuilding, Duration: 2 * time.Millisecond},
			{State: gi.StateVPLSampling, Duration: time.Millisecond},
		},
		Total:    4 * time.Millisecond,
		Reserved: 120,
		Overflow: 3,
	}
	p.RecordFrame(stats)
	stats.Replanned = false
	p.RecordFrame(stats)

	assert.Equal(t, []string{"RSMBuilding", "VPLSampling", "Frame"}, p.Order)
	assert.Equal(t, 4*time.Millisecond, p.Totals["RSMBuilding"])
	assert.Equal(t, 120, p.Counts["reserved"])
	assert.Equal(t, 3, p.Counts["overflow"])
	assert.Equal(t, 1, p.Counts["replans"])

	out := p.GetStatsString()
	assert.Contains(t, out, "RSMBuilding")
	assert.Contains(t, out, "2.00 ms")
	assert.Contains(t, out, "overflow")
}

func TestReset(t *testing.T) {
	p := NewProfiler()
	p.Record("x", time.Second)
	p.Reset()
	assert.Zero(t, p.Scopes["x"])
	assert.Equal(t, time.Second, p.Totals["x"])
	assert.Equal(t, []string{"x"}, p.Order)
}
