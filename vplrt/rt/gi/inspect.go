package gi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"
)

// Snapshot is a CPU copy of the list buffers and VPLs after a frame.
type Snapshot struct {
	Resolution  int
	SampleCount int
	Capacity    uint32
	// Reserved counts every slot reservation, rejected ones included.
	Reserved uint32
	Overflow uint32

	Heads   []uint32
	Records []core.FragmentRecord
	VPLs    []core.VPLSample
}

// Snapshot reads the current list and VPL buffers back.
func (p *Pipeline) Snapshot() (*Snapshot, error) {
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	return TakeSnapshot(p.dev, p.cfg, p.capture, p.sampling)
}

// TakeSnapshot reads capture and sampling stage buffers back.
func TakeSnapshot(dev gfx.Device, cfg Config, capture *FragmentCaptureStage, sampling *VPLSamplingStage) (*Snapshot, error) {
	reserved, overflow, err := capture.ReadCounters(dev)
	if err != nil {
		return nil, err
	}
	capacity := uint32(cfg.FragmentCapacity())

	rawHeads, err := dev.ReadBuffer(capture.Heads(), 0, uint64(cfg.HeadCount())*4)
	if err != nil {
		return nil, fmt.Errorf("heads: %w", err)
	}
	heads := make([]uint32, cfg.HeadCount())
	for i := range heads {
		heads[i] = binary.LittleEndian.Uint32(rawHeads[i*4:])
	}

	stored := min(reserved, capacity)
	var records []core.FragmentRecord
	if stored > 0 {
		raw, err := dev.ReadBuffer(capture.Records(), 0, uint64(stored)*core.FragmentRecordSize)
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		records = make([]core.FragmentRecord, stored)
		for i := range records {
			records[i] = core.UnmarshalFragmentRecord(raw[i*core.FragmentRecordSize:])
		}
	}

	vpls, err := sampling.ReadAll(dev)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Resolution:  cfg.Resolution,
		SampleCount: cfg.SampleCount(),
		Capacity:    capacity,
		Reserved:    reserved,
		Overflow:    overflow,
		Heads:       heads,
		Records:     records,
		VPLs:        vpls,
	}, nil
}

// Head returns the list head for one pixel of one sample.
func (s *Snapshot) Head(sample, x, y int) uint32 {
	return s.Heads[sample*s.Resolution*s.Resolution+y*s.Resolution+x]
}

// WalkList returns the record indices of one pixel's list, most recently
// appended first.
func (s *Snapshot) WalkList(sample, x, y int) ([]uint32, error) {
	if sample < 0 || sample >= s.SampleCount || x < 0 || y < 0 || x >= s.Resolution || y >= s.Resolution {
		return nil, fmt.Errorf("%w: sample %d pixel (%d,%d)", ErrListOutOfRange, sample, x, y)
	}
	var out []uint32
	k := s.Head(sample, x, y)
	for k != core.Sentinel {
		if int(k) >= len(s.Records) {
			return out, fmt.Errorf("%w: %d of %d stored", ErrListOutOfRange, k, len(s.Records))
		}
		if uint32(len(out)) >= s.Capacity {
			return out, fmt.Errorf("%w: sample %d pixel (%d,%d)", ErrListCycle, sample, x, y)
		}
		out = append(out, k)
		k = s.Records[k].Next
	}
	return out, nil
}

// Fragments returns the records of one pixel's list.
func (s *Snapshot) Fragments(sample, x, y int) ([]core.FragmentRecord, error) {
	idx, err := s.WalkList(sample, x, y)
	out := make([]core.FragmentRecord, len(idx))
	for i, k := range idx {
		out[i] = s.Records[k]
	}
	return out, err
}

// ListLengths returns the list length of every pixel of one sample, row major.
func (s *Snapshot) ListLengths(sample int) ([]int, error) {
	out := make([]int, s.Resolution*s.Resolution)
	for y := 0; y < s.Resolution; y++ {
		for x := 0; x < s.Resolution; x++ {
			idx, err := s.WalkList(sample, x, y)
			if err != nil {
				return nil, err
			}
			out[y*s.Resolution+x] = len(idx)
		}
	}
	return out, nil
}

// CheckInvariants verifies that there are N VPLs, every head is the
// sentinel or a stored index, and every list terminates. Indices along a
// list must strictly decrease and every stored record belongs to exactly
// one list.
func (s *Snapshot) CheckInvariants() error {
	var errs []error
	if len(s.VPLs) != s.SampleCount {
		errs = append(errs, fmt.Errorf("%d vpls for %d samples", len(s.VPLs), s.SampleCount))
	}
	if len(s.Heads) != s.SampleCount*s.Resolution*s.Resolution {
		errs = append(errs, fmt.Errorf("%d heads for %d samples at %d²", len(s.Heads), s.SampleCount, s.Resolution))
		return errors.Join(errs...)
	}
	if s.Overflow > 0 && (s.Reserved < s.Capacity || s.Overflow != s.Reserved-s.Capacity) {
		errs = append(errs, fmt.Errorf("overflow %d with %d reserved of %d", s.Overflow, s.Reserved, s.Capacity))
	}

	seen := make([]bool, len(s.Records))
	for sample := 0; sample < s.SampleCount; sample++ {
		for y := 0; y < s.Resolution; y++ {
			for x := 0; x < s.Resolution; x++ {
				idx, err := s.WalkList(sample, x, y)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				for i, k := range idx {
					if i > 0 && k >= idx[i-1] {
						errs = append(errs, fmt.Errorf("%w: sample %d pixel (%d,%d) links %d to %d",
							ErrListOrder, sample, x, y, idx[i-1], k))
					}
					if seen[k] {
						errs = append(errs, fmt.Errorf("record %d linked twice", k))
					}
					seen[k] = true
				}
			}
		}
	}
	for k, ok := range seen {
		if !ok {
			errs = append(errs, fmt.Errorf("record %d is not linked", k))
		}
	}
	return errors.Join(errs...)
}

// SameCaptures reports whether every stored record matches o in all fields
// written at capture time.
func (s *Snapshot) SameCaptures(o *Snapshot) bool {
	if len(s.Records) != len(o.Records) {
		return false
	}
	for i := range s.Records {
		if !s.Records[i].SameCapture(o.Records[i]) {
			return false
		}
	}
	return true
}
