package app

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/olekukonko/tablewriter"
)

// Profiler accumulates scoped CPU timings and counters across frames.
type Profiler struct {
	Scopes     map[string]time.Duration
	Totals     map[string]time.Duration
	Samples    map[string]int
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		Totals:     make(map[string]time.Duration),
		Samples:    make(map[string]int),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
	}
}

func (p *Profiler) track(name string) {
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	p.track(name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Record(name, time.Since(start))
		delete(p.StartTimes, name)
	}
}

// Record adds a timing measured elsewhere.
func (p *Profiler) Record(name string, d time.Duration) {
	p.track(name)
	p.Scopes[name] = d
	p.Totals[name] += d
	p.Samples[name]++
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// RecordFrame folds pipeline stage timings and counters into the profiler.
func (p *Profiler) RecordFrame(stats gi.FrameStats) {
	for _, st := range stats.Stages {
		p.Record(st.State.String(), st.Duration)
	}
	p.Record("Frame", stats.Total)
	p.SetCount("reserved", int(stats.Reserved))
	p.SetCount("overflow", int(stats.Overflow))
	if stats.Replanned {
		p.Counts["replans"]++
	}
}

func (p *Profiler) Reset() {
	// Keep Order, reset times
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d.Microseconds())/1000.0)
}

// GetStatsString renders timings and counters as tables.
func (p *Profiler) GetStatsString() string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Scope", "Last", "Mean", "Samples"})
	for _, name := range p.Order {
		mean := time.Duration(0)
		if n := p.Samples[name]; n > 0 {
			mean = p.Totals[name] / time.Duration(n)
		}
		table.Append([]string{name, ms(p.Scopes[name]), ms(mean), fmt.Sprintf("%d", p.Samples[name])})
	}
	table.Render()

	if len(p.Counts) > 0 {
		keys := make([]string, 0, len(p.Counts))
		for k := range p.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		counters := tablewriter.NewWriter(&buf)
		counters.SetAutoFormatHeaders(false)
		counters.SetAlignment(tablewriter.ALIGN_LEFT)
		counters.SetHeader([]string{"Counter", "Value"})
		for _, k := range keys {
			counters.Append([]string{k, fmt.Sprintf("%d", p.Counts[k])})
		}
		counters.Render()
	}
	return buf.String()
}
