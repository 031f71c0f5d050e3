package main

import (
	"bytes"
	"fmt"

	"github.com/gekko3d/vplgi"
	"github.com/gekko3d/vplgi/vplrt/rt/app"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/debug"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// RenderFrames runs the pipeline headless.
func RenderFrames(ctx *cli.Context) error {
	setupLogging(ctx)

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	frames := max(ctx.Int("frames"), 1)
	a.UseModules(vplgi.ProfilerModule{})
	a.UseSystem(vplgi.System(func(st *vplgi.GIState) error {
		if st.Frames != uint64(frames) {
			return nil
		}
		return inspectFrame(st.Pipeline, ctx.String("dump"), ctx.Int("scale"))
	}).InStage(vplgi.PostRender))
	if err := a.Run(frames); err != nil {
		return err
	}

	st, _ := vplgi.Resource[vplgi.GIState](a)
	sc, _ := vplgi.Resource[vplgi.SceneState](a)
	profiler, _ := vplgi.Resource[app.Profiler](a)
	fmt.Printf("light %s, %d frames\n", lightString(sc.Light), st.Frames)
	fmt.Print(profiler.GetStatsString())

	// The device is released on shutdown, so everything below reads the
	// pipeline's CPU side copies.
	displayVPLs(st.Pipeline.VPLs())
	if vp, ok := st.Pipeline.Representative(); ok {
		fmt.Printf("representative viewpoint %s facing %s\n", fmtVec(vp.Position), fmtVec(vp.Normal))
	}
	return nil
}

func displayVPLs(vpls []core.VPLSample) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Valid", "Position", "Normal", "Intensity"})
	valid := 0
	for i, v := range vpls {
		if v.Valid {
			valid++
		}
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%t", v.Valid),
			fmtVec(v.Position),
			fmtVec(v.Normal),
			fmtVec(v.Intensity),
		})
	}
	table.SetFooter([]string{"", fmt.Sprintf("%d/%d", valid, len(vpls)), "", "", ""})
	table.Render()
	fmt.Print(buf.String())
}

// inspectFrame checks the list invariants and optionally dumps debug views.
// It runs before shutdown while the device is still open.
func inspectFrame(p *gi.Pipeline, dumpDir string, scale int) error {
	snap, err := p.Snapshot()
	if err != nil {
		return err
	}
	if err := snap.CheckInvariants(); err != nil {
		return fmt.Errorf("list invariants: %w", err)
	}
	logger.Infof("invariants hold: %d fragments stored, %d overflowed", min(snap.Reserved, snap.Capacity), snap.Overflow)
	if dumpDir == "" {
		return nil
	}
	paths, err := debug.Dump(p, dumpDir, scale)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d images to %s\n", len(paths), dumpDir)
	return nil
}
