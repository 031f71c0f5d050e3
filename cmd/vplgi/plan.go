package main

import (
	"bytes"
	"fmt"

	"github.com/gekko3d/vplgi"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// PlanCameras fits the ray bundle cameras to a scene without rendering.
func PlanCameras(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	sm, err := sceneModule(ctx)
	if err != nil {
		return err
	}

	a := vplgi.NewAppBuilder().
		UseModule(vplgi.DeviceModule{Backend: vplgi.BackendSoft, Workers: 1}, sm).
		Build()
	a.UseSystem(vplgi.System(func(app *vplgi.App, sc *vplgi.SceneState) error {
		defer app.Stop()
		planner := gi.NewPlanner(cfg)
		if _, err := planner.Update(sc.Manager.Bounds()); err != nil {
			return err
		}
		displayPlan(planner)
		return nil
	}).InStage(vplgi.Startup))
	return a.Run(0)
}

func displayPlan(p *gi.Planner) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Direction", "Origin", "Half extent", "Near", "Far"})
	for i, dir := range p.Directions() {
		cam, _ := p.Camera(i)
		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmtVec(dir),
			fmtVec(cam.Position),
			fmt.Sprintf("%.3f", cam.HalfExtent),
			fmt.Sprintf("%.3f", cam.Near),
			fmt.Sprintf("%.3f", cam.Far),
		})
	}
	b := p.Bounds()
	table.SetFooter([]string{"", "bounds", fmtVec(b.Min), fmtVec(b.Max), "", ""})
	table.Render()
	fmt.Print(buf.String())
}
