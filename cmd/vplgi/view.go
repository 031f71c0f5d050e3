package main

import (
	"errors"
	"fmt"

	"github.com/gekko3d/vplgi"
	"github.com/gekko3d/vplgi/vplrt/rt/app"
	"github.com/gekko3d/vplgi/vplrt/rt/debug"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli"
)

const lightStep float32 = 0.05

// viewState is what the key callbacks steer.
type viewState struct {
	view  int
	index int
	move  mgl32.Vec3
}

// ViewFrames renders every frame and shows the selected debug view.
func ViewFrames(ctx *cli.Context) error {
	setupLogging(ctx)

	initial, err := debug.ParseView(ctx.String("view"))
	if err != nil {
		return err
	}
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(ctx.Int("width"), ctx.Int("height"), "vplgi", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	viewer := app.NewViewer(window, logger)
	if err := viewer.Init(); err != nil {
		return err
	}
	defer viewer.Release()

	vs := &viewState{}
	for i, v := range debug.Views {
		if v == initial {
			vs.view = i
		}
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		viewer.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyTab:
			vs.view = (vs.view + 1) % len(debug.Views)
			vs.index = 0
		case glfw.KeyRight:
			vs.index++
		case glfw.KeyLeft:
			vs.index--
		case glfw.KeyW:
			vs.move[2] -= lightStep
		case glfw.KeyS:
			vs.move[2] += lightStep
		case glfw.KeyA:
			vs.move[0] -= lightStep
		case glfw.KeyD:
			vs.move[0] += lightStep
		case glfw.KeyQ:
			vs.move[1] -= lightStep
		case glfw.KeyE:
			vs.move[1] += lightStep
		}
	})

	a.UseSystem(vplgi.System(func(a *vplgi.App, sc *vplgi.SceneState) {
		glfw.PollEvents()
		if window.ShouldClose() {
			a.Stop()
		}
		sc.Light.Position = sc.Light.Position.Add(vs.move)
		vs.move = mgl32.Vec3{}
	}).InStage(vplgi.PreUpdate))

	a.UseSystem(vplgi.System(func(st *vplgi.GIState, sc *vplgi.SceneState) error {
		view := debug.Views[vs.view]
		n := debug.Count(st.Pipeline.Config(), view)
		vs.index = ((vs.index % n) + n) % n

		var snap *gi.Snapshot
		if view == debug.ViewOccupancy || view == debug.ViewRadiance {
			s, err := st.Pipeline.Snapshot()
			if err != nil {
				return err
			}
			snap = s
		}
		img, err := debug.Render(st.Pipeline, snap, view, vs.index)
		if errors.Is(err, debug.ErrNoRepresentative) {
			// Keep showing the previous image until a readback succeeds.
			viewer.Render()
			return nil
		}
		if err != nil {
			return err
		}
		window.SetTitle(fmt.Sprintf("vplgi - %s %d - light %s - %.0f fps", view, vs.index, lightString(sc.Light), viewer.FPS))
		if err := viewer.Upload(img); err != nil {
			return err
		}
		viewer.Profiler.RecordFrame(st.LastStats)
		viewer.Render()
		return nil
	}).InStage(vplgi.PostRender))

	err = a.Run(0)
	logger.Infof("viewer closed\n%s", viewer.Profiler.GetStatsString())
	return err
}
