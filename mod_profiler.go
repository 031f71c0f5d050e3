package vplgi

import (
	"github.com/gekko3d/vplgi/vplrt/rt/app"
)

// ProfilerModule folds every frame's stage timings into an app.Profiler
// resource and logs the table every Every frames when Every > 0.
type ProfilerModule struct {
	Every uint64
}

func (m ProfilerModule) Install(a *App) {
	profiler := app.NewProfiler()
	a.addResources(profiler)
	a.UseSystem(System(func(p *app.Profiler, st *GIState) {
		if st.Frames == 0 {
			return
		}
		p.RecordFrame(st.LastStats)
		if m.Every > 0 && st.Frames%m.Every == 0 {
			a.Logger().Infof("frame %d\n%s", st.Frames, p.GetStatsString())
		}
	}).InStage(PostRender))
}
