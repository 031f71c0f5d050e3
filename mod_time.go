package vplgi

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type Time struct {
	Time time.Time
	Dt   time.Duration
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App) {
	app.addResources(&Time{
		Time: time.Now(),
		Dt:   0,
	})
	app.UseSystem(System(timeSystem).InStage(PreUpdate))
}

func timeSystem(timeResource *Time) {
	now := time.Now()

	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}

// OrbitModule circles the scene light around the vertical axis through
// the scene centre. Requires TimeModule.
type OrbitModule struct {
	// Speed in radians per second.
	Speed float32
}

func (mod OrbitModule) Install(app *App) {
	if _, ok := Resource[Time](app); !ok {
		panic("OrbitModule requires TimeModule")
	}
	app.UseSystem(System(func(t *Time, sc *SceneState) {
		orbitLight(sc, mod.Speed*float32(t.Dt.Seconds()))
	}).InStage(Update))
}

func orbitLight(sc *SceneState, angle float32) {
	if angle == 0 {
		return
	}
	b := sc.Manager.Bounds()
	if b.IsEmpty() {
		return
	}
	centre := b.Center()
	rel := sc.Light.Position.Sub(centre)
	rot := mgl32.HomogRotate3DY(angle)
	sc.Light.Position = centre.Add(rot.Mul4x1(rel.Vec4(1)).Vec3())
}
