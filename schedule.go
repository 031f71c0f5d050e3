package vplgi

import (
	"fmt"
	"slices"
)

type Stage struct {
	Name string
	// Once stages run a single time, before or after the frame loop.
	Once bool
}

var (
	Startup    = Stage{Name: "Startup", Once: true}
	PreUpdate  = Stage{Name: "PreUpdate"}
	Update     = Stage{Name: "Update"}
	Render     = Stage{Name: "Render"}
	PostRender = Stage{Name: "PostRender"}
	Shutdown   = Stage{Name: "Shutdown", Once: true}
)

func defaultStages() []Stage {
	return []Stage{Startup, PreUpdate, Update, Render, PostRender, Shutdown}
}

type systemScheduleBuilder struct {
	inStage Stage
	system  systemFn
}

func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  system,
		inStage: Update,
	}
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  sched.system,
		inStage: s,
	}
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageBefore,
		target:   s,
	}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageAfter,
		target:   s,
	}
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	stageIdx := -1
	for i, s := range app.stages {
		if s.Name == where.target.Name {
			stageIdx = i
			break
		}
	}
	if stageIdx == -1 {
		panic(fmt.Sprintf("Stage %v not found", where.target.Name))
	}

	insertAt := stageIdx
	if where.position == stageAfter {
		insertAt = stageIdx + 1
	}
	app.stages = slices.Insert(app.stages, insertAt, stage)
	return app
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	if !slices.ContainsFunc(app.stages, func(s Stage) bool { return s.Name == system.inStage.Name }) {
		panic(fmt.Sprintf("Stage %v not found", system.inStage.Name))
	}
	validateSystem(system.system)
	app.systems[system.inStage.Name] = append(app.systems[system.inStage.Name], system.system)
	return app
}
