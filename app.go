package vplgi

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"slices"
)

type systemFn any

// Module installs resources and systems into an App.
type Module interface {
	Install(app *App)
}

// App owns the resources of one run and calls systems stage by stage.
// Systems are functions whose arguments are pointers to resources; they may
// return an error, which stops the run.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any

	stopping bool
	frame    uint64
}

func newApp() *App {
	return &App{
		stages:    defaultStages(),
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
	}
}

// UseModules installs modules immediately, in order.
func (app *App) UseModules(modules ...Module) *App {
	for _, module := range modules {
		module.Install(app)
		app.modules = append(app.modules, module)
	}
	return app
}

// Stop ends the frame loop after the current frame.
func (app *App) Stop() {
	app.stopping = true
}

// Frame is the number of completed frames.
func (app *App) Frame() uint64 {
	return app.frame
}

// Run calls startup systems, then frames until Stop is called or, when
// frames > 0, that many frames have run. Shutdown systems always run.
func (app *App) Run(frames int) error {
	app.stopping = false
	err := app.callStage(Startup)
	for err == nil && !app.stopping && (frames <= 0 || app.frame < uint64(frames)) {
		for _, stage := range app.stages {
			if stage.Once {
				continue
			}
			if err = app.callStage(stage); err != nil {
				break
			}
		}
		if err == nil {
			app.frame++
		}
	}
	if err != nil {
		app.Logger().Errorf("frame %d: %v", app.frame, err)
	}
	return errors.Join(err, app.callStage(Shutdown))
}

// callStage runs the systems of one stage in registration order. Shutdown
// runs in reverse so resources are released before what they depend on.
func (app *App) callStage(stage Stage) error {
	systems := app.systems[stage.Name]
	if stage.Name == Shutdown.Name {
		systems = slices.Clone(systems)
		slices.Reverse(systems)
	}
	var errs []error
	for _, system := range systems {
		if err := app.callSystem(system); err != nil {
			if stage.Name != Shutdown.Name {
				return fmt.Errorf("%s: %w", stage.Name, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type T if one is installed.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	t, ok := r.(*T)
	return t, ok
}

var (
	typeOfApp   = reflect.TypeOf(App{})
	typeOfError = reflect.TypeOf((*error)(nil)).Elem()
)

func validateSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	if systemType == nil || systemType.Kind() != reflect.Func {
		panic(fmt.Sprintf("system must be a function, got %T", system))
	}
	for i := 0; i < systemType.NumIn(); i++ {
		if systemType.In(i).Kind() != reflect.Pointer {
			panic(fmt.Sprintf("system %s: argument %d is not a pointer", systemType, i))
		}
	}
	if systemType.NumOut() > 1 || (systemType.NumOut() == 1 && systemType.Out(0) != typeOfError) {
		panic(fmt.Sprintf("system %s: may only return an error", systemType))
	}
}

func (app *App) callSystem(system systemFn) error {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfApp {
			args[i] = reflect.ValueOf(app)
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			app.Logger().Errorf("%s", msg)
			panic(msg)
		}
	}
	out := systemValue.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
