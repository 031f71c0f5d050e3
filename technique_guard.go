package vplgi

import (
	"fmt"
	"reflect"
)

// TechniqueTag marks that a GI technique has been installed into the App.
// Only one technique may be installed at a time.
type TechniqueTag struct {
	Name string
}

// ensureSingleTechnique panics when a different technique is already installed.
func ensureSingleTechnique(app *App, name string) {
	if app == nil {
		panic("ensureSingleTechnique: app is nil")
	}
	t := reflect.TypeOf((*TechniqueTag)(nil)).Elem()
	if res, ok := app.resources[t]; ok {
		if tag, ok2 := res.(*TechniqueTag); ok2 {
			if tag.Name != name {
				app.Logger().Errorf("Multiple techniques installed: %s and %s", tag.Name, name)
				panic(fmt.Sprintf("Multiple techniques installed: %s and %s", tag.Name, name))
			}
			return
		}
		panic("TechniqueTag resource present with unexpected type")
	}
	app.addResources(&TechniqueTag{Name: name})
}
