package vplgi

import "testing"

type MockModule struct {
	installed bool
}

func (m *MockModule) Install(app *App) {
	m.installed = true
}

type MockModule2 struct {
	installed bool
}

func (m *MockModule2) Install(app *App) {
	m.installed = true
}

func TestAppBuilder_Defaults(t *testing.T) {
	app := NewAppBuilder().Build()

	if len(app.stages) != len(defaultStages()) {
		t.Errorf("Expected %d stages, got %d", len(defaultStages()), len(app.stages))
	}
	if len(app.resources) != 0 {
		t.Errorf("Expected no resources, got %d", len(app.resources))
	}
}

func TestAppBuilder_UseModule(t *testing.T) {
	module1 := &MockModule{}
	module2 := &MockModule2{}

	app := NewAppBuilder().UseModule(module1, module2).Build()

	if !module1.installed {
		t.Errorf("Expected module1 to be installed")
	}
	if !module2.installed {
		t.Errorf("Expected module2 to be installed")
	}
	if len(app.modules) != 2 {
		t.Errorf("Expected 2 installed modules, got %d", len(app.modules))
	}
}
