package vplgi

import (
	"github.com/gekko3d/vplgi/log"
)

// LoggingModule installs a named logger as a resource.
type LoggingModule struct {
	Name  string
	Debug bool
}

func (m LoggingModule) Install(app *App) {
	name := m.Name
	if name == "" {
		name = "vplgi"
	}
	logger := log.New(name)
	logger.SetDebug(m.Debug)
	app.addResources(logger)
}

// Logger returns the first Logger resource if present, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() log.Logger {
	if app == nil {
		return log.NewNop()
	}
	for _, r := range app.resources {
		if l, ok := r.(log.Logger); ok {
			return l
		}
	}
	return log.NewNop()
}
