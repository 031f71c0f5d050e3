package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gekko3d/vplgi"
	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gi"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/urfave/cli"
)

// loadConfig overlays the --config file and then explicit flags on the
// defaults.
func loadConfig(ctx *cli.Context) (gi.Config, error) {
	cfg := gi.DefaultConfig()
	if path := ctx.GlobalString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if ctx.IsSet("theta") {
		cfg.ThetaDirs = ctx.Int("theta")
	}
	if ctx.IsSet("phi") {
		cfg.PhiDirs = ctx.Int("phi")
	}
	if ctx.IsSet("resolution") {
		cfg.Resolution = ctx.Int("resolution")
	}
	return cfg, cfg.Validate()
}

func sceneModule(ctx *cli.Context) (vplgi.SceneModule, error) {
	preset, err := vplgi.ParseScenePreset(ctx.String("scene"))
	if err != nil {
		return vplgi.SceneModule{}, err
	}
	mod := vplgi.SceneModule{Preset: preset}
	if s := ctx.String("light"); s != "" {
		pos, err := parseVec3(s)
		if err != nil {
			return mod, err
		}
		mod.Light = vplgi.DefaultLight()
		mod.Light.Position = pos
	}
	return mod, nil
}

func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, errors.New("--light needs x,y,z")
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, fmt.Errorf("--light: %w", err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func deviceModule(ctx *cli.Context) (vplgi.DeviceModule, error) {
	backend, err := vplgi.ParseBackend(ctx.String("backend"))
	if err != nil {
		return vplgi.DeviceModule{}, err
	}
	return vplgi.DeviceModule{Backend: backend, Workers: ctx.Int("workers")}, nil
}

// buildApp wires device, scene and the VPL technique.
func buildApp(ctx *cli.Context) (*vplgi.App, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	dm, err := deviceModule(ctx)
	if err != nil {
		return nil, err
	}
	sm, err := sceneModule(ctx)
	if err != nil {
		return nil, err
	}
	app := vplgi.NewAppBuilder().
		UseModule(vplgi.LoggingModule{Name: "vplgi", Debug: ctx.GlobalBool("vv")}, dm, sm).
		Build()
	app.UseVPL(cfg)
	if speed := ctx.Float64("orbit"); speed != 0 {
		app.UseModules(vplgi.TimeModule{}, vplgi.OrbitModule{Speed: float32(speed)})
	}
	return app, nil
}

func fmtVec(v mgl32.Vec3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2])
}

func lightString(l core.PointLight) string {
	return fmt.Sprintf("%s x %.2f", fmtVec(l.Position), l.Intensity)
}
