package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"
)

func init() {
	// glfw and the surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "vplgi"
	app.Usage = "single bounce global illumination from virtual point lights"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "JSON file overriding the default GI configuration",
		},
	}

	sceneFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "scene",
			Value: "cornell",
			Usage: "built-in scene: cornell, room or empty",
		},
		cli.IntFlag{
			Name:  "theta",
			Usage: "sample directions along latitude",
		},
		cli.IntFlag{
			Name:  "phi",
			Usage: "sample directions along longitude",
		},
		cli.IntFlag{
			Name:  "resolution, r",
			Usage: "ray bundle resolution",
		},
	}
	deviceFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "backend, b",
			Value: "soft",
			Usage: "graphics backend: soft or wgpu",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "software device worker count (0 = GOMAXPROCS)",
		},
		cli.StringFlag{
			Name:  "light",
			Usage: "light position as x,y,z",
		},
		cli.Float64Flag{
			Name:  "orbit",
			Usage: "orbit the light around the scene at this many radians per second",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "plan",
			Usage:  "print sample directions and ray bundle cameras for a scene",
			Flags:  sceneFlags,
			Action: PlanCameras,
		},
		{
			Name:  "render",
			Usage: "render frames headless and report statistics",
			Description: `
Run the GI pipeline for a number of frames, print stage timings, fragment
counts and the sampled VPLs, and check the per-pixel list invariants.
With --dump every debug view of the last frame is written as PNG.`,
			Flags: append(append([]cli.Flag{
				cli.IntFlag{
					Name:  "frames, n",
					Value: 1,
					Usage: "frames to render",
				},
				cli.StringFlag{
					Name:  "dump, o",
					Usage: "directory for debug view PNGs",
				},
				cli.IntFlag{
					Name:  "scale",
					Value: 4,
					Usage: "integer upscale of dumped images",
				},
			}, sceneFlags...), deviceFlags...),
			Action: RenderFrames,
		},
		{
			Name:  "view",
			Usage: "show debug views in a window",
			Description: `
Tab cycles views, left/right step through faces or samples, WASD/QE move
the light, Escape quits.`,
			Flags: append(append([]cli.Flag{
				cli.StringFlag{
					Name:  "view",
					Value: "radiance",
					Usage: "initial view: rsm-flux, rsm-normal, visibility, occupancy or radiance",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 768,
					Usage: "window width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 768,
					Usage: "window height",
				},
			}, sceneFlags...), deviceFlags...),
			Action: ViewFrames,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
