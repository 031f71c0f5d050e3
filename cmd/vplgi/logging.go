package main

import (
	"github.com/gekko3d/vplgi/log"

	"github.com/urfave/cli"
)

var logger = log.New("vplgi")

func setupLogging(ctx *cli.Context) {
	log.SetLevel(log.Warning)
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
		logger.SetDebug(true)
	}
}
