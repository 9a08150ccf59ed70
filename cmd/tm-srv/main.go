// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tm-srv runs the telemetry receiver as a TDAQ process.
package main // import "github.com/moses-daq/tmrx/cmd/tm-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/moses-daq/tmrx/rx"
)

func main() {
	cmd := flags.New()

	var (
		dev  = "/dev/ttyUSB0"
		odir = "."
	)
	if len(cmd.Args) > 0 {
		dev = cmd.Args[0]
	}
	if len(cmd.Args) > 1 {
		odir = cmd.Args[1]
	}

	recv := rx.NewServer(dev, odir)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", recv.OnConfig)
	srv.CmdHandle("/init", recv.OnInit)
	srv.CmdHandle("/reset", recv.OnReset)
	srv.CmdHandle("/start", recv.OnStart)
	srv.CmdHandle("/stop", recv.OnStop)
	srv.CmdHandle("/quit", recv.OnQuit)

	srv.RunHandle(recv.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
