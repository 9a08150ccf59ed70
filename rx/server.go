// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"github.com/go-daq/tdaq"
	"github.com/moses-daq/tmrx/synclink"
	"golang.org/x/xerrors"
)

// Server exposes the telemetry receiver as a TDAQ process, so the
// ground station can join a TDAQ experiment: /init opens and
// configures the serial device, the run handler drives the readout
// loop while the experiment is running.
type Server struct {
	dev  string // serial device path
	odir string // run directory
	opts []Option

	src *synclink.Device
	daq *DAQ
}

// NewServer creates a TDAQ server reading from the serial device dev
// and writing to the run directory odir.
func NewServer(dev, odir string, opts ...Option) *Server {
	return &Server{dev: dev, odir: odir, opts: opts}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	src, err := synclink.Open(srv.dev)
	if err != nil {
		ctx.Msg.Errorf("could not open telemetry link %q: %+v", srv.dev, err)
		return xerrors.Errorf("rx: could not open telemetry link %q: %w", srv.dev, err)
	}
	srv.src = src
	ctx.Msg.Infof("telemetry link %q ready", srv.dev)
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if srv.src != nil {
		_ = srv.src.Close()
		srv.src = nil
	}
	srv.daq = nil
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.src == nil {
		return xerrors.Errorf("rx: telemetry link not initialized")
	}
	daq, err := NewDAQ(srv.src, srv.odir, srv.opts...)
	if err != nil {
		ctx.Msg.Errorf("could not create readout: %+v", err)
		return xerrors.Errorf("rx: could not create readout: %w", err)
	}
	srv.daq = daq
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if srv.src != nil {
		_ = srv.src.Close()
		srv.src = nil
	}
	return nil
}

// Run drives the readout loop for the duration of the run.
func (srv *Server) Run(ctx tdaq.Context) error {
	if srv.daq == nil {
		return xerrors.Errorf("rx: readout not initialized")
	}
	return srv.daq.Run(ctx.Ctx)
}
