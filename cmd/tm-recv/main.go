// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tm-recv receives MOSES telemetry from a SyncLink adapter
// and splits it into image files and XML metadata documents.
//
// The adapter must carry the 10 Mbps downlink in RS-422 mode.
package main // import "github.com/moses-daq/tmrx/cmd/tm-recv"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/moses-daq/tmrx"
	"github.com/moses-daq/tmrx/catalog"
	"github.com/moses-daq/tmrx/rx"
	"github.com/moses-daq/tmrx/synclink"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("tm-recv: ")
	log.SetFlags(0)

	err := xmain(os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(args []string) error {
	var (
		fset = flag.NewFlagSet("tm-recv", flag.ExitOnError)

		odir   = fset.String("o", ".", "run directory for in-progress and archived files")
		capt   = fset.String("capture", "", "path to raw capture file for offline replay")
		dbname = fset.String("db", "", "catalog database name (empty: no catalog)")
		doVers = fset.Bool("version", false, "print version and exit")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: tm-recv [OPTIONS] [device]

ex:
 $> tm-recv -o /data/moses /dev/ttyUSB0

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	if *doVers {
		version, sum := tmrx.Version()
		fmt.Printf("tm-recv version=%s sum=%s\n", version, sum)
		return nil
	}

	devname := "/dev/ttyUSB0"
	if fset.NArg() > 0 {
		devname = fset.Arg(0)
	}

	return run(devname, *odir, *capt, *dbname)
}

func run(devname, odir, capt, dbname string) error {
	log.Printf("receiving HDLC telemetry on %s", devname)

	var opts []rx.Option

	if dbname != "" {
		db, err := catalog.Open(dbname)
		if err != nil {
			return fmt.Errorf("could not open catalog: %w", err)
		}
		defer db.Close()
		opts = append(opts, rx.WithCatalog(db))
	}

	if capt != "" {
		f, err := os.Create(capt)
		if err != nil {
			return fmt.Errorf("could not create capture file: %w", err)
		}
		defer f.Close()
		opts = append(opts, rx.WithCapture(f))
	}

	src, err := synclink.Open(devname)
	if err != nil {
		return fmt.Errorf("could not open telemetry link: %w", err)
	}
	defer src.Close()

	daq, err := rx.NewDAQ(src, odir, opts...)
	if err != nil {
		return fmt.Errorf("could not create readout: %w", err)
	}

	// ctrl-C stops the readout between cycles; the session is
	// flushed and closed before exit.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	var grp errgroup.Group
	grp.Go(func() error {
		defer cancel()
		return daq.Run(ctx)
	})
	grp.Go(func() error {
		select {
		case <-stop:
			log.Printf("received interrupt, stopping readout...")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run readout: %w", err)
	}
	return nil
}
