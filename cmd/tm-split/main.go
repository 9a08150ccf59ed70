// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tm-split replays a captured telemetry stream offline and
// splits it into archived image files and XML metadata documents,
// using the same classification and rotation logic as tm-recv.
package main // import "github.com/moses-daq/tmrx/cmd/tm-split"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/moses-daq/tmrx/rx"
)

var (
	msg = log.New(os.Stdout, "tm-split: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("tm-split", flag.ExitOnError)

		odir = fset.String("o", ".", "run directory for archived files")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: tm-split [OPTIONS] file.raw

ex:
 $> tm-split -o /data/moses ./flight.raw

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		msg.Fatalf("missing input capture file")
	}

	for _, arg := range fset.Args() {
		err := process(*odir, arg)
		if err != nil {
			msg.Fatalf("could not split capture file %q: %+v", arg, err)
		}
	}
}

func process(odir, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open capture file: %w", err)
	}
	defer f.Close()

	daq, err := rx.NewDAQ(rx.NewDecoder(f), odir, rx.WithLogger(msg))
	if err != nil {
		return fmt.Errorf("could not create readout: %w", err)
	}

	err = daq.Run(context.Background())
	if err != nil {
		return fmt.Errorf("could not replay capture: %w", err)
	}
	return nil
}
