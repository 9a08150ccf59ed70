// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/moses-daq/tmrx/catalog"
	"golang.org/x/xerrors"
)

// Source yields HDLC frames from the telemetry link, one frame per
// call.
type Source interface {
	// ReadPacket reads one frame into p and returns its length.
	// It returns 0, io.EOF when the stream has ended.
	ReadPacket(p []byte) (int, error)
}

type config struct {
	msg *log.Logger
	db  *catalog.DB
	cap io.Writer
}

func newConfig() config {
	return config{
		msg: log.New(os.Stdout, "rx: ", 0),
	}
}

// Option configures the readout loop.
type Option func(*config)

// WithLogger sets the logger used by the readout loop and session.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithCatalog records every archived unit in the given catalog
// database. Catalog failures are logged, never fatal to assembly.
func WithCatalog(db *catalog.DB) Option {
	return func(cfg *config) {
		cfg.db = db
	}
}

// WithCapture copies every raw read to w as capture records.
func WithCapture(w io.Writer) Option {
	return func(cfg *config) {
		cfg.cap = w
	}
}

// DAQ drives the telemetry readout: one blocking read per cycle,
// classified and applied to the session before the next read is
// issued. Reads are processed strictly in arrival order.
type DAQ struct {
	msg *log.Logger
	src Source
	ses *Session
	hm  *health
	db  *catalog.DB
	enc *Encoder
	buf []byte
}

// NewDAQ creates a readout over src writing to the run directory dir.
func NewDAQ(src Source, dir string, opts ...Option) (*DAQ, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	arc, err := NewArchive(dir)
	if err != nil {
		return nil, err
	}

	if cfg.db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		seq, ok, err := cfg.db.LastSeq(ctx)
		cancel()
		if err != nil {
			return nil, xerrors.Errorf("rx: could not recover xml sequence from catalog: %w", err)
		}
		if ok {
			arc.SetSeq(seq + 1)
		}
	}

	ses, err := NewSession(arc, cfg.msg)
	if err != nil {
		return nil, err
	}

	daq := &DAQ{
		msg: cfg.msg,
		src: src,
		ses: ses,
		db:  cfg.db,
		buf: make([]byte, maxFrame),
	}
	if cfg.cap != nil {
		daq.enc = NewEncoder(cfg.cap)
	}
	if cfg.db != nil {
		ses.onArchive = daq.record
	}
	if m, ok := src.(Meter); ok {
		daq.hm = newHealth(m, cfg.msg)
	}
	return daq, nil
}

// Run pulls frames from the source until the stream ends, the source
// fails or ctx is canceled. Cancellation is observed between cycles
// only: a read or write in flight always completes first. On return
// both in-progress units have been flushed and closed.
func (daq *DAQ) Run(ctx context.Context) error {
	start := time.Now()
	cycle := 0
loop:
	for {
		select {
		case <-ctx.Done():
			daq.msg.Printf("interrupted after %v (%d cycles)", time.Since(start), cycle)
			break loop
		default:
		}

		n, err := daq.src.ReadPacket(daq.buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				daq.msg.Printf("end of stream after %v (%d cycles)", time.Since(start), cycle)
				break loop
			}
			_ = daq.ses.Close()
			return xerrors.Errorf("rx: could not read from link: %w", err)
		}
		if n == 0 {
			daq.msg.Printf("read returned no data")
			break loop
		}

		p := daq.buf[:n]
		if daq.enc != nil {
			err = daq.enc.Encode(p)
			if err != nil {
				daq.msg.Printf("could not capture read: %+v", err)
				daq.enc = nil
			}
		}

		err = daq.ses.Handle(Classify(p, daq.ses.XMLMode()))
		if err != nil {
			_ = daq.ses.Close()
			return err
		}

		daq.hm.sample()
		cycle++
	}

	return daq.ses.Close()
}

// record inserts one archive record into the catalog.
func (daq *DAQ) record(rec ArchiveRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch rec.Kind {
	case KindImage:
		err = daq.db.AddImage(ctx, rec.Name, rec.Size)
	case KindXML:
		err = daq.db.AddDocument(ctx, rec.Seq, rec.Name, rec.Size)
	}
	if err != nil {
		daq.msg.Printf("could not record %v %q in catalog: %+v", rec.Kind, rec.Name, err)
	}
}
