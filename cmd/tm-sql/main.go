// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tm-sql inspects the telemetry archive catalog.
package main // import "github.com/moses-daq/tmrx/cmd/tm-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/moses-daq/tmrx/catalog"
)

const (
	dbname = "tmcat"
)

func main() {
	log.SetPrefix("tm-sql: ")
	log.SetFlags(0)

	var (
		db = flag.String("db", dbname, "catalog database name")
		n  = flag.Int("n", 10, "number of entries to display")
	)

	flag.Parse()

	cat, err := catalog.Open(*db)
	if err != nil {
		log.Fatalf("could not open catalog db: %+v", err)
	}
	defer cat.Close()

	err = doQuery(cat, *n)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *catalog.DB, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seq, ok, err := db.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("could not get last document sequence: %w", err)
	}
	switch {
	case ok:
		log.Printf("last document sequence: %d", seq)
	default:
		log.Printf("last document sequence: none")
	}

	imgs, err := db.Images(ctx, n)
	if err != nil {
		return fmt.Errorf("could not get images: %w", err)
	}
	log.Printf("images: %d", len(imgs))
	for _, img := range imgs {
		log.Printf("  %s  %10d bytes  %v", img.Name, img.Size, img.Time.Format(time.RFC3339))
	}

	docs, err := db.Documents(ctx, n)
	if err != nil {
		return fmt.Errorf("could not get documents: %w", err)
	}
	log.Printf("documents: %d", len(docs))
	for _, doc := range docs {
		log.Printf("  %06d  %s  %10d bytes  %v", doc.Seq, doc.Name, doc.Size, doc.Time.Format(time.RFC3339))
	}
	return nil
}
