// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/moses-daq/tmrx/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open catalog: %+v", err)
	}
	defer db.Close()
}

func TestAdd(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open catalog: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.AddImage(ctx, "images/img007", 4096)
		if err != nil {
			t.Fatalf("could not record image: %+v", err)
		}
		err = db.AddDocument(ctx, 41, "xml/tm_000041.xml", 512)
		if err != nil {
			t.Fatalf("could not record document: %+v", err)
		}

		execs := fakedb.Execs()
		if got, want := len(execs), 2; got != want {
			t.Fatalf("invalid number of statements: got=%d, want=%d", got, want)
		}
		if !strings.HasPrefix(execs[0], "INSERT INTO images") {
			t.Fatalf("invalid image statement: %q", execs[0])
		}
		if !strings.HasPrefix(execs[1], "INSERT INTO documents") {
			t.Fatalf("invalid document statement: %q", execs[1])
		}
		return nil
	})
}

func TestLastSeq(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open catalog: %+v", err)
	}
	defer db.Close()

	// an empty catalog (NULL MAX) and one whose highest sequence is
	// 0 must be distinguishable, so the first run after a wipe still
	// starts at 0.
	for _, tc := range []struct {
		name string
		max  driver.Value
		seq  uint32
		ok   bool
	}{
		{name: "populated", max: int64(41), seq: 41, ok: true},
		{name: "first-document", max: int64(0), seq: 0, ok: true},
		{name: "empty", max: nil, seq: 0, ok: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_ = fakedb.Run(context.Background(), fakedb.Rows{
				Names: []string{"seq"},
				Values: [][]driver.Value{
					{tc.max},
				},
			}, func(ctx context.Context) error {
				seq, ok, err := db.LastSeq(ctx)
				if err != nil {
					t.Fatalf("could not retrieve last sequence: %+v", err)
				}
				if got, want := ok, tc.ok; got != want {
					t.Fatalf("invalid last sequence flag: got=%v, want=%v", got, want)
				}
				if got, want := seq, tc.seq; got != want {
					t.Fatalf("invalid last sequence: got=%d, want=%d", got, want)
				}
				return nil
			})
		})
	}
}

func TestImages(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open catalog: %+v", err)
	}
	defer db.Close()

	now := time.Date(2022, 8, 2, 12, 0, 0, 0, time.UTC)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"name", "size", "tstamp"},
		Values: [][]driver.Value{
			{"images/img007", int64(4096), now},
			{"images/img006", int64(2048), now.Add(-time.Minute)},
		},
	}, func(ctx context.Context) error {
		imgs, err := db.Images(ctx, 10)
		if err != nil {
			t.Fatalf("could not retrieve images: %+v", err)
		}
		if got, want := len(imgs), 2; got != want {
			t.Fatalf("invalid number of images: got=%d, want=%d", got, want)
		}
		if got, want := imgs[0].Name, "images/img007"; got != want {
			t.Fatalf("invalid image name: got=%q, want=%q", got, want)
		}
		if got, want := imgs[0].Size, int64(4096); got != want {
			t.Fatalf("invalid image size: got=%d, want=%d", got, want)
		}
		if got, want := imgs[0].Time, now; !got.Equal(want) {
			t.Fatalf("invalid image time: got=%v, want=%v", got, want)
		}
		return nil
	})
}

func TestDocuments(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open catalog: %+v", err)
	}
	defer db.Close()

	now := time.Date(2022, 8, 2, 12, 0, 0, 0, time.UTC)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"seq", "name", "size", "tstamp"},
		Values: [][]driver.Value{
			{int64(41), "xml/tm_000041.xml", int64(512), now},
		},
	}, func(ctx context.Context) error {
		docs, err := db.Documents(ctx, 10)
		if err != nil {
			t.Fatalf("could not retrieve documents: %+v", err)
		}
		if got, want := len(docs), 1; got != want {
			t.Fatalf("invalid number of documents: got=%d, want=%d", got, want)
		}
		if got, want := docs[0].Seq, uint32(41); got != want {
			t.Fatalf("invalid document sequence: got=%d, want=%d", got, want)
		}
		if got, want := docs[0].Name, "xml/tm_000041.xml"; got != want {
			t.Fatalf("invalid document name: got=%q, want=%q", got, want)
		}
		return nil
	})
}
