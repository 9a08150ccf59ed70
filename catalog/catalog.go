// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog records archived telemetry units in the ground
// station MySQL database.
package catalog // import "github.com/moses-daq/tmrx/catalog"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "tmrx"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to record and retrieve archived
// telemetry units from the ground station database.
type DB struct {
	db   *sql.DB
	name string // name of the catalog database
}

// Open opens a connection to the catalog database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("catalog: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("catalog: could not ping %q: %w", dbname, err)
	}
	return nil
}

// Close closes the connection to the catalog database.
func (db *DB) Close() error {
	err := db.db.Close()
	if err != nil {
		return fmt.Errorf("catalog: could not close %q db: %w", db.name, err)
	}
	return nil
}

// AddImage records one archived image.
func (db *DB) AddImage(ctx context.Context, name string, size int64) error {
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO images (name, size, tstamp) VALUES (?, ?, ?)",
		name, size, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("catalog: could not record image %q: %w", name, err)
	}
	return nil
}

// AddDocument records one archived metadata document.
func (db *DB) AddDocument(ctx context.Context, seq uint32, name string, size int64) error {
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO documents (seq, name, size, tstamp) VALUES (?, ?, ?, ?)",
		seq, name, size, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("catalog: could not record document %q: %w", name, err)
	}
	return nil
}

// LastSeq returns the highest metadata document sequence number
// recorded so far. ok reports whether the catalog holds any document:
// an empty catalog and one whose highest sequence is 0 are distinct.
func (db *DB) LastSeq(ctx context.Context) (seq uint32, ok bool, err error) {
	var v sql.NullInt64
	err = db.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM documents",
	).Scan(&v)
	if err != nil {
		return 0, false, fmt.Errorf("catalog: could not query last document sequence: %w", err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint32(v.Int64), true, nil
}

// Image is one archived image row.
type Image struct {
	Name string
	Size int64
	Time time.Time
}

// Images returns the n most recently archived images.
func (db *DB) Images(ctx context.Context, n int) ([]Image, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT name, size, tstamp FROM images ORDER BY tstamp DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not query images: %w", err)
	}
	defer rows.Close()

	var imgs []Image
	for rows.Next() {
		var img Image
		err = rows.Scan(&img.Name, &img.Size, &img.Time)
		if err != nil {
			return nil, fmt.Errorf("catalog: could not scan image row: %w", err)
		}
		imgs = append(imgs, img)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("catalog: could not iterate over image rows: %w", err)
	}
	return imgs, nil
}

// Document is one archived metadata document row.
type Document struct {
	Seq  uint32
	Name string
	Size int64
	Time time.Time
}

// Documents returns the n most recently archived metadata documents.
func (db *DB) Documents(ctx context.Context, n int) ([]Document, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT seq, name, size, tstamp FROM documents ORDER BY seq DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: could not query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		err = rows.Scan(&doc.Seq, &doc.Name, &doc.Size, &doc.Time)
		if err != nil {
			return nil, fmt.Errorf("catalog: could not scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("catalog: could not iterate over document rows: %w", err)
	}
	return docs, nil
}
