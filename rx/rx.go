// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rx splits the MOSES telemetry stream into image files and
// XML metadata documents.
//
// The flight computer interleaves two content classes on one HDLC
// link: binary image payloads and fragments of an XML catalog
// document. Frames are classified by length and leading bytes
// (Classify), accumulated into per-kind in-progress files (Session)
// and moved to uniquely named archive paths on terminator frames
// (Archive).
package rx // import "github.com/moses-daq/tmrx/rx"

// Kind discriminates the two content classes of the telemetry stream.
type Kind uint8

const (
	KindImage Kind = iota
	KindXML
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "xml"
}

// ArchiveRecord describes one completed unit moved to the archive.
type ArchiveRecord struct {
	Kind Kind
	Name string // final archived path
	Seq  uint32 // metadata sequence number, unused for images
	Size int64  // archived file size in bytes
}
