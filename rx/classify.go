// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"bytes"
	"fmt"
)

const (
	lenImageEOF = 16 // image terminator frame length
	lenXMLEOF   = 14 // metadata terminator frame length

	maxFrame = 4194300 // largest HDLC frame the link may deliver
)

// xmlMarker opens a new metadata document when it leads a fragment.
var xmlMarker = []byte("<IMAGE>")

// Class identifies the role of one HDLC frame in the telemetry stream.
type Class uint8

const (
	ImageFragment Class = iota // payload of the image being assembled
	XMLFragment                // payload of the metadata document being assembled
	ImageEOF                   // image terminator, carries the archive name
	XMLEOF                     // metadata document terminator
)

func (c Class) String() string {
	switch c {
	case ImageFragment:
		return "image-fragment"
	case XMLFragment:
		return "xml-fragment"
	case ImageEOF:
		return "image-eof"
	case XMLEOF:
		return "xml-eof"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Packet is one classified read from the telemetry link.
type Packet struct {
	Class Class
	Data  []byte // fragment payload, or archive name bytes for ImageEOF
}

// Classify assigns one read from the link to its packet class.
//
// Framing is purely length- and marker-based: the transport carries no
// type field, so a terminator is recognized by its frame length alone
// and a fragment that happens to be exactly 16 or 14 bytes long is
// indistinguishable from one. xmlMode reports whether a metadata
// document is being accumulated; outside of it, only a fragment led by
// the metadata marker may start a new document.
func Classify(p []byte, xmlMode bool) Packet {
	switch {
	case len(p) == lenImageEOF:
		return Packet{Class: ImageEOF, Data: p}
	case len(p) == lenXMLEOF:
		return Packet{Class: XMLEOF}
	case xmlMode:
		return Packet{Class: XMLFragment, Data: p}
	case bytes.HasPrefix(p, xmlMarker):
		return Packet{Class: XMLFragment, Data: p}
	default:
		return Packet{Class: ImageFragment, Data: p}
	}
}
