// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"bytes"
	"testing"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name    string
		raw     []byte
		xmlMode bool
		want    Class
	}{
		{
			name: "image-eof",
			raw:  []byte("img007\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"),
			want: ImageEOF,
		},
		{
			name: "image-eof-arbitrary-content",
			raw:  bytes.Repeat([]byte{0xde}, 16),
			want: ImageEOF,
		},
		{
			name:    "image-eof-during-xml",
			raw:     bytes.Repeat([]byte{0x42}, 16),
			xmlMode: true,
			want:    ImageEOF,
		},
		{
			name: "xml-eof",
			raw:  make([]byte, 14),
			want: XMLEOF,
		},
		{
			name:    "xml-eof-during-xml",
			raw:     bytes.Repeat([]byte{0x42}, 14),
			xmlMode: true,
			want:    XMLEOF,
		},
		{
			name: "xml-marker-starts-document",
			raw:  []byte("<IMAGE>exposure=24</IMAGE> and then some"),
			want: XMLFragment,
		},
		{
			name:    "xml-fragment-mid-document",
			raw:     []byte("no marker here, 20+ bytes of text"),
			xmlMode: true,
			want:    XMLFragment,
		},
		{
			name: "marker-mid-image-is-image-data",
			raw:  append([]byte{0x00}, []byte("<IMAGE> not at the start of the read")...),
			want: ImageFragment,
		},
		{
			name: "image-fragment",
			raw:  bytes.Repeat([]byte{0xca, 0xfe}, 512),
			want: ImageFragment,
		},
		{
			name: "tiny-image-fragment",
			raw:  []byte{0x01},
			want: ImageFragment,
		},
		{
			name: "fifteen-bytes-is-a-fragment",
			raw:  make([]byte, 15),
			want: ImageFragment,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pkt := Classify(tc.raw, tc.xmlMode)
			if got, want := pkt.Class, tc.want; got != want {
				t.Fatalf("invalid packet class: got=%v, want=%v", got, want)
			}
			switch pkt.Class {
			case XMLEOF:
				if pkt.Data != nil {
					t.Fatalf("xml terminator should carry no payload")
				}
			default:
				if !bytes.Equal(pkt.Data, tc.raw) {
					t.Fatalf("invalid packet payload:\ngot= %q\nwant=%q", pkt.Data, tc.raw)
				}
			}
		})
	}
}

func TestClassString(t *testing.T) {
	for _, tc := range []struct {
		c    Class
		want string
	}{
		{ImageFragment, "image-fragment"},
		{XMLFragment, "xml-fragment"},
		{ImageEOF, "image-eof"},
		{XMLEOF, "xml-eof"},
		{Class(42), "Class(42)"},
	} {
		if got, want := tc.c.String(), tc.want; got != want {
			t.Errorf("invalid class string: got=%q, want=%q", got, want)
		}
	}
}
