// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCaptureRoundTrip(t *testing.T) {
	reads := [][]byte{
		[]byte("<IMAGE>entry"),
		bytes.Repeat([]byte{0xca}, 2048),
		make([]byte, lenXMLEOF),
		[]byte("x"),
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for i, p := range reads {
		err := enc.Encode(p)
		if err != nil {
			t.Fatalf("could not encode read %d: %+v", i, err)
		}
	}

	dec := NewDecoder(buf)
	for i, want := range reads {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("could not decode read %d: %+v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("invalid read %d:\ngot= %q\nwant=%q", i, got, want)
		}
	}
	_, err := dec.Decode()
	if err != io.EOF {
		t.Fatalf("invalid error at end of capture: got=%v, want=%v", err, io.EOF)
	}
}

func TestCaptureCorruption(t *testing.T) {
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode([]byte("some payload"))
	if err != nil {
		t.Fatalf("could not encode read: %+v", err)
	}

	raw := buf.Bytes()
	raw[6] ^= 0xff // flip a payload byte

	_, err = NewDecoder(bytes.NewReader(raw)).Decode()
	if err == nil {
		t.Fatalf("expected a CRC error")
	}
	if !strings.Contains(err.Error(), "invalid record crc") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestCaptureTruncated(t *testing.T) {
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(bytes.Repeat([]byte{0x42}, 64))
	if err != nil {
		t.Fatalf("could not encode read: %+v", err)
	}

	raw := buf.Bytes()[:buf.Len()-8]

	_, err = NewDecoder(bytes.NewReader(raw)).Decode()
	if err == nil || err == io.EOF {
		t.Fatalf("expected a truncation error, got %v", err)
	}
}

func TestCaptureInvalidLength(t *testing.T) {
	raw := []byte{0xff, 0xff, 0xff, 0xff}
	_, err := NewDecoder(bytes.NewReader(raw)).Decode()
	if err == nil {
		t.Fatalf("expected an invalid length error")
	}
	if !strings.Contains(err.Error(), "invalid record length") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestCaptureReadPacket(t *testing.T) {
	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for _, p := range [][]byte{[]byte("first"), []byte("second")} {
		err := enc.Encode(p)
		if err != nil {
			t.Fatalf("could not encode read: %+v", err)
		}
	}

	dec := NewDecoder(buf)
	p := make([]byte, 16)

	n, err := dec.ReadPacket(p)
	if err != nil {
		t.Fatalf("could not read packet: %+v", err)
	}
	if got, want := string(p[:n]), "first"; got != want {
		t.Fatalf("invalid packet: got=%q, want=%q", got, want)
	}

	short := make([]byte, 3)
	_, err = dec.ReadPacket(short)
	if err == nil {
		t.Fatalf("expected a short buffer error")
	}

	_, err = NewDecoder(new(bytes.Buffer)).ReadPacket(p)
	if err != io.EOF {
		t.Fatalf("invalid error at end of capture: got=%v, want=%v", err, io.EOF)
	}
}
