// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"encoding/binary"
	"io"

	"github.com/moses-daq/tmrx/internal/crc16"
	"golang.org/x/xerrors"
)

// Encoder writes raw telemetry reads as length-prefixed records for
// offline replay. Each record is a little-endian uint32 payload
// length, the payload and a big-endian CRC-16/CCITT of the payload:
// the hardware strips the link CRC before delivery, so the capture
// carries its own.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder creates a capture encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 4)}
}

// Encode appends one read to the capture stream.
func (enc *Encoder) Encode(p []byte) error {
	binary.LittleEndian.PutUint32(enc.buf[:4], uint32(len(p)))
	_, err := enc.w.Write(enc.buf[:4])
	if err != nil {
		return xerrors.Errorf("rx: could not write record header: %w", err)
	}
	_, err = enc.w.Write(p)
	if err != nil {
		return xerrors.Errorf("rx: could not write record payload: %w", err)
	}
	binary.BigEndian.PutUint16(enc.buf[:2], crc16.Checksum(p))
	_, err = enc.w.Write(enc.buf[:2])
	if err != nil {
		return xerrors.Errorf("rx: could not write record crc: %w", err)
	}
	return nil
}

// Decoder reads capture records back, validating lengths and CRCs.
type Decoder struct {
	r   io.Reader
	buf []byte
}

// NewDecoder creates a capture decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 4)}
}

// Decode returns the next captured read. It returns io.EOF at a clean
// record boundary and io.ErrUnexpectedEOF on a truncated record.
func (dec *Decoder) Decode() ([]byte, error) {
	_, err := io.ReadFull(dec.r, dec.buf[:4])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, xerrors.Errorf("rx: could not read record header: %w", err)
	}
	n := binary.LittleEndian.Uint32(dec.buf[:4])
	if n == 0 || n > maxFrame {
		return nil, xerrors.Errorf("rx: invalid record length %d", n)
	}

	p := make([]byte, n)
	_, err = io.ReadFull(dec.r, p)
	if err != nil {
		return nil, xerrors.Errorf("rx: could not read record payload: %w", err)
	}

	_, err = io.ReadFull(dec.r, dec.buf[:2])
	if err != nil {
		return nil, xerrors.Errorf("rx: could not read record crc: %w", err)
	}
	if got, want := binary.BigEndian.Uint16(dec.buf[:2]), crc16.Checksum(p); got != want {
		return nil, xerrors.Errorf("rx: invalid record crc (got=0x%04x, want=0x%04x)", got, want)
	}
	return p, nil
}

// ReadPacket implements Source over a capture stream, so a recorded
// run can be replayed through the same readout loop.
func (dec *Decoder) ReadPacket(p []byte) (int, error) {
	rec, err := dec.Decode()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, err
	}
	if len(rec) > len(p) {
		return 0, xerrors.Errorf("rx: record too large for read buffer (%d > %d)", len(rec), len(p))
	}
	return copy(p, rec), nil
}
