// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 provides the CRC-16/CCITT checksum used on the
// telemetry link (poly 0x1021, init 0xFFFF, MSB first).
package crc16 // import "github.com/moses-daq/tmrx/internal/crc16"

import (
	"hash"
)

const (
	poly   = 0x1021
	init16 = 0xffff
)

// Hash16 is the common interface implemented by all 16-bit hash functions.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

// New creates a new CRC-16/CCITT Hash16.
// Its Sum method will lay the value out in big-endian byte order.
func New(tab *[256]uint16) Hash16 {
	if tab == nil {
		tab = &tbl
	}
	return &digest{crc: init16, tab: tab}
}

// Checksum returns the CRC-16/CCITT checksum of data.
func Checksum(data []byte) uint16 {
	crc := uint16(init16)
	for _, v := range data {
		crc = crc<<8 ^ tbl[byte(crc>>8)^v]
	}
	return crc
}

var tbl = makeTable()

func makeTable() [256]uint16 {
	var tab [256]uint16
	for i := range tab {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		tab[i] = crc
	}
	return tab
}

type digest struct {
	crc uint16
	tab *[256]uint16
}

func (d *digest) Size() int      { return 2 }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = init16 }
func (d *digest) Sum16() uint16  { return d.crc }

func (d *digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, v := range p {
		crc = crc<<8 ^ d.tab[byte(crc>>8)^v]
	}
	d.crc = crc
	return len(p), nil
}

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum16()
	return append(in, byte(s>>8), byte(s))
}

var (
	_ hash.Hash = (*digest)(nil)
	_ Hash16    = (*digest)(nil)
)
