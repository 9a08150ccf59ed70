// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rx

import (
	"log"
)

// Meter exposes the cumulative receive CRC error counter of the
// underlying link transport. Sources may optionally implement it.
type Meter interface {
	RxCRCErrors() (uint32, error)
}

// health samples the link CRC error counter once per read cycle and
// logs the drift. It never alters the readout control flow.
type health struct {
	msg  *log.Logger
	m    Meter
	last uint32
}

func newHealth(m Meter, msg *log.Logger) *health {
	h := &health{msg: msg, m: m}
	cnt, err := m.RxCRCErrors()
	if err == nil {
		h.last = cnt
	}
	return h
}

func (h *health) sample() {
	if h == nil {
		return
	}
	cnt, err := h.m.RxCRCErrors()
	if err != nil {
		h.msg.Printf("could not sample link stats: %+v", err)
		return
	}
	if cnt != h.last {
		h.msg.Printf("link CRC errors: +%d (total=%d)", cnt-h.last, cnt)
		h.last = cnt
	}
}
