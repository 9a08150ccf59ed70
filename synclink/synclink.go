// Copyright 2022 The moses-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synclink drives a Microgate SyncLink serial adapter in HDLC
// mode. The N_HDLC line discipline delivers exactly one received
// frame per read syscall, with the link CRC already checked (and
// stripped) by the hardware.
package synclink // import "github.com/moses-daq/tmrx/synclink"

import (
	"fmt"
	"log"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	nHDLC = 13 // N_HDLC tty line discipline

	modeHDLC      = 2
	modeBaseClock = 7

	encodingNRZ = 0
	crcCCITT    = 1 // CRC-16 CCITT, generated and checked in hardware

	flagRxcRxcPin = 0x0002 // receive clock from RxC pin
	flagTxcTxcPin = 0x0004 // transmit clock from TxC pin

	preamblePatternOnes = 5
	preambleLength16    = 2

	// receiver enable argument: enable and flush pending data
	rxEnableFlush = 2

	// factory-installed base clock of the flight adapters (Hz);
	// 10 Mbps telemetry needs more than the stock 14.7456 MHz.
	defaultBaseClock = 32000000
)

// params mirrors the driver's MGSL_PARAMS structure (LP64 layout).
type params struct {
	Mode           uint64
	Loopback       uint8
	_              uint8
	Flags          uint16
	Encoding       uint8
	_              [3]byte
	ClockSpeed     uint64
	AddrFilter     uint8
	_              uint8
	CRCType        uint16
	PreambleLength uint8
	Preamble       uint8
	_              [2]byte
	DataRate       uint64
	DataBits       uint8
	StopBits       uint8
	Parity         uint8
	_              [5]byte
}

// Stats mirrors the driver's cumulative mgsl_icount counters.
type Stats struct {
	CTS, DSR, RNG, DCD, Tx, Rx        uint32
	Frame, Parity, Overrun, Break     uint32
	BufOverrun                        uint32
	TxOK, TxUnder, TxAbort, TxTimeout uint32
	RxShort, RxLong, RxAbort, RxOver  uint32
	RxCRC, RxOK, ExitHunt, RxIdle     uint32
}

// MGSL ioctl request codes, from synclink.h.
var (
	iocSParams  = ioc(iocWrite, 'm', 0, uint(unsafe.Sizeof(params{})))
	iocGParams  = ioc(iocRead, 'm', 1, uint(unsafe.Sizeof(params{})))
	iocRxEnable = ioc(iocNone, 'm', 5, 0)
	iocGStats   = ioc(iocNone, 'm', 7, 0)
)

const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint) uint {
	return dir<<30 | size<<16 | typ<<8 | nr
}

type config struct {
	msg   *log.Logger
	clock uint32
}

// Option configures a Device.
type Option func(*config)

// WithLogger sets the device logger.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithBaseClock overrides the adapter base clock frequency in Hz.
func WithBaseClock(freq uint32) Option {
	return func(cfg *config) {
		cfg.clock = freq
	}
}

// Device is an open, configured SyncLink adapter.
type Device struct {
	fd   int
	f    *os.File
	name string
	msg  *log.Logger
}

// Open opens and configures the adapter at name for HDLC reception:
// N_HDLC line discipline, base clock, HDLC mode with NRZ encoding and
// hardware CCITT CRC-16, clocks from the RxC/TxC pins, RTS and DTR
// asserted, receiver enabled, descriptor left in blocking mode.
func Open(name string, opts ...Option) (*Device, error) {
	cfg := config{
		msg:   log.New(os.Stdout, "synclink: ", 0),
		clock: defaultBaseClock,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// O_NONBLOCK so open does not wait for DCD.
	fd, err := unix.Open(name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("synclink: could not open %q: %w", name, err)
	}

	dev := &Device{fd: fd, name: name, msg: cfg.msg}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
		}
	}()

	err = unix.IoctlSetPointerInt(fd, unix.TIOCSETD, nHDLC)
	if err != nil {
		return nil, fmt.Errorf("synclink: could not set N_HDLC line discipline on %q: %w", name, err)
	}

	err = dev.setBaseClock(cfg.clock)
	if err != nil {
		return nil, err
	}

	p, err := dev.getParams()
	if err != nil {
		return nil, err
	}
	p.Mode = modeHDLC
	p.Loopback = 0
	p.Flags = flagRxcRxcPin | flagTxcTxcPin
	p.Encoding = encodingNRZ
	p.ClockSpeed = 0
	p.CRCType = crcCCITT
	p.Preamble = preamblePatternOnes
	p.PreambleLength = preambleLength16
	err = dev.setParams(&p)
	if err != nil {
		return nil, err
	}

	err = unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_RTS|unix.TIOCM_DTR)
	if err != nil {
		return nil, fmt.Errorf("synclink: could not assert RTS/DTR on %q: %w", name, err)
	}

	err = unix.SetNonblock(fd, false)
	if err != nil {
		return nil, fmt.Errorf("synclink: could not switch %q to blocking mode: %w", name, err)
	}

	err = unix.IoctlSetInt(fd, iocRxEnable, rxEnableFlush)
	if err != nil {
		return nil, fmt.Errorf("synclink: could not enable receiver on %q: %w", name, err)
	}

	dev.f = os.NewFile(uintptr(fd), name)
	dev.msg.Printf("%s configured (base clock %d Hz)", name, cfg.clock)
	return dev, nil
}

// ReadPacket reads one HDLC frame from the link into p.
// A zero-length read means the stream has ended and is reported as
// io.EOF by the underlying file.
func (dev *Device) ReadPacket(p []byte) (int, error) {
	return dev.f.Read(p)
}

// Stats returns the driver's cumulative event counters.
func (dev *Device) Stats() (Stats, error) {
	var st Stats
	err := dev.ioctl(iocGStats, unsafe.Pointer(&st))
	if err != nil {
		return Stats{}, fmt.Errorf("synclink: could not read stats from %q: %w", dev.name, err)
	}
	return st, nil
}

// RxCRCErrors returns the cumulative receive CRC error count.
func (dev *Device) RxCRCErrors() (uint32, error) {
	st, err := dev.Stats()
	if err != nil {
		return 0, err
	}
	return st.RxCRC, nil
}

// Close negates the modem signals and closes the device.
func (dev *Device) Close() error {
	err := unix.IoctlSetPointerInt(dev.fd, unix.TIOCMBIC, unix.TIOCM_RTS|unix.TIOCM_DTR)
	if err != nil {
		dev.msg.Printf("could not negate RTS/DTR on %q: %+v", dev.name, err)
	}
	if dev.f != nil {
		return dev.f.Close()
	}
	return unix.Close(dev.fd)
}

func (dev *Device) setBaseClock(freq uint32) error {
	// fields other than mode and clock speed are ignored.
	p := params{
		Mode:       modeBaseClock,
		ClockSpeed: uint64(freq),
	}
	err := dev.ioctl(iocSParams, unsafe.Pointer(&p))
	if err != nil {
		return fmt.Errorf("synclink: could not set base clock on %q: %w", dev.name, err)
	}
	return nil
}

func (dev *Device) getParams() (params, error) {
	var p params
	err := dev.ioctl(iocGParams, unsafe.Pointer(&p))
	if err != nil {
		return params{}, fmt.Errorf("synclink: could not get device parameters from %q: %w", dev.name, err)
	}
	return p, nil
}

func (dev *Device) setParams(p *params) error {
	err := dev.ioctl(iocSParams, unsafe.Pointer(p))
	if err != nil {
		return fmt.Errorf("synclink: could not set device parameters on %q: %w", dev.name, err)
	}
	return nil
}

func (dev *Device) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(dev.fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
