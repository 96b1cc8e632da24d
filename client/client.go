// Package client is the master-side driver for a device running the USI slave
// firmware.
//
// The firmware prepares its response when a transaction ends, so a request
// and its answer are always two bus transactions: a write, a short pause for
// the device to run its handler, then a read. A repeated START between the two
// would read the previous response instead.
package client

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"usitwi/core"
)

// DefaultAddress is the address the reference firmware answers to.
const DefaultAddress = 0x28

// DefaultSettle is the pause between a request and reading its response.
const DefaultSettle = time.Millisecond

// MaxRequest is the longest write the device keeps whole. Longer writes are
// truncated by the device.
const MaxRequest = core.BufferSize - 1

// MaxResponse is the largest response the device can prepare. Reading past it
// returns the sentinel byte.
const MaxResponse = core.BufferSize

var (
	ErrRequestTooLong  = errors.New("client: request longer than device buffer")
	ErrResponseTooLong = errors.New("client: response longer than device buffer")
	ErrInvalidAddress  = errors.New("client: address does not fit in 7 bits")
)

type Device struct {
	bus    drivers.I2C
	addr   uint16
	settle time.Duration
}

type Config struct {
	Address uint8
	// Settle overrides DefaultSettle. Negative disables the pause, for buses
	// that already wait for the device.
	Settle time.Duration
}

// New creates a new driver on the specified preconfigured I2C bus.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:    bus,
		addr:   DefaultAddress,
		settle: DefaultSettle,
	}
}

func (d *Device) Configure(c Config) error {
	if c.Address > 0x7F {
		return ErrInvalidAddress
	}
	if c.Address != 0 {
		d.addr = uint16(c.Address)
	}
	switch {
	case c.Settle < 0:
		d.settle = 0
	case c.Settle > 0:
		d.settle = c.Settle
	}
	return nil
}

// Address returns the configured 7-bit address.
func (d *Device) Address() uint8 {
	return uint8(d.addr)
}

// Probe addresses the device without moving data. The device still runs its
// handler with an empty request.
func (d *Device) Probe() error {
	return d.bus.Tx(d.addr, nil, nil)
}

// Write sends one request.
func (d *Device) Write(p []byte) error {
	if len(p) > MaxRequest {
		return ErrRequestTooLong
	}
	return d.bus.Tx(d.addr, p, nil)
}

// Read fetches the response prepared by the last transaction.
func (d *Device) Read(p []byte) error {
	if len(p) > MaxResponse {
		return ErrResponseTooLong
	}
	return d.bus.Tx(d.addr, nil, p)
}

// Exchange writes req, waits for the device to handle it and reads the
// response into resp.
func (d *Device) Exchange(req, resp []byte) error {
	if len(resp) > MaxResponse {
		return ErrResponseTooLong
	}
	if err := d.Write(req); err != nil {
		return err
	}
	if d.settle > 0 {
		time.Sleep(d.settle)
	}
	return d.Read(resp)
}

// ReadRegisters reads len(p) registers starting at reg from a register-bank
// device.
func (d *Device) ReadRegisters(reg uint8, p []byte) error {
	return d.Exchange([]byte{reg}, p)
}

// WriteRegisters writes p to consecutive registers starting at reg.
func (d *Device) WriteRegisters(reg uint8, p []byte) error {
	if len(p)+1 > MaxRequest {
		return ErrRequestTooLong
	}
	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, reg)
	buf = append(buf, p...)
	return d.Write(buf)
}
