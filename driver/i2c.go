// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"sync"

	"github.com/platinasystems/i2c"
	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
)

// Bus is an SMBus transport to the clients of one adapter.
type Bus interface {
	Do(rw i2c.RW, addr uint16, cmd uint8, size i2c.SMBusSize, data *i2c.SMBusData) error
	Close() error
}

// Opener returns a transport to adapter bus.
type Opener func(bus int) (Bus, error)

// HwBus drives /dev/i2c-N.
type HwBus struct {
	bus   i2c.Bus
	slave int
}

func OpenHw(index int) (Bus, error) {
	b := &HwBus{slave: -1}
	if err := b.bus.Open(index); err != nil {
		return nil, fmt.Errorf("i2c-%d: %w", index, err)
	}
	return b, nil
}

func (b *HwBus) Do(rw i2c.RW, addr uint16, cmd uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	if int(addr) != b.slave {
		if err := b.bus.ForceSlaveAddress(int(addr)); err != nil {
			return err
		}
		b.slave = int(addr)
	}
	return b.bus.Do(rw, cmd, size, data)
}

func (b *HwBus) Close() error { return b.bus.Close() }

// Sim is the transport of every bus in simulation.
var Sim = NewSimBus()

// DefaultOpener selects the hardware or simulated transport.
func DefaultOpener() Opener {
	if config.Get().InSimulation() {
		return Sim.Opener()
	}
	return OpenHw
}

// I2cUser accesses an i2c client from userspace.
type I2cUser struct {
	Base
	Addr address.I2cAddr
	Open Opener

	mu  sync.Mutex
	bus Bus
	id  int
}

func NewI2cUser(name string, addr address.I2cAddr) *I2cUser {
	return &I2cUser{
		Base: Base{Name: name},
		Addr: addr,
		Open: DefaultOpener(),
	}
}

func (d *I2cUser) String() string {
	return fmt.Sprintf("I2cUser(%s, addr=%s)", d.Base, d.Addr)
}

func (d *I2cUser) do(rw i2c.RW, cmd uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.Addr.BusId()
	if d.bus != nil && d.id != id {
		d.bus.Close()
		d.bus = nil
	}
	if d.bus == nil {
		open := d.Open
		if open == nil {
			open = DefaultOpener()
		}
		b, err := open(id)
		if err != nil {
			return err
		}
		d.bus, d.id = b, id
	}
	err := d.bus.Do(rw, d.Addr.Address, cmd, size, data)
	if err != nil {
		return fmt.Errorf("%s: cmd %#02x: %w", d.Addr, cmd, err)
	}
	return nil
}

// Clean closes the transport; the next access reopens it.
func (d *I2cUser) Clean() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	return err
}

func (d *I2cUser) Close() error { return d.Clean() }

func (d *I2cUser) ReadByte() (byte, error) {
	var data i2c.SMBusData
	err := d.do(i2c.Read, 0, i2c.Byte, &data)
	log.Io("%s.read_byte() = %#02x", d.Addr, data[0])
	return data[0], err
}

func (d *I2cUser) ReadByteData(cmd uint8) (uint8, error) {
	var data i2c.SMBusData
	err := d.do(i2c.Read, cmd, i2c.ByteData, &data)
	log.Io("%s.read_byte_data(%#02x) = %#02x", d.Addr, cmd, data[0])
	return data[0], err
}

func (d *I2cUser) WriteByteData(cmd, v uint8) error {
	var data i2c.SMBusData
	data[0] = v
	log.Io("%s.write_byte_data(%#02x, %#02x)", d.Addr, cmd, v)
	return d.do(i2c.Write, cmd, i2c.ByteData, &data)
}

func (d *I2cUser) ReadWordData(cmd uint8) (uint16, error) {
	var data i2c.SMBusData
	err := d.do(i2c.Read, cmd, i2c.WordData, &data)
	v := uint16(data[1])<<8 | uint16(data[0])
	log.Io("%s.read_word_data(%#02x) = %#04x", d.Addr, cmd, v)
	return v, err
}

func (d *I2cUser) WriteWordData(cmd uint8, v uint16) error {
	var data i2c.SMBusData
	data[0] = uint8(v)
	data[1] = uint8(v >> 8)
	log.Io("%s.write_word_data(%#02x, %#04x)", d.Addr, cmd, v)
	return d.do(i2c.Write, cmd, i2c.WordData, &data)
}

// ReadBlockData reads a length prefixed block. Clients whose adapter
// lacks SMBus block support read the prefix through an i2c block read.
func (d *I2cUser) ReadBlockData(cmd uint8) ([]byte, error) {
	var data i2c.SMBusData
	if d.Addr.Block {
		if err := d.do(i2c.Read, cmd, i2c.BlockData, &data); err != nil {
			return nil, err
		}
		n := clamp(int(data[0]))
		return append([]byte(nil), data[1:1+n]...), nil
	}
	data[0] = i2c.BlockMax
	if err := d.do(i2c.Read, cmd, i2c.I2CBlockData, &data); err != nil {
		return nil, err
	}
	n := clamp(int(data[1]))
	if n > i2c.BlockMax-1 {
		n = i2c.BlockMax - 1
	}
	return append([]byte(nil), data[2:2+n]...), nil
}

func (d *I2cUser) WriteBlockData(cmd uint8, b []byte) error {
	if len(b) > i2c.BlockMax {
		return fmt.Errorf("%s: block of %d bytes", d.Addr, len(b))
	}
	var data i2c.SMBusData
	data[0] = uint8(len(b))
	copy(data[1:], b)
	return d.do(i2c.Write, cmd, i2c.BlockData, &data)
}

// ReadBytes writes cmd then reads n bytes in one transaction.
func (d *I2cUser) ReadBytes(cmd uint8, n int) ([]byte, error) {
	b := make([]byte, 0, n)
	for len(b) < n {
		chunk := n - len(b)
		if chunk > i2c.BlockMax {
			chunk = i2c.BlockMax
		}
		var data i2c.SMBusData
		data[0] = uint8(chunk)
		if err := d.do(i2c.Read, cmd+uint8(len(b)), i2c.I2CBlockData, &data); err != nil {
			return nil, err
		}
		b = append(b, data[1:1+chunk]...)
	}
	log.Io("%s.read_bytes(%#02x, %d) = %x", d.Addr, cmd, n, b)
	return b, nil
}

// WriteBytes writes cmd followed by b.
func (d *I2cUser) WriteBytes(cmd uint8, b []byte) error {
	log.Io("%s.write_bytes(%#02x, %x)", d.Addr, cmd, b)
	for off := 0; off < len(b); off += i2c.BlockMax {
		end := off + i2c.BlockMax
		if end > len(b) {
			end = len(b)
		}
		var data i2c.SMBusData
		data[0] = uint8(end - off)
		copy(data[1:], b[off:end])
		if err := d.do(i2c.Write, cmd+uint8(off), i2c.I2CBlockData, &data); err != nil {
			return err
		}
	}
	return nil
}

// Ping reports whether the client acknowledges a byte read.
func (d *I2cUser) Ping() bool {
	_, err := d.ReadByte()
	return err == nil
}

// Read and Write expose the client's byte registers as a register.Device.
func (d *I2cUser) Read(addr uint32) (uint32, error) {
	v, err := d.ReadByteData(uint8(addr))
	return uint32(v), err
}

func (d *I2cUser) Write(addr, v uint32) error {
	return d.WriteByteData(uint8(addr), uint8(v))
}

func clamp(n int) int {
	if n > i2c.BlockMax {
		return i2c.BlockMax
	}
	return n
}
