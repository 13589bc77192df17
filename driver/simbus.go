// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"sync"

	"github.com/platinasystems/i2c"
	"golang.org/x/sys/unix"
)

// SimDevice is the register file of a simulated client. Blocks hold the
// payload returned by SMBus block reads of a command.
type SimDevice struct {
	Regs   [256]byte
	Blocks map[uint8][]byte
	ptr    uint8
}

// SimBus simulates clients on every adapter; a client absent from the
// bus does not acknowledge.
type SimBus struct {
	mu      sync.Mutex
	devices map[[2]int]*SimDevice
}

func NewSimBus() *SimBus {
	return &SimBus{devices: make(map[[2]int]*SimDevice)}
}

// Opener returns an opener whose busses all share this simulation.
func (s *SimBus) Opener() Opener {
	return func(bus int) (Bus, error) {
		return simHandle{s, bus}, nil
	}
}

// Add creates, or returns, the client at addr on bus.
func (s *SimBus) Add(bus int, addr uint16) *SimDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]int{bus, int(addr)}
	d := s.devices[k]
	if d == nil {
		d = &SimDevice{Blocks: make(map[uint8][]byte)}
		s.devices[k] = d
	}
	return d
}

func (s *SimBus) Remove(bus int, addr uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, [2]int{bus, int(addr)})
}

// Device returns the client at addr on bus or nil.
func (s *SimBus) Device(bus int, addr uint16) *SimDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[[2]int{bus, int(addr)}]
}

// Reset forgets every simulated client.
func (s *SimBus) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = make(map[[2]int]*SimDevice)
}

func (s *SimBus) do(bus int, rw i2c.RW, addr uint16, cmd uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devices[[2]int{bus, int(addr)}]
	if d == nil {
		return unix.ENXIO
	}
	read := rw == i2c.Read
	switch size {
	case i2c.Quick:
	case i2c.Byte:
		if read {
			data[0] = d.Regs[d.ptr]
			d.ptr++
		} else {
			d.ptr = cmd
		}
	case i2c.ByteData:
		if read {
			data[0] = d.Regs[cmd]
		} else {
			d.Regs[cmd] = data[0]
		}
	case i2c.WordData:
		if read {
			data[0], data[1] = d.Regs[cmd], d.Regs[cmd+1]
		} else {
			d.Regs[cmd], d.Regs[cmd+1] = data[0], data[1]
		}
	case i2c.BlockData:
		if read {
			b := d.Blocks[cmd]
			data[0] = uint8(len(b))
			copy(data[1:], b)
		} else {
			d.Blocks[cmd] = append([]byte(nil), data[1:1+clamp(int(data[0]))]...)
		}
	case i2c.I2CBlockData:
		n := clamp(int(data[0]))
		if read {
			if b, ok := d.Blocks[cmd]; ok {
				stream := append([]byte{uint8(len(b))}, b...)
				copy(data[1:1+n], stream)
			} else {
				for i := 0; i < n; i++ {
					data[1+i] = d.Regs[uint8(int(cmd)+i)]
				}
			}
		} else {
			for i := 0; i < n; i++ {
				d.Regs[uint8(int(cmd)+i)] = data[1+i]
			}
		}
	default:
		return fmt.Errorf("smbus size %d: %w", size, unix.EOPNOTSUPP)
	}
	return nil
}

type simHandle struct {
	s   *SimBus
	bus int
}

func (h simHandle) Do(rw i2c.RW, addr uint16, cmd uint8, size i2c.SMBusSize, data *i2c.SMBusData) error {
	return h.s.do(h.bus, rw, addr, cmd, size, data)
}

func (simHandle) Close() error { return nil }
