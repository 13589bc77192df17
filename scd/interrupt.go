// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package scd

import (
	"fmt"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/inventory"
)

// InterruptRegister is a bank of 32 interrupt lines. Its mask set, clear
// and status registers follow the read register by 0x10 each.
type InterruptRegister struct {
	Scd  *Scd
	Num  int
	Mask uint32

	ReadAddr, SetAddr, ClearAddr, StatusAddr uint32
}

// CreateInterrupt declares interrupt bank num at addr. The bank is left
// masked by mask until its lines are claimed.
func (s *Scd) CreateInterrupt(addr uint32, num int, mask uint32) *InterruptRegister {
	r := &InterruptRegister{
		Scd:        s,
		Num:        num,
		Mask:       mask,
		ReadAddr:   addr,
		SetAddr:    addr,
		ClearAddr:  addr + 0x10,
		StatusAddr: addr + 0x20,
	}
	if s.Mem != nil {
		s.Mem.SetClear(r.SetAddr, r.ClearAddr)
	}
	s.interrupts = append(s.interrupts, r)
	return r
}

func (r *InterruptRegister) String() string {
	return fmt.Sprintf("InterruptRegister(%#x)", r.ReadAddr)
}

// Setup tells the kernel where the bank lives.
func (r *InterruptRegister) Setup() error {
	if !config.Get().InitIrq {
		return nil
	}
	n := r.Num
	return r.Scd.writeConfig(
		fmt.Sprint("interrupt_mask_read_offset", n), fmt.Sprint(r.ReadAddr),
		fmt.Sprint("interrupt_mask_set_offset", n), fmt.Sprint(r.SetAddr),
		fmt.Sprint("interrupt_mask_clear_offset", n), fmt.Sprint(r.ClearAddr),
		fmt.Sprint("interrupt_status_offset", n), fmt.Sprint(r.StatusAddr),
		fmt.Sprint("interrupt_mask", n), fmt.Sprint(r.Mask),
	)
}

// SetMask masks bit.
func (r *InterruptRegister) SetMask(bit uint) error {
	return r.Scd.Dev.Write(r.SetAddr, 1<<bit)
}

// ClearMask unmasks bit.
func (r *InterruptRegister) ClearMask(bit uint) error {
	return r.Scd.Dev.Write(r.ClearAddr, 1<<bit)
}

// Masked reads the mask of bit.
func (r *InterruptRegister) Masked(bit uint) (bool, error) {
	v, err := r.Scd.Dev.Read(r.ReadAddr)
	return v&(1<<bit) != 0, err
}

// Bit returns the line at bit, or nil when interrupts are not managed
// by the kernel.
func (r *InterruptRegister) Bit(name string, bit uint) inventory.Interrupt {
	if !config.Get().InitIrq {
		return nil
	}
	i := &InterruptBit{Reg: r, Bit: bit, name: name}
	r.Scd.Inventory().AddInterrupt(i)
	return i
}

// InterruptBit is a single interrupt line.
type InterruptBit struct {
	Reg  *InterruptRegister
	Bit  uint
	name string
}

func (i *InterruptBit) Name() string { return i.name }
func (i *InterruptBit) Set() error   { return i.Reg.SetMask(i.Bit) }
func (i *InterruptBit) Clear() error { return i.Reg.ClearMask(i.Bit) }

func (i *InterruptBit) File() string {
	f, err := i.Reg.Scd.Uio(i.Reg.ReadAddr, i.Bit)
	if err != nil {
		log.Debug("%s: %v", i.name, err)
		return ""
	}
	return f
}
