// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package scd

import "github.com/platinasystems/sysplat/register"

// SeuRegisters is the common single event upset control register.
func SeuRegisters(addr uint32) register.Template {
	return register.Template{
		register.Reg(addr,
			register.BitRW(3, "powerCycleOnSeu"),
			register.BitRW(2, "hasSeuError"),
		),
	}
}

// SeuReporter reports configuration memory upsets of the fpga. The
// powerCycleOnSeu bit is optional.
type SeuReporter struct {
	Scd  *Scd
	Regs *register.Map
}

func (s *Scd) AddSeuReporter(t register.Template) *SeuReporter {
	r := &SeuReporter{Scd: s, Regs: register.NewMap(s.Dev, 0, t)}
	s.Inventory().AddSeuReporter(r)
	return r
}

func (r *SeuReporter) Component() string { return r.Scd.String() }

func (r *SeuReporter) HasSeuError() (bool, error) {
	return r.Regs.Bit("hasSeuError").Get()
}

func (r *SeuReporter) PowerCycleOnSeu() (bool, error) {
	if !r.Regs.Has("powerCycleOnSeu") {
		return false, nil
	}
	return r.Regs.Bit("powerCycleOnSeu").Get()
}

func (r *SeuReporter) SetPowerCycleOnSeu(on bool) error {
	if !r.Regs.Has("powerCycleOnSeu") {
		return nil
	}
	return r.Regs.Bit("powerCycleOnSeu").Set(on)
}
