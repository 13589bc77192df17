// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package scd

import (
	"fmt"
	"time"

	"github.com/platinasystems/sysplat/internal/clock"
	"github.com/platinasystems/sysplat/register"
	"github.com/platinasystems/sysplat/reloadcause"
)

// FaultTimeBase is the epoch of the fault log clock.
var FaultTimeBase = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const ticksPerSecond = 1 << 16

func unknownCause(code uint32) reloadcause.Entry {
	return reloadcause.NewEntry(reloadcause.CauseUnknown, "",
		fmt.Sprintf("unknown logged fault %#04x", code), reloadcause.Logged)
}

func matchCause(descs []reloadcause.Desc, code uint32, when string) reloadcause.Entry {
	for _, d := range descs {
		if d.Code != code {
			continue
		}
		log.Debug("found cause %s %s", d.Type, d.Description)
		return reloadcause.NewEntry(d.Type, when, d.Description,
			reloadcause.Logged|reloadcause.Detailed|reloadcause.Score(d.Priority))
	}
	log.Debug("unhandled cause %#02x", code)
	return unknownCause(code)
}

// SimpleCauseProvider reads the last fault code of boards without a fault
// clock.
type SimpleCauseProvider struct {
	*reloadcause.Helper
	Scd   *Scd
	Addr  uint32
	Descs []reloadcause.Desc
}

func (s *Scd) AddSimpleCauseProvider(addr uint32, descs ...reloadcause.Desc) *SimpleCauseProvider {
	p := &SimpleCauseProvider{
		Helper: reloadcause.NewHelper(s.String()),
		Scd:    s,
		Addr:   addr,
		Descs:  descs,
	}
	s.Inventory().AddReloadCauseProvider(p)
	return p
}

func (p *SimpleCauseProvider) Process() error {
	p.Entries = nil
	if p.Scd.Simulated() {
		return nil
	}
	log.Debug("reading reboot causes for %s", p.SourceName)
	v, err := p.Scd.Dev.Read(p.Addr)
	if err != nil {
		return err
	}
	code := v & 0xff
	log.Debug("last cause code %#04x", code)
	p.Add(matchCause(p.Descs, code, ""))
	return nil
}

func (p *SimpleCauseProvider) ClearFaults() error {
	return p.Scd.Dev.Write(p.Addr, 0)
}

// CauseRegisters lays out the fault log at base.
func CauseRegisters(base uint32) register.Template {
	return register.Template{
		register.Reg(base, register.Range(0, 7, "lastCause")),
		register.Reg(base + 0x10).Named("lastSeconds").ReadOnly(),
		register.Reg(base + 0x14).Named("lastFractional").ReadOnly(),
		register.Reg(base + 0x20).Named("rtcSeconds"),
		register.Reg(base + 0x24).Named("rtcFractional"),
		register.Reg(base+0x30, register.BitRW(0, "clearFault")),
	}
}

// CauseProvider reads the fault log: a code and the fault clock time it
// was latched at.
type CauseProvider struct {
	*reloadcause.Helper
	Scd   *Scd
	Regs  *register.Map
	Descs []reloadcause.Desc
}

func (s *Scd) AddCauseProvider(t register.Template, descs ...reloadcause.Desc) *CauseProvider {
	p := &CauseProvider{
		Helper: reloadcause.NewHelper(s.String()),
		Scd:    s,
		Regs:   register.NewMap(s.Dev, 0, t),
		Descs:  descs,
	}
	s.Inventory().AddReloadCauseProvider(p)
	return p
}

// SetRealTimeClock loads the fault clock with the current time.
func (p *CauseProvider) SetRealTimeClock() error {
	d := clock.Now().Sub(FaultTimeBase)
	secs := d / time.Second
	ticks := (d % time.Second) * ticksPerSecond / time.Second
	if err := p.Regs.Register("rtcFractional").Write(uint32(ticks)); err != nil {
		return err
	}
	return p.Regs.Register("rtcSeconds").Write(uint32(secs))
}

func (p *CauseProvider) faultTime() (string, error) {
	ticks, err := p.Regs.Register("lastFractional").Read()
	if err != nil {
		return "", err
	}
	secs, err := p.Regs.Register("lastSeconds").Read()
	if err != nil {
		return "", err
	}
	t := FaultTimeBase.Add(time.Duration(secs) * time.Second).
		Add(time.Duration(ticks) * time.Second / ticksPerSecond)
	return clock.Format(t), nil
}

func (p *CauseProvider) ClearFaults() error {
	log.Debug("clearing faults")
	return p.Regs.Bit("clearFault").Set(true)
}

func (p *CauseProvider) Process() error {
	p.Entries = nil
	if p.Scd.Simulated() {
		return nil
	}
	if err := p.SetRealTimeClock(); err != nil {
		return err
	}
	pending, err := p.Regs.Bit("clearFault").Get()
	if err != nil {
		return err
	}
	if !pending {
		log.Debug("reboot cause already cleared")
		return nil
	}
	code, err := p.Regs.Range("lastCause").Get()
	if err != nil {
		return err
	}
	when, err := p.faultTime()
	if err != nil {
		return err
	}
	log.Debug("last cause code %#04x on %s", code, when)
	if err = p.ClearFaults(); err != nil {
		return err
	}
	p.Add(matchCause(p.Descs, code, when))
	return nil
}
