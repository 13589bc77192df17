// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dpm provides access to the UCD90xxx power sequencer and monitor
// chips: rail readings over PMBus and the fault log they keep across
// power cycles.
package dpm

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/clock"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/reloadcause"
)

var log = logging.Get("dpm")

// PMBus and manufacturer commands.
const (
	regPage          = 0x00
	regVoutMode      = 0x20
	regReadVout      = 0x8b
	regReadIout      = 0x8c
	regReadPout      = 0x96
	regMfrSerial     = 0x9e
	regRunTimeClock  = 0xd7
	regLoggedFaults  = 0xea
	regFaultIndex    = 0xeb
	regFaultDetail   = 0xec
	regDeviceId      = 0xfd
	faultTypeGpi     = 9
	maxFaultTypeRail = 2
)

var railFaults = []string{"over-voltage", "under-voltage", "timeout-power-good"}

// Detail is a decoded entry of the fault log.
type Detail struct {
	Paged bool
	Type  int
	// Page is the one based rail, or gpi, of the fault.
	Page  int
	Value int
	Days  int
	Msecs int
}

// Model describes the fault log layout of a chip.
type Model struct {
	Name string
	// LoggedFaults and FaultDetail are the block sizes of the fault
	// summary and of one fault log entry.
	LoggedFaults int
	FaultDetail  int
	// GpiSize is the number of gpi fault bytes in the summary.
	GpiSize int
	// TimeBase is the epoch of fault days; DaysOffset is added to the
	// days loaded in the run time clock.
	TimeBase   time.Time
	DaysOffset int
	// Parse decodes a fault log entry.
	Parse func(b []byte) Detail
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func parseDetail(b []byte) Detail {
	msecs := be32(b[0:4])
	fid := be32(b[4:8])
	return Detail{
		Paged: fid>>31 != 0,
		Type:  int(fid>>27) & 0xf,
		Page:  int(fid>>23)&0xf + 1,
		Days:  int(fid & 0x7fffff),
		Msecs: int(msecs),
		Value: int(b[9])<<8 | int(b[8]),
	}
}

// parseDetail90320 packs the page with the milliseconds.
func parseDetail90320(b []byte) Detail {
	pm := be32(b[0:4])
	fid := be32(b[4:8])
	return Detail{
		Paged: fid>>31 != 0,
		Type:  int(fid>>27) & 0xf,
		Page:  int(pm>>27) + 1,
		Days:  int(fid>>11) & 0xffff,
		Msecs: int(pm & 0x7ffffff),
		Value: int(b[9])<<8 | int(b[8]),
	}
}

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	Ucd9090A = &Model{
		Name: "ucd9090a", LoggedFaults: 13, FaultDetail: 10, GpiSize: 1,
		TimeBase: unixEpoch, Parse: parseDetail,
	}
	Ucd90120 = &Model{
		Name: "ucd90120", LoggedFaults: 13, FaultDetail: 10,
		TimeBase: unixEpoch, Parse: parseDetail,
	}
	Ucd90120A = &Model{
		Name: "ucd90120a", LoggedFaults: 14, FaultDetail: 10, GpiSize: 1,
		TimeBase: unixEpoch, Parse: parseDetail,
	}
	Ucd90160 = &Model{
		Name: "ucd90160", LoggedFaults: 18, FaultDetail: 10, GpiSize: 1,
		TimeBase: unixEpoch, Parse: parseDetail,
	}
	// Ucd90320 counts fault days from 2000 and run time days from year 1.
	Ucd90320 = &Model{
		Name: "ucd90320", LoggedFaults: 37, FaultDetail: 12, GpiSize: 4,
		TimeBase:   time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		DaysOffset: 719162,
		Parse:      parseDetail90320,
	}
)

// Cause maps a gpi bit or a monitored rail page to a reload cause.
type Cause struct {
	Name     string
	Gpi      int
	Mon      int
	Priority int
}

// Gpi names the cause latched by gpi bit, one based.
func Gpi(name string, bit int) Cause {
	return Cause{Name: name, Gpi: bit, Priority: reloadcause.PriorityNormal}
}

// Mon names the cause of a fault on monitored rail page.
func Mon(name string, page int) Cause {
	return Cause{Name: name, Mon: page, Priority: reloadcause.PriorityNormal}
}

func (c Cause) WithPriority(p int) Cause {
	c.Priority = p
	return c
}

// Ucd is a UCD90xxx power sequencer.
type Ucd struct {
	component.Component
	Model  *Model
	Addr   address.I2cAddr
	Dev    *driver.I2cUser
	Causes []Cause
	// Oldest is the time the run time clock counts from.
	Oldest time.Time

	provider *reloadcause.Helper
}

// New declares a sequencer at addr; causes decode its fault log.
func New(parent component.Node, m *Model, addr address.I2cAddr, causes ...Cause) *Ucd {
	u := &Ucd{
		Model:  m,
		Addr:   addr,
		Causes: causes,
		Oldest: unixEpoch,
	}
	u.Component.Name = fmt.Sprintf("Ucd(%s, addr=%s)", m.Name, addr)
	u.Priority = component.Dpm
	u.Dev = driver.NewI2cUser(m.Name, addr)
	u.Driver = u.Dev
	component.Add(parent, u)
	u.provider = reloadcause.NewHelper(u.String())
	u.Inventory().AddReloadCauseProvider(&causeProvider{u})
	u.Inventory().AddProgrammable(programmable{u})
	return u
}

// Setup loads the run time clock so that faults logged from now on carry
// the wall clock time.
func (u *Ucd) Setup() error {
	if config.Get().InSimulation() &&
		driver.Sim.Device(u.Addr.Bus.BusId(), u.Addr.Address) == nil {
		log.Debug("%s: no simulated device, run time clock left alone", u)
		return nil
	}
	return u.SetRunTimeClock()
}

func (u *Ucd) SetRunTimeClock() error {
	d := clock.Now().Sub(u.Oldest)
	days := int(d/(24*time.Hour)) + u.Model.DaysOffset
	msecs := int((d % (24 * time.Hour)) / time.Millisecond)
	b := []byte{
		byte(msecs >> 24), byte(msecs >> 16), byte(msecs >> 8), byte(msecs),
		byte(days >> 24), byte(days >> 16), byte(days >> 8), byte(days),
	}
	return u.Dev.WriteBlockData(regRunTimeClock, b)
}

func (u *Ucd) RunTimeClock() (time.Time, error) {
	b, err := u.Dev.ReadBlockData(regRunTimeClock)
	if err != nil {
		return time.Time{}, err
	}
	if len(b) < 8 {
		return time.Time{}, fmt.Errorf("%s: run time clock of %d bytes", u, len(b))
	}
	msecs := be32(b[0:4])
	days := int(be32(b[4:8])) - u.Model.DaysOffset
	return u.Oldest.AddDate(0, 0, days).
		Add(time.Duration(msecs) * time.Millisecond), nil
}

type programmable struct{ u *Ucd }

func (p programmable) Component() string   { return p.u.String() }
func (p programmable) Description() string { return "Power Sequencer" }
func (p programmable) Version() string     { return p.u.Version() }

// Version is the serial and the device id of the chip.
func (u *Ucd) Version() string {
	serial, err := u.Dev.ReadBlockData(regMfrSerial)
	if err != nil {
		log.Debug("%s: serial: %v", u, err)
		return "N/A"
	}
	id, err := u.Dev.ReadBlockData(regDeviceId)
	if err != nil {
		log.Debug("%s: device id: %v", u, err)
		return "N/A"
	}
	dev := strings.ReplaceAll(strings.TrimRight(string(id), "\x00"), "|", " ")
	return string(serial) + " " + dev
}

func (u *Ucd) gpiFaults(gpi uint32) []reloadcause.Entry {
	var l []reloadcause.Entry
	for _, c := range u.Causes {
		if c.Gpi == 0 || gpi&(1<<uint(c.Gpi-1)) == 0 {
			continue
		}
		l = append(l, reloadcause.NewEntry(c.Name, "", "gpi fault",
			reloadcause.Logged|reloadcause.Score(c.Priority)))
	}
	return l
}

// faultCauses decodes one fault log entry.
func (u *Ucd) faultCauses(b []byte) []reloadcause.Entry {
	if len(b) < u.Model.FaultDetail {
		log.Debug("%s: short fault entry % x", u, b)
		return nil
	}
	d := u.Model.Parse(b)
	when := clock.Format(u.Model.TimeBase.AddDate(0, 0, d.Days).
		Add(time.Duration(d.Msecs) * time.Millisecond))
	log.Debug("%s: paged=%t type=%d page=%d value=%#04x time=%s",
		u, d.Paged, d.Type, d.Page, d.Value, when)
	detailed := reloadcause.Logged | reloadcause.Detailed
	var l []reloadcause.Entry
	switch {
	case !d.Paged && d.Type == faultTypeGpi:
		for _, c := range u.Causes {
			if c.Gpi == d.Page {
				l = append(l, reloadcause.NewEntry(c.Name, when,
					"gpi detailed fault", detailed|reloadcause.Score(c.Priority)))
			}
		}
	case d.Paged && d.Type <= maxFaultTypeRail:
		for _, c := range u.Causes {
			if c.Mon == d.Page {
				l = append(l, reloadcause.NewEntry(c.Name, when,
					"mon detailed fault", detailed|reloadcause.Score(c.Priority)))
			}
		}
		if len(l) == 0 {
			name := railFaults[d.Type]
			l = append(l, reloadcause.NewEntry(name, when,
				fmt.Sprintf("%s on rail %d", name, d.Page),
				reloadcause.Event|reloadcause.Detailed))
		}
	}
	return l
}

// ReloadCauses reads and decodes the fault log, then clears it.
func (u *Ucd) ReloadCauses() ([]reloadcause.Entry, error) {
	sum, err := u.Dev.ReadBlockData(regLoggedFaults)
	if err != nil {
		return nil, err
	}
	if len(sum) > 0 && sum[0] != 0 {
		log.Debug("%s: non paged faults were detected", u)
	}
	var causes []reloadcause.Entry
	if n := u.Model.GpiSize; n > 0 && len(sum) > n {
		var gpi uint32
		for i := 0; i < n; i++ {
			gpi |= uint32(sum[1+i]) << (8 * uint(i))
		}
		causes = u.gpiFaults(gpi)
		log.Debug("%s: found %d gpi faults", u, len(causes))
	}
	idx, err := u.Dev.ReadWordData(regFaultIndex)
	if err != nil {
		return causes, err
	}
	count := int(idx >> 8)
	log.Debug("%s: found %d faults", u, count)
	for i := 0; i < count; i++ {
		if err = u.Dev.WriteWordData(regFaultIndex, uint16(i)); err != nil {
			return causes, err
		}
		b, err := u.Dev.ReadBlockData(regFaultDetail)
		if err != nil {
			return causes, err
		}
		causes = append(causes, u.faultCauses(b)...)
	}
	log.Debug("%s: clearing faults", u)
	return causes, u.ClearFaults()
}

func (u *Ucd) ClearFaults() error {
	return u.Dev.WriteBlockData(regLoggedFaults, make([]byte, u.Model.LoggedFaults))
}

type causeProvider struct{ u *Ucd }

func (p *causeProvider) Name() string                  { return p.u.provider.Name() }
func (p *causeProvider) Causes() []reloadcause.Entry   { return p.u.provider.Causes() }
func (p *causeProvider) Extra() map[string]interface{} { return p.u.provider.Extra() }

func (p *causeProvider) Process() error {
	causes, err := p.u.ReloadCauses()
	p.u.provider.Entries = causes
	return err
}
