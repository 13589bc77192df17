// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
	"github.com/platinasystems/sysplat/scd"
)

// PlxUpstreamPorts connects supervisor 1 and 2 to the PLX.
var PlxUpstreamPorts = map[int]int{1: 0, 2: 2}

// Gpio1 templates of the board PCA9555 at 0x20.
var (
	LinecardGpio1 = register.Template{
		register.Reg(0x0,
			register.BitFlip(1, "tempAlert"),
			register.Bit(2, "powerGood"),
			register.BitRW(4, "powerCycle"),
			register.BitFlip(7, "pcieFatalError"),
		),
		register.Reg(0x1,
			register.BitRW(0, "cpEcbOn"),
			register.BitRW(1, "dpEcbOn"),
			register.BitField{Bit: 2, Name: "statusGrn", RW: true, Flip: true},
			register.BitField{Bit: 3, Name: "statusRed", RW: true, Flip: true},
			register.BitRW(4, "pcieUpstream"),
			register.BitRW(5, "lcpuMode"),
			register.BitField{Bit: 6, Name: "pcieReset", RW: true, Flip: true},
			register.BitField{Bit: 7, Name: "scdReset", RW: true, Flip: true},
		),
	}
	FabricGpio1 = register.Template{
		register.Reg(0x0,
			register.Bit(0, "powerGood"),
			register.BitFlip(1, "tempAlert"),
			register.BitRW(4, "powerCycle"),
		),
		register.Reg(0x1,
			register.BitRW(0, "ecbOn"),
			register.BitField{Bit: 1, Name: "statusGrn", RW: true, Flip: true},
			register.BitField{Bit: 2, Name: "statusRed", RW: true, Flip: true},
			register.BitRW(3, "pcieUpstream"),
			register.BitFlip(5, "ejectorClosed"),
			register.BitField{Bit: 6, Name: "pcieReset", RW: true, Flip: true},
			register.BitRW(7, "fanFull"),
		),
	}
)

// linecardScdResets are the switch chip resets of the linecard SCD.
var linecardScdResets = []inventory.ResetDesc{
	{Name: "je0Reset", Addr: 0x4000, Bit: 0},
	{Name: "je0PcieReset", Addr: 0x4000, Bit: 1},
	{Name: "je1Reset", Addr: 0x4000, Bit: 2},
	{Name: "je1PcieReset", Addr: 0x4000, Bit: 3},
	{Name: "je2Reset", Addr: 0x4000, Bit: 4},
	{Name: "je2PcieReset", Addr: 0x4000, Bit: 5},
}

// Syscpld registers of linecards carrying their own cpu.
var lcpuCpldRegs = register.Template{
	register.Reg(0x01).Named("revision"),
	register.Reg(0x03, register.RangeRW(0, 7, "slotId")),
	register.Reg(0x04,
		register.Bit(0, "lcpuPowerGood"),
		register.Bit(2, "lcpuInReset"),
		register.BitFlip(3, "lcpuMuxSel"),
	),
	register.SetClr(0x30, 0x31,
		register.BitRW(0, "lcpuDisableSet"),
		register.BitRW(1, "lcpuResetSet"),
		register.BitRW(3, "supGmacReset"),
		register.BitRW(4, "lcpuGmacReset"),
		register.BitRW(5, "gmacLowPower"),
	),
	register.Reg(0x32, register.RangeRW(0, 7, "provision")),
}

// Syscpld is the i2c control cpld of a linecard cpu.
type Syscpld struct {
	component.Component
	Addr address.I2cAddr
	Mem  *register.Memory
	Regs *register.Map
}

func NewSyscpld(parent component.Node, addr address.I2cAddr) *Syscpld {
	s := &Syscpld{Addr: addr}
	s.Component.Name = fmt.Sprintf("Syscpld(addr=%s)", addr)
	var dev register.Device
	if config.Get().InSimulation() {
		s.Mem = register.NewMemory().SetClear(0x30, 0x31)
		dev = s.Mem
	} else {
		u := driver.NewI2cUser("syscpld", addr)
		s.Component.Driver = u
		dev = u
	}
	s.Regs = register.NewMap(dev, 0, lcpuCpldRegs)
	return component.Add(parent, s)
}

func (s *Syscpld) bit(name string) bool {
	on, err := s.Regs.Bit(name).Get()
	if err != nil {
		log.Debug("%s: %s: %v", s, name, err)
	}
	return on
}

func (s *Syscpld) LcpuPowerGood() bool { return s.bit("lcpuPowerGood") }
func (s *Syscpld) LcpuInReset() bool   { return s.bit("lcpuInReset") }

// DenaliAsic places a switch chip behind the card PLX.
type DenaliAsic struct {
	// PciOffset is the bus of the chip behind the slot port.
	PciOffset int
	// CoreReset and PcieReset name the reset bits.
	CoreReset, PcieReset string
}

// DenaliCardConfig describes a Denali card product.
type DenaliCardConfig struct {
	Kind  Kind
	Gpio1 register.Template
	// Gpio1Addr picks the expander address, 0x20 when nil.
	Gpio1Addr func(*DenaliCard) uint16
	// Gpio2 is an optional second expander at 0x21.
	Gpio2 register.Template
	Asics []DenaliAsic
	// ScdPciOffset places the linecard SCD behind the slot port.
	ScdPciOffset int
	// PlxLcpuMode holds the virtual switch port vectors used when the
	// card cpu is enabled.
	PlxLcpuMode []uint32
	// Lcpu declares the syscpld of a card carrying its own cpu.
	Lcpu bool
	// StandbyFn and MainFn declare the product specific devices.
	StandbyFn func(*DenaliCard, *PowerDomain)
	MainFn    func(*DenaliCard, *PowerDomain)
}

// DenaliCard is a linecard or fabric card of a Denali chassis. The
// standby domain holds the PLX and the board gpio expanders, the main
// domain the SCD and switch chips.
type DenaliCard struct {
	*Card
	Config  DenaliCardConfig
	Gpio1   *GpioExpander
	Gpio2   *GpioExpander
	Plx     *Plx
	Syscpld *Syscpld
	Scd     *scd.Scd
	Asics   []*component.SwitchChip
	// Timeout bounds every power sequencing wait.
	Timeout time.Duration
}

func NewDenaliCard(name string, slot *CardSlot, cfg DenaliCardConfig) *DenaliCard {
	d := &DenaliCard{
		Card:    NewCard(name, cfg.Kind, slot),
		Config:  cfg,
		Timeout: wait.DefaultTimeout,
	}
	d.Behavior = d
	d.LoadDomains(d.standbyDomain, d.mainDomain)
	return d
}

func (d *DenaliCard) standbyDomain(p *PowerDomain) {
	s := d.Slot
	gpio1 := uint16(0x20)
	if d.Config.Gpio1Addr != nil {
		gpio1 = d.Config.Gpio1Addr(d)
	}
	d.Gpio1 = NewGpioExpander(p, s.Pca.I2cAddr(gpio1), d.Config.Gpio1)
	d.Gpio1.Led("status", "statusRed", "statusGrn")
	if d.Config.Gpio2 != nil {
		d.Gpio2 = NewGpioExpander(p, s.Pca.I2cAddr(0x21), d.Config.Gpio2)
	}
	d.Plx = NewPlx(p, s.I2cAddr(0x38))
	if d.Config.Lcpu {
		d.Syscpld = NewSyscpld(p, s.I2cAddr(0x23))
	}
	if d.Config.StandbyFn != nil {
		d.Config.StandbyFn(d, p)
	}
}

func (d *DenaliCard) mainDomain(p *PowerDomain) {
	if d.Kind == Linecard {
		addr, err := d.Slot.PciAddr(d.Config.ScdPciOffset)
		if err != nil {
			log.Debug("%s: scd address: %v", d, err)
		}
		d.Scd = scd.New(p, addr)
		d.Scd.AddResets(linecardScdResets...)
	}
	for i, desc := range d.Config.Asics {
		addr, err := d.Slot.PciAddr(desc.PciOffset)
		if err != nil {
			log.Debug("%s: asic %d address: %v", d, i, err)
		}
		chip := component.Add(p, component.NewSwitchChip(addr))
		if r, found := d.reset(desc.CoreReset); found {
			chip.CoreResets = append(chip.CoreResets, r)
		}
		if r, found := d.reset(desc.PcieReset); found {
			chip.PcieResets = append(chip.PcieResets, r)
		}
		d.Asics = append(d.Asics, chip)
	}
	if d.Config.MainFn != nil {
		d.Config.MainFn(d, p)
	}
}

// reset finds a reset bit on the SCD, then on gpio2.
func (d *DenaliCard) reset(name string) (inventory.Reset, bool) {
	if len(name) == 0 {
		return nil, false
	}
	if d.Scd != nil {
		if r, found := d.Scd.Reset(name); found {
			return r, true
		}
	}
	if d.Gpio2 != nil && d.Gpio2.Has(name) {
		r := component.NewResetBit(d.Gpio2.Regs, inventory.ResetDesc{Name: name})
		d.Gpio2.Inventory().AddReset(r)
		return r, true
	}
	return nil, false
}

// UpstreamPort is the PLX port of the active supervisor.
func (d *DenaliCard) UpstreamPort() int {
	id := 1
	if sup := d.Slot.Supervisor; sup != nil {
		id = sup.SlotId()
	}
	if id == 0 {
		id = 1
	}
	return PlxUpstreamPorts[id]
}

func (d *DenaliCard) waitFor(cond func() bool, desc string) error {
	return wait.For(cond, fmt.Sprint(d, ": ", desc), wait.Timeout(d.Timeout))
}

func (d *DenaliCard) gpio1(name string, on bool) error {
	return d.Gpio1.Set(name, on)
}

func (d *DenaliCard) PoweredOn() bool {
	if d.RunningOnLcpu() {
		return true
	}
	if d.Gpio1 == nil {
		return false
	}
	on, err := d.Gpio1.Get("powerGood")
	if err != nil {
		log.Debug("%s: failed to read power good: %v", d, err)
		return false
	}
	return on
}

func (d *DenaliCard) setGpios(names []string, on bool) error {
	for _, n := range names {
		v := on
		if n == "scdReset" || n == "pcieUpstream" {
			v = !on
		}
		if err := d.gpio1(n, v); err != nil {
			return err
		}
	}
	return nil
}

// powerStandby turns the card ECBs; the DPMs and POLs follow in hardware
// and raise power good.
func (d *DenaliCard) powerStandby(on bool) error {
	if d.Gpio1 == nil {
		return fmt.Errorf("%s: standby domain not loaded", d)
	}
	if d.Kind == Fabric {
		if err := d.gpio1("ecbOn", on); err != nil {
			return err
		}
		if !on {
			return nil
		}
		if err := d.waitFor(d.PoweredOn, "card to turn on"); err != nil {
			return err
		}
		if d.Gpio2 != nil && d.Gpio2.Has("ramonSmbusEnable") {
			if err := d.Gpio2.Set("ramonSmbusEnable", true); err != nil {
				return err
			}
			return d.Gpio2.Set("polSmbusEnable", true)
		}
		return nil
	}
	if err := d.setGpios([]string{"cpEcbOn", "dpEcbOn", "scdReset", "pcieUpstream"}, on); err != nil {
		return err
	}
	if on {
		return d.waitFor(d.PoweredOn, "card to turn on")
	}
	return d.waitFor(func() bool { return !d.PoweredOn() }, "card to turn off")
}

func (d *DenaliCard) setupPlx() error {
	if err := d.Plx.EnableHotPlug(); err != nil {
		return err
	}
	if err := d.Plx.SetUpstreamPort(d.UpstreamPort()); err != nil {
		return err
	}
	if err := d.Plx.EnableNt(false); err != nil {
		return err
	}
	for vs, ports := range d.Config.PlxLcpuMode {
		if err := d.Plx.VsPortVec(vs, ports); err != nil {
			return err
		}
	}
	return nil
}

// plxUpstreamLink holds the PLX upstream port down while the supervisor
// switch port is bound or unbound.
func (d *DenaliCard) plxUpstreamLink(bind bool) error {
	up := d.UpstreamPort()
	if err := d.Plx.DisableUpstreamPort(up, true); err != nil {
		return err
	}
	var sw *Microsemi
	if sup := d.Slot.Supervisor; sup != nil {
		sw = sup.PciSwitch
	}
	if !bind {
		if sw == nil {
			return nil
		}
		return sw.Unbind(d.SlotId(), DefaultUnbindFlags)
	}
	if sw != nil {
		if err := sw.Bind(d.SlotId()); err != nil {
			return err
		}
	}
	return d.Plx.DisableUpstreamPort(up, false)
}

func (d *DenaliCard) statusLed(c inventory.Color) error {
	l, found := d.InventoryReader().Leds()["status"]
	if !found {
		return nil
	}
	return l.SetColor(c)
}

// powerPremain brings the PLX out of reset and links it to the
// supervisor switch.
func (d *DenaliCard) powerPremain(on bool) error {
	if !on {
		if err := d.plxUpstreamLink(false); err != nil {
			return err
		}
		if err := d.gpio1("pcieReset", true); err != nil {
			return err
		}
		return d.statusLed(inventory.Off)
	}
	if !d.PoweredOn() {
		return fmt.Errorf("%s: card is not turned on", d)
	}
	if err := d.gpio1("pcieReset", false); err != nil {
		return err
	}
	if err := d.waitFor(d.Plx.Ping, "plx out of reset"); err != nil {
		return err
	}
	if err := d.setupPlx(); err != nil {
		return err
	}
	if err := d.plxUpstreamLink(true); err != nil {
		return err
	}
	return d.statusLed(inventory.Amber)
}

func (d *DenaliCard) updateAsicAddrs() {
	for i, chip := range d.Asics {
		addr, err := d.Slot.PciAddr(d.Config.Asics[i].PciOffset)
		if err != nil {
			log.Warning("%s: asic %d address: %v", d, i, err)
			continue
		}
		chip.Addr = addr
	}
}

func (d *DenaliCard) powerMain(on bool) error {
	for i, chip := range d.Asics {
		log.Debug("%s: asic %d reset in", d, i)
		if err := chip.ResetIn(); err != nil {
			return err
		}
		if err := d.waitFor(chip.InReset, "asic in reset"); err != nil {
			return err
		}
		if on {
			log.Debug("%s: asic %d reset out", d, i)
			if err := chip.ResetOut(); err != nil {
				return err
			}
		}
	}
	if !on {
		return nil
	}
	if err := d.Slot.EnablePciPort(); err != nil {
		return err
	}
	d.updateAsicAddrs()
	for _, chip := range d.Asics {
		if err := chip.WaitForIt(d.Timeout); err != nil {
			return err
		}
	}
	return nil
}

// powerLcpu hands the card to its own cpu.
func (d *DenaliCard) powerLcpu(on bool, lcpu *LcpuCtx) error {
	c := d.Syscpld
	if c == nil {
		return fmt.Errorf("%s: no card cpu", d)
	}
	type step struct {
		name string
		on   bool
	}
	set := func(steps ...step) error {
		for _, s := range steps {
			if err := c.Regs.Bit(s.name).Set(s.on); err != nil {
				return err
			}
		}
		return nil
	}
	if on {
		if !c.LcpuInReset() {
			return fmt.Errorf("%s: card cpu should be in reset", d)
		}
		if err := d.gpio1("lcpuMode", true); err != nil {
			return err
		}
		if err := c.Regs.Range("slotId").Set(uint32(d.SlotId())); err != nil {
			return err
		}
		if err := c.Regs.Range("provision").Set(uint32(lcpu.Provision)); err != nil {
			return err
		}
		// the set/clear register clears on false
		if err := set(step{"gmacLowPower", false}, step{"supGmacReset", false},
			step{"lcpuGmacReset", false}, step{"lcpuDisableSet", false},
			step{"lcpuResetSet", false}); err != nil {
			return err
		}
		return d.waitFor(c.LcpuPowerGood, "card cpu power good")
	}
	if err := set(step{"lcpuResetSet", true}, step{"lcpuDisableSet", true},
		step{"lcpuGmacReset", true}, step{"supGmacReset", true},
		step{"gmacLowPower", true}); err != nil {
		return err
	}
	if err := c.Regs.Range("provision").Set(uint32(ProvisionNone)); err != nil {
		return err
	}
	if err := c.Regs.Range("slotId").Set(0); err != nil {
		return err
	}
	if err := d.gpio1("lcpuMode", false); err != nil {
		return err
	}
	return d.waitFor(func() bool { return !c.LcpuPowerGood() }, "card cpu power off")
}

// PowerOnIs sequences the domains. The slot port stays disabled while the
// card changes state.
func (d *DenaliCard) PowerOnIs(on bool, lcpu *LcpuCtx) error {
	if err := d.Slot.Pca.TakeOwnership(); err != nil {
		return err
	}
	if err := d.Slot.DisablePciPort(); err != nil {
		return err
	}
	if on {
		if err := d.powerStandby(true); err != nil {
			return err
		}
		if err := d.powerPremain(true); err != nil {
			return err
		}
		if lcpu == nil {
			return d.powerMain(true)
		}
		if err := d.powerLcpu(true, lcpu); err != nil {
			return err
		}
		return d.Slot.EnablePciPort()
	}
	var err error
	if lcpu != nil {
		err = d.powerLcpu(false, lcpu)
	} else {
		err = d.powerMain(false)
	}
	if err != nil {
		return err
	}
	if err = d.powerPremain(false); err != nil {
		return err
	}
	return d.powerStandby(false)
}
