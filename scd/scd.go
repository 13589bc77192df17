// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package scd drives the switch control device, the FPGA behind BAR0 of a
// PCI function that carries the smbus, mdio and uart masters, leds, gpios,
// resets, interrupts and watchdog of a board.
//
// Objects are declared on the Scd at construction and handed to the
// scd-hwmon kernel module, one "new_object" line each, when the tree is
// set up.
package scd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/register"
	"github.com/platinasystems/sysplat/watchdog"
)

var log = logging.Get("scd")

const (
	// WaitTimeout bounds the wait for the kernel module to publish its
	// attributes.
	WaitTimeout = 5 * time.Second

	pageSize = 4096

	PowerCycleReg  = 0x7000
	PowerCycleWord = 0xdead
)

// BusTweak holds the smbus timings of one device.
type BusTweak struct {
	T, Datr, Datw, Ed int
}

var (
	DefaultTweak = BusTweak{T: 1, Datr: 3, Datw: 3}
	XcvrTweak    = BusTweak{T: 1, Datr: 0, Datw: 3}
)

type tweakKey struct {
	bus  int
	addr uint16
}

type smbusMaster struct {
	addr    uint32
	id, bus int
}

type mdioMaster struct {
	addr     uint32
	id       int
	buses    int
	speed    address.MdioSpeed
	devCount []int
}

type decl struct {
	addr uint32
	id   int
	name string
}

type fanGroup struct {
	addr                   uint32
	platform, slots, count int
}

// Scd is a switch control device.
type Scd struct {
	component.Component
	Addr address.PciAddr
	// Dev reads and writes BAR0; it is a Memory in simulation.
	Dev register.Device
	// Mem is the simulated BAR0, nil on hardware.
	Mem *register.Memory
	// I2cOffset is the kernel bus number of the first smbus master,
	// learned on refresh.
	I2cOffset      int
	MsiRearmOffset uint32

	kernel *driver.PciKernel

	smbusMasters []smbusMaster
	mdioMasters  []*mdioMaster
	mdios        []address.MdioRef
	uarts        []decl
	fanGroups    []fanGroup
	leds         []decl
	osfps        []decl
	qsfps        []decl
	sfps         []decl
	resets       []*component.ResetBit
	xcvrResets   []*component.ResetBit
	gpios        []*component.GpioBit
	interrupts   []*InterruptRegister
	tweaks       map[tweakKey]BusTweak
	tweakOrder   []tweakKey
	uio          map[string]string
	simulated    bool
}

// New returns the scd at addr attached below parent.
func New(parent component.Node, addr address.PciAddr) *Scd {
	sim := config.Get().InSimulation()
	s := &Scd{
		Addr:      addr,
		tweaks:    make(map[tweakKey]BusTweak),
		simulated: sim,
	}
	s.Component.Name = fmt.Sprintf("Scd(addr=%s)", addr)
	s.kernel = driver.NewPciKernel("scd-hwmon", addr)
	if sim {
		s.Mem = register.NewMemory()
		s.Dev = s.Mem
	} else {
		s.Dev = s.kernel
	}
	s.Driver = driver.Select(sim, driver.Chain{
		driver.NewKernel("scd"),
		&Driver{PciKernel: s.kernel, scd: s},
	})
	return component.Add(parent, s)
}

func (s *Scd) Simulated() bool { return s.simulated }

// Kernel is the scd-hwmon binding whose sysfs directory carries the led,
// fan, gpio and reset attributes.
func (s *Scd) Kernel() *driver.Kernel { return &s.kernel.Kernel }

func (s *Scd) SysfsPath() string { return s.Addr.SysfsPath() }

// MasterName is the kernel adapter name of an smbus master bus.
func (s *Scd) MasterName(master, bus int) string {
	return fmt.Sprintf("SCD %s SMBus master %d bus %d", s.Addr, master, bus)
}

// BusName returns the adapter name of a flat bus index.
func (s *Scd) BusName(bus int) string {
	bpm := 8
	if len(s.smbusMasters) > 0 {
		bpm = s.smbusMasters[0].bus
	}
	return s.MasterName(bus/bpm, bus%bpm)
}

// Refresh relearns the bus offset after the kernel created the adapters.
func (s *Scd) Refresh() error {
	if s.simulated {
		s.I2cOffset = 2
		return nil
	}
	id := address.BusFromName(s.MasterName(0, 0), 0, true)
	if id < 0 {
		log.Debug("%s: smbus masters not found", s)
		return nil
	}
	s.I2cOffset = id
	return nil
}

// Bus is an smbus master bus of an scd, numbered from its first master.
type Bus struct {
	Scd *Scd
	Bus int
}

func (b Bus) BusId() int     { return b.Scd.I2cOffset + b.Bus }
func (b Bus) String() string { return b.Scd.BusName(b.Bus) }

// I2cAddr returns a device of the bus with the default smbus timings.
func (b Bus) I2cAddr(addr uint16) address.I2cAddr {
	return b.Scd.I2cAddr(b.Bus, addr)
}

func (s *Scd) Smbus(bus int) Bus { return Bus{Scd: s, Bus: bus} }

// I2cAddr records the default smbus timings for a device and returns its
// address.
func (s *Scd) I2cAddr(bus int, addr uint16) address.I2cAddr {
	return s.I2cAddrTweak(bus, addr, DefaultTweak)
}

func (s *Scd) I2cAddrTweak(bus int, addr uint16, t BusTweak) address.I2cAddr {
	k := tweakKey{bus, addr}
	if _, found := s.tweaks[k]; !found {
		s.tweakOrder = append(s.tweakOrder, k)
	}
	s.tweaks[k] = t
	return address.I2cAddr{Bus: s.Smbus(bus), Address: addr, Block: true}
}

func (s *Scd) AddSmbusMaster(addr uint32, id, bus int) {
	s.smbusMasters = append(s.smbusMasters, smbusMaster{addr: addr, id: id, bus: bus})
}

// AddSmbusMasterRange declares count+1 masters spaced by spacing, each
// with bus buses; spacing defaults to 0x100 and bus to 8.
func (s *Scd) AddSmbusMasterRange(start uint32, count int, spacing uint32, bus int) {
	if spacing == 0 {
		spacing = 0x100
	}
	if bus == 0 {
		bus = 8
	}
	for i := 0; i <= count; i++ {
		s.AddSmbusMaster(start+uint32(i)*spacing, i, bus)
	}
}

func (s *Scd) AddMdioMaster(addr uint32, id, buses int, speed address.MdioSpeed) {
	if buses == 0 {
		buses = 1
	}
	s.mdioMasters = append(s.mdioMasters, &mdioMaster{
		addr:     addr,
		id:       id,
		buses:    buses,
		speed:    speed,
		devCount: make([]int, buses),
	})
}

func (s *Scd) AddMdioMasterRange(base uint32, count int, spacing uint32, buses int, speed address.MdioSpeed) {
	if spacing == 0 {
		spacing = 0x40
	}
	for i := 0; i < count; i++ {
		s.AddMdioMaster(base+uint32(i)*spacing, i, buses, speed)
	}
}

// AddMdio declares a PHY behind master. Unknown masters and buses are
// wiring bugs and panic.
func (s *Scd) AddMdio(master, port, bus, device int, clause address.MdioClause) address.MdioRef {
	var m *mdioMaster
	for _, x := range s.mdioMasters {
		if x.id == master {
			m = x
		}
	}
	if m == nil {
		panic(fmt.Errorf("%s: mdio master %d not declared", s, master))
	}
	if bus >= m.buses {
		panic(fmt.Errorf("%s: mdio master %d has no bus %d", s, master, bus))
	}
	if clause == 0 {
		clause = address.C45
	}
	ref := address.MdioRef{
		Master: master,
		Bus:    bus,
		DevIdx: m.devCount[bus],
		Port:   port,
		Device: device,
		Clause: clause,
	}
	m.devCount[bus]++
	s.mdios = append(s.mdios, ref)
	return ref
}

func (s *Scd) AddUartPort(addr uint32, id int) {
	s.uarts = append(s.uarts, decl{addr: addr, id: id})
}

func (s *Scd) AddUartPortRange(base uint32, count int, spacing uint32) {
	if spacing == 0 {
		spacing = 0x10
	}
	for i := 0; i < count; i++ {
		s.AddUartPort(base+uint32(i)*spacing, i)
	}
}

func (s *Scd) AddFanGroup(addr uint32, platform, slots, count int) {
	s.fanGroups = append(s.fanGroups, fanGroup{addr, platform, slots, count})
}

func (s *Scd) AddFan(desc inventory.FanDesc, led inventory.Led) *driver.Fan {
	f := driver.NewFan(s.Kernel(), desc, led)
	s.Inventory().AddFan(f)
	return f
}

func (s *Scd) newLed(addr uint32, name string) *driver.Led {
	s.leds = append(s.leds, decl{addr: addr, name: name})
	return driver.NewLed(s.Kernel(), inventory.LedDesc{Name: name})
}

func (s *Scd) AddLed(addr uint32, name string) inventory.Led {
	return s.Inventory().AddLed(s.newLed(addr, name))
}

// LedAddr pairs an led register with its name.
type LedAddr struct {
	Addr uint32
	Name string
}

func (s *Scd) AddLeds(leds ...LedAddr) []inventory.Led {
	var l []inventory.Led
	for _, x := range leds {
		l = append(l, s.AddLed(x.Addr, x.Name))
	}
	return l
}

func (s *Scd) AddLedGroup(group string, leds ...LedAddr) []inventory.Led {
	var l []inventory.Led
	for _, x := range leds {
		l = append(l, s.newLed(x.Addr, x.Name))
	}
	return s.Inventory().AddLedGroup(group, l...)
}

func (s *Scd) gpioBit(desc inventory.GpioDesc) *component.GpioBit {
	f := register.BitRW(desc.Bit, desc.Name)
	if desc.RO {
		f = register.Bit(desc.Bit, desc.Name)
	}
	m := register.NewMap(s.Dev, 0, register.Template{register.Reg(desc.Addr, f)})
	return component.NewGpioBit(m, desc)
}

func (s *Scd) resetBit(desc inventory.ResetDesc) *component.ResetBit {
	clr := desc.Addr + 0x10
	if s.Mem != nil {
		s.Mem.SetClear(desc.Addr, clr)
	}
	m := register.NewMap(s.Dev, 0, register.Template{
		register.SetClr(desc.Addr, clr, register.BitRW(desc.Bit, desc.Name)),
	})
	return component.NewResetBit(m, desc)
}

// AddGpio declares a gpio to the kernel and publishes it.
func (s *Scd) AddGpio(desc inventory.GpioDesc) *component.GpioBit {
	g := s.gpioBit(desc)
	s.gpios = append(s.gpios, g)
	s.Inventory().AddGpio(g)
	return g
}

func (s *Scd) AddGpios(descs ...inventory.GpioDesc) []*component.GpioBit {
	var l []*component.GpioBit
	for _, d := range descs {
		l = append(l, s.AddGpio(d))
	}
	return l
}

// AddReset declares a set/clear reset bit; its clear register follows
// the set register by 0x10.
func (s *Scd) AddReset(desc inventory.ResetDesc) *component.ResetBit {
	r := s.resetBit(desc)
	s.resets = append(s.resets, r)
	s.Inventory().AddReset(r)
	return r
}

func (s *Scd) AddResets(descs ...inventory.ResetDesc) []*component.ResetBit {
	var l []*component.ResetBit
	for _, d := range descs {
		l = append(l, s.AddReset(d))
	}
	return l
}

// Gpio returns a declared gpio by name.
func (s *Scd) Gpio(name string) (inventory.Gpio, bool) {
	for _, g := range s.gpios {
		if g.Name() == name {
			return g, true
		}
	}
	return nil, false
}

func (s *Scd) Reset(name string) (inventory.Reset, bool) {
	for _, r := range s.resets {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Resets lists the declared resets, followed by the qsfp and osfp cage
// resets when xcvrs is set.
func (s *Scd) Resets(xcvrs bool) []*component.ResetBit {
	l := append([]*component.ResetBit(nil), s.resets...)
	if xcvrs {
		l = append(l, s.xcvrResets...)
	}
	return l
}

func (s *Scd) ResetIn() error {
	for _, r := range s.Resets(true) {
		if err := r.ResetIn(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scd) ResetOut() error {
	for _, r := range s.Resets(true) {
		if err := r.ResetOut(); err != nil {
			return err
		}
	}
	return nil
}

// CreateWatchdog publishes the watchdog at reg, DefaultReg when zero.
func (s *Scd) CreateWatchdog(reg uint32) *watchdog.Scd {
	w := watchdog.NewScd(s.Dev)
	if reg != 0 {
		w.Reg = reg
	}
	s.Inventory().AddWatchdog(w)
	return w
}

// PowerCycle cuts the board power by writing a magic word.
type PowerCycle struct {
	Dev  register.Device
	Reg  uint32
	Word uint32
}

func (p *PowerCycle) PowerCycle() error {
	log.Info("Initiating powercycle through SCD")
	if err := p.Dev.Write(p.Reg, p.Word); err != nil {
		return fmt.Errorf("powercycle error: %w", err)
	}
	log.Info("Powercycle triggered by SCD")
	return nil
}

func (s *Scd) CreatePowerCycle() *PowerCycle {
	p := &PowerCycle{Dev: s.Dev, Reg: PowerCycleReg, Word: PowerCycleWord}
	s.Inventory().AddPowerCycle(p)
	return p
}

// Uio returns the uio device of an interrupt bit.
func (s *Scd) Uio(reg uint32, bit uint) (string, error) {
	name := fmt.Sprintf("uio-%s-%x-%d", s.Addr, reg, bit)
	if s.simulated {
		return "/dev/" + name, nil
	}
	if s.uio == nil {
		s.uio = make(map[string]string)
		dirs, err := sysfs.ReadDir("/sys/class/uio")
		if err != nil {
			return "", err
		}
		for _, d := range dirs {
			n, err := sysfs.ReadString(filepath.Join("/sys/class/uio", d, "name"))
			if err == nil {
				s.uio[n] = d
			}
		}
	}
	dev, found := s.uio[name]
	if !found {
		return "", fmt.Errorf("%s: no uio device", name)
	}
	return "/dev/" + dev, nil
}

func (s *Scd) writeConfig(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		path := filepath.Join(s.SysfsPath(), kv[i])
		if err := sysfs.WriteString(path, kv[i+1]); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// writePages writes entries to attr, one per line, splitting them over as
// many writes as needed to fit a page each.
func (s *Scd) writePages(attr string, entries []string) error {
	var page []byte
	flush := func() error {
		if len(page) == 0 {
			return nil
		}
		err := s.writeConfig(attr, string(page[:len(page)-1]))
		page = page[:0]
		return err
	}
	for _, e := range entries {
		if len(page)+len(e)+1 > pageSize {
			if err := flush(); err != nil {
				return err
			}
		}
		page = append(page, e...)
		page = append(page, '\n')
	}
	return flush()
}

// Objects lists the new_object declarations of the scd.
func (s *Scd) Objects() []string {
	var l []string
	for _, m := range s.smbusMasters {
		l = append(l, fmt.Sprintf("smbus_master %#x %d %d", m.addr, m.id, m.bus))
	}
	for _, m := range s.mdioMasters {
		l = append(l, fmt.Sprintf("mdio_master %#x %d %d %d", m.addr, m.id,
			m.buses, int(m.speed)))
	}
	for _, m := range s.mdios {
		l = append(l, fmt.Sprintf("mdio_device %d %d %d %d %d %d", m.Master,
			m.Bus, m.DevIdx, m.Port, m.Device, int(m.Clause)))
	}
	for _, u := range s.uarts {
		l = append(l, fmt.Sprintf("uart %#x %d", u.addr, u.id))
	}
	for _, f := range s.fanGroups {
		l = append(l, fmt.Sprintf("fan_group %#x %d %d %d", f.addr, f.platform,
			f.slots, f.count))
	}
	for _, led := range s.leds {
		l = append(l, fmt.Sprintf("led %#x %s", led.addr, led.name))
	}
	for _, kind := range []struct {
		name string
		l    []decl
	}{{"osfp", s.osfps}, {"qsfp", s.qsfps}, {"sfp", s.sfps}} {
		for _, x := range kind.l {
			l = append(l, fmt.Sprintf("%s %#x %d", kind.name, x.addr, x.id))
		}
	}
	for _, r := range s.resets {
		l = append(l, fmt.Sprintf("reset %#x %s %d", r.Desc.Addr, r.Desc.Name,
			r.Desc.Bit))
	}
	for _, g := range s.gpios {
		l = append(l, fmt.Sprintf("gpio %#x %s %d %d %d", g.Desc.Addr,
			g.Desc.Name, g.Desc.Bit, btoi(g.Desc.RO), btoi(g.Desc.ActiveLow)))
	}
	return l
}

// Tweaks lists the smbus_tweaks lines in declaration order.
func (s *Scd) Tweaks() []string {
	var l []string
	for _, k := range s.tweakOrder {
		t := s.tweaks[k]
		l = append(l, fmt.Sprintf("%#x %#x %#x %#x %#x %#x",
			s.I2cOffset+k.bus, k.addr, t.T, t.Datr, t.Datw, t.Ed))
	}
	return l
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Driver hands the declared objects to scd-hwmon.
type Driver struct {
	*driver.PciKernel
	scd *Scd
}

func (d *Driver) String() string {
	return fmt.Sprintf("ScdKernelDriver(addr=%s)", d.Addr)
}

func (d *Driver) Setup() error {
	if err := d.PciKernel.Setup(); err != nil {
		return err
	}
	s := d.scd
	tweaks := filepath.Join(s.SysfsPath(), "smbus_tweaks")
	log.Debug("waiting for %s", tweaks)
	if err := wait.Files(WaitTimeout, tweaks); err != nil {
		return err
	}
	log.Debug("creating scd objects")
	if err := s.writePages("new_object", s.Objects()); err != nil {
		return err
	}
	if s.MsiRearmOffset != 0 {
		if err := s.writeConfig("msi_rearm_offset",
			fmt.Sprint(s.MsiRearmOffset)); err != nil {
			return err
		}
	}
	for _, r := range s.interrupts {
		if err := r.Setup(); err != nil {
			return err
		}
	}
	if err := s.Refresh(); err != nil {
		return err
	}
	if l := s.Tweaks(); len(l) > 0 {
		log.Debug("applying scd tweaks")
		return s.writePages("smbus_tweaks", l)
	}
	return nil
}

// Finish locks the configuration written by Setup.
func (d *Driver) Finish() error {
	if !config.Get().LockScdConf {
		return nil
	}
	log.Debug("applying scd configuration")
	return d.scd.writeConfig("init_trigger", "1")
}

func (d *Driver) Clean() error { return d.PciKernel.Clean() }

// Programmable reports the scd firmware revision.
type Programmable struct {
	Scd *Scd
}

func (p Programmable) Component() string   { return p.Scd.String() }
func (p Programmable) Description() string { return "System Control Device" }

func (p Programmable) Version() string {
	v, err := p.Scd.Kernel().DevAttr("revision").Read()
	if err != nil {
		return "N/A"
	}
	return v
}

func (s *Scd) AddProgrammable() Programmable {
	p := Programmable{s}
	s.Inventory().AddProgrammable(p)
	return p
}

func (s *Scd) GpioNames() []string {
	var l []string
	for _, g := range s.gpios {
		l = append(l, g.Name())
	}
	sort.Strings(l)
	return l
}
