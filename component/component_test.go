// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"strings"
	"testing"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events []string

func (e *events) add(s ...string) { *e = append(*e, strings.Join(s, " ")) }

type recDriver struct {
	driver.Base
	ev *events
}

func (d recDriver) Setup() error  { d.ev.add("drv.setup", d.Name); return nil }
func (d recDriver) Finish() error { d.ev.add("drv.finish", d.Name); return nil }
func (d recDriver) Clean() error  { d.ev.add("drv.clean", d.Name); return nil }

type node struct {
	Component
	ev *events
}

func newNode(ev *events, name string, p Priority) *node {
	return &node{
		Component: Component{
			Name:     name,
			Priority: p,
			Driver:   recDriver{driver.Base{Name: name}, ev},
		},
		ev: ev,
	}
}

func (n *node) Setup() error    { n.ev.add("setup", n.Name); return nil }
func (n *node) Clean() error    { n.ev.add("clean", n.Name); return nil }
func (n *node) ResetIn() error  { n.ev.add("in", n.Name); return nil }
func (n *node) ResetOut() error { n.ev.add("out", n.Name); return nil }

func simulation(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	t.Cleanup(func() { config.Set(nil) })
}

func tree(ev *events) *node {
	root := newNode(ev, "root", Default)
	a := Add(root, newNode(ev, "a", Default))
	Add(a, newNode(ev, "a1", Thermal))
	Add(root, newNode(ev, "psu", Power))
	Add(root, newNode(ev, "b", Background))
	return root
}

func TestSetupOrder(t *testing.T) {
	simulation(t)
	ev := new(events)
	root := tree(ev)
	Check(root)

	require.NoError(t, Setup(root, DefaultFilter))
	assert.Equal(t, events{
		"drv.setup root", "setup root",
		"drv.setup a", "setup a",
		"drv.setup a1", "setup a1",
		"drv.finish a1",
		"drv.finish a",
		"drv.finish root",
	}, *ev)

	*ev = nil
	require.NoError(t, Setup(root, BackgroundFilter))
	assert.Equal(t, events{
		"drv.setup psu", "setup psu", "drv.finish psu",
		"drv.setup b", "setup b", "drv.finish b",
	}, *ev)
}

func TestCleanReverse(t *testing.T) {
	simulation(t)
	ev := new(events)
	root := tree(ev)
	require.NoError(t, Clean(root))
	want := events{
		"clean b", "drv.clean b",
		"clean psu", "drv.clean psu",
		"clean a1", "drv.clean a1",
		"clean a", "drv.clean a",
		"clean root", "drv.clean root",
	}
	assert.Equal(t, want, *ev)
	*ev = nil
	require.NoError(t, Clean(root))
	assert.Equal(t, want, *ev)
}

func TestResetOrder(t *testing.T) {
	simulation(t)
	ev := new(events)
	root := tree(ev)
	require.NoError(t, ResetOut(root))
	assert.Equal(t, events{"out root", "out a", "out a1", "out psu", "out b"}, *ev)
	*ev = nil
	require.NoError(t, ResetIn(root))
	assert.Equal(t, events{"in a1", "in a", "in psu", "in b", "in root"}, *ev)
}

func TestPriorityInherited(t *testing.T) {
	simulation(t)
	ev := new(events)
	root := newNode(ev, "root", Default)
	bg := Add(root, newNode(ev, "bg", Background))
	child := Add(bg, newNode(ev, "child", Default))
	assert.Equal(t, Background, child.Priority)
	assert.Same(t, root.Inventory(), child.Inv)
	Check(root)

	assert.Len(t, Descendants(root, All), 2)
	assert.Len(t, Descendants(root, DefaultFilter), 0)
	n, ok := Find[*node](bg)
	assert.True(t, ok)
	assert.Equal(t, "bg", n.Name)
	assert.Len(t, FindAll[*node](root), 3)
	assert.Len(t, Inventories(root), 1)
}

func TestMetaInventory(t *testing.T) {
	c := config.Simulated(t.TempDir())
	c.UseMetainventory = true
	config.Set(c)
	defer config.Set(nil)
	ev := new(events)
	root := newNode(ev, "root", Default)
	Add(root, newNode(ev, "a", Default))
	Add(root, newNode(ev, "b", Default))
	assert.Len(t, Inventories(root), 3)
}

type ledger struct {
	regs map[uint8]uint8
}

func (l *ledger) WriteByteData(cmd, v uint8) error { l.regs[cmd] = v; return nil }
func (l *ledger) WriteBytes(cmd uint8, b []byte) error {
	for i, x := range b {
		l.regs[cmd+uint8(i)] = x
	}
	return nil
}
func (l *ledger) Setup() error   { return nil }
func (l *ledger) Finish() error  { return nil }
func (l *ledger) Clean() error   { return nil }
func (l *ledger) Refresh() error { return nil }
func (l *ledger) String() string { return "ledger" }

func TestQuirks(t *testing.T) {
	simulation(t)
	l := &ledger{regs: make(map[uint8]uint8)}
	c := &Component{Name: "vrm", Driver: driver.Select(true, l)}
	c.Quirks = []Quirk{
		&I2cByte{Reg: 0x10, Data: 0x42},
		&I2cBlock{Reg: 0x20, Data: []byte{7, 8}, Late: true},
		PciConfig(stringer("00:02.0"), "CAP_EXP+0x10.w=0x0040", "disable aspm"),
	}
	require.NoError(t, Setup(c, DefaultFilter))
	assert.Equal(t, map[uint8]uint8{0x10: 0x42}, l.regs)
	require.NoError(t, ApplyQuirks(c, true))
	assert.Equal(t, map[uint8]uint8{0x10: 0x42, 0x20: 2, 0x21: 7, 0x22: 8}, l.regs)
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestGpioAndResetBits(t *testing.T) {
	mem := register.NewMemory()
	m := register.NewMap(mem, 0, register.Template{
		register.Reg(0x4000,
			register.BitRW(0, "switch_chip_reset"),
			register.BitRW(1, "switch_chip_pcie_reset"),
			register.Bit(2, "psu1_present"),
			register.BitRW(3, "fan_enable")),
	})
	rst := NewResetBit(m, inventory.ResetDesc{Name: "switch_chip_reset", Addr: 0x4000})
	require.NoError(t, rst.ResetIn())
	assert.Equal(t, uint32(1), mem.Get(0x4000))
	held, err := rst.Read()
	require.NoError(t, err)
	assert.True(t, held)
	require.NoError(t, rst.ResetOut())
	assert.Equal(t, uint32(0), mem.Get(0x4000))

	present := NewGpioBit(m, inventory.GpioDesc{Name: "psu1_present", Bit: 2, RO: true, ActiveLow: true})
	on, err := present.IsActive()
	require.NoError(t, err)
	assert.True(t, on, "active low bit at 0")
	assert.Error(t, present.SetActive(false))

	fan := NewGpioBit(m, inventory.GpioDesc{Name: "fan_enable", Bit: 3})
	require.NoError(t, fan.SetActive(true))
	assert.Equal(t, uint32(8), mem.Get(0x4000))
	v, _ := fan.RawValue()
	assert.Equal(t, uint32(1), v)
}

func TestSwitchChipResets(t *testing.T) {
	simulation(t)
	sleep := wait.Sleep
	var slept []time.Duration
	wait.Sleep = func(d time.Duration) { slept = append(slept, d) }
	defer func() { wait.Sleep = sleep }()

	ev := new(events)
	mk := func(name string) inventory.Reset { return &fakeReset{name: name, held: true, ev: ev} }
	chip := NewSwitchChip(mustPci(t, "0000:06:00.0"))
	chip.CoreResets = []inventory.Reset{mk("core")}
	chip.PcieResets = []inventory.Reset{mk("pcie")}

	require.NoError(t, chip.ResetOut())
	assert.Equal(t, events{"out core", "out pcie"}, *ev)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, slept)
	assert.False(t, chip.InReset())

	*ev = nil
	require.NoError(t, chip.ResetIn())
	assert.Equal(t, events{"in pcie", "in core"}, *ev)
	require.NoError(t, chip.WaitForIt(time.Second))
}

type fakeReset struct {
	name string
	held bool
	ev   *events
}

func (r *fakeReset) Name() string        { return r.name }
func (r *fakeReset) Read() (bool, error) { return r.held, nil }
func (r *fakeReset) ResetIn() error      { r.held = true; r.ev.add("in", r.name); return nil }
func (r *fakeReset) ResetOut() error     { r.held = false; r.ev.add("out", r.name); return nil }

func mustPci(t *testing.T, s string) address.PciAddr {
	a, err := address.ParsePci(s)
	require.NoError(t, err)
	return a
}
