// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package action

import (
	"fmt"
	"math"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/xcvr"
)

const NA = "N/A"

type XcvrReport struct {
	Id        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Present   bool   `json:"present"`
	LpMode    string `json:"lpmode"`
	TxDisable string `json:"txdisable"`
	TxFault   string `json:"txfault"`
	RxLos     string `json:"rxlos"`
	Reset     string `json:"reset"`
	Addr      string `json:"addr"`
}

func boolStr(v bool, err error) string {
	if err != nil {
		return NA
	}
	return fmt.Sprint(v)
}

func Xcvrs(inv inventory.Reader) []XcvrReport {
	slots := inv.XcvrSlots()
	l := []XcvrReport{}
	for _, id := range inventory.SortedKeys(slots) {
		s := slots[id]
		r := XcvrReport{
			Id:        id,
			Name:      s.Name(),
			Type:      string(s.Kind()),
			LpMode:    NA,
			TxDisable: NA,
			TxFault:   NA,
			RxLos:     NA,
			Reset:     NA,
			Addr:      NA,
		}
		r.Present, _ = s.Presence()
		caps := xcvr.CapsOf(s)
		if c := caps.LowPowerMode; c != nil {
			r.LpMode = boolStr(c.LowPowerMode())
		}
		if c := caps.TxDisable; c != nil {
			r.TxDisable = boolStr(c.TxDisable())
		}
		if c := caps.TxFault; c != nil {
			r.TxFault = boolStr(c.TxFault())
		}
		if c := caps.RxLos; c != nil {
			r.RxLos = boolStr(c.RxLos())
		}
		if c := caps.Reset; c != nil {
			r.Reset = boolStr(c.Read())
		}
		if x := s.Xcvr(); x != nil {
			r.Addr = x.I2cAddr().String()
		}
		l = append(l, r)
	}
	return l
}

type PsuReport struct {
	SlotId   int    `json:"slotId"`
	Name     string `json:"name"`
	Present  bool   `json:"present"`
	InputOk  bool   `json:"inputOk"`
	OutputOk bool   `json:"outputOk"`
	Status   bool   `json:"status"`
	Led      string `json:"led"`
	Model    string `json:"model"`
	Serial   string `json:"serial"`
}

type RailReport struct {
	Name    string   `json:"name"`
	Voltage *float64 `json:"voltage"`
	Current *float64 `json:"current"`
	Power   *float64 `json:"power"`
}

type ProgrammableReport struct {
	Component   string `json:"component"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type PowerReport struct {
	Slots []PsuReport          `json:"slots"`
	Rails []RailReport         `json:"rails"`
	Dpms  []ProgrammableReport `json:"dpms"`
}

func ledColor(l inventory.Led) string {
	if l == nil {
		return NA
	}
	c, err := l.Color()
	if err != nil {
		return NA
	}
	return string(c)
}

// reading rounds a sensor value, nil when unreadable.
func reading(v float64, err error) *float64 {
	if err != nil {
		return nil
	}
	v = math.Round(v*1000) / 1000
	return &v
}

func Power(inv inventory.Reader) PowerReport {
	r := PowerReport{
		Slots: []PsuReport{},
		Rails: []RailReport{},
		Dpms:  []ProgrammableReport{},
	}
	for _, s := range inv.PsuSlots() {
		p := PsuReport{
			SlotId:   s.Id(),
			Name:     s.Name(),
			Present:  s.Presence(),
			InputOk:  s.InputOk(),
			OutputOk: s.OutputOk(),
			Status:   s.Status(),
			Led:      ledColor(s.Led()),
			Model:    NA,
			Serial:   NA,
		}
		if u := s.Psu(); u != nil {
			p.Model, p.Serial = u.Model(), u.Serial()
		}
		r.Slots = append(r.Slots, p)
	}
	for _, rail := range inv.Rails() {
		r.Rails = append(r.Rails, RailReport{
			Name:    rail.Name(),
			Voltage: reading(rail.Voltage()),
			Current: reading(rail.Current()),
			Power:   reading(rail.Power()),
		})
	}
	r.Dpms = Programmables(inv)
	return r
}

func Programmables(inv inventory.Reader) []ProgrammableReport {
	l := []ProgrammableReport{}
	for _, p := range inv.Programmables() {
		l = append(l, ProgrammableReport{
			Component:   p.Component(),
			Description: p.Description(),
			Version:     p.Version(),
		})
	}
	return l
}

type TempReport struct {
	Name     string   `json:"name"`
	Position string   `json:"position,omitempty"`
	Present  bool     `json:"present"`
	Value    *float64 `json:"value"`
	High     float64  `json:"highThreshold"`
	Critical float64  `json:"criticalThreshold"`
}

type FanReport struct {
	Id        int    `json:"id"`
	Name      string `json:"name"`
	Present   bool   `json:"present"`
	Status    bool   `json:"status"`
	Speed     int    `json:"speed"`
	Rpm       int    `json:"rpm"`
	Direction string `json:"direction"`
}

type EnvironmentReport struct {
	Temps []TempReport `json:"temperatures"`
	Fans  []FanReport  `json:"fans"`
}

func Environment(inv inventory.Reader) EnvironmentReport {
	r := EnvironmentReport{Temps: []TempReport{}, Fans: []FanReport{}}
	for _, t := range inv.Temps() {
		tr := TempReport{
			Name:     t.Name(),
			Present:  t.Presence(),
			Value:    reading(t.Temperature()),
			High:     t.HighThreshold(),
			Critical: t.HighCriticalThreshold(),
		}
		if d := t.Desc(); d != nil {
			tr.Position = d.Position
		}
		r.Temps = append(r.Temps, tr)
	}
	for _, f := range inv.Fans() {
		fr := FanReport{
			Id:        f.Id(),
			Name:      f.Name(),
			Present:   f.Presence(),
			Status:    f.Status(),
			Speed:     -1,
			Rpm:       -1,
			Direction: string(f.Direction()),
		}
		if v, err := f.Speed(); err == nil {
			fr.Speed = v
		}
		if v, err := f.Rpm(); err == nil {
			fr.Rpm = v
		}
		r.Fans = append(r.Fans, fr)
	}
	return r
}

type CardReport struct {
	SlotId   int               `json:"slotId"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Present  bool              `json:"present"`
	Powered  bool              `json:"poweredOn"`
	Detected bool              `json:"detected"`
	Lcpu     bool              `json:"lcpu"`
	Standby  bool              `json:"standby"`
	Main     bool              `json:"main"`
	Eeprom   map[string]string `json:"eeprom,omitempty"`
}

func Card(c *modular.Card, eeprom bool) CardReport {
	r := CardReport{
		SlotId:   c.SlotId(),
		Name:     c.Name,
		Kind:     c.Kind.String(),
		Present:  c.Presence(),
		Powered:  c.PoweredOn(),
		Detected: c.IsDetected(),
		Lcpu:     c.HasCpuModule(),
		Standby:  c.Standby != nil,
		Main:     c.Main != nil,
	}
	if eeprom {
		r.Eeprom = c.Eeprom()
	}
	return r
}

// NodeReport is a component and its subtree.
type NodeReport struct {
	Name     string        `json:"name"`
	Priority string        `json:"priority"`
	Children []*NodeReport `json:"children,omitempty"`
}

// Tree dumps the component tree rooted at n.
func Tree(n component.Node) *NodeReport {
	c := n.Base()
	r := &NodeReport{Name: c.String(), Priority: c.Priority.String()}
	for _, child := range c.Children() {
		r.Children = append(r.Children, Tree(child))
	}
	return r
}

// Summary is what platformd reports of a box.
type Summary struct {
	Version     int                  `json:"version"`
	Platform    string               `json:"platform"`
	Eeprom      map[string]string    `json:"eeprom"`
	Xcvrs       []XcvrReport         `json:"xcvrs"`
	Power       PowerReport          `json:"power"`
	Environment EnvironmentReport    `json:"environment"`
	Watchdogs   []WatchdogReport     `json:"watchdogs"`
	Seu         []SeuReport          `json:"seu,omitempty"`
	Firmware    []ProgrammableReport `json:"firmware"`
}

type WatchdogReport struct {
	Enabled   bool `json:"enabled"`
	Timeout   int  `json:"timeout"`
	Remaining int  `json:"remainingTime"`
}

type SeuReport struct {
	Component  string `json:"component"`
	SeuError   bool   `json:"seuError"`
	PowerCycle bool   `json:"powerCycleOnSeu"`
}

func Watchdogs(inv inventory.Reader) []WatchdogReport {
	l := []WatchdogReport{}
	for _, w := range inv.Watchdogs() {
		st, err := w.Status()
		if err != nil {
			log.Debug("watchdog status: %v", err)
			continue
		}
		l = append(l, WatchdogReport(st))
	}
	return l
}

func Seus(inv inventory.Reader) []SeuReport {
	var l []SeuReport
	for _, s := range inv.SeuReporters() {
		r := SeuReport{Component: s.Component()}
		r.SeuError, _ = s.HasSeuError()
		r.PowerCycle, _ = s.PowerCycleOnSeu()
		l = append(l, r)
	}
	return l
}

type reporter interface {
	component.Node
	Eeprom() map[string]string
	InventoryReader() inventory.Reader
}

func Summarize(p reporter) Summary {
	inv := p.InventoryReader()
	return Summary{
		Version:     1,
		Platform:    p.Base().Name,
		Eeprom:      p.Eeprom(),
		Xcvrs:       Xcvrs(inv),
		Power:       Power(inv),
		Environment: Environment(inv),
		Watchdogs:   Watchdogs(inv),
		Seu:         Seus(inv),
		Firmware:    Programmables(inv),
	}
}
