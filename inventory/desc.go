// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package inventory

import (
	"fmt"
	"strings"
)

type Airflow string

const (
	AirflowUnknown Airflow = "unknown"
	AirflowExhaust Airflow = "exhaust"
	AirflowIntake  Airflow = "intake"
)

const (
	PositionInlet  = "inlet"
	PositionOutlet = "outlet"
	PositionOther  = "other"
)

// render substitutes {id} style keys of a descriptor name template.
func render(format string, kv ...interface{}) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(kv[i])+"}", fmt.Sprint(kv[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(format)
}

type SensorDesc struct {
	// Diode is the zero based hwmon temperature index.
	Diode       int
	Name        string
	Position    string
	Target      float64
	Overheat    float64
	Critical    float64
	Low         float64
	LowCritical float64
}

func Sensor(diode int, name, position string, target, overheat, critical float64) SensorDesc {
	return SensorDesc{
		Diode:       diode,
		Name:        name,
		Position:    position,
		Target:      target,
		Overheat:    overheat,
		Critical:    critical,
		LowCritical: -5,
	}
}

// Rendered returns a copy whose name has {psuId} replaced.
func (d SensorDesc) Rendered(psuId int) SensorDesc {
	d.Name = render(d.Name, "psuId", psuId)
	return d
}

type FanDesc struct {
	FanId    int
	Name     string
	Position string
	Airflow  Airflow
	LedId    int
	Model    string
	MinRpm   int
	MaxRpm   int
}

func (d FanDesc) Rendered(psuId int) FanDesc {
	if len(d.Name) == 0 {
		d.Name = "fan{fanId}"
	}
	d.Name = render(d.Name, "fanId", d.FanId, "psuId", psuId)
	return d
}

type FanSlotDesc struct {
	SlotId int
	Name   string
	Fans   []FanDesc
	LedId  int
}

type LedDesc struct {
	Name     string
	Colors   []Color
	Blinking bool
}

type GpioDesc struct {
	Name      string
	Addr      uint32
	Bit       uint
	RO        bool
	ActiveLow bool
}

type ResetDesc struct {
	Name      string
	Addr      uint32
	Bit       uint
	ActiveLow bool
}

type RailDirection string

const (
	RailInput  RailDirection = "input"
	RailOutput RailDirection = "output"
)

type RailDesc struct {
	RailId    int
	Name      string
	Direction RailDirection
	Current   int
	Power     int
	Voltage   int
}

func (d RailDesc) Rendered(psuId int) RailDesc {
	if len(d.Name) == 0 {
		d.Name = "{direction}{railId}"
	}
	d.Name = render(d.Name, "direction", d.Direction, "railId", d.RailId,
		"psuId", psuId)
	return d
}

type PsuDesc struct {
	PsuId   int
	Led     *LedDesc
	Sensors []SensorDesc
	Fans    []FanDesc
	Rails   []RailDesc
}

// WithPsuId renders every child descriptor name for the given slot.
func (d PsuDesc) WithPsuId(id int) PsuDesc {
	r := PsuDesc{PsuId: id, Led: d.Led}
	for _, s := range d.Sensors {
		r.Sensors = append(r.Sensors, s.Rendered(id))
	}
	for _, f := range d.Fans {
		r.Fans = append(r.Fans, f.Rendered(id))
	}
	for _, x := range d.Rails {
		r.Rails = append(r.Rails, x.Rendered(id))
	}
	return r
}

func (d *PsuDesc) SetAirflow(a Airflow) {
	for i := range d.Fans {
		d.Fans[i].Airflow = a
	}
}

// XcvrDesc describes a cage; Lanes and Speed (Mb/s) default per form factor.
type XcvrDesc struct {
	Kind  XcvrKind
	Index int
	Leds  int
	Lanes int
	Speed int
}

var xcvrDefaults = map[XcvrKind][2]int{
	Ethernet: {1, 1000},
	Sfp:      {1, 10000},
	Qsfp:     {4, 10000},
	Osfp:     {8, 50000},
}

func NewXcvrDesc(kind XcvrKind, index int) XcvrDesc {
	d := xcvrDefaults[kind]
	return XcvrDesc{Kind: kind, Index: index, Leds: 1, Lanes: d[0], Speed: d[1]}
}

func (d XcvrDesc) String() string {
	return fmt.Sprintf("%s(index=%d)", d.Kind, d.Index)
}
