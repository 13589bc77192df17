// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"strings"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/inventory"
)

const (
	MinFanSpeed = 30
	MaxFanSpeed = 100
)

// Fan is a hwmon pwm fan: pwmN, fanN_input, fanN_airflow, fanN_fault
// and fanN_present.
type Fan struct {
	Desc inventory.FanDesc
	// MaxPwm is the raw pwm value of full speed; 255 if zero.
	MaxPwm int
	// FaultGpio, when set, reports a fault before the hwmon attribute.
	FaultGpio inventory.Gpio
	LedRef    inventory.Led

	pwm, input, airflow, fault, present Attr
	lastSpeed                           int
}

func NewFan(k *Kernel, desc inventory.FanDesc, led inventory.Led) *Fan {
	desc = desc.Rendered(0)
	id := desc.FanId
	return &Fan{
		Desc:    desc,
		MaxPwm:  255,
		LedRef:  led,
		pwm:     k.HwmonAttr(fmt.Sprint("pwm", id)),
		input:   k.HwmonAttr(fmt.Sprintf("fan%d_input", id)),
		airflow: k.HwmonAttr(fmt.Sprintf("fan%d_airflow", id)),
		fault:   k.HwmonAttr(fmt.Sprintf("fan%d_fault", id)),
		present: k.HwmonAttr(fmt.Sprintf("fan%d_present", id)),
	}
}

func (f *Fan) Id() int          { return f.Desc.FanId }
func (f *Fan) Name() string     { return f.Desc.Name }
func (f *Fan) Position() string { return f.Desc.Position }
func (f *Fan) Led() inventory.Led {
	return f.LedRef
}

func (f *Fan) Model() string {
	if len(f.Desc.Model) > 0 {
		return f.Desc.Model
	}
	return "N/A"
}

func (f *Fan) maxPwm() int {
	if f.MaxPwm == 0 {
		return 255
	}
	return f.MaxPwm
}

func (f *Fan) Speed() (int, error) {
	v, err := ReadInt(f.pwm)
	if err != nil {
		return 0, err
	}
	return linear(v, f.maxPwm(), 100), nil
}

func (f *Fan) SetSpeed(percent int) error {
	if f.lastSpeed == MaxFanSpeed && percent != MaxFanSpeed {
		log.Debug("%s fan speed reduced from max", f.Name())
	} else if f.lastSpeed != MaxFanSpeed && percent == MaxFanSpeed {
		log.Warning("%s fan speed set to max", f.Name())
	}
	f.lastSpeed = percent
	return WriteInt(f.pwm, linear(percent, 100, f.maxPwm()))
}

func (f *Fan) Rpm() (int, error) {
	if !f.input.Exists() {
		return 0, fmt.Errorf("%s: no rpm input", f.Name())
	}
	return ReadInt(f.input)
}

func (f *Fan) Fault() bool {
	if f.FaultGpio != nil {
		if active, err := f.FaultGpio.IsActive(); err == nil && active {
			return true
		}
	}
	if !f.fault.Exists() {
		return false
	}
	b, err := ReadBool(f.fault)
	return err != nil || b
}

func (f *Fan) Presence() bool {
	if f.present.Exists() {
		b, _ := ReadBool(f.present)
		return b
	}
	rpm, err := ReadInt(f.input)
	return err == nil && rpm != 0
}

func (f *Fan) Status() bool { return f.Presence() && !f.Fault() }

func (f *Fan) Direction() inventory.Airflow {
	if f.airflow.Exists() {
		if s, err := f.airflow.Read(); err == nil && s != "1" {
			return inventory.Airflow(s)
		}
	}
	if len(f.Desc.Airflow) == 0 {
		return inventory.AirflowUnknown
	}
	return f.Desc.Airflow
}

var ledValues = []inventory.Color{
	inventory.Off,
	inventory.Green,
	inventory.Red,
	inventory.Amber,
}

// Led is a led class device whose brightness selects the color.
type Led struct {
	Desc       inventory.LedDesc
	brightness Attr
}

func NewLed(k *Kernel, desc inventory.LedDesc) *Led {
	return &Led{Desc: desc, brightness: k.LedAttr(desc.Name)}
}

func (l *Led) Name() string { return l.Desc.Name }

func (l *Led) Color() (inventory.Color, error) {
	v, err := ReadInt(l.brightness)
	if err != nil {
		return "", err
	}
	if v < 0 || v >= len(ledValues) {
		return "", fmt.Errorf("%s: invalid brightness %d", l.Name(), v)
	}
	return ledValues[v], nil
}

func (l *Led) SetColor(c inventory.Color) error {
	for i, x := range ledValues {
		if x == c {
			return WriteInt(l.brightness, i)
		}
	}
	return fmt.Errorf("%s: unsupported color %s", l.Name(), c)
}

func (l *Led) IsStatus() bool { return strings.Contains(l.Desc.Name, "sfp") }

var rgbColors = map[inventory.Color][3]int{
	inventory.Off:   {0, 0, 0},
	inventory.Red:   {1, 0, 0},
	inventory.Green: {0, 1, 0},
	inventory.Blue:  {0, 0, 1},
	inventory.Amber: {1, 1, 0},
}

// RgbLed drives three single color leds named prefix:<color>:name.
type RgbLed struct {
	Desc inventory.LedDesc
	leds [3]Attr
}

func NewRgbLed(k *Kernel, desc inventory.LedDesc, prefix string) *RgbLed {
	l := &RgbLed{Desc: desc}
	for i, c := range []string{"red", "green", "blue"} {
		l.leds[i] = k.LedAttr(fmt.Sprintf("%s:%s:%s", prefix, c, desc.Name))
	}
	return l
}

func (l *RgbLed) Name() string   { return l.Desc.Name }
func (l *RgbLed) IsStatus() bool { return strings.Contains(l.Desc.Name, "sfp") }

func (l *RgbLed) Color() (inventory.Color, error) {
	var v [3]int
	for i, a := range l.leds {
		if !a.Exists() {
			continue
		}
		x, err := ReadInt(a)
		if err != nil {
			return "", err
		}
		v[i] = x
	}
	for c, x := range rgbColors {
		if x == v {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: unknown rgb value %v", l.Name(), v)
}

func (l *RgbLed) SetColor(c inventory.Color) error {
	v := rgbColors[c]
	for i, a := range l.leds {
		if !a.Exists() {
			continue
		}
		if err := WriteInt(a, v[i]); err != nil {
			return err
		}
	}
	return nil
}

// Temp is a hwmon temperature sensor; its id is the diode plus one.
type Temp struct {
	desc     inventory.SensorDesc
	reportHw bool

	input, max, crit, min, lcrit, fault Attr
}

func NewTemp(k *Kernel, desc inventory.SensorDesc) *Temp {
	id := desc.Diode + 1
	attr := func(suffix string) Attr {
		return k.HwmonAttr(fmt.Sprintf("temp%d_%s", id, suffix))
	}
	return &Temp{
		desc:     desc,
		reportHw: config.Get().ReportHwThresholds,
		input:    attr("input"),
		max:      attr("max"),
		crit:     attr("crit"),
		min:      attr("min"),
		lcrit:    attr("lcrit"),
		fault:    attr("fault"),
	}
}

func (t *Temp) Name() string                    { return t.desc.Name }
func (t *Temp) Desc() *inventory.SensorDesc     { return &t.desc }
func (t *Temp) Presence() bool                  { return true }
func (t *Temp) Model() string                   { return "N/A" }
func (t *Temp) Temperature() (float64, error)   { return ReadScaled(t.input, 1000) }
func (t *Temp) SetLowThreshold(v float64) error { return t.set(t.min, v) }

func (t *Temp) SetHighThreshold(v float64) error { return t.set(t.max, v) }

func (t *Temp) Status() bool {
	if t.fault.Exists() {
		if b, err := ReadBool(t.fault); err != nil || b {
			return false
		}
	}
	return true
}

func (t *Temp) threshold(a Attr, def float64) float64 {
	if t.reportHw && a.Exists() {
		if v, err := ReadScaled(a, 1000); err == nil {
			return v
		}
	}
	return def
}

func (t *Temp) LowThreshold() float64 { return t.threshold(t.min, t.desc.Low) }

func (t *Temp) LowCriticalThreshold() float64 {
	return t.threshold(t.lcrit, t.desc.LowCritical)
}

func (t *Temp) HighThreshold() float64 { return t.threshold(t.max, t.desc.Overheat) }

func (t *Temp) HighCriticalThreshold() float64 {
	return t.threshold(t.crit, t.desc.Critical)
}

func (t *Temp) set(a Attr, v float64) error {
	if !a.Exists() {
		return nil
	}
	return WriteScaled(a, v, 1000)
}

// RefreshThresholds writes the descriptor thresholds to the hardware.
func (t *Temp) RefreshThresholds() error {
	for _, x := range []struct {
		a Attr
		v float64
	}{
		{t.min, t.desc.Low},
		{t.lcrit, t.desc.LowCritical},
		{t.max, t.desc.Overheat},
		{t.crit, t.desc.Critical},
	} {
		if err := t.set(x.a, x.v); err != nil {
			return err
		}
	}
	return nil
}

// Reset is a reset line exported as a device attribute.
type Reset struct {
	Desc inventory.ResetDesc
	attr Attr
}

func NewReset(k *Kernel, desc inventory.ResetDesc) *Reset {
	return &Reset{Desc: desc, attr: k.DevAttr(desc.Name)}
}

func (r *Reset) Name() string        { return r.Desc.Name }
func (r *Reset) Read() (bool, error) { return ReadBool(r.attr) }
func (r *Reset) ResetIn() error      { return WriteBool(r.attr, true) }
func (r *Reset) ResetOut() error     { return WriteBool(r.attr, false) }
func (r *Reset) String() string      { return fmt.Sprintf("Reset(%s)", r.Desc.Name) }
func (r *Reset) Path() string        { return r.attr.Path() }

// Gpio is a gpio exported as a device attribute. HwActiveLow marks
// drivers that already invert the line.
type Gpio struct {
	Desc        inventory.GpioDesc
	HwActiveLow bool
	attr        Attr
}

func NewGpio(k *Kernel, desc inventory.GpioDesc) *Gpio {
	return &Gpio{Desc: desc, attr: k.DevAttr(desc.Name)}
}

func (g *Gpio) Name() string { return g.Desc.Name }
func (g *Gpio) Addr() uint32 { return g.Desc.Addr }
func (g *Gpio) Bit() uint    { return g.Desc.Bit }
func (g *Gpio) IsRo() bool   { return g.Desc.RO }
func (g *Gpio) Path() string { return g.attr.Path() }

func (g *Gpio) IsActiveLow() bool {
	return !g.HwActiveLow && g.Desc.ActiveLow
}

func (g *Gpio) RawValue() (uint32, error) {
	v, err := ReadInt(g.attr)
	return uint32(v), err
}

func (g *Gpio) IsActive() (bool, error) {
	v, err := g.RawValue()
	if err != nil {
		return false, err
	}
	if g.IsActiveLow() {
		return v == 0, nil
	}
	return v == 1, nil
}

func (g *Gpio) SetActive(on bool) error {
	if g.Desc.RO {
		return fmt.Errorf("%s: read only gpio", g.Name())
	}
	return WriteBool(g.attr, on != g.IsActiveLow())
}

// Rail is a PMBus rail: inN_input, currN_input and powerN_input.
type Rail struct {
	Desc                    inventory.RailDesc
	voltage, current, power Attr
}

func NewRail(k *Kernel, desc inventory.RailDesc) *Rail {
	r := &Rail{Desc: desc}
	if desc.Voltage > 0 {
		r.voltage = k.HwmonAttr(fmt.Sprintf("in%d_input", desc.Voltage))
	}
	if desc.Current > 0 {
		r.current = k.HwmonAttr(fmt.Sprintf("curr%d_input", desc.Current))
	}
	if desc.Power > 0 {
		r.power = k.HwmonAttr(fmt.Sprintf("power%d_input", desc.Power))
	}
	return r
}

func (r *Rail) Name() string { return r.Desc.Name }

func (r *Rail) read(a Attr, scale float64, what string) (float64, error) {
	if a == nil {
		return 0, fmt.Errorf("%s: no %s sensor", r.Name(), what)
	}
	return ReadScaled(a, scale)
}

func (r *Rail) Voltage() (float64, error) { return r.read(r.voltage, 1000, "voltage") }
func (r *Rail) Current() (float64, error) { return r.read(r.current, 1000, "current") }
func (r *Rail) Power() (float64, error)   { return r.read(r.power, 1000000, "power") }
