// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cooling drives fan speeds from thermal sensor readings.
package cooling

import (
	"fmt"
	"math"
	"time"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
)

const (
	MinPwm = 30
	MaxPwm = 100

	// Readings below this are sensor faults.
	absurdTemp = -50
)

var log = logging.Get("cooling")

// Params tune the algorithm. Speeds are in percent; MaxDecrease and
// MaxIncrease are the largest change per Interval, zero meaning unbounded.
type Params struct {
	MinSpeed     float64
	MaxSpeed     float64
	MaxDecrease  float64
	MaxIncrease  float64
	Interval     time.Duration
	DataPoints   int
	TargetOffset float64
	TargetFactor float64
}

const DefaultInterval = 20 * time.Second

func DefaultParams() Params {
	return ParamsFrom(config.Default())
}

func ParamsFrom(c *config.Config) Params {
	p := Params{
		MinSpeed:     c.CoolingMinSpeed,
		MaxSpeed:     MaxPwm,
		MaxDecrease:  c.CoolingMaxDecrease,
		MaxIncrease:  c.CoolingMaxIncrease,
		Interval:     time.Duration(c.CoolingLoopInterval) * time.Second,
		DataPoints:   c.CoolingDataPoints,
		TargetOffset: c.CoolingTargetOffset,
		TargetFactor: c.CoolingTargetFactor,
	}
	if p.MinSpeed <= 0 {
		p.MinSpeed = MinPwm
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	return p
}

// Sensor is one thermal reading with its thresholds.
type Sensor struct {
	Name     string
	Temp     float64
	Target   float64
	Overheat float64
	Critical float64
}

func (s Sensor) Valid() bool {
	return s.Overheat != 0 && s.Critical != 0 && s.Temp > absurdTemp
}

// Demand is 0 at or below halfway between target and overheat, grows
// linearly to 1 at critical and is 1 from the lower of overheat and
// critical on.
func (s Sensor) Demand() float64 {
	if !s.Valid() {
		return 0
	}
	if s.Temp >= math.Min(s.Overheat, s.Critical) {
		return 1
	}
	halfway := (s.Target + s.Overheat) / 2
	if s.Critical <= halfway {
		return 0
	}
	return math.Max(0, (s.Temp-halfway)/(s.Critical-halfway))
}

// Speed maps a demand to a fan speed within the bounds.
func (p Params) Speed(demand float64) float64 {
	demand = math.Max(0, math.Min(1, demand))
	return p.MinSpeed + demand*(p.MaxSpeed-p.MinSpeed)
}

// Ramp moves from last toward target by at most the allowed change over
// elapsed. Successive calls with a constant target compose: N steps of
// elapsed/N land where one step of elapsed does. A full demand jumps
// straight to the target.
func (p Params) Ramp(last, target float64, elapsed time.Duration, full bool) float64 {
	scale := float64(elapsed) / float64(p.Interval)
	next := target
	switch {
	case target < last && p.MaxDecrease > 0:
		next = math.Max(target, last-p.MaxDecrease*scale)
	case target > last && p.MaxIncrease > 0 && !full:
		next = math.Min(target, last+p.MaxIncrease*scale)
	}
	return math.Max(p.MinSpeed, math.Min(p.MaxSpeed, next))
}

type fanState struct {
	fan     inventory.Fan
	lastSet float64
	known   bool
}

// Zone is a set of fans cooling a set of sensors.
type Zone struct {
	Name  string
	Temps []inventory.Temp
	Fans  []inventory.Fan

	// Demand holds the most recent zone demands, newest last.
	Demand []float64

	fans map[string]*fanState
}

func NewZone(name string, temps []inventory.Temp, fans []inventory.Fan) *Zone {
	z := &Zone{Name: name, fans: make(map[string]*fanState)}
	z.Load(temps, fans)
	return z
}

// Load replaces the zone members, keeping the state of known fans.
func (z *Zone) Load(temps []inventory.Temp, fans []inventory.Fan) {
	z.Temps, z.Fans = temps, fans
	seen := make(map[string]bool)
	for _, f := range fans {
		seen[f.Name()] = true
		if st, found := z.fans[f.Name()]; found {
			st.fan = f
		} else {
			z.fans[f.Name()] = &fanState{fan: f}
		}
	}
	for name := range z.fans {
		if !seen[name] {
			delete(z.fans, name)
		}
	}
}

// LastSet returns the speed last requested from the named fan.
func (z *Zone) LastSet(name string) (float64, bool) {
	st, found := z.fans[name]
	if !found || !st.known {
		return 0, false
	}
	return st.lastSet, true
}

func (p Params) sensor(t inventory.Temp) (Sensor, error) {
	v, err := t.Temperature()
	if err != nil {
		return Sensor{}, err
	}
	s := Sensor{
		Name:     t.Name(),
		Temp:     v,
		Overheat: t.HighThreshold(),
		Critical: t.HighCriticalThreshold(),
	}
	if d := t.Desc(); d != nil && d.Target != 0 {
		s.Target = d.Target + p.TargetOffset
	} else {
		s.Target = s.Overheat*p.TargetFactor + p.TargetOffset
	}
	return s, nil
}

// Algorithm runs every zone on each tick.
type Algorithm struct {
	Params  Params
	Zones   []*Zone
	Metrics *Metrics
}

func New(p Params, zones ...*Zone) *Algorithm {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	return &Algorithm{Params: p, Zones: zones}
}

// FromInventories builds one zone per inventory.
func FromInventories(p Params, invs ...inventory.Reader) *Algorithm {
	a := New(p)
	for i, inv := range invs {
		a.Zones = append(a.Zones, NewZone(fmt.Sprint("zone", i),
			inv.Temps(), inv.Fans()))
	}
	return a
}

// Run computes the demand of each zone and sets its fans, as if elapsed
// passed since the previous run. Sensor and fan errors are logged and
// skipped.
func (a *Algorithm) Run(elapsed time.Duration) error {
	var first error
	for _, z := range a.Zones {
		if err := a.runZone(z, elapsed); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *Algorithm) runZone(z *Zone, elapsed time.Duration) error {
	p := a.Params
	demand := 0.0
	for _, t := range z.Temps {
		s, err := p.sensor(t)
		if err != nil {
			log.Debug("%s: %s: %v", z.Name, t.Name(), err)
			continue
		}
		if d := s.Demand(); d > demand {
			demand = d
		}
	}
	z.Demand = append(z.Demand, demand)
	if n := p.DataPoints; n > 0 && len(z.Demand) > n {
		z.Demand = z.Demand[len(z.Demand)-n:]
	}
	if a.Metrics != nil {
		a.Metrics.ZoneDemand.WithLabelValues(z.Name).Set(demand)
	}

	target := p.Speed(demand)
	var first error
	for _, f := range z.Fans {
		st := z.fans[f.Name()]
		if !st.known {
			speed, err := f.Speed()
			if err != nil {
				log.Debug("%s: %s: %v", z.Name, f.Name(), err)
				speed = int(p.MaxSpeed)
			}
			st.lastSet, st.known = float64(speed), true
		}
		next := p.Ramp(st.lastSet, target, elapsed, demand >= 1)
		if err := f.SetSpeed(int(math.Round(next))); err != nil {
			log.Warning("%s: %s: set speed: %v", z.Name, f.Name(), err)
			if first == nil {
				first = err
			}
			continue
		}
		if next != st.lastSet {
			log.Debug("%s: %s: %.1f%% -> %.1f%%", z.Name, f.Name(),
				st.lastSet, next)
		}
		st.lastSet = next
		if a.Metrics != nil {
			a.Metrics.FanSpeed.WithLabelValues(f.Name()).Set(next)
		}
	}
	return first
}

// Loop runs the algorithm every interval until stop is closed.
func (a *Algorithm) Loop(stop <-chan struct{}) {
	t := time.NewTicker(a.Params.Interval)
	defer t.Stop()
	last := wait.Now()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			now := wait.Now()
			if err := a.Run(now.Sub(last)); err != nil {
				log.Debug("run: %v", err)
			}
			last = now
		}
	}
}
