// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cooling

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/inventory"
)

type mockFan struct {
	name  string
	speed int
	set   []int
}

func (f *mockFan) Id() int                      { return 1 }
func (f *mockFan) Name() string                 { return f.name }
func (f *mockFan) Model() string                { return "N/A" }
func (f *mockFan) Speed() (int, error)          { return f.speed, nil }
func (f *mockFan) Rpm() (int, error)            { return 0, nil }
func (f *mockFan) Direction() inventory.Airflow { return inventory.AirflowExhaust }
func (f *mockFan) Fault() bool                  { return false }
func (f *mockFan) Presence() bool               { return true }
func (f *mockFan) Status() bool                 { return true }
func (f *mockFan) Position() string             { return "" }
func (f *mockFan) Led() inventory.Led           { return nil }

func (f *mockFan) SetSpeed(v int) error {
	f.speed = v
	f.set = append(f.set, v)
	return nil
}

type mockTemp struct {
	desc   inventory.SensorDesc
	values []float64
}

func newTemp(values ...float64) *mockTemp {
	return &mockTemp{
		desc:   inventory.Sensor(1, "hotspot", inventory.PositionOther, 50, 80, 100),
		values: values,
	}
}

func (t *mockTemp) Name() string                   { return t.desc.Name }
func (t *mockTemp) Desc() *inventory.SensorDesc    { return &t.desc }
func (t *mockTemp) Presence() bool                 { return true }
func (t *mockTemp) Model() string                  { return "N/A" }
func (t *mockTemp) Status() bool                   { return true }
func (t *mockTemp) LowThreshold() float64          { return 0 }
func (t *mockTemp) LowCriticalThreshold() float64  { return -5 }
func (t *mockTemp) HighThreshold() float64         { return t.desc.Overheat }
func (t *mockTemp) HighCriticalThreshold() float64 { return t.desc.Critical }
func (t *mockTemp) SetLowThreshold(float64) error  { return nil }
func (t *mockTemp) SetHighThreshold(float64) error { return nil }

func (t *mockTemp) Temperature() (float64, error) {
	if len(t.values) == 0 {
		return 0, errors.New("no reading")
	}
	v := t.values[0]
	if len(t.values) > 1 {
		t.values = t.values[1:]
	}
	return v, nil
}

func simple(initial int, temps ...float64) (*Algorithm, *mockFan) {
	fan := &mockFan{name: "fan1", speed: initial}
	zone := NewZone("zone0", []inventory.Temp{newTemp(temps...)},
		[]inventory.Fan{fan})
	return New(DefaultParams(), zone), fan
}

func lastSet(t *testing.T, a *Algorithm) float64 {
	v, ok := a.Zones[0].LastSet("fan1")
	require.True(t, ok)
	return v
}

func TestSensorDemand(t *testing.T) {
	p := DefaultParams()
	s := Sensor{Target: 50, Overheat: 80, Critical: 100}

	for _, tt := range []struct {
		temp  float64
		speed float64
	}{
		{0, MinPwm},
		{50, MinPwm},
		{65, MinPwm},
		{80, MaxPwm},
		{100, MaxPwm},
		{110, MaxPwm},
	} {
		s.Temp = tt.temp
		assert.Equal(t, tt.speed, p.Speed(s.Demand()), "temp %v", tt.temp)
	}

	s.Temp = 70
	assert.InDelta(t, 5.0/35, s.Demand(), 1e-9)

	// invalid readings never ask for cooling
	assert.Zero(t, Sensor{Temp: 90, Target: 50}.Demand())
	assert.Zero(t, Sensor{Temp: -100, Target: 50, Overheat: 80, Critical: 100}.Demand())

	// overheat above critical saturates at critical
	assert.Equal(t, 1.0, Sensor{Temp: 95, Target: 50, Overheat: 120, Critical: 95}.Demand())
}

func TestOverheatSensor(t *testing.T) {
	for _, temp := range []float64{80, 90, 100, 110} {
		a, fan := simple(30, temp)
		require.NoError(t, a.Run(a.Params.Interval))
		assert.Equal(t, float64(MaxPwm), lastSet(t, a), "temp %v", temp)
		assert.Equal(t, []int{MaxPwm}, fan.set)
	}
}

func TestMinFanSpeed(t *testing.T) {
	a, fan := simple(35, 0)
	require.NoError(t, a.Run(a.Params.Interval))
	assert.Equal(t, float64(MinPwm), lastSet(t, a))
	assert.Equal(t, 30, fan.speed)
}

func TestDecreasingFanSpeed(t *testing.T) {
	a, _ := simple(100, 0)
	for i := 0; i < 6; i++ {
		require.NoError(t, a.Run(a.Params.Interval))
		assert.LessOrEqual(t, lastSet(t, a), 100.0)
		assert.Greater(t, lastSet(t, a), 30.0)
	}
	require.NoError(t, a.Run(a.Params.Interval))
	assert.Equal(t, 30.0, lastSet(t, a))
}

func TestFanRampSane(t *testing.T) {
	var up, down []float64
	for v := 30.0; v < 80; v += 5 {
		up = append(up, v)
		down = append(down, 110-v)
	}
	for _, tt := range []struct {
		initial int
		temps   []float64
	}{
		{30, up},
		{100, down},
	} {
		a, _ := simple(tt.initial, tt.temps...)
		for range tt.temps {
			require.NoError(t, a.Run(a.Params.Interval))
			assert.LessOrEqual(t, lastSet(t, a), 100.0)
			assert.GreaterOrEqual(t, lastSet(t, a), 30.0)
		}
	}
}

func TestFanSpeedTimeScaling(t *testing.T) {
	for _, tt := range []struct {
		initial int
		temp    float64
	}{
		{30, 70},
		{100, 70},
		{100, 20},
	} {
		a1, _ := simple(tt.initial, tt.temp)
		require.NoError(t, a1.Run(a1.Params.Interval))

		a2, _ := simple(tt.initial, tt.temp)
		for i := 0; i < 6; i++ {
			require.NoError(t, a2.Run(a2.Params.Interval/6))
		}
		assert.Less(t, math.Abs(lastSet(t, a1)-lastSet(t, a2)), 1e-7,
			"initial %d temp %v", tt.initial, tt.temp)
	}
}

func TestSteadyState(t *testing.T) {
	a, _ := simple(100, 50)
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Run(a.Params.Interval))
	}
	assert.Equal(t, float64(MinPwm), lastSet(t, a))
	assert.Len(t, a.Zones[0].Demand, a.Params.DataPoints)
}

func TestEmptyAndFailingSensors(t *testing.T) {
	a := New(DefaultParams(), NewZone("empty", nil, nil))
	require.NoError(t, a.Run(a.Params.Interval))

	// a sensor without readings contributes nothing
	fan := &mockFan{name: "fan1", speed: 30}
	a = New(DefaultParams(), NewZone("zone0",
		[]inventory.Temp{newTemp(), newTemp(70)}, []inventory.Fan{fan}))
	require.NoError(t, a.Run(a.Params.Interval))
	assert.Equal(t, 40, fan.speed)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, _ := simple(30, 90)
	a.Metrics = NewMetrics(reg)
	require.NoError(t, a.Run(a.Params.Interval))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.ZoneDemand.WithLabelValues("zone0")))
	assert.Equal(t, 100.0, testutil.ToFloat64(a.Metrics.FanSpeed.WithLabelValues("fan1")))
}

func TestZoneLoad(t *testing.T) {
	a, _ := simple(50, 0)
	require.NoError(t, a.Run(a.Params.Interval))
	z := a.Zones[0]
	z.Load(z.Temps, nil)
	_, ok := z.LastSet("fan1")
	assert.False(t, ok)
}

func TestLoopWithoutInterval(t *testing.T) {
	a := New(Params{})
	assert.Equal(t, DefaultInterval, a.Params.Interval)
	stop := make(chan struct{})
	close(stop)
	a.Loop(stop)
}
