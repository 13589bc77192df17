// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/inventory"
)

func hardware(t *testing.T) string {
	dir := t.TempDir()
	c := config.Simulated(dir)
	sim := false
	c.Simulation = &sim
	config.Set(c)
	sysfs.Root = dir
	t.Cleanup(func() {
		sysfs.Root = ""
		config.Set(nil)
	})
	return dir
}

func mkfile(t *testing.T, path, content string) {
	p := sysfs.Path(path)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func content(t *testing.T, path string) string {
	s, err := sysfs.ReadString(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func recordRun(t *testing.T) *[]string {
	var calls []string
	run := Run
	Run = func(name string, args ...string) error {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil
	}
	t.Cleanup(func() { Run = run })
	return &calls
}

func TestKernelModule(t *testing.T) {
	hardware(t)
	calls := recordRun(t)
	mkfile(t, "/proc/modules", "scd_hwmon 16384 0 - Live 0x0\n")

	k := NewKernel("scd-hwmon")
	if !k.Loaded() {
		t.Fatal("scd-hwmon should be loaded")
	}
	if err := k.Setup(); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Fatalf("unexpected %v", *calls)
	}

	k = NewKernel("lm73")
	if err := k.Setup(); err != nil {
		t.Fatal(err)
	}
	if err := k.Clean(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"modprobe lm73"}; strings.Join(*calls, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", *calls, want)
	}
}

func TestKernelCleanInUse(t *testing.T) {
	dir := hardware(t)
	calls := recordRun(t)
	mkfile(t, "/proc/modules", "lm73 16384 0 - Live 0x0\n")
	mkfile(t, "/sys/devices/i2c-3/3-0048/name", "lm73")
	drv := sysfs.Path("/sys/module/lm73/drivers/i2c:lm73")
	if err := os.MkdirAll(drv, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "sys/devices/i2c-3/3-0048"),
		filepath.Join(drv, "3-0048")); err != nil {
		t.Fatal(err)
	}
	k := NewKernel("lm73")
	if err := k.Clean(); err != nil {
		t.Fatal(err)
	}
	if len(*calls) != 0 {
		t.Fatalf("module in use was unloaded: %v", *calls)
	}
	os.Remove(filepath.Join(drv, "3-0048"))
	k.Clean()
	if len(*calls) != 1 || (*calls)[0] != "modprobe -r lm73" {
		t.Fatalf("got %v", *calls)
	}
	k.Passive = true
	k.Clean()
	if len(*calls) != 1 {
		t.Fatal("passive driver unloaded its module")
	}
}

func TestI2cKernel(t *testing.T) {
	hardware(t)
	recordRun(t)
	mkfile(t, "/proc/modules", "lm73 16384 0 - Live 0x0\n")
	mkfile(t, "/sys/bus/i2c/devices/i2c-3/new_device", "")
	mkfile(t, "/sys/bus/i2c/devices/i2c-3/delete_device", "")

	d := NewI2cKernel("lm73", "lm73", address.I2c(3, 0x48))
	if err := d.Setup(); err != nil {
		t.Fatal(err)
	}
	if got := content(t, "/sys/bus/i2c/devices/i2c-3/new_device"); got != "lm73 0x48" {
		t.Fatalf("new_device %q", got)
	}

	mkfile(t, "/sys/bus/i2c/devices/3-0048/name", "lm73")
	if err := d.Clean(); err != nil {
		t.Fatal(err)
	}
	if got := content(t, "/sys/bus/i2c/devices/i2c-3/delete_device"); got != "0x48" {
		t.Fatalf("delete_device %q", got)
	}
}

func TestSimulated(t *testing.T) {
	hardware(t)
	calls := recordRun(t)
	d := Select(true, NewKernel("lm73"))
	for _, f := range []func() error{d.Setup, d.Finish, d.Refresh, d.Clean} {
		if err := f(); err != nil {
			t.Fatal(err)
		}
	}
	if len(*calls) != 0 {
		t.Fatalf("simulated driver ran %v", *calls)
	}
	if _, ok := Unwrap(d).(*Kernel); !ok {
		t.Fatal("unwrap")
	}
	a := simAttr("/sys/nothing")
	if v, err := ReadInt(a); err != nil || v != 1 {
		t.Fatal(v, err)
	}
}

func TestHwmon(t *testing.T) {
	hardware(t)
	dev := "/sys/bus/i2c/devices/8-004c"
	hw := dev + "/hwmon/hwmon4/"
	mkfile(t, hw+"pwm1", "255")
	mkfile(t, hw+"fan1_input", "9000")
	mkfile(t, hw+"temp2_input", "45500")
	mkfile(t, hw+"temp2_max", "90000")
	mkfile(t, dev+"/leds/fan1/brightness", "2")
	mkfile(t, dev+"/qsfp1_reset", "0")
	mkfile(t, dev+"/psu1_present", "0")

	k := NewSysfs(dev)
	if k.Hwmon() != dev+"/hwmon/hwmon4" {
		t.Fatal(k.Hwmon())
	}

	fan := NewFan(k, inventory.FanDesc{FanId: 1, Airflow: inventory.AirflowExhaust}, nil)
	if fan.Name() != "fan1" {
		t.Error("name", fan.Name())
	}
	if v, err := fan.Speed(); err != nil || v != 100 {
		t.Error("speed", v, err)
	}
	if err := fan.SetSpeed(50); err != nil {
		t.Fatal(err)
	}
	if got := content(t, hw+"pwm1"); got != "127" {
		t.Error("pwm", got)
	}
	if !fan.Presence() || fan.Fault() || !fan.Status() {
		t.Error("fan status")
	}
	if fan.Direction() != inventory.AirflowExhaust {
		t.Error("airflow", fan.Direction())
	}

	temp := NewTemp(k, inventory.Sensor(1, "inlet", inventory.PositionInlet, 50, 60, 70))
	if v, err := temp.Temperature(); err != nil || v != 45.5 {
		t.Error("temperature", v, err)
	}
	if temp.HighThreshold() != 60 {
		t.Error("descriptor threshold expected", temp.HighThreshold())
	}
	temp.reportHw = true
	if temp.HighThreshold() != 90 {
		t.Error("hardware threshold expected", temp.HighThreshold())
	}
	if err := temp.SetHighThreshold(65); err != nil {
		t.Fatal(err)
	}
	if got := content(t, hw+"temp2_max"); got != "65000" {
		t.Error("temp2_max", got)
	}
	if err := temp.SetLowThreshold(5); err != nil {
		t.Error("missing attribute must be ignored", err)
	}

	led := NewLed(k, inventory.LedDesc{Name: "fan1"})
	if c, err := led.Color(); err != nil || c != inventory.Red {
		t.Error("color", c, err)
	}
	led.SetColor(inventory.Amber)
	if got := content(t, dev+"/leds/fan1/brightness"); got != "3" {
		t.Error("brightness", got)
	}

	rst := NewReset(k, inventory.ResetDesc{Name: "qsfp1_reset"})
	rst.ResetIn()
	if held, _ := rst.Read(); !held {
		t.Error("reset not held")
	}
	rst.ResetOut()
	if held, _ := rst.Read(); held {
		t.Error("reset still held")
	}

	g := NewGpio(k, inventory.GpioDesc{Name: "psu1_present", ActiveLow: true})
	if on, err := g.IsActive(); err != nil || !on {
		t.Error("active low gpio", on, err)
	}
	g.HwActiveLow = true
	if on, _ := g.IsActive(); on {
		t.Error("inverted by driver")
	}
}
