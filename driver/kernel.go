// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/sysfs"
)

// Run executes an external command; tests replace it.
var Run = func(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "),
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

func moduleName(module string) string {
	return strings.Replace(module, "-", "_", -1)
}

// ModuleLoaded reports whether /proc/modules lists module.
func ModuleLoaded(module string) bool {
	s, err := sysfs.ReadString("/proc/modules")
	if err != nil {
		return false
	}
	prefix := moduleName(module) + " "
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// ModuleDevices lists the devices still bound to a driver of module.
func ModuleDevices(module string) []string {
	links, _ := sysfs.Glob(filepath.Join("/sys/module", moduleName(module),
		"drivers", "*", "*"))
	var devices []string
	for _, l := range links {
		target, err := os.Readlink(sysfs.Path(l))
		if err != nil {
			continue
		}
		if strings.Contains(target, "/devices/") {
			devices = append(devices, filepath.Base(l))
		}
	}
	return devices
}

func Modprobe(module string, args ...string) error {
	argv := append([]string{module}, args...)
	if config.Get().Debug() {
		argv = append(argv, "dyndbg=+pf")
	}
	log.Debug("loading module %s", module)
	return Run("modprobe", argv...)
}

func Rmmod(module string) error {
	log.Debug("unloading module %s", module)
	return Run("modprobe", "-r", module)
}

// Kernel loads a kernel module on setup and unloads it on clean when no
// device uses it anymore. Path is the sysfs directory of the device the
// module binds; its hwmon attributes are looked up below it.
type Kernel struct {
	Module string
	Args   []string
	// Passive drivers never load or unload their module.
	Passive bool
	Path    string
	// Simulated attributes read as 1 and ignore writes.
	Simulated bool

	hwmon string
}

// NewSysfs returns a passive driver over an existing sysfs device.
func NewSysfs(path string) *Kernel {
	return &Kernel{
		Passive:   true,
		Path:      path,
		Simulated: config.Get().InSimulation(),
	}
}

func NewKernel(module string, args ...string) *Kernel {
	return &Kernel{
		Module:    module,
		Args:      args,
		Simulated: config.Get().InSimulation(),
	}
}

func (k *Kernel) String() string {
	return fmt.Sprintf("Kernel(module=%s)", k.Module)
}

func (k *Kernel) Setup() error {
	if k.Passive || len(k.Module) == 0 || k.Loaded() {
		return nil
	}
	return Modprobe(k.Module, k.Args...)
}

func (k *Kernel) Finish() error { return nil }

func (k *Kernel) Refresh() error {
	k.hwmon = ""
	return nil
}

func (k *Kernel) Clean() error {
	if k.Passive || len(k.Module) == 0 {
		return nil
	}
	if !k.Loaded() {
		log.Debug("module %s is not loaded", k.Module)
		return nil
	}
	if devices := ModuleDevices(k.Module); len(devices) > 0 {
		log.Debug("module %s is still in use by %v", k.Module, devices)
		return nil
	}
	if err := Rmmod(k.Module); err != nil {
		log.Error("failed to unload %s: %v", k.Module, err)
	}
	return nil
}

func (k *Kernel) Loaded() bool { return ModuleLoaded(k.Module) }

func (k *Kernel) SysfsPath() string { return k.Path }

// Hwmon returns the first hwmon directory of the device.
func (k *Kernel) Hwmon() string {
	if len(k.hwmon) > 0 {
		return k.hwmon
	}
	dir := filepath.Join(k.Path, "hwmon")
	if k.Simulated {
		return filepath.Join(dir, "simulation")
	}
	names, err := sysfs.ReadDir(dir)
	if err != nil {
		return filepath.Join(dir, "hwmonX")
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasPrefix(name, "hwmon") {
			k.hwmon = filepath.Join(dir, name)
			return k.hwmon
		}
	}
	return filepath.Join(dir, "hwmonX")
}

func (k *Kernel) attr(path string) Attr {
	if k.Simulated {
		return simAttr(path)
	}
	return fileAttr(path)
}

// HwmonAttr is a hwmon attribute such as temp1_input.
func (k *Kernel) HwmonAttr(name string) Attr {
	return k.attr(filepath.Join(k.Hwmon(), name))
}

// DevAttr is an attribute of the device directory itself.
func (k *Kernel) DevAttr(name string) Attr {
	return k.attr(filepath.Join(k.Path, name))
}

func (k *Kernel) LedAttr(name string) Attr {
	return k.attr(filepath.Join(k.Path, "leds", name, "brightness"))
}

// I2cKernel instantiates a kernel i2c client through the new_device
// attribute of its adapter.
type I2cKernel struct {
	Kernel
	Addr address.I2cAddr
	// Name is the i2c client name the kernel driver matches.
	Name string
}

func NewI2cKernel(module, name string, addr address.I2cAddr, args ...string) *I2cKernel {
	d := &I2cKernel{
		Kernel: *NewKernel(module, args...),
		Addr:   addr,
		Name:   name,
	}
	d.Kernel.Path = addr.SysfsPath()
	return d
}

func (d *I2cKernel) String() string {
	return fmt.Sprintf("I2cKernel(%s, addr=%s)", d.Name, d.Addr)
}

func (d *I2cKernel) adapterPath(attr string) string {
	return fmt.Sprintf("/sys/bus/i2c/devices/i2c-%d/%s", d.Addr.BusId(), attr)
}

func (d *I2cKernel) Setup() error {
	if err := d.Kernel.Setup(); err != nil {
		return err
	}
	d.Kernel.Path = d.Addr.SysfsPath()
	log.Debug("creating i2c device %s on bus %d at %#02x", d.Name,
		d.Addr.BusId(), d.Addr.Address)
	if sysfs.Exists(d.Kernel.Path) {
		log.Debug("i2c device %s already exists", d.Kernel.Path)
		return nil
	}
	return sysfs.WriteString(d.adapterPath("new_device"),
		fmt.Sprintf("%s 0x%02x", d.Name, d.Addr.Address))
}

func (d *I2cKernel) Refresh() error {
	d.Kernel.Path = d.Addr.SysfsPath()
	return d.Kernel.Refresh()
}

func (d *I2cKernel) Clean() error {
	if sysfs.Exists(d.Addr.SysfsPath()) {
		log.Debug("removing i2c device %s from bus %d at %#02x", d.Name,
			d.Addr.BusId(), d.Addr.Address)
		err := sysfs.WriteString(d.adapterPath("delete_device"),
			fmt.Sprintf("0x%02x", d.Addr.Address))
		if err != nil {
			return err
		}
	} else {
		log.Debug("i2c device %s not loaded on bus %d", d.Name,
			d.Addr.BusId())
	}
	return d.Kernel.Clean()
}
