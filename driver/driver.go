// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package driver binds components to the kernel and to hardware: module
// loading, i2c device instantiation, PCI BAR mapping, SMBus transfers and
// sysfs attributes.
package driver

import (
	"fmt"

	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("driver")

// Driver is the lifecycle of the hardware access of one component. Clean
// must be safe to repeat.
type Driver interface {
	Setup() error
	Finish() error
	Clean() error
	Refresh() error
	String() string
}

// Base has nothing to set up; embed it to implement only what differs.
type Base struct {
	Name string
}

func (Base) Setup() error   { return nil }
func (Base) Finish() error  { return nil }
func (Base) Clean() error   { return nil }
func (Base) Refresh() error { return nil }

func (b Base) String() string {
	if len(b.Name) == 0 {
		return "Driver"
	}
	return b.Name
}

// Simulated logs the lifecycle of the wrapped driver instead of running it.
type Simulated struct {
	Driver Driver
}

func (s Simulated) Setup() error   { return s.log("setup") }
func (s Simulated) Finish() error  { return s.log("finish") }
func (s Simulated) Clean() error   { return s.log("clean") }
func (s Simulated) Refresh() error { return s.log("refresh") }

func (s Simulated) String() string { return s.Driver.String() }

func (s Simulated) log(op string) error {
	log.Debug("simulating %s.%s", s.Driver, op)
	return nil
}

// Select returns d, or its simulated stand-in when sim is set.
func Select(sim bool, d Driver) Driver {
	if sim {
		return Simulated{Driver: d}
	}
	return d
}

// Unwrap returns the driver behind a simulated stand-in.
func Unwrap(d Driver) Driver {
	if s, ok := d.(Simulated); ok {
		return s.Driver
	}
	return d
}

// Chain runs several drivers as one, cleaning in reverse order.
type Chain []Driver

func (c Chain) Setup() error {
	for _, d := range c {
		if err := d.Setup(); err != nil {
			return fmt.Errorf("%s: setup: %w", d, err)
		}
	}
	return nil
}

func (c Chain) Finish() error {
	for _, d := range c {
		if err := d.Finish(); err != nil {
			return fmt.Errorf("%s: finish: %w", d, err)
		}
	}
	return nil
}

// Clean cleans every driver and returns the first failure.
func (c Chain) Clean() (err error) {
	for i := len(c) - 1; i >= 0; i-- {
		if e := c[i].Clean(); e != nil {
			log.Error("%s: clean: %v", c[i], e)
			if err == nil {
				err = e
			}
		}
	}
	return
}

func (c Chain) Refresh() error {
	for _, d := range c {
		if err := d.Refresh(); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) String() string { return fmt.Sprint([]Driver(c)) }
