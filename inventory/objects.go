// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package inventory

import (
	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/reloadcause"
)

type Color string

const (
	Off   Color = "off"
	Green Color = "green"
	Red   Color = "red"
	Amber Color = "amber"
	Blue  Color = "blue"
	White Color = "white"
)

type Led interface {
	Name() string
	Color() (Color, error)
	SetColor(Color) error
	IsStatus() bool
}

type Fan interface {
	Id() int
	Name() string
	Model() string
	// Speed is the duty cycle in percent.
	Speed() (int, error)
	SetSpeed(percent int) error
	Rpm() (int, error)
	Direction() Airflow
	Fault() bool
	Presence() bool
	Status() bool
	Position() string
	Led() Led
}

type FanSlot interface {
	Id() int
	Name() string
	Model() string
	Presence() bool
	Fans() []Fan
	Direction() Airflow
	Led() Led
	Fault() bool
	MaxPowerDraw() float64
}

type Psu interface {
	Name() string
	Model() string
	Serial() string
	Presence() bool
	Status() bool
}

type PsuSlot interface {
	Id() int
	Name() string
	Presence() bool
	InputOk() bool
	OutputOk() bool
	Status() bool
	Led() Led
	// Psu is nil while the slot is empty or the model is unknown.
	Psu() Psu
}

type Temp interface {
	Name() string
	Desc() *SensorDesc
	Presence() bool
	Model() string
	Status() bool
	Temperature() (float64, error)
	LowThreshold() float64
	LowCriticalThreshold() float64
	HighThreshold() float64
	HighCriticalThreshold() float64
	SetLowThreshold(float64) error
	SetHighThreshold(float64) error
}

type XcvrKind string

const (
	Ethernet XcvrKind = "ethernet"
	Sfp      XcvrKind = "sfp"
	Qsfp     XcvrKind = "qsfp"
	Osfp     XcvrKind = "osfp"
)

type Xcvr interface {
	Kind() XcvrKind
	Name() string
	Id() int
	I2cAddr() address.I2cAddr
}

type XcvrSlot interface {
	Id() int
	Name() string
	Kind() XcvrKind
	Presence() (bool, error)
	Leds() []Led
	// InterruptLine is nil without an interrupt bit.
	InterruptLine() Interrupt
	Xcvr() Xcvr
}

// Optional transceiver slot capabilities; their absence is reported by a
// failed type assertion.
type (
	LowPowerModer interface {
		LowPowerMode() (bool, error)
		SetLowPowerMode(bool) error
	}
	ModuleSelecter interface {
		ModuleSelect() (bool, error)
		SetModuleSelect(bool) error
	}
	TxDisabler interface {
		TxDisable() (bool, error)
		SetTxDisable(bool) error
	}
	RxLoser interface {
		RxLos() (bool, error)
	}
	TxFaulter interface {
		TxFault() (bool, error)
	}
	Resettable interface {
		Reset() Reset
	}
)

type Reset interface {
	Name() string
	// Read reports whether the reset is held.
	Read() (bool, error)
	ResetIn() error
	ResetOut() error
}

type Gpio interface {
	Name() string
	Addr() uint32
	Bit() uint
	IsRo() bool
	IsActiveLow() bool
	RawValue() (uint32, error)
	IsActive() (bool, error)
	SetActive(bool) error
}

type WatchdogStatus struct {
	Enabled bool `json:"enabled"`
	// Timeout and Remaining are in centiseconds; Remaining is -1 when the
	// watchdog is stopped.
	Timeout   int `json:"timeout"`
	Remaining int `json:"remainingTime"`
}

type Watchdog interface {
	Arm(timeout int) error
	Stop() error
	Status() (WatchdogStatus, error)
}

type PowerCycle interface {
	PowerCycle() error
}

type Interrupt interface {
	Name() string
	Set() error
	Clear() error
	// File is the uio device signalled by the interrupt.
	File() string
}

type Rail interface {
	Name() string
	Power() (float64, error)
	Current() (float64, error)
	Voltage() (float64, error)
}

type Phy interface {
	Id() int
	Reset() Reset
}

type Slot interface {
	Name() string
	Presence() bool
}

type Programmable interface {
	Component() string
	Version() string
	Description() string
}

type SeuReporter interface {
	Component() string
	HasSeuError() (bool, error)
	PowerCycleOnSeu() (bool, error)
	SetPowerCycleOnSeu(bool) error
}

type CauseProvider = reloadcause.Provider
