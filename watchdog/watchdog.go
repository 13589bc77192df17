// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package watchdog arms the platform watchdog and remembers when it was
// armed, since the hardware only reports the programmed timeout.
package watchdog

import (
	"fmt"
	"os"
	"time"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/clock"
	"github.com/platinasystems/sysplat/internal/jsonstore"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/register"
)

const (
	// MaxTimeout in centiseconds.
	MaxTimeout = 65535

	DefaultReg = 0x0120
	// PowerCycle is the action taken on expiry.
	PowerCycle = 2

	enableBit    = 31
	actionShift  = 29
	timeoutMask  = 1<<16 - 1
	centiseconds = 10 * time.Millisecond
)

var log = logging.Get("watchdog")

// State is the arm record shared by every process through a tmpfs file.
// LastArmed is the raw monotonic clock in seconds, zero when stopped.
type State struct {
	LastArmed   float64 `json:"lastArmed"`
	LastTimeout int     `json:"lastTimeout"`

	store *jsonstore.Store
}

// NewState keeps the record in the configured state file.
func NewState() *State {
	return &State{store: jsonstore.Temporary(config.Get().WatchdogStateFile)}
}

func persist() bool { return !config.Get().InSimulation() }

func (s *State) write() {
	if s.store == nil || !persist() {
		return
	}
	if err := s.store.Write(s); err != nil {
		log.Error("failed to write watchdog state to cache: %v", err)
	}
}

func (s *State) read() {
	if s.store == nil || !persist() {
		return
	}
	if err := s.store.Read(s); err != nil && !os.IsNotExist(err) {
		log.Error("failed to read watchdog state from cache: %v", err)
	}
}

func now() float64 { return clock.MonotonicRaw().Seconds() }

func (s *State) Arm(timeout int) {
	s.LastTimeout = timeout
	s.LastArmed = 0
	if timeout != 0 {
		s.LastArmed = now()
	}
	s.write()
}

// Elapsed returns the centiseconds since arming, -1 when stopped.
func (s *State) Elapsed() int {
	s.read()
	if s.LastArmed == 0 {
		return -1
	}
	return int(100 * (now() - s.LastArmed))
}

// Remaining returns the centiseconds left, -1 when stopped.
func (s *State) Remaining() int {
	elapsed := s.Elapsed()
	if s.LastTimeout == 0 {
		return -1
	}
	return s.LastTimeout - elapsed
}

func check(timeout int) error {
	if timeout > MaxTimeout {
		return fmt.Errorf("watchdog timeout %d exceeds max timeout %d",
			timeout, MaxTimeout)
	}
	if timeout < 0 {
		return fmt.Errorf("watchdog timeout %d must be positive", timeout)
	}
	return nil
}

// ControlWord encodes an arm request; zero stops the watchdog.
func ControlWord(timeout int, action uint32) uint32 {
	if timeout <= 0 {
		return 0
	}
	return 1<<enableBit | action<<actionShift | uint32(timeout)
}

// Scd is the watchdog register of an scd.
type Scd struct {
	Dev    register.Device
	Reg    uint32
	Action uint32
	State  *State
}

func NewScd(dev register.Device) *Scd {
	return &Scd{
		Dev:    dev,
		Reg:    DefaultReg,
		Action: PowerCycle,
		State:  NewState(),
	}
}

func (w *Scd) Arm(timeout int) error {
	if err := check(timeout); err != nil {
		return err
	}
	v := ControlWord(timeout, w.Action)
	if config.Get().InSimulation() {
		w.State.Arm(timeout)
		log.Info("watchdog arm reg=%032b", v)
		return nil
	}
	log.Info("arm reg = %032b", v)
	if err := w.Dev.Write(w.Reg, v); err != nil {
		return fmt.Errorf("watchdog arm/stop error: %w", err)
	}
	w.State.Arm(timeout)
	return nil
}

func (w *Scd) Stop() error {
	if config.Get().InSimulation() {
		log.Info("watchdog stop")
		return nil
	}
	return w.Arm(0)
}

// Status reads the programmed timeout back. The hardware has no notion
// of remaining time: it is derived from the arm record and is only right
// when the record matches the register.
func (w *Scd) Status() (inventory.WatchdogStatus, error) {
	if config.Get().InSimulation() {
		log.Info("watchdog status")
		return inventory.WatchdogStatus{
			Enabled:   true,
			Timeout:   300,
			Remaining: 100,
		}, nil
	}
	v, err := w.Dev.Read(w.Reg)
	if err != nil {
		return inventory.WatchdogStatus{}, fmt.Errorf("watchdog status error: %w", err)
	}
	st := inventory.WatchdogStatus{
		Enabled:   v>>enableBit != 0,
		Timeout:   int(v & timeoutMask),
		Remaining: -1,
	}
	if st.Enabled {
		elapsed := w.State.Elapsed()
		if st.Timeout != w.State.LastTimeout {
			log.Warning("watchdog: hw (%d) and sw (%d) timeout mismatch",
				st.Timeout, w.State.LastTimeout)
		}
		st.Remaining = 0
		if elapsed >= 0 {
			st.Remaining = st.Timeout - elapsed
		}
	}
	return st, nil
}

// Soft is a watchdog without hardware, for platforms that only need the
// interface.
type Soft struct {
	State *State
}

func NewSoft() *Soft { return &Soft{State: NewState()} }

func (w *Soft) Arm(timeout int) error {
	if err := check(timeout); err != nil {
		return err
	}
	w.State.Arm(timeout)
	return nil
}

func (w *Soft) Stop() error {
	w.State.Arm(0)
	return nil
}

func (w *Soft) Status() (inventory.WatchdogStatus, error) {
	remaining := w.State.Remaining()
	return inventory.WatchdogStatus{
		Enabled:   w.State.LastArmed != 0,
		Timeout:   w.State.LastTimeout,
		Remaining: remaining,
	}, nil
}

// Seconds converts a centisecond count, keeping -1 as is.
func Seconds(cs int) int {
	if cs == -1 {
		return -1
	}
	return int(time.Duration(cs) * centiseconds / time.Second)
}
