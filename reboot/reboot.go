// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package reboot powers off, or reboots, the linecards of a chassis when
// the supervisor goes down.
package reboot

import (
	"fmt"
	"net/rpc"
	"time"

	"github.com/platinasystems/atsock"
	"golang.org/x/sync/errgroup"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/modular"
)

var log = logging.Get("reboot")

// ShutdownTimeout bounds the wait for a linecard cpu to go down once a
// graceful shutdown was requested.
const ShutdownTimeout = 60 * time.Second

// GracefulShutdownMethod is the rpc served by platformd.
const GracefulShutdownMethod = "Platform.GracefulShutdown"

// ShutdownArgs and ShutdownReply are the arguments and reply of
// GracefulShutdownMethod.
type ShutdownArgs struct {
	Reason string
}

type ShutdownReply struct {
	Accepted bool
}

func callShutdown(cl *rpc.Client) error {
	var r ShutdownReply
	if err := cl.Call(GracefulShutdownMethod, ShutdownArgs{Reason: "reboot"}, &r); err != nil {
		return err
	}
	if !r.Accepted {
		return fmt.Errorf("graceful shutdown refused")
	}
	return nil
}

// Linecard is what the manager needs of a card.
type Linecard interface {
	fmt.Stringer
	SlotId() int
	Presence() bool
	HasCpuModule() bool
	PoweredOn() bool
	PowerOnIs(on bool, lcpu *modular.LcpuCtx) error
}

// PostCoder is implemented by cards reporting the BIOS post code of their
// cpu.
type PostCoder interface {
	LastPostCode() (uint8, error)
}

// Shutdowner asks the cpu of a linecard to shut down.
type Shutdowner interface {
	GracefulShutdown(lc Linecard) error
}

// Mode of RebootLinecards.
type Mode int

const (
	// Soft only asks the linecard cpus to reboot.
	Soft Mode = iota
	// Hard powers the linecards off then on.
	Hard
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}
	return "soft"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "soft":
		return Soft, nil
	case "hard":
		return Hard, nil
	}
	return Soft, fmt.Errorf("%s: unknown reboot mode", s)
}

// LinecardRebootManager runs the shutdown of a set of linecards.
type LinecardRebootManager struct {
	Linecards  []Linecard
	Shutdowner Shutdowner
	Timeout    time.Duration
}

// NewLinecardRebootManager manages the given linecards, or when none are
// given every present and powered linecard of the chassis along with the
// fabric cards when configured to power them off.
func NewLinecardRebootManager(c *modular.Chassis, lcs ...Linecard) *LinecardRebootManager {
	m := &LinecardRebootManager{
		Linecards:  lcs,
		Shutdowner: RpcShutdowner{},
		Timeout:    ShutdownTimeout,
	}
	if len(lcs) > 0 || c == nil {
		return m
	}
	cfg := config.Get()
	var cards []*modular.Card
	if cfg.PowerOffLinecardOnReboot {
		cards = append(cards, c.Linecards()...)
	}
	if cfg.PowerOffFabricOnReboot {
		cards = append(cards, c.Fabrics()...)
	}
	for _, card := range cards {
		if card.Presence() && card.PoweredOn() {
			m.Linecards = append(m.Linecards, card)
		}
	}
	return m
}

func (m *LinecardRebootManager) shutdown(lc Linecard) error {
	if !lc.Presence() || !lc.HasCpuModule() {
		return nil
	}
	return m.Shutdowner.GracefulShutdown(lc)
}

// earlyBoot waits for the cpu of lc to leave the OS, which shows as a post
// code other than 0x00 or 0x9e.
func (m *LinecardRebootManager) earlyBoot(lc Linecard) error {
	pc, ok := lc.(PostCoder)
	if !ok {
		log.Debug("%s: no post code, not waiting", lc)
		return nil
	}
	return wait.For(func() bool {
		code, err := pc.LastPostCode()
		if err != nil {
			return false
		}
		return code != 0x00 && code != 0x9e
	}, fmt.Sprintf("%s shutdown", lc),
		wait.Timeout(m.Timeout), wait.Interval(100*time.Millisecond))
}

// PowerOffLinecard shuts the linecard cpu down, then cuts its power.
func (m *LinecardRebootManager) PowerOffLinecard(lc Linecard) error {
	if lc.Presence() && lc.HasCpuModule() {
		log.Info("start graceful reboot on linecard %s", lc)
		if err := m.shutdown(lc); err != nil {
			log.Error("graceful reboot on linecard %s failed: %v", lc, err)
		} else if err = m.earlyBoot(lc); err != nil {
			log.Warning("linecard %s shutdown timed out, forcing power off", lc)
		} else {
			log.Info("graceful reboot on linecard %s complete", lc)
		}
	}
	log.Debug("power off linecard %s", lc)
	if !lc.Presence() || !lc.PoweredOn() {
		log.Info("power off linecard %s skipped", lc)
		return nil
	}
	if err := lc.PowerOnIs(false, nil); err != nil {
		log.Error("failed to power off linecard %s: %v", lc, err)
		return fmt.Errorf("%s: power off: %w", lc, err)
	}
	log.Info("power off linecard %s success", lc)
	return nil
}

// PowerOffLinecards powers off every linecard concurrently. All of them
// are attempted; the first failure is returned.
func (m *LinecardRebootManager) PowerOffLinecards() error {
	var g errgroup.Group
	for _, lc := range m.Linecards {
		lc := lc
		g.Go(func() error { return m.PowerOffLinecard(lc) })
	}
	return g.Wait()
}

// RebootLinecards reboots the linecards in mode.
func (m *LinecardRebootManager) RebootLinecards(mode Mode) error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	if mode == Hard {
		keep(m.PowerOffLinecards())
		lcpu := &modular.LcpuCtx{}
		for _, lc := range m.Linecards {
			log.Debug("power on linecard %s", lc)
			if err := lc.PowerOnIs(true, lcpu); err != nil {
				log.Error("start linecard %s failed: %v", lc, err)
				keep(fmt.Errorf("%s: power on: %w", lc, err))
			}
		}
		return first
	}
	for _, lc := range m.Linecards {
		log.Info("reboot linecard %s", lc)
		if err := m.shutdown(lc); err != nil {
			log.Error("reboot linecard %s failed: %v", lc, err)
			keep(fmt.Errorf("%s: %w", lc, err))
			continue
		}
		log.Info("reboot linecard %s success", lc)
	}
	return first
}

// RpcShutdowner calls platformd of the linecard cpu over its internal
// network address.
type RpcShutdowner struct{}

func (RpcShutdowner) GracefulShutdown(lc Linecard) error {
	cfg := config.Get()
	addr := cfg.LinecardRpcAddr(lc.SlotId()) + ":" + cfg.ApiRpcPort
	cl, err := rpc.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer cl.Close()
	return callShutdown(cl)
}

// AtsockShutdowner calls a platformd sharing the machine, as when the
// linecard cpu shuts itself down.
type AtsockShutdowner struct {
	Name string
}

func (s AtsockShutdowner) GracefulShutdown(Linecard) error {
	name := s.Name
	if name == "" {
		name = "platformd"
	}
	cl, err := atsock.NewRpcClient(name)
	if err != nil {
		return err
	}
	defer cl.Close()
	return callShutdown(cl)
}
