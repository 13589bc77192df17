// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platformd

import (
	"fmt"
	"net"
	"net/rpc"
	"os/exec"
	"sync"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/reboot"
)

// Halt powers the local cpu down.
var Halt = func(reason string) error {
	return exec.Command("shutdown", "-h", "now", reason).Start()
}

// Platform is the rpc service of platformd.
type Platform struct {
	mutex sync.Mutex
	p     platform.Platform
	halt  bool
}

func NewPlatform(p platform.Platform) *Platform {
	return &Platform{p: p}
}

// StatusArgs select the optional parts of the status.
type StatusArgs struct {
	Xcvrs bool
}

// Status replies the summary of the platform inventory.
func (api *Platform) Status(args StatusArgs, reply *action.Summary) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	*reply = action.Summarize(api.p)
	if !args.Xcvrs {
		reply.Xcvrs = nil
	}
	return nil
}

// GracefulShutdown halts the cpu running platformd; a second request is
// accepted without halting again.
func (api *Platform) GracefulShutdown(args reboot.ShutdownArgs, reply *reboot.ShutdownReply) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	log.Notice("graceful shutdown requested: %s", args.Reason)
	if api.halt || config.Get().InSimulation() {
		api.halt = true
		reply.Accepted = true
		return nil
	}
	if err := Halt(args.Reason); err != nil {
		return fmt.Errorf("halt: %w", err)
	}
	api.halt = true
	reply.Accepted = true
	return nil
}

type LedArgs struct {
	Name string
}

// LedColor replies the color of the named led.
func (api *Platform) LedColor(args LedArgs, reply *inventory.Color) error {
	api.mutex.Lock()
	defer api.mutex.Unlock()
	led, found := api.p.InventoryReader().Leds()[args.Name]
	if !found {
		return fmt.Errorf("%s: no such led", args.Name)
	}
	color, err := led.Color()
	if err != nil {
		return err
	}
	*reply = color
	return nil
}

// NewServer returns an rpc server of api.
func NewServer(api *Platform) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Platform", api); err != nil {
		return nil, err
	}
	return srv, nil
}

// Hosts are the addresses the rpc service listens on: the supervisor
// addresses of a chassis, the internal address of a linecard cpu, none
// otherwise.
func Hosts(p platform.Platform) []string {
	cfg := config.Get()
	if _, err := action.Chassis(p); err == nil {
		return []string{cfg.ApiRpcHost, cfg.ApiRpcSup}
	}
	if lc, ok := p.(slotter); ok {
		return []string{cfg.LinecardRpcAddr(lc.SlotId())}
	}
	return nil
}

type slotter interface {
	SlotId() int
}

// Listen serves srv on port of each host; hosts failing to listen are
// skipped.
func Listen(srv *rpc.Server, port string, hosts ...string) []net.Listener {
	var l []net.Listener
	for _, host := range hosts {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
		if err != nil {
			log.Warning("rpc: %v", err)
			continue
		}
		log.Info("rpc: listening on %s", ln.Addr())
		go srv.Accept(ln)
		l = append(l, ln)
	}
	return l
}
