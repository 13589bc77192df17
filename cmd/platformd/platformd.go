// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package platformd is the platform daemon: it serves the platform rpc,
// runs the cooling loop, watches SEU reporters and status leds, and
// publishes the inventory state to redis.
package platformd

import (
	"io"
	"net"
	"net/http"
	"net/rpc"
	"strconv"
	"sync"
	"time"

	"github.com/platinasystems/atsock"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis/publisher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/cooling"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/platform"
)

var log = logging.Get("platformd")

const DefaultInterval = 60 * time.Second

type Command struct {
	once sync.Once
	stop chan struct{}
}

func (*Command) String() string { return "platformd" }

func (*Command) Usage() string {
	return "platformd [--interval SECONDS] [--metrics ADDR] [--no-cooling]"
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "platform daemon",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Serve the Platform rpc on the platformd socket and, on chassis
	cpus, on the api_rpc addresses. Poll the SEU reporters and the
	status leds, publish the inventory state to the local redis and
	run the cooling algorithm.

OPTIONS
	--interval SECONDS
		feature poll interval, 60 by default
	--metrics ADDR
		serve the cooling metrics over http on ADDR
	--no-cooling
		leave the fans alone`,
	}
}

func (*Command) Kind() sysplat.Kind { return sysplat.Daemon }

func (c *Command) stopch() chan struct{} {
	c.once.Do(func() { c.stop = make(chan struct{}) })
	return c.stop
}

func (c *Command) Close() error {
	close(c.stopch())
	return nil
}

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "--no-cooling")
	parm, args := parms.New(args, "--interval", "--metrics")
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	interval := DefaultInterval
	if s := parm.ByName["--interval"]; len(s) > 0 {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return sysplat.Errorf("%s: invalid interval", s)
		}
		interval = time.Duration(n) * time.Second
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	cfg := config.Get()
	stop := c.stopch()

	api := NewPlatform(p)
	srv, err := NewServer(api)
	if err != nil {
		return err
	}
	for _, ln := range Listen(srv, cfg.ApiRpcPort, Hosts(p)...) {
		defer ln.Close()
	}
	if err = rpc.RegisterName("Platform", api); err != nil {
		return err
	}
	if local, err := atsock.NewRpcServer("platformd"); err != nil {
		log.Warning("rpc socket: %v", err)
	} else {
		defer local.Close()
	}

	d := &Daemon{
		Platform: p,
		Features: []Feature{&Seu{}, StatusLeds{}},
	}
	if pub, err := publisher.New(); err != nil {
		log.Debug("redis publisher: %v", err)
	} else {
		defer pub.Close()
		d.Publisher = NewPublisher(pub)
	}

	reg := prometheus.NewRegistry()
	if !flag.ByName["--no-cooling"] {
		algo := Cooling(cfg, reg, Inventories(p)...)
		if len(algo.Zones) > 0 {
			go algo.Loop(stop)
		}
	}
	if addr := parm.ByName["--metrics"]; len(addr) > 0 {
		closer, err := serveMetrics(addr, reg)
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	d.Run(stop, interval)
	return nil
}

// Inventories are the inventories of p cooled by platformd: its own, and
// the chassis one on a supervisor.
func Inventories(p platform.Platform) []inventory.Reader {
	invs := []inventory.Reader{p.InventoryReader()}
	if ch, err := action.Chassis(p); err == nil {
		invs = append(invs, ch.InventoryReader())
	}
	return invs
}

// Cooling returns the algorithm over the zones of invs with fans,
// exporting its metrics to reg.
func Cooling(cfg *config.Config, reg prometheus.Registerer, invs ...inventory.Reader) *cooling.Algorithm {
	var cooled []inventory.Reader
	for _, inv := range invs {
		if len(inv.Fans()) > 0 {
			cooled = append(cooled, inv)
		}
	}
	algo := cooling.FromInventories(cooling.ParamsFrom(cfg), cooled...)
	algo.Metrics = cooling.NewMetrics(reg)
	return algo
}

func serveMetrics(addr string, g prometheus.Gatherer) (io.Closer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	log.Info("metrics: listening on %s", ln.Addr())
	return srv, nil
}

// Daemon polls the features of a platform and publishes its state.
type Daemon struct {
	Platform  platform.Platform
	Features  []Feature
	Publisher *Publisher
}

func (d *Daemon) Init() {
	inv := d.Platform.InventoryReader()
	for _, f := range d.Features {
		log.Debug("%s: init", f)
		f.Init(inv)
	}
}

// Tick polls every feature once and publishes the platform summary.
func (d *Daemon) Tick() {
	inv := d.Platform.InventoryReader()
	for _, f := range d.Features {
		f.Poll(inv)
	}
	if d.Publisher != nil {
		if err := d.Publisher.Update(action.Summarize(d.Platform)); err != nil {
			log.Warning("publish: %v", err)
		}
	}
}

// Run ticks every interval until stop is closed.
func (d *Daemon) Run(stop <-chan struct{}, interval time.Duration) {
	d.Init()
	d.Tick()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			d.Tick()
		}
	}
}
