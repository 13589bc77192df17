// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package xcvrd publishes the transceiver presence changes of the platform.
package xcvrd

import (
	"strconv"
	"sync"
	"time"

	"github.com/platinasystems/parms"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/xcvr"
)

var log = logging.Get("xcvrd")

type Command struct {
	once sync.Once
	stop chan struct{}
}

func (*Command) String() string { return "xcvrd" }

func (*Command) Usage() string { return "xcvrd [--interval SECONDS]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "transceiver presence daemon",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Watch the presence of every transceiver slot and publish each
	insertion and removal to the log, the local redis and, when
	redis_address is configured, a network redis channel.

OPTIONS
	--interval SECONDS
		presence poll interval, 1 by default`,
	}
}

func (*Command) Kind() sysplat.Kind { return sysplat.Daemon }

func (c *Command) stopch() chan struct{} {
	c.once.Do(func() { c.stop = make(chan struct{}) })
	return c.stop
}

func (c *Command) Main(args ...string) error {
	parm, args := parms.New(args, "--interval")
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	interval := xcvr.DefaultPollInterval
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
	w := xcvr.NewWatcher(true)
	w.UseInterrupts = cfg.InitIrq && !cfg.InSimulation()
	w.PollInterval = interval
	if err = w.Load(p.InventoryReader()); err != nil {
		return err
	}
	defer w.Close()
	sinks := Sinks(cfg)
	defer sinks.Close()
	log.Info("watching %d transceiver slots", len(p.InventoryReader().XcvrSlots()))
	return Serve(w, sinks, c.stopch())
}

func (c *Command) Close() error {
	close(c.stopch())
	return nil
}

// Sinks are the event sinks available with cfg; unreachable redis servers
// are skipped.
func Sinks(cfg *config.Config) xcvr.Sinks {
	sinks := xcvr.Sinks{xcvr.LogSink{}}
	if cfg.InSimulation() {
		return sinks
	}
	if s, err := xcvr.NewRedisSink(); err != nil {
		log.Debug("redis publisher: %v", err)
	} else {
		sinks = append(sinks, s)
	}
	if len(cfg.RedisAddress) > 0 {
		if s, err := xcvr.DialRedigoSink(cfg.RedisAddress); err != nil {
			log.Warning("%v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// Serve publishes the events of w to sink until stop is closed.
func Serve(w *xcvr.Watcher, sink xcvr.Sink, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		for _, e := range w.Wait(w.PollInterval) {
			if err := sink.Publish(e); err != nil {
				log.Warning("%s: publish: %v", e, err)
			}
		}
	}
}
