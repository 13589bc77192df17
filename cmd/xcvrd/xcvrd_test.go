// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package xcvrd

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/xcvr"
)

type cage struct{ present atomic.Bool }

func (c *cage) Presence() (bool, error) { return c.present.Load(), nil }

type recorder struct {
	events []xcvr.Event
	stop   chan struct{}
	fail   bool
}

func (r *recorder) Publish(e xcvr.Event) error {
	r.events = append(r.events, e)
	close(r.stop)
	if r.fail {
		return errors.New("unreachable")
	}
	return nil
}

func (*recorder) Close() error { return nil }

func TestServe(t *testing.T) {
	for _, fail := range []bool{false, true} {
		c := &cage{}
		w := xcvr.NewWatcher(true)
		w.PollInterval = time.Millisecond
		require.NoError(t, w.Add("qsfp", 1, c, nil))
		c.present.Store(true)

		r := &recorder{stop: make(chan struct{}), fail: fail}
		require.NoError(t, Serve(w, r, r.stop))
		assert.Equal(t, []xcvr.Event{{Kind: "qsfp", Slot: 1, Status: xcvr.Inserted}},
			r.events)
		w.Close()
	}
}

func TestServeStopped(t *testing.T) {
	w := xcvr.NewWatcher(true)
	stop := make(chan struct{})
	close(stop)
	assert.NoError(t, Serve(w, xcvr.LogSink{}, stop))
}

func TestCloseBeforeMain(t *testing.T) {
	c := &Command{}
	require.NoError(t, c.Close())
	select {
	case <-c.stopch():
	default:
		t.Fatal("stop channel still open")
	}
	assert.Equal(t, sysplat.Daemon, c.Kind())
}

func TestSimulationSinks(t *testing.T) {
	cfg := config.Simulated(t.TempDir())
	cfg.RedisAddress = "127.0.0.1:1"
	sinks := Sinks(cfg)
	require.Len(t, sinks, 1)
	assert.IsType(t, xcvr.LogSink{}, sinks[0])
}

func TestBadInterval(t *testing.T) {
	c := &Command{}
	assert.Error(t, c.Main("--interval", "soon"))
	assert.Error(t, c.Main("extra"))
}
