// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package wait polls hardware and kernel state with deadlines.
package wait

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/platinasystems/sysplat/internal/sysfs"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultInterval = 50 * time.Millisecond
	DefaultDelayMax = time.Second
)

var (
	Sleep = time.Sleep
	Now   = time.Now
)

type TimeoutError struct {
	Msg  string
	Code int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TimeoutError: %s (code %d)", e.Msg, e.Code)
}

type options struct {
	timeout  time.Duration
	interval time.Duration
	delay    time.Duration
	delayMax time.Duration
	factor   float64
	wait     time.Duration
}

type Option func(*options)

func Timeout(d time.Duration) Option  { return func(o *options) { o.timeout = d } }
func Interval(d time.Duration) Option { return func(o *options) { o.interval = d } }

// Delay selects exponential backoff starting at d instead of a fixed
// interval.
func Delay(d time.Duration) Option { return func(o *options) { o.delay = d } }

func DelayMax(d time.Duration) Option { return func(o *options) { o.delayMax = d } }
func DelayFactor(f float64) Option    { return func(o *options) { o.factor = f } }
func Before(d time.Duration) Option   { return func(o *options) { o.wait = d } }

// For calls cond until it returns true or the timeout elapses. The last
// attempt is always made at or after the deadline.
func For(cond func() bool, description string, opts ...Option) error {
	o := options{
		timeout:  DefaultTimeout,
		delayMax: DefaultDelayMax,
		factor:   2,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval == 0 && o.delay == 0 {
		o.interval = DefaultInterval
	}
	var b *backoff.Backoff
	if o.delay > 0 {
		b = &backoff.Backoff{
			Min:    o.delay,
			Max:    o.delayMax,
			Factor: o.factor,
		}
	}

	end := Now().Add(o.timeout)
	if o.wait > 0 {
		Sleep(o.wait)
	}
	for {
		if cond() {
			return nil
		}
		now := Now()
		if !now.Before(end) {
			return &TimeoutError{
				Msg:  "Timed out waiting for " + description,
				Code: 1,
			}
		}
		d := o.interval
		if b != nil {
			d = b.Duration()
		}
		if left := end.Sub(now); d > left {
			d = left
		}
		if d > 0 {
			Sleep(d)
		}
	}
}

// Retrying bounds a retry loop both by elapsed time and by attempts; a
// zero Interval or MaxAttempts disables that bound.
type Retrying struct {
	Interval    time.Duration
	Delay       time.Duration
	MaxAttempts int
}

var DefaultRetrying = Retrying{
	Interval: time.Second,
	Delay:    50 * time.Millisecond,
}

// Do sleeps Delay before each attempt and stops as soon as fn returns
// true. It reports whether fn ever succeeded.
func (r Retrying) Do(fn func(attempt int) bool) bool {
	start := Now()
	for attempt := 0; ; {
		Sleep(r.Delay)
		if r.Interval > 0 && Now().Sub(start) > r.Interval {
			return false
		}
		if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
			return false
		}
		attempt++
		if fn(attempt) {
			return true
		}
	}
}

// Files waits until every path exists; a path containing glob
// metacharacters must match at least one entry.
func Files(timeout time.Duration, paths ...string) error {
	missing := func() []string {
		var l []string
		for _, p := range paths {
			if strings.ContainsAny(p, "*?[") {
				if m, _ := filepath.Glob(sysfs.Path(p)); len(m) > 0 {
					continue
				}
			} else if sysfs.Exists(p) {
				continue
			}
			l = append(l, p)
		}
		return l
	}
	return For(func() bool {
		return len(missing()) == 0
	}, strings.Join(paths, ", "), Timeout(timeout))
}

// ExitCode is the process status of a command failing on e.
func (e *TimeoutError) ExitCode() int { return e.Code }
