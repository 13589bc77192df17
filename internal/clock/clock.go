// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package clock provides the raw monotonic clock shared by processes and
// the date format used in persisted reports.
package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

const DateFormat = "2006-01-02 15:04:05"

// MonotonicRaw is the CLOCK_MONOTONIC_RAW reading; it is comparable across
// processes since it counts from boot.
var MonotonicRaw = func() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

var Now = time.Now

func Format(t time.Time) string {
	return t.Format(DateFormat)
}

func Parse(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.Local)
}

// BootTime is the wall clock time of the last boot.
func BootTime() time.Time {
	var si unix.Sysinfo_t
	now := Now()
	if err := unix.Sysinfo(&si); err != nil {
		return now
	}
	return now.Add(-time.Duration(si.Uptime) * time.Second).Truncate(time.Second)
}
