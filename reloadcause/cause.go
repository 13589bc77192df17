// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package reloadcause aggregates the reasons for the last reboot reported
// by hardware providers, picks the most credible one and keeps a bounded
// history of reports on flash.
package reloadcause

import (
	"fmt"
	"strings"
)

// Score ranks entries; bits 0 to 7 carry a priority, higher bits flag how
// the cause was obtained. Existing values are persisted and must not
// change.
type Score uint64

const (
	Unknown  Score = 0
	Detailed Score = 1 << 10
	Event    Score = 1 << 16
	Logged   Score = 1 << 32
)

func (s Score) Priority() int { return int(s & 0xff) }

const (
	PriorityNone   = 0
	PriorityLow    = 10
	PriorityNormal = 20
	PriorityHigh   = 30
)

const (
	CauseUnknown    = "unknown"
	CauseKillswitch = "killswitch"
	CauseOvertemp   = "overtemp"
	CausePowerloss  = "powerloss"
	CauseRail       = "rail"
	CauseReboot     = "reboot"
	CauseButton     = "button"
	CauseWatchdog   = "watchdog"
	CauseCpu        = "cpu"
	CauseCpuS3      = "cpu-s3"
	CauseCpuS5      = "cpu-s5"
	CauseSeu        = "seu"
	CauseNoFans     = "no-fans"
)

var Descriptions = map[string]string{
	CauseUnknown:    "Unknown",
	CauseKillswitch: "Kill switch",
	CauseOvertemp:   "Thermal trip fault",
	CausePowerloss:  "System lost power",
	CauseRail:       "Rail fault",
	CauseReboot:     "Rebooted by user",
	CauseButton:     "Rebooted by button",
	CauseWatchdog:   "Watchdog fired",
	CauseCpu:        "CPU fault",
	CauseCpuS3:      "CPU state S3",
	CauseCpuS5:      "CPU state S5",
	CauseSeu:        "SEU fault",
	CauseNoFans:     "No Fans fault",
}

// Desc maps a hardware fault code to a cause.
type Desc struct {
	Code        uint32
	Type        string
	Description string
	Priority    int
}

func NewDesc(code uint32, typ string, extra string) Desc {
	d := Desc{Code: code, Type: typ, Priority: PriorityNormal}
	d.Description = typ
	if s, found := Descriptions[typ]; found {
		d.Description = s
	}
	if len(extra) > 0 {
		d.Description += " - " + extra
	}
	return d
}

func (d Desc) WithPriority(p int) Desc {
	d.Priority = p
	return d
}

type Entry struct {
	Cause       string `json:"cause"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Score       Score  `json:"score"`
}

func NewEntry(cause, time, description string, score Score) Entry {
	if len(time) == 0 {
		time = "unknown"
	}
	return Entry{cause, time, description, score}
}

func (e Entry) String() string {
	items := []string{e.Cause}
	if len(e.Description) > 0 {
		items = append(items, "description: "+e.Description)
	}
	if e.Time != "unknown" {
		items = append(items, "time: "+e.Time)
	}
	return strings.Join(items, ", ")
}

func (e Entry) GoString() string {
	return fmt.Sprintf("Entry(%q, %q, %#x)", e.Cause, e.Time, uint64(e.Score))
}

// Provider is a source of causes; Process populates Causes.
type Provider interface {
	Name() string
	Process() error
	Causes() []Entry
	Extra() map[string]interface{}
}

// Helper is a Provider with precomputed causes. Hardware providers embed
// it and override Process.
type Helper struct {
	SourceName string                 `json:"name"`
	Entries    []Entry                `json:"causes"`
	ExtraData  map[string]interface{} `json:"extra"`
}

func NewHelper(name string, causes ...Entry) *Helper {
	return &Helper{
		SourceName: name,
		Entries:    append([]Entry{}, causes...),
		ExtraData:  make(map[string]interface{}),
	}
}

func (h *Helper) Name() string                  { return h.SourceName }
func (h *Helper) Process() error                { return nil }
func (h *Helper) Causes() []Entry               { return h.Entries }
func (h *Helper) Extra() map[string]interface{} { return h.ExtraData }

func (h *Helper) Add(e Entry) { h.Entries = append(h.Entries, e) }
