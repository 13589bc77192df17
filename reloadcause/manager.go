// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reloadcause

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/platinasystems/sysplat/internal/clock"
	"github.com/platinasystems/sysplat/internal/jsonstore"
	"github.com/platinasystems/sysplat/logging"
)

const (
	Version     = 3
	HistorySize = 128
	DefaultPath = "/host/reboot-cause/platform/causes.json"
)

var log = logging.Get("reloadcause")

type Report struct {
	Id        string
	Date      time.Time
	Cause     *Entry
	Providers []Provider
}

func NewReport(date time.Time) *Report {
	return &Report{Id: uuid.NewV4().String(), Date: date}
}

// Process runs every provider and records it in the report.
func (r *Report) Process(providers []Provider) {
	for _, p := range providers {
		if err := p.Process(); err != nil {
			log.Error("%s: %v", p.Name(), err)
		}
		r.Providers = append(r.Providers, p)
	}
}

// Analyze picks the first entry of the highest score, or a synthetic
// unknown entry.
func (r *Report) Analyze() {
	var best *Entry
	for _, p := range r.Providers {
		for _, c := range p.Causes() {
			if best == nil || c.Score > best.Score {
				c := c
				best = &c
			}
		}
	}
	if best == nil {
		best = &Entry{
			Cause:       CauseUnknown,
			Time:        clock.Format(r.Date),
			Description: "could not find a valid reboot cause",
			Score:       Unknown,
		}
	}
	r.Cause = best
}

type reportJson struct {
	Id        string    `json:"id,omitempty"`
	Date      string    `json:"date"`
	Cause     *Entry    `json:"cause"`
	Providers []*Helper `json:"providers"`
}

func (r *Report) MarshalJSON() ([]byte, error) {
	x := reportJson{
		Id:        r.Id,
		Date:      clock.Format(r.Date),
		Cause:     r.Cause,
		Providers: make([]*Helper, 0, len(r.Providers)),
	}
	for _, p := range r.Providers {
		h := &Helper{
			SourceName: p.Name(),
			Entries:    p.Causes(),
			ExtraData:  p.Extra(),
		}
		if h.Entries == nil {
			h.Entries = []Entry{}
		}
		if h.ExtraData == nil {
			h.ExtraData = map[string]interface{}{}
		}
		x.Providers = append(x.Providers, h)
	}
	return json.Marshal(x)
}

func (r *Report) UnmarshalJSON(b []byte) error {
	var x reportJson
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	date, err := clock.Parse(x.Date)
	if err != nil {
		return err
	}
	r.Id, r.Date, r.Cause = x.Id, date, x.Cause
	r.Providers = r.Providers[:0]
	for _, h := range x.Providers {
		if h.Entries == nil {
			h.Entries = []Entry{}
		}
		if h.ExtraData == nil {
			h.ExtraData = map[string]interface{}{}
		}
		r.Providers = append(r.Providers, h)
	}
	return nil
}

// Manager keeps the report history of a component, newest first.
type Manager struct {
	Name string
	Path string
	// Legacy is a flat cause list from older releases folded into the
	// history when found.
	Legacy string

	loaded  bool
	reports []*Report
}

func NewManager(name, path string) *Manager {
	if len(path) == 0 {
		path = DefaultPath
	}
	return &Manager{Name: name, Path: path}
}

// ReadCauses loads the history, then builds a report dated date (boot time
// when zero) from the providers.
func (m *Manager) ReadCauses(providers []Provider, date time.Time) *Report {
	if !m.loaded {
		if err := m.LoadCauses(); err != nil {
			log.Error("failed to read previous reboot causes: %v", err)
			m.loaded = true
		}
	}
	if date.IsZero() {
		date = clock.BootTime()
	}
	r := NewReport(date)
	r.Process(providers)
	r.Analyze()
	m.reports = append([]*Report{r}, m.reports...)
	if len(m.reports) > HistorySize {
		m.reports = m.reports[:HistorySize]
	}
	return r
}

type managerJson struct {
	Name    string    `json:"name"`
	Reports []*Report `json:"reports"`
	Version int       `json:"version"`
}

func (m *Manager) MarshalJSON() ([]byte, error) {
	reports := m.reports
	if reports == nil {
		reports = []*Report{}
	}
	return json.Marshal(managerJson{m.Name, reports, Version})
}

// UnmarshalJSON appends the decoded reports to the history.
func (m *Manager) UnmarshalJSON(b []byte) error {
	var x managerJson
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	if x.Version != Version {
		return fmt.Errorf("expected reload cause version to be %d", Version)
	}
	if x.Name != m.Name {
		return fmt.Errorf("expected reload cause name to match %s", m.Name)
	}
	m.reports = append(m.reports, x.Reports...)
	return nil
}

// LoadCauses merges the persisted history. A missing or empty file is an
// empty history.
func (m *Manager) LoadCauses() error {
	if m.loaded {
		return errors.New("reload causes already loaded")
	}
	m.loaded = true
	b, err := ioutil.ReadFile(m.Path)
	if os.IsNotExist(err) {
		log.Debug("no prior reboot cause information from %s", m.Path)
		return m.loadLegacy()
	}
	if err != nil {
		return err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] == '[' {
		return m.upgrade(b)
	}
	if err = json.Unmarshal(b, m); err != nil {
		log.Error("failed to parse reboot cause from %s: %v", m.Path, err)
	}
	return nil
}

func (m *Manager) loadLegacy() error {
	if len(m.Legacy) == 0 {
		return nil
	}
	b, err := ioutil.ReadFile(m.Legacy)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err = m.upgrade(b); err != nil {
		return err
	}
	return os.Remove(m.Legacy)
}

// upgrade converts a flat v1 or v2 cause list into a single report.
func (m *Manager) upgrade(b []byte) error {
	causes, err := decodeCauses(b)
	if err != nil {
		return err
	}
	r := NewReport(clock.BootTime())
	r.Providers = []Provider{NewHelper("legacy", causes...)}
	r.Analyze()
	m.reports = append(m.reports, r)
	return nil
}

func (m *Manager) LastReport() *Report {
	if len(m.reports) == 0 {
		return nil
	}
	return m.reports[0]
}

func (m *Manager) AllReports() []*Report { return m.reports }

// StoreCauses atomically rewrites the history file.
func (m *Manager) StoreCauses() error {
	if !m.loaded {
		return errors.New("storing reboot cause without loading them first")
	}
	return jsonstore.New(m.Path).Write(m)
}

// Open loads the history kept at path. With read set, a report is built
// from the providers and the history is stored back.
func Open(name, path string, providers []Provider, read bool) (*Manager, error) {
	m := NewManager(name, path)
	if !read {
		return m, m.LoadCauses()
	}
	m.ReadCauses(providers, time.Time{})
	return m, m.StoreCauses()
}
