// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platform

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/platinasystems/sysplat/component"
)

// Descriptor names a platform and how to build its root.
type Descriptor struct {
	// Name is the platform name used by the platform= cmdline key.
	Name string
	Skus []string
	Sids []string
	New  func() Platform
	// NewCard builds a card product plugged in slot.
	NewCard func(slot Slot) Platform
}

// Slot is where a card product sits in a chassis.
type Slot interface {
	component.Node
	SlotId() int
}

func (d *Descriptor) String() string { return d.Name }

// UnknownPlatformError reports identifiers no descriptor claims.
type UnknownPlatformError struct {
	Sku, Sid, Name string
}

func (e *UnknownPlatformError) Error() string {
	var l []string
	for _, kv := range []struct{ k, v string }{
		{"sku", e.Sku}, {"sid", e.Sid}, {"platform", e.Name},
	} {
		if len(kv.v) > 0 {
			l = append(l, kv.k+" "+kv.v)
		}
	}
	if len(l) == 0 {
		return "unknown platform"
	}
	return "unknown platform: " + strings.Join(l, ", ")
}

// Registry indexes descriptors by SKU and by SID; platform names share the
// SID index.
type Registry struct {
	mu    sync.Mutex
	descs []*Descriptor
	bySku map[string]*Descriptor
	bySid map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		bySku: make(map[string]*Descriptor),
		bySid: make(map[string]*Descriptor),
	}
}

// Register adds descriptors. Reusing a platform name is a programming error
// and panics.
func (r *Registry) Register(descs ...*Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range descs {
		if d.New == nil && d.NewCard == nil {
			panic(fmt.Errorf("%s: platform without constructor", d.Name))
		}
		if _, found := r.bySid[d.Name]; found && len(d.Name) > 0 {
			panic(fmt.Errorf("%s: platform registered twice", d.Name))
		}
		r.descs = append(r.descs, d)
		for _, sku := range d.Skus {
			r.bySku[sku] = d
		}
		for _, sid := range d.Sids {
			r.bySid[sid] = d
		}
		if len(d.Name) > 0 {
			r.bySid[d.Name] = d
		}
	}
}

func (r *Registry) Descriptors() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Descriptor(nil), r.descs...)
}

func sortedKeys(m map[string]*Descriptor) []string {
	l := make([]string, 0, len(m))
	for k := range m {
		l = append(l, k)
	}
	sort.Strings(l)
	return l
}

// Skus lists the registered SKUs.
func (r *Registry) Skus() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.bySku)
}

// Sids lists the registered SIDs and platform names.
func (r *Registry) Sids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.bySid)
}

// Lookup returns the descriptor claiming any of names, trying each name
// as a SKU first then as a SID.
func (r *Registry) Lookup(names ...string) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if d, found := r.bySku[name]; found {
			return d, nil
		}
		if d, found := r.bySid[name]; found {
			return d, nil
		}
	}
	return nil, &UnknownPlatformError{Name: strings.Join(names, ",")}
}

// Identity is what discovery knows about the running box.
type Identity struct {
	Sku  string
	Sid  string
	Name string
}

// Detect resolves an identity: the cmdline sid first, then the eeprom SKU,
// then the cmdline platform name.
func (r *Registry) Detect(id Identity) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, found := r.bySid[id.Sid]; found && len(id.Sid) > 0 {
		return d, nil
	}
	if d, found := r.bySku[id.Sku]; found && len(id.Sku) > 0 {
		return d, nil
	}
	if d, found := r.bySid[id.Name]; found && len(id.Name) > 0 {
		return d, nil
	}
	return nil, &UnknownPlatformError{Sku: id.Sku, Sid: id.Sid, Name: id.Name}
}
