// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package register

import "sync"

// Memory is a simulated Device. Registers marked clear-on-read return to
// zero when read, and a set/clear pair updates the register at its set
// address.
type Memory struct {
	mu       sync.Mutex
	regs     map[uint32]uint32
	cor      map[uint32]bool
	clearing map[uint32]uint32
	setting  map[uint32]bool
}

func NewMemory() *Memory {
	return &Memory{
		regs:     make(map[uint32]uint32),
		cor:      make(map[uint32]bool),
		clearing: make(map[uint32]uint32),
		setting:  make(map[uint32]bool),
	}
}

func (m *Memory) ClearOnRead(addrs ...uint32) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addrs {
		m.cor[a] = true
	}
	return m
}

func (m *Memory) SetClear(set, clear uint32) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setting[set] = true
	m.clearing[clear] = set
	return m
}

func (m *Memory) Read(addr uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.regs[addr]
	if m.cor[addr] {
		m.regs[addr] = 0
	}
	return v, nil
}

func (m *Memory) Write(addr, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setting[addr] {
		m.regs[addr] |= v
	} else if set, found := m.clearing[addr]; found {
		m.regs[set] &^= v
	} else {
		m.regs[addr] = v
	}
	return nil
}

// Set stores v as the hardware would, bypassing set/clear semantics.
func (m *Memory) Set(addr, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = v
}

// Get peeks without clearing.
func (m *Memory) Get(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}
