// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package resource provides little endian 8, 16 and 32 bit access to
// device files, either memory mapped or through positioned reads and
// writes.
package resource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

var ErrUnmappable = errors.New("unmappable")

type Resource interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, v uint8) error
	Write16(addr uint32, v uint16) error
	Write32(addr uint32, v uint32) error
	Close() error
}

type unmappableError struct {
	path string
	err  error
}

func (e *unmappableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.path, ErrUnmappable, e.err)
}

func (e *unmappableError) Is(target error) bool { return target == ErrUnmappable }
func (e *unmappableError) Unwrap() error        { return e.err }

// Mmap maps the whole file shared read/write.
type Mmap struct {
	Path string
	mu   sync.Mutex
	b    []byte
}

func OpenMmap(path string) (*Mmap, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &unmappableError{path, err}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, &unmappableError{path, err}
	}
	b, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &unmappableError{path, err}
	}
	return &Mmap{Path: path, b: b}, nil
}

func (m *Mmap) window(addr uint32, n int) ([]byte, error) {
	if m.b == nil {
		return nil, fmt.Errorf("%s: closed", m.Path)
	}
	if int(addr)+n > len(m.b) {
		return nil, fmt.Errorf("%s: %#x: out of range", m.Path, addr)
	}
	return m.b[addr : int(addr)+n], nil
}

func (m *Mmap) Read8(addr uint32) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Mmap) Read16(addr uint32) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Mmap) Read32(addr uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Mmap) Write8(addr uint32, v uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (m *Mmap) Write16(addr uint32, v uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

func (m *Mmap) Write32(addr uint32, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.window(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Close unmaps; repeated calls are harmless.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.b == nil {
		return nil
	}
	err := unix.Munmap(m.b)
	m.b = nil
	return err
}

// File accesses the device with pread and pwrite so the shared file offset
// never moves.
type File struct {
	Path string
	mu   sync.Mutex
	f    *os.File
}

func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &unmappableError{path, err}
	}
	return &File{Path: path, f: f}, nil
}

func (r *File) read(addr uint32, n int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil, fmt.Errorf("%s: closed", r.Path)
	}
	b := make([]byte, n)
	if _, err := r.f.ReadAt(b, int64(addr)); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *File) write(addr uint32, b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("%s: closed", r.Path)
	}
	_, err := r.f.WriteAt(b, int64(addr))
	return err
}

func (r *File) Read8(addr uint32) (uint8, error) {
	b, err := r.read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *File) Read16(addr uint32) (uint16, error) {
	b, err := r.read(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *File) Read32(addr uint32) (uint32, error) {
	b, err := r.read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *File) Write8(addr uint32, v uint8) error {
	return r.write(addr, []byte{v})
}

func (r *File) Write16(addr uint32, v uint16) error {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return r.write(addr, b)
}

func (r *File) Write32(addr uint32, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return r.write(addr, b)
}

func (r *File) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// With opens the resource, runs fn and closes it.
func With(open func() (Resource, error), fn func(Resource) error) error {
	r, err := open()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}
