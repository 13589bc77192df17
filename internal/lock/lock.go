// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package lock provides advisory file locks that serialize platform
// lifecycle operations across processes.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type File struct {
	Path string
	f    *os.File
}

func New(path string) *File { return &File{Path: path} }

// Lock blocks until the exclusive lock is held.
func (l *File) Lock() error { return l.lock(unix.LOCK_EX) }

// TryLock fails immediately with unix.EWOULDBLOCK if another process holds
// the lock.
func (l *File) TryLock() error { return l.lock(unix.LOCK_EX | unix.LOCK_NB) }

func (l *File) lock(how int) error {
	if l.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	if err = unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return fmt.Errorf("flock %s: %w", l.Path, err)
	}
	l.f = f
	return nil
}

func (l *File) Unlock() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}

func (l *File) Locked() bool { return l.f != nil }

// Do runs fn with the lock held.
func (l *File) Do(fn func() error) error {
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}
