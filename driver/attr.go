// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"strconv"

	"github.com/platinasystems/sysplat/internal/sysfs"
)

// Attr is one sysfs attribute file.
type Attr interface {
	Path() string
	Exists() bool
	Read() (string, error)
	Write(string) error
}

type fileAttr string

func (a fileAttr) Path() string   { return string(a) }
func (a fileAttr) Exists() bool   { return sysfs.Exists(string(a)) }
func (a fileAttr) String() string { return string(a) }

func (a fileAttr) Read() (string, error) {
	s, err := sysfs.ReadString(string(a))
	if err != nil {
		log.Error("read sysfs failed on %s: %v", a, err)
		return "", err
	}
	log.Io("%s.read() -> %s", a, s)
	return s, nil
}

func (a fileAttr) Write(s string) error {
	log.Io("%s.write(%s)", a, s)
	return sysfs.WriteString(string(a), s)
}

// simAttr always exists, reads as 1 and only logs writes.
type simAttr string

func (a simAttr) Path() string          { return string(a) }
func (a simAttr) Exists() bool          { return true }
func (a simAttr) Read() (string, error) { return "1", nil }

func (a simAttr) Write(s string) error {
	log.Debug("simulating %s.write(%s)", string(a), s)
	return nil
}

func ReadInt(a Attr) (int, error) {
	s, err := a.Read()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func WriteInt(a Attr, i int) error { return a.Write(strconv.Itoa(i)) }

func ReadBool(a Attr) (bool, error) {
	i, err := ReadInt(a)
	return i != 0, err
}

func WriteBool(a Attr, b bool) error {
	if b {
		return a.Write("1")
	}
	return a.Write("0")
}

// ReadScaled reads a fixed point attribute such as millidegrees.
func ReadScaled(a Attr, scale float64) (float64, error) {
	s, err := a.Read()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return f / scale, nil
}

func WriteScaled(a Attr, v, scale float64) error {
	return WriteInt(a, int(v*scale))
}

// linear maps v from [0, from] onto [0, to].
func linear(v, from, to int) int {
	return v * to / from
}
