// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sysfs reads and writes kernel attribute files below a
// relocatable root so that tests may run against a scratch tree.
package sysfs

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Root prefixes every path handled by this package; empty on target.
var Root string

// Path returns the real location of an absolute sysfs, procfs or dev path.
func Path(elem ...string) string {
	return Root + filepath.Join(elem...)
}

func Exists(path string) bool {
	_, err := os.Stat(Path(path))
	return err == nil
}

func ReadString(path string) (string, error) {
	b, err := ioutil.ReadFile(Path(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func WriteString(path, s string) error {
	f, err := os.OpenFile(Path(path), os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(s)
	return err
}

// ReadInt parses decimal and 0x prefixed hexadecimal attributes.
func ReadInt(path string) (int, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	i, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return int(i), nil
}

func WriteInt(path string, i int) error {
	return WriteString(path, strconv.Itoa(i))
}

// Glob matches an absolute pattern below Root and returns absolute,
// root-relative results.
func Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(Path(pattern))
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = strings.TrimPrefix(m, Root)
	}
	return matches, nil
}

func ReadDir(path string) ([]string, error) {
	fis, err := ioutil.ReadDir(Path(path))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fis))
	for _, fi := range fis {
		names = append(names, fi.Name())
	}
	return names, nil
}
