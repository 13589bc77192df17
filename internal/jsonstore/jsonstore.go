// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package jsonstore persists small JSON documents either in the tmpfs
// cache, which is lost on reboot, or on flash.
package jsonstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	uuid "github.com/satori/go.uuid"

	"github.com/platinasystems/sysplat/config"
)

type Store struct {
	Path string
}

func New(path string) *Store { return &Store{Path: path} }

// Temporary names a document in the tmpfs cache.
func Temporary(name string) *Store { return New(config.Get().Tmpfs(name)) }

// Persistent names a document on flash.
func Persistent(name string) *Store { return New(config.Get().Flash(name)) }

func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Read decodes the document into v.
func (s *Store) Read(v interface{}) error {
	b, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ReadOrClear removes a document that cannot be decoded and reports whether
// v was filled.
func (s *Store) ReadOrClear(v interface{}) (bool, error) {
	err := s.Read(v)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		return false, s.Clear()
	}
	if _, ok := err.(*json.UnmarshalTypeError); ok {
		return false, s.Clear()
	}
	return false, err
}

// Write atomically replaces the document by renaming a sibling temporary.
func (s *Store) Write(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(s.Path)+"."+
		uuid.NewV4().String())
	if err = ioutil.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	if err = os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) Clear() error {
	err := os.Remove(s.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
