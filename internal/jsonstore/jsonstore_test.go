// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package jsonstore

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "jsonstore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	s := New(filepath.Join(dir, "sub", "doc.json"))
	var d doc
	if ok, err := s.ReadOrClear(&d); ok || err != nil {
		t.Fatal("missing document:", ok, err)
	}
	if err = s.Write(doc{"a", 2}); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.ReadOrClear(&d); !ok || err != nil {
		t.Fatal(ok, err)
	}
	if d.Name != "a" || d.Count != 2 {
		t.Fatalf("got %+v", d)
	}
	entries, _ := ioutil.ReadDir(filepath.Dir(s.Path))
	if len(entries) != 1 {
		t.Error("temporary left behind:", len(entries))
	}

	if err = ioutil.WriteFile(s.Path, []byte("{bad"), 0644); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.ReadOrClear(&d); ok || err != nil {
		t.Fatal("corrupt document:", ok, err)
	}
	if s.Exists() {
		t.Error("corrupt document not cleared")
	}
	if err = s.Clear(); err != nil {
		t.Error(err)
	}
}
