// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/lang"
)

type echo struct {
	args []string
	s    *Sysplat
}

func (*echo) String() string { return "echo" }
func (*echo) Usage() string  { return "echo [ ARG ]..." }

func (*echo) Apropos() lang.Alt {
	return lang.Alt{lang.EnUS: "print arguments"}
}

func (c *echo) Sysplat(s *Sysplat) { c.s = s }

func (c *echo) Main(args ...string) error {
	c.args = args
	fmt.Fprintln(c.s.Stdout, args)
	return nil
}

func (*echo) Complete(args ...string) []string { return []string{"-n"} }

type fail struct{ err error }

func (fail) String() string              { return "fail" }
func (fail) Usage() string               { return "fail" }
func (fail) Apropos() lang.Alt           { return lang.Alt{lang.EnUS: "fail"} }
func (f fail) Main(args ...string) error { return f.err }

func newTest() (*Sysplat, *echo, *bytes.Buffer) {
	s := New("sysplat")
	buf := new(bytes.Buffer)
	s.Stdout = buf
	e := &echo{}
	s.Plot(e, fail{Errorf("nope")})
	return s, e, buf
}

func TestPlot(t *testing.T) {
	s, e, _ := newTest()
	assert.Same(t, s, e.s)
	assert.Equal(t, []string{"echo", "fail"}, s.Names())
	assert.Panics(t, func() { s.Plot(&echo{}) })
}

func TestRun(t *testing.T) {
	s, e, buf := newTest()
	require.NoError(t, s.Run("echo", "a", "b"))
	assert.Equal(t, []string{"a", "b"}, e.args)
	assert.Equal(t, "[a b]\n", buf.String())

	err := s.Run("nosuch")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, "ActionError: nosuch: command not found (code 1)", err.Error())
}

func TestHelpers(t *testing.T) {
	s, e, buf := newTest()
	require.NoError(t, s.Run("echo", "-h"))
	assert.Nil(t, e.args)
	assert.Equal(t, "usage:\techo [ ARG ]...\n", buf.String())

	buf.Reset()
	require.NoError(t, s.Run("apropos", "echo"))
	assert.Equal(t, "echo            print arguments\n", buf.String())

	buf.Reset()
	require.NoError(t, s.Run("complete", "ec"))
	assert.Equal(t, "echo\n", buf.String())

	buf.Reset()
	require.NoError(t, s.Run("echo", "-complete"))
	assert.Equal(t, "-n\n", buf.String())

	buf.Reset()
	require.NoError(t, s.Run("man", "echo"))
	assert.Contains(t, buf.String(), "NAME\n\techo - print arguments")

	assert.Error(t, s.Run("usage", "nosuch"))
}

func TestParseOptions(t *testing.T) {
	s, _, _ := newTest()
	opts, args, err := s.ParseOptions([]string{"-d", "-platform", "gardena",
		"-v", "scd/debug", "echo", "-d"})
	require.NoError(t, err)
	assert.True(t, opts.Debug)
	assert.False(t, opts.Simulation)
	assert.Equal(t, "gardena", opts.Platform)
	assert.Equal(t, "scd/debug", opts.Logging.Verbosity)
	assert.Equal(t, []string{"echo", "-d"}, args)

	_, _, err = s.ParseOptions([]string{"-x", "echo"})
	assert.Error(t, err)

	_, args, err = s.ParseOptions([]string{"-simulation", "-h"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-h"}, args)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	s, _, _ := newTest()
	assert.Equal(t, 1, ExitCode(s.Run("fail")))
	assert.Equal(t, 3, ExitCode(fmt.Errorf("wrapped: %w", &ActionError{Msg: "x", Code: 3})))
	assert.Equal(t, 2, ExitCode(&wait.TimeoutError{Msg: "x", Code: 2}))
	assert.Equal(t, 1, ExitCode(fmt.Errorf("plain")))
}
