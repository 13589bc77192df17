// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sysplat dispatches the platform commands: bring-up, teardown and
// inspection of the box, its cards and transceivers, and the daemons
// watching them.
package sysplat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/pidfile"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
)

const (
	DontFork Kind = iota
	Daemon
)

var (
	Exit = os.Exit

	// PlatformName overrides the detected platform, from -platform.
	PlatformName string

	// Globals are the options given ahead of the command, passed on to
	// commands re-executing the program.
	Globals []string
)

type Kind int

// Cmd is a command plotted on a Sysplat.
type Cmd interface {
	Apropos() lang.Alt
	Main(...string) error
	String() string
	Usage() string
}

type kinder interface {
	Kind() Kind
}

// sysplatter receives the dispatcher plotting it.
type sysplatter interface {
	Sysplat(*Sysplat)
}

type Sysplat struct {
	NAME    string
	APROPOS lang.Alt
	USAGE   string
	MAN     lang.Alt

	ByName map[string]Cmd
	// Stdout receives help and completion text.
	Stdout io.Writer

	names []string
}

func New(name string) *Sysplat {
	return &Sysplat{
		NAME:   name,
		ByName: make(map[string]Cmd),
		Stdout: os.Stdout,
	}
}

func (s *Sysplat) String() string { return s.NAME }

// Plot commands on the dispatcher; a name plotted twice panics.
func (s *Sysplat) Plot(cmds ...Cmd) {
	for _, v := range cmds {
		name := v.String()
		if _, found := s.ByName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		if method, found := v.(sysplatter); found {
			method.Sysplat(s)
		}
		s.ByName[name] = v
	}
	s.names = nil
}

// Names returns the sorted command names.
func (s *Sysplat) Names() []string {
	if len(s.names) != len(s.ByName) {
		s.names = make([]string, 0, len(s.ByName))
		for k := range s.ByName {
			s.names = append(s.names, k)
		}
		sort.Strings(s.names)
	}
	return s.names
}

// Options are the global options preceding the command name.
type Options struct {
	Config     string
	Debug      bool
	Simulation bool
	Platform   string
	Logging    logging.Options
	Args       []string
}

// ParseOptions splits the global options from the command and its
// arguments.
func (s *Sysplat) ParseOptions(args []string) (Options, []string, error) {
	i := 0
	for ; i < len(args); i++ {
		if _, found := s.ByName[args[i]]; found {
			break
		}
		if isHelper(args[i]) {
			break
		}
	}
	globals := append([]string(nil), args[:i]...)
	flag, rest := flags.New(append([]string(nil), globals...),
		"-d", "-simulation", "-syslog")
	parm, rest := parms.New(rest, "-c", "-l", "-platform", "-v")
	opts := Options{
		Args:       globals,
		Config:     parm.ByName["-c"],
		Debug:      flag.ByName["-d"],
		Simulation: flag.ByName["-simulation"],
		Platform:   parm.ByName["-platform"],
		Logging: logging.Options{
			Verbosity:        parm.ByName["-v"],
			Logfile:          parm.ByName["-l"],
			LogfileVerbosity: parm.ByName["-v"],
			Syslog:           flag.ByName["-syslog"],
		},
	}
	if len(rest) > 0 {
		return opts, nil, &ActionError{
			Msg:  fmt.Sprintf("unexpected %v", rest),
			Code: 1,
		}
	}
	return opts, args[i:], nil
}

// Setup loads the configuration and the log sinks named by opts.
func (opts Options) Setup() error {
	path := opts.Config
	if len(path) == 0 {
		path = config.DefaultPath
	}
	c, err := config.Init(path)
	if err != nil {
		return err
	}
	if opts.Simulation {
		sim := true
		c.Simulation = &sim
	}
	if opts.Debug {
		c.Verbose = true
		if len(opts.Logging.Verbosity) == 0 {
			opts.Logging.Verbosity = ".*/debug"
		}
	}
	PlatformName = opts.Platform
	Globals = opts.Args
	return logging.Setup(opts.Logging)
}

func isHelper(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "h", "help", "apropos", "complete", "man", "usage":
		return true
	}
	return false
}

// Main runs the command named by the first argument after the global
// options. A command argument of -h, -apropos, -man, -usage or -complete
// runs that helper on the command instead.
func (s *Sysplat) Main(args ...string) error {
	opts, args, err := s.ParseOptions(args)
	if err != nil {
		return err
	}
	if err = opts.Setup(); err != nil {
		return err
	}
	return s.Run(args...)
}

// Run dispatches args without global options.
func (s *Sysplat) Run(args ...string) error {
	if len(args) == 0 {
		return s.usage()
	}
	name := args[0]
	args = args[1:]
	if isHelper(name) {
		return s.helper(strings.TrimLeft(name, "-"), args...)
	}
	flag, args := flags.New(args,
		"-h", "-help", "--help",
		"-apropos", "--apropos",
		"-man", "--man",
		"-usage", "--usage",
		"-complete", "--complete")
	switch {
	case flag.ByName["-h"] || flag.ByName["-help"] || flag.ByName["--help"]:
		return s.helper("help", name)
	case flag.ByName["-apropos"] || flag.ByName["--apropos"]:
		return s.helper("apropos", name)
	case flag.ByName["-man"] || flag.ByName["--man"]:
		return s.helper("man", name)
	case flag.ByName["-usage"] || flag.ByName["--usage"]:
		return s.helper("usage", name)
	case flag.ByName["-complete"] || flag.ByName["--complete"]:
		return s.helper("complete", append([]string{name}, args...)...)
	}
	v := s.ByName[name]
	if v == nil {
		return &ActionError{Msg: name + ": command not found", Code: 1}
	}
	if method, found := v.(kinder); found && method.Kind() == Daemon {
		return s.daemon(name, v, args...)
	}
	return v.Main(args...)
}

func (s *Sysplat) helper(name string, args ...string) error {
	switch name {
	case "h", "help":
		fmt.Fprintln(s.Stdout, s.Help(args...))
		return nil
	case "apropos":
		return s.apropos(args...)
	case "complete":
		return s.complete(args...)
	case "man":
		return s.man(args...)
	}
	return s.usage(args...)
}

// daemon runs v with a pidfile, closing it on SIGTERM.
func (s *Sysplat) daemon(name string, v Cmd, args ...string) error {
	if _, err := pidfile.New(name); err != nil {
		return err
	}
	defer pidfile.Remove(name)
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigch)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigch:
			if method, found := v.(io.Closer); found {
				method.Close()
			}
		case <-done:
		}
	}()
	return v.Main(args...)
}

// Prog is the base name of the running executable.
func Prog() string {
	prog, err := os.Executable()
	if err != nil {
		prog = os.Args[0]
	}
	return filepath.Base(prog)
}

// ActionError is a failed command and the exit code it maps to.
type ActionError struct {
	Msg  string
	Code int
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("ActionError: %s (code %d)", e.Msg, e.Code)
}

// Errorf returns an ActionError of code 1.
func Errorf(format string, args ...interface{}) error {
	return &ActionError{Msg: fmt.Sprintf(format, args...), Code: 1}
}

type coder interface {
	ExitCode() int
}

// ExitCode maps err to the process exit status: 0 on success, the code of
// an ActionError, or of an error carrying one, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil || err == io.EOF {
		return 0
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return 1
}
