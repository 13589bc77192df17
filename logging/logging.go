// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package logging provides named, leveled loggers fanned out to a console,
// an optional file and syslog. Each sink filters independently by a
// verbosity list of "pattern/LEVEL" entries matched against logger names.
package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/log"
)

type Level int

const (
	Critical Level = iota
	Error
	Warning
	Notice
	Info
	Debug
	IO
)

var levels = []struct {
	name   string
	syslog string
	color  string
}{
	Critical: {"CRITICAL", "crit", "1;37;41"},
	Error:    {"ERROR", "err", "1;31"},
	Warning:  {"WARNING", "warn", "1;33"},
	Notice:   {"NOTICE", "note", "1;36"},
	Info:     {"INFO", "info", "1;34"},
	Debug:    {"DEBUG", "debug", "0;36"},
	IO:       {"IO", "", "0;35"},
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levels) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levels[l].name
}

func LevelByName(s string) (Level, error) {
	for i, x := range levels {
		if x.name == strings.ToUpper(s) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("%s: invalid log level", s)
}

const DateFormat = "2006-01-02 15:04:05.000000"

type Rule struct {
	Pattern *regexp.Regexp
	Level   Level
}

// ParseVerbosity parses a comma separated list of "pattern" or
// "pattern/LEVEL". A bare pattern enables Debug for matching loggers.
func ParseVerbosity(s string) ([]Rule, error) {
	var rules []Rule
	if len(s) == 0 {
		return rules, nil
	}
	for _, el := range strings.Split(s, ",") {
		pattern, level := el, Debug
		switch strings.Count(el, "/") {
		case 0:
		case 1:
			var lvl string
			pattern, lvl = el[:strings.Index(el, "/")], el[strings.Index(el, "/")+1:]
			l, err := LevelByName(lvl)
			if err != nil {
				return nil, err
			}
			level = l
		default:
			return nil, fmt.Errorf("%s: invalid verbosity", el)
		}
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid verbosity: %w", err)
		}
		rules = append(rules, Rule{re, level})
	}
	return rules, nil
}

type Record struct {
	Logger  *Logger
	Level   Level
	Time    time.Time
	Message string
}

type Sink interface {
	Name() string
	Enabled(name string, l Level) bool
	Log(prefix string, r *Record)
}

// Filter is the per sink level selection shared by every sink.
type Filter struct {
	Rules   []Rule
	Default Level
}

func (f *Filter) Enabled(name string, l Level) bool {
	max := f.Default
	for _, r := range f.Rules {
		if r.Pattern.MatchString(name) {
			max = r.Level
			break
		}
	}
	return l <= max
}

type WriterSink struct {
	Filter
	W     io.Writer
	Color bool
	// Stamp prefixes each line with the record time.
	Stamp bool
	name  string
	mu    sync.Mutex
}

// NewCli writes to stdout, colored when stdout is a terminal.
func NewCli(rules []Rule, def Level) *WriterSink {
	return &WriterSink{
		Filter: Filter{rules, def},
		W:      os.Stdout,
		Color:  isatty.IsTerminal(os.Stdout.Fd()),
		name:   "cli",
	}
}

// NewFile appends to the named file.
func NewFile(fn string, rules []Rule, def Level) (*WriterSink, error) {
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &WriterSink{
		Filter: Filter{rules, def},
		W:      f,
		Stamp:  true,
		name:   "file",
	}, nil
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Log(prefix string, r *Record) {
	line := fmt.Sprint(prefix, r.Level, ": ", r.Message)
	if s.Stamp {
		line = r.Time.Format(DateFormat) + " " + line
	}
	if s.Color {
		line = "\x1b[" + levels[r.Level].color + "m" + line + "\x1b[0m"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.W, line)
}

// SyslogSink forwards to the system log with the daemon facility. IO
// records are never forwarded.
type SyslogSink struct {
	Filter
}

func NewSyslog(rules []Rule, def Level) *SyslogSink {
	return &SyslogSink{Filter{rules, def}}
}

func (*SyslogSink) Name() string { return "syslog" }

func (s *SyslogSink) Log(prefix string, r *Record) {
	pri := levels[r.Level].syslog
	if len(pri) == 0 {
		return
	}
	log.Print("daemon", pri, prefix+r.Message)
}

type manager struct {
	sync.Mutex
	prefix  string
	sinks   []Sink
	loggers map[string]*Logger
}

var mgr = manager{loggers: make(map[string]*Logger)}

// AddSink appends a sink to the process wide fan out.
func AddSink(s Sink) {
	mgr.Lock()
	defer mgr.Unlock()
	mgr.sinks = append(mgr.sinks, s)
}

// Reset removes every sink.
func Reset() {
	mgr.Lock()
	defer mgr.Unlock()
	mgr.sinks = nil
	mgr.prefix = ""
}

// SetPrefix sets the process wide message prefix, such as "card3: " in a
// per card worker.
func SetPrefix(prefix string) {
	mgr.Lock()
	defer mgr.Unlock()
	mgr.prefix = prefix
}

type Options struct {
	Verbosity        string
	Logfile          string
	LogfileVerbosity string
	Syslog           bool
	SyslogVerbosity  string
}

// Setup installs the console sink and, per opts, the file and syslog sinks.
func Setup(opts Options) error {
	rules, err := ParseVerbosity(opts.Verbosity)
	if err != nil {
		return err
	}
	AddSink(NewCli(rules, Info))
	if len(opts.Logfile) > 0 {
		rules, err = ParseVerbosity(opts.LogfileVerbosity)
		if err != nil {
			return err
		}
		s, err := NewFile(opts.Logfile, rules, IO)
		if err != nil {
			return err
		}
		AddSink(s)
	}
	if opts.Syslog {
		rules, err = ParseVerbosity(opts.SyslogVerbosity)
		if err != nil {
			return err
		}
		AddSink(NewSyslog(rules, Notice))
	}
	return nil
}

type Logger struct {
	name   string
	prefix string
}

// Get returns the logger of the given name, creating it on first use.
func Get(name string) *Logger {
	name = strings.TrimPrefix(name, "arista.")
	mgr.Lock()
	defer mgr.Unlock()
	if l, found := mgr.loggers[name]; found {
		return l
	}
	l := &Logger{name: name}
	mgr.loggers[name] = l
	return l
}

// Child returns a logger sharing l's name that prefixes each message.
func (l *Logger) Child(prefix string) *Logger {
	return &Logger{name: l.name, prefix: l.prefix + prefix}
}

func (l *Logger) Name() string { return l.name }

func (l *Logger) Enabled(lvl Level) bool {
	mgr.Lock()
	defer mgr.Unlock()
	for _, s := range mgr.sinks {
		if s.Enabled(l.name, lvl) {
			return true
		}
	}
	return false
}

func (l *Logger) Log(lvl Level, format string, args ...interface{}) {
	mgr.Lock()
	sinks, prefix := mgr.sinks, mgr.prefix
	mgr.Unlock()
	var r *Record
	for _, s := range sinks {
		if !s.Enabled(l.name, lvl) {
			continue
		}
		if r == nil {
			msg := format
			if len(args) > 0 {
				msg = fmt.Sprintf(format, args...)
			}
			r = &Record{l, lvl, time.Now(), l.prefix + msg}
		}
		s.Log(prefix, r)
	}
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.Log(Critical, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(Error, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(Warning, format, args...)
}

func (l *Logger) Notice(format string, args ...interface{}) {
	l.Log(Notice, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(Info, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(Debug, format, args...)
}

func (l *Logger) Io(format string, args ...interface{}) {
	l.Log(IO, format, args...)
}
