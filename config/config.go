// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package config holds the process wide platform configuration loaded from
// YAML and overridden by arista.KEY=VALUE kernel command line tokens.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platinasystems/sysplat/internal/cmdline"
	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("config")

// ErrUnknownKey is returned by SetKey for keys no field is tagged with.
var ErrUnknownKey = errors.New("unknown key")

const (
	DefaultPath   = "/etc/sonic/arista.config"
	FlashPath     = "/host/arista-platform.config"
	CmdlinePrefix = "arista."
)

type Config struct {
	PluginXcvr string `yaml:"plugin_xcvr"`
	PluginLed  string `yaml:"plugin_led"`
	PluginPsu  string `yaml:"plugin_psu"`

	LockScdConf             bool   `yaml:"lock_scd_conf"`
	InitIrq                 bool   `yaml:"init_irq"`
	RebootCauseFile         string `yaml:"reboot_cause_file"`
	PersistentPresenceCheck bool   `yaml:"persistent_presence_check"`

	// LockFile serializes the platform lifecycle.
	LockFile string `yaml:"lock_file"`
	// LinecardLockFilePattern is formatted with the card slot id.
	LinecardLockFilePattern string `yaml:"linecard_lock_file_pattern"`

	LinecardStandbyOnly      bool `yaml:"linecard_standby_only"`
	LinecardCpuEnable        bool `yaml:"linecard_cpu_enable"`
	PowerOffLinecardOnReboot bool `yaml:"power_off_linecard_on_reboot"`
	PowerOffFabricOnReboot   bool `yaml:"power_off_fabric_on_reboot"`

	WriteHwThresholds  bool   `yaml:"write_hw_thresholds"`
	ReportHwThresholds bool   `yaml:"report_hw_thresholds"`
	WatchdogStateFile  string `yaml:"watchdog_state_file"`
	XcvrLpmodeOut      bool   `yaml:"xcvr_lpmode_out"`

	FlashPath string `yaml:"flash_path"`
	TmpfsPath string `yaml:"tmpfs_path"`
	EtcPath   string `yaml:"etc_path"`

	ApiRpcSup                 string `yaml:"api_rpc_sup"`
	ApiRpcLcx                 string `yaml:"api_rpc_lcx"`
	ApiRpcHost                string `yaml:"api_rpc_host"`
	ApiRpcPort                string `yaml:"api_rpc_port"`
	ApiLinecardRebootGraceful bool   `yaml:"api_linecard_reboot_graceful"`
	ApiUseSfpOptoe            bool   `yaml:"api_use_sfpoptoe"`
	ApiSfpThermal             bool   `yaml:"api_sfp_thermal"`
	ApiSfpResetLpmode         bool   `yaml:"api_sfp_reset_lpmode"`
	ApiEventUseInterrupts     bool   `yaml:"api_event_use_interrupts"`

	CoolingDataPoints   int     `yaml:"cooling_data_points"`
	CoolingMaxDecrease  float64 `yaml:"cooling_max_decrease"`
	CoolingMaxIncrease  float64 `yaml:"cooling_max_increase"`
	CoolingMinSpeed     float64 `yaml:"cooling_min_speed"`
	CoolingLoopInterval int     `yaml:"cooling_loop_interval"`
	CoolingTargetOffset float64 `yaml:"cooling_target_offset"`
	CoolingTargetFactor float64 `yaml:"cooling_target_factor"`
	CoolingGcCount      int     `yaml:"cooling_gc_count"`
	CoolingExportPath   string  `yaml:"cooling_export_path"`
	CoolingXcvrsViaApi  bool    `yaml:"cooling_xcvrs_via_api"`

	UseMetainventory bool `yaml:"use_metainventory"`

	// Simulation, when unset, is true unless the box booted from Aboot.
	Simulation *bool `yaml:"simulation"`
	Verbose    bool  `yaml:"verbose"`

	// RedisAddress is host:port of a redis receiving platform events.
	RedisAddress string `yaml:"redis_address"`

	cmdline cmdline.Cmdline
}

func Default() *Config {
	return &Config{
		PluginXcvr:               "native",
		PluginLed:                "native",
		PluginPsu:                "native",
		LockScdConf:              true,
		InitIrq:                  true,
		RebootCauseFile:          "last_reboot_cause",
		PersistentPresenceCheck:  true,
		LockFile:                 "/var/lock/arista.lock",
		LinecardLockFilePattern:  "/var/lock/arista.linecard%d.lock",
		LinecardStandbyOnly:      true,
		PowerOffLinecardOnReboot: true,
		WriteHwThresholds:        true,
		WatchdogStateFile:        "watchdog.json",
		FlashPath:                "/host",
		TmpfsPath:                "/var/run/platform_cache/arista",
		EtcPath:                  "/etc/sonic",
		ApiRpcSup:                "127.100.1.1",
		ApiRpcLcx:                "127.100.%d.1",
		ApiRpcHost:               "127.0.0.1",
		ApiRpcPort:               "12322",
		ApiUseSfpOptoe:           true,
		ApiSfpResetLpmode:        true,
		CoolingDataPoints:        10,
		CoolingMaxDecrease:       10,
		CoolingMaxIncrease:       25,
		CoolingMinSpeed:          30,
		CoolingLoopInterval:      20,
		CoolingTargetOffset:      0,
		CoolingTargetFactor:      0.8,
		CoolingGcCount:           15,
		cmdline:                  cmdline.Cmdline{},
	}
}

// Load returns the defaults overlaid with the YAML file at path. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ApplyCmdline overrides keys named by arista.KEY=VALUE tokens and records
// the command line for the simulation and debug queries. Unknown keys are
// skipped; the first invalid value is returned after every token applied.
func (c *Config) ApplyCmdline(m cmdline.Cmdline) error {
	c.cmdline = m
	tokens := m.Prefixed(CmdlinePrefix)
	keys := make([]string, 0, len(tokens))
	for key := range tokens {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var first error
	for _, key := range keys {
		err := c.SetKey(key, tokens[key])
		switch {
		case err == nil:
		case errors.Is(err, ErrUnknownKey):
			log.Debug("%v", err)
		case first == nil:
			first = err
		}
	}
	return first
}

// SetKey assigns the field tagged key from its text form.
func (c *Config) SetKey(key, value string) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag != key {
			continue
		}
		if err := setValue(v.Field(i), value); err != nil {
			return fmt.Errorf("%s%s: %w", CmdlinePrefix, key, err)
		}
		return nil
	}
	return fmt.Errorf("%s%s: %w", CmdlinePrefix, key, ErrUnknownKey)
}

func setValue(f reflect.Value, s string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(s)
	case reflect.Bool:
		b, err := ParseBool(s)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Ptr:
		b, err := ParseBool(s)
		if err != nil {
			return err
		}
		f.Set(reflect.ValueOf(&b))
	case reflect.Int:
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		f.SetInt(int64(i))
	case reflect.Float64:
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	default:
		return fmt.Errorf("unsupported %s", f.Kind())
	}
	return nil
}

// ParseBool accepts yes, y, true, no, n and false in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, fmt.Errorf("%q: not a boolean", s)
}

func (c *Config) InSimulation() bool {
	if c.Simulation != nil {
		return *c.Simulation
	}
	return !c.cmdline.Has("Aboot")
}

func (c *Config) Debug() bool {
	return c.Verbose || c.cmdline.Has("arista-debug")
}

func (c *Config) Cmdline() cmdline.Cmdline { return c.cmdline }

func (c *Config) Tmpfs(name string) string { return filepath.Join(c.TmpfsPath, name) }
func (c *Config) Flash(name string) string { return filepath.Join(c.FlashPath, name) }
func (c *Config) Etc(name string) string   { return filepath.Join(c.EtcPath, name) }

func (c *Config) LinecardLockFile(slotId int) string {
	return fmt.Sprintf(c.LinecardLockFilePattern, slotId)
}

func (c *Config) LinecardRpcAddr(slotId int) string {
	return fmt.Sprintf(c.ApiRpcLcx, slotId)
}

var singleton struct {
	sync.Mutex
	c *Config
}

// Init loads path, or the flash copy when path is absent, and applies the
// kernel command line. A corrupt file is fatal to the caller.
func Init(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if _, ferr := os.Stat(FlashPath); ferr == nil {
			path = FlashPath
		}
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	m, err := cmdline.Load()
	if err != nil {
		m = cmdline.Cmdline{}
	}
	if err = c.ApplyCmdline(m); err != nil {
		return nil, err
	}
	Set(c)
	return c, nil
}

// Get returns the process configuration, initializing it from DefaultPath
// on first use; a load failure falls back to the defaults.
func Get() *Config {
	singleton.Lock()
	c := singleton.c
	singleton.Unlock()
	if c != nil {
		return c
	}
	c, err := Init(DefaultPath)
	if err != nil {
		c = Default()
		Set(c)
	}
	return c
}

// Set replaces the process configuration; used by main and tests.
func Set(c *Config) {
	singleton.Lock()
	defer singleton.Unlock()
	singleton.c = c
}

// Simulated returns a copy of the defaults forced into simulation with
// its paths rooted at dir.
func Simulated(dir string) *Config {
	c := Default()
	sim := true
	c.Simulation = &sim
	c.FlashPath = filepath.Join(dir, "flash")
	c.TmpfsPath = filepath.Join(dir, "tmpfs")
	c.EtcPath = filepath.Join(dir, "etc")
	c.LockFile = filepath.Join(dir, "lock", "platform.lock")
	c.LinecardLockFilePattern = filepath.Join(dir, "lock", "linecard%d.lock")
	return c
}
