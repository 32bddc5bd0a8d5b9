// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves uiverify settings from defaults, a YAML file, a
// .env file and UIVERIFY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ttbt-io/uiverify/harness"
)

const envPrefix = "UIVERIFY_"

// DefaultTargetURL is the one place the game's address is configured.
const DefaultTargetURL = "http://localhost:3000"

// Driver names.
const (
	DriverCDP        = "cdp"
	DriverPlaywright = "pw"
)

// Config is the full set of options for a uiverify invocation.
type Config struct {
	TargetURL     string   `yaml:"target_url"`
	Driver        string   `yaml:"driver"`
	Parallel      int      `yaml:"parallel"`
	ScenarioFiles []string `yaml:"scenario_files,omitempty"`
	HistoryDir    string   `yaml:"history_dir,omitempty"`
	TraceFile     string   `yaml:"trace_file,omitempty"`
	// InstallBrowsers lets the playwright driver download Chromium.
	InstallBrowsers bool `yaml:"install_browsers,omitempty"`

	Harness harness.Config `yaml:",inline"`

	// MasterKey is the history encryption passphrase. It is only read from
	// the environment.
	MasterKey string `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		TargetURL: DefaultTargetURL,
		Driver:    DriverCDP,
		Parallel:  1,
		Harness:   harness.DefaultConfig(),
	}
}

// Load resolves the configuration. path may be empty. A missing .env file
// is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays UIVERIFY_* variables found by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("TARGET_URL", &c.TargetURL)
	str("DRIVER", &c.Driver)
	integer("PARALLEL", &c.Parallel)
	str("HISTORY_DIR", &c.HistoryDir)
	str("TRACE_FILE", &c.TraceFile)
	boolean("INSTALL_BROWSERS", &c.InstallBrowsers)
	str("MASTER_KEY", &c.MasterKey)
	if v, ok := get("SCENARIO_FILES"); ok {
		c.ScenarioFiles = strings.Split(v, ",")
	}

	boolean("HEADLESS", &c.Harness.Headless)
	duration("NAVIGATION_TIMEOUT", &c.Harness.NavigationTimeout)
	duration("WAIT_TIMEOUT", &c.Harness.WaitTimeout)
	duration("DEBUG_DELAY", &c.Harness.DebugDelay)
	str("SCREENSHOT_DIR", &c.Harness.ScreenshotDir)
	str("REMOTE_URL", &c.Harness.RemoteURL)
	if v, ok := get("VIEWPORT"); ok {
		w, h, err := ParseViewport(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sVIEWPORT: %w", envPrefix, err))
		} else {
			c.Harness.Width, c.Harness.Height = w, h
		}
	}
	return errors.Join(errs...)
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("viewport %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("viewport %q: bad width", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("viewport %q: bad height", s)
	}
	return w, h, nil
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("target_url %q: want an http(s) URL", c.TargetURL)
	}
	switch c.Driver {
	case DriverCDP, DriverPlaywright:
	default:
		return fmt.Errorf("driver %q: want %s or %s", c.Driver, DriverCDP, DriverPlaywright)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	h := c.Harness
	if h.NavigationTimeout <= 0 || h.WaitTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if h.DebugDelay < 0 {
		return errors.New("debug_delay must not be negative")
	}
	if h.ScreenshotDir == "" {
		return errors.New("screenshot_dir must be set")
	}
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("viewport %dx%d: must be positive", h.Width, h.Height)
	}
	return nil
}
