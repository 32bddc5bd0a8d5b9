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

// Package cli is the uiverify command tree.
package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ttbt-io/uiverify/config"
	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/driver/cdp"
	"github.com/ttbt-io/uiverify/driver/pw"
	"github.com/ttbt-io/uiverify/harness"
	"github.com/ttbt-io/uiverify/scenarios"
)

// ErrRunFailed is returned by run when any scenario did not succeed.
var ErrRunFailed = errors.New("verification failed")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath    string
	ScenarioFiles []string
	HistoryDir    string
	Version       string

	// Driver replaces the configured engine. Used by tests.
	Driver driver.Driver
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&RootOptions{Version: version})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "uiverify",
		Short:         "Scripted UI verification for the Neon Defense web game",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringArrayVar(&opts.ScenarioFiles, "scenario-file", nil, "YAML scenario file (repeatable)")
	cmd.PersistentFlags().StringVar(&opts.HistoryDir, "history-dir", "", "directory for run records")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// loadConfig resolves the configuration and merges the global flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(o.ScenarioFiles) > 0 {
		cfg.ScenarioFiles = append(cfg.ScenarioFiles, o.ScenarioFiles...)
	}
	if o.HistoryDir != "" {
		cfg.HistoryDir = o.HistoryDir
	}
	return cfg, nil
}

// catalog returns the built-ins followed by the scenarios from files. A
// file scenario replaces a built-in of the same name.
func catalog(files []string) ([]harness.Scenario, error) {
	list := scenarios.Builtin()
	for _, f := range files {
		loaded, err := harness.LoadScenarioFile(f)
		if err != nil {
			return nil, err
		}
		for _, s := range loaded {
			i := slices.IndexFunc(list, func(b harness.Scenario) bool { return b.Name == s.Name })
			if i >= 0 {
				list[i] = s
				continue
			}
			list = append(list, s)
		}
	}
	return list, nil
}

// selectScenarios picks names from the catalog, or all of it when names is
// empty.
func selectScenarios(all []harness.Scenario, names []string) ([]harness.Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]harness.Scenario, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(all, func(s harness.Scenario) bool { return s.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (o *RootOptions) newDriver(cfg config.Config) driver.Driver {
	if o.Driver != nil {
		return o.Driver
	}
	if cfg.Driver == config.DriverPlaywright {
		return &pw.Driver{Install: cfg.InstallBrowsers}
	}
	return cdp.New()
}
