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

package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ttbt-io/uiverify/config"
	"github.com/ttbt-io/uiverify/harness"
	"github.com/ttbt-io/uiverify/history"
	"github.com/ttbt-io/uiverify/tracing"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Target        string
	DriverName    string
	Remote        string
	Headless      bool
	Parallel      int
	ScreenshotDir string
	TraceFile     string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run verification scenarios against the game",
		Long: `Run drives a browser through each named scenario, or through every
built-in and file scenario when none are named. The command fails when any
scenario does not pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	d := config.Default()
	cmd.Flags().StringVar(&opts.Target, "target", d.TargetURL, "base URL of the game")
	cmd.Flags().StringVar(&opts.DriverName, "driver", d.Driver, "browser driver (cdp or pw)")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "attach to a running browser at this URL")
	cmd.Flags().BoolVar(&opts.Headless, "headless", d.Harness.Headless, "run the browser without a window")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", d.Parallel, "maximum concurrent runs")
	cmd.Flags().StringVar(&opts.ScreenshotDir, "screenshot-dir", d.Harness.ScreenshotDir, "directory for captures")
	cmd.Flags().StringVar(&opts.TraceFile, "trace-file", "", "write OpenTelemetry spans to this file (- for stdout)")

	return cmd
}

// apply overlays the flags that were set on the command line.
func (o *RunOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("target") {
		cfg.TargetURL = o.Target
	}
	if f.Changed("driver") {
		cfg.Driver = o.DriverName
	}
	if f.Changed("remote") {
		cfg.Harness.RemoteURL = o.Remote
	}
	if f.Changed("headless") {
		cfg.Harness.Headless = o.Headless
	}
	if f.Changed("parallel") {
		cfg.Parallel = o.Parallel
	}
	if f.Changed("screenshot-dir") {
		cfg.Harness.ScreenshotDir = o.ScreenshotDir
	}
	if f.Changed("trace-file") {
		cfg.TraceFile = o.TraceFile
	}
}

func runRun(cmd *cobra.Command, opts *RunOptions, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	opts.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	all, err := catalog(cfg.ScenarioFiles)
	if err != nil {
		return err
	}
	selected, err := selectScenarios(all, args)
	if err != nil {
		return err
	}

	// Open the store first so a bad passphrase fails before any browser
	// starts.
	var store *history.Store
	if cfg.HistoryDir != "" {
		if store, err = history.Open(cfg.HistoryDir, cfg.MasterKey); err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
	}

	if cfg.TraceFile != "" {
		shutdown, err := tracing.Init("uiverify", opts.Version, cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("Tracing shutdown: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := log.New(cmd.OutOrStdout(), "", 0)
	r := harness.NewRunner(opts.newDriver(cfg), cfg.Harness)
	r.Logf = out.Printf
	r.EngineLogf = log.New(cmd.ErrOrStderr(), "", log.LstdFlags).Printf

	results := harness.RunAll(ctx, r, selected, cfg.TargetURL, cfg.Parallel)

	passed := 0
	for _, res := range results {
		if res.OK() {
			passed++
		}
		if store == nil {
			continue
		}
		if err := store.Save(res); err != nil {
			log.Printf("Failed to save run %s: %v", res.RunID, err)
		}
	}
	out.Printf("%d/%d scenarios passed", passed, len(results))

	if !harness.AllSucceeded(results) {
		return ErrRunFailed
	}
	return nil
}
