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

// Package harness runs scripted UI verification scenarios against a web
// application through a browser driver.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness/locator"
)

const tracerName = "github.com/ttbt-io/uiverify/harness"

// debugCaptureTimeout bounds the diagnostic screenshot taken after a failure.
const debugCaptureTimeout = 5 * time.Second

// Config holds the per-run options. The zero Config runs with
// DefaultConfig, headless included; a partially filled Config keeps Headless
// as given, so start from DefaultConfig when setting individual fields.
type Config struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigationTimeout"`
	WaitTimeout       time.Duration `yaml:"wait_timeout" json:"waitTimeout"`
	ScreenshotDir     string        `yaml:"screenshot_dir" json:"screenshotDir"`
	Width             int           `yaml:"width" json:"width"`
	Height            int           `yaml:"height" json:"height"`
	// RemoteURL attaches to a running browser instead of launching one.
	RemoteURL string `yaml:"remote_url" json:"remoteUrl,omitempty"`
	// DebugDelay lets the page settle before the failure capture.
	DebugDelay time.Duration `yaml:"debug_delay" json:"debugDelay"`
}

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		WaitTimeout:       10 * time.Second,
		ScreenshotDir:     "verification",
		Width:             1280,
		Height:            720,
		DebugDelay:        time.Second,
	}
}

// withDefaults fills zero durations, sizes and paths. Headless is kept as
// given unless c is the zero Config.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = d.NavigationTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = d.ScreenshotDir
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.DebugDelay < 0 {
		c.DebugDelay = 0
	}
	return c
}

// Runner executes one scenario per call against a fresh session. A Runner
// may be used from several goroutines; runs share nothing.
type Runner struct {
	Driver driver.Driver
	Config Config
	// Logf receives progress lines. Defaults to stdout.
	Logf func(format string, args ...any)
	// EngineLogf receives driver diagnostics. Defaults to log.Printf.
	EngineLogf func(format string, args ...any)
}

// NewRunner returns a runner that prints progress to stdout.
func NewRunner(d driver.Driver, cfg Config) *Runner {
	return &Runner{Driver: d, Config: cfg}
}

var stdout = log.New(os.Stdout, "", 0)

func (r *Runner) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	stdout.Printf(format, args...)
}

// Run executes scenario against targetURL. The session is acquired at the
// start and released exactly once before Run returns, whatever the outcome.
// All failures are reported in the result.
func (r *Runner) Run(ctx context.Context, scenario Scenario, targetURL string) (res RunResult) {
	cfg := r.Config.withDefaults()
	res = RunResult{
		RunID:     uuid.NewString(),
		Scenario:  scenario.Name,
		TargetURL: targetURL,
		Started:   time.Now(),
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "scenario "+scenario.Name,
		trace.WithAttributes(
			attribute.String("uiverify.run_id", res.RunID),
			attribute.String("uiverify.target_url", targetURL),
			attribute.Int("uiverify.steps", len(scenario.Steps)),
		))
	defer func() {
		res.Duration = time.Since(res.Started)
		span.SetAttributes(attribute.String("uiverify.outcome", string(res.Outcome)))
		if !res.OK() {
			span.SetStatus(codes.Error, res.Reason)
		}
		span.End()
		r.logf("%s", res.Summary())
	}()

	if err := scenario.Validate(); err != nil {
		res.fail(err)
		return res
	}
	startURL, err := scenario.URL(targetURL)
	if err != nil {
		res.fail(fmt.Errorf("%w: %w", ErrInvalidScenario, err))
		return res
	}

	x := &execution{r: r, cfg: cfg, scenario: scenario, target: startURL, res: &res}

	openCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	sess, err := r.Driver.Open(openCtx, driver.Options{
		Headless:  cfg.Headless,
		RemoteURL: cfg.RemoteURL,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Observe:   x.observe,
		Logf:      r.EngineLogf,
	})
	cancel()
	if err != nil {
		res.environment(err)
		return res
	}
	x.sess = sess

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := sess.Close(); err != nil {
				log.Printf("DEBUG: closing session for %s: %v", scenario.Name, err)
			}
			x.mu.Lock()
			x.detached = true
			x.mu.Unlock()
		})
	}
	defer release()

	if err := x.execute(ctx); err != nil {
		res.fail(err)
		res.DebugScreenshotPath = x.debugCapture(ctx)
		return res
	}
	res.Outcome = Succeeded
	if x.lastShot == "" {
		x.lastShot = x.capture(ctx, scenario.Name+".png", false)
	}
	res.ScreenshotPath = x.lastShot
	return res
}

// execution is the state of one Run.
type execution struct {
	r        *Runner
	cfg      Config
	scenario Scenario
	target   string
	sess     driver.Session
	res      *RunResult

	mu       sync.Mutex // guards res.Observations and detached
	detached bool
	lastShot string
}

// observe may run on engine goroutines. Events arriving after release are
// dropped.
func (x *execution) observe(o driver.Observation) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.detached {
		return
	}
	x.r.logf("%s: %s", o.Origin, o.Text)
	x.res.Observations = append(x.res.Observations, o)
}

func (x *execution) execute(ctx context.Context) error {
	x.r.logf("NAVIGATE: %s", x.target)
	if err := x.navigate(ctx, x.target); err != nil {
		return newStepError(-1, StepNavigate, err)
	}
	for i, step := range x.scenario.Steps {
		x.r.logf("STEP %d: %s", i, step)
		start := time.Now()
		err := x.traceStep(ctx, i, step)
		rec := StepRecord{Index: i, Kind: step.Action, Description: step.String(), Duration: time.Since(start)}
		if err != nil {
			rec.Error = err.Error()
			if step.Optional {
				rec.Skipped = true
				x.r.logf("STEP %d: optional step skipped: %v", i, err)
				x.res.Steps = append(x.res.Steps, rec)
				continue
			}
			x.res.Steps = append(x.res.Steps, rec)
			return newStepError(i, step.Action, err)
		}
		x.res.Steps = append(x.res.Steps, rec)
	}
	return nil
}

func (x *execution) traceStep(ctx context.Context, i int, step Step) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, string(step.Action),
		trace.WithAttributes(
			attribute.Int("uiverify.step_index", i),
			attribute.String("uiverify.step", step.String()),
		))
	defer span.End()
	err := x.step(ctx, step)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (x *execution) waitTimeout(step Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return x.cfg.WaitTimeout
}

func (x *execution) navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.NavigationTimeout)
	defer cancel()
	return x.sess.Navigate(ctx, url)
}

func (x *execution) step(ctx context.Context, step Step) error {
	switch step.Action {
	case StepNavigate:
		url, err := resolveURL(x.target, step.URL)
		if err != nil {
			return err
		}
		return x.navigate(ctx, url)

	case StepWaitForText:
		return x.waitVisible(ctx, locator.Text(step.Text), x.waitTimeout(step))

	case StepWaitForSelector:
		return x.waitVisible(ctx, locator.CSS(step.Selector), x.waitTimeout(step))

	case StepClickIfVisible:
		x.clickIfVisible(ctx, step.Locator)
		return nil

	case StepClickAt:
		return x.clickAt(ctx, step)

	case StepSleep:
		t := time.NewTimer(step.Duration)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case StepAssertVisible:
		timeout := x.waitTimeout(step)
		if err := x.waitVisible(ctx, step.Locator, timeout); err != nil {
			return fmt.Errorf("expected %s to be visible within %s: %w", step.Locator, timeout, err)
		}
		return nil

	case StepScreenshot:
		if path := x.capture(ctx, step.Path, step.FullPage); path != "" {
			x.lastShot = path
		}
		return nil

	case StepClick:
		ctx, cancel := context.WithTimeout(ctx, x.waitTimeout(step))
		defer cancel()
		return x.sess.Click(ctx, step.Locator)

	case StepHover:
		ctx, cancel := context.WithTimeout(ctx, x.waitTimeout(step))
		defer cancel()
		return x.sess.Hover(ctx, step.Locator)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

func (x *execution) waitVisible(ctx context.Context, loc locator.Locator, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return x.sess.WaitVisible(ctx, loc)
}

// clickIfVisible checks once and clicks when the target is showing. Nothing
// it runs into is an error.
func (x *execution) clickIfVisible(ctx context.Context, loc locator.Locator) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.WaitTimeout)
	defer cancel()
	visible, err := x.sess.IsVisible(ctx, loc)
	if err != nil {
		log.Printf("DEBUG: visibility check for %s: %v", loc, err)
		return
	}
	if !visible {
		x.r.logf("  %s not visible, skipping", loc)
		return
	}
	if err := x.sess.Click(ctx, loc); err != nil {
		log.Printf("DEBUG: click %s: %v", loc, err)
	}
}

func (x *execution) clickAt(ctx context.Context, step Step) error {
	ctx, cancel := context.WithTimeout(ctx, x.waitTimeout(step))
	defer cancel()

	if !step.hasLocator() {
		return x.sess.MouseClick(ctx, *step.X, *step.Y)
	}
	box, err := x.sess.BoundingBox(ctx, step.Locator)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("target %s: %w", step.Locator, err)
	}
	cx, cy := box.Center()
	if step.X != nil && step.Y != nil {
		cx, cy = box.X+*step.X, box.Y+*step.Y
	}
	return x.sess.MouseClick(ctx, cx, cy)
}

// capture writes a screenshot under the screenshot directory and returns its
// path, or "" when anything went wrong. Errors are only logged.
func (x *execution) capture(ctx context.Context, name string, fullPage bool) string {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.WaitTimeout)
	defer cancel()

	buf, err := x.sess.Screenshot(ctx, fullPage)
	if err != nil {
		log.Printf("Failed to capture screenshot %s: %v", name, err)
		return ""
	}
	path := filepath.Join(x.cfg.ScreenshotDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("Failed to create screenshot directory: %v", err)
		return ""
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		log.Printf("Failed to save screenshot: %v", err)
		return ""
	}
	x.r.logf("Saved screenshot to %s", path)
	return path
}

// debugCapture takes the failure screenshot. It runs even when ctx is
// already done, bounded by debugCaptureTimeout.
func (x *execution) debugCapture(ctx context.Context) string {
	if x.cfg.DebugDelay > 0 {
		t := time.NewTimer(x.cfg.DebugDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), debugCaptureTimeout)
	defer cancel()
	return x.capture(ctx, "debug_"+x.scenario.Name+".png", false)
}
