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

package harness_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/driver/drivertest"
	"github.com/ttbt-io/uiverify/harness"
	"github.com/ttbt-io/uiverify/harness/locator"
)

const target = "http://localhost:3000"

type progress struct {
	mu    sync.Mutex
	lines []string
}

func (p *progress) logf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, fmt.Sprintf(format, args...))
}

func (p *progress) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}

func newRunner(t *testing.T, d driver.Driver) (*harness.Runner, *progress) {
	t.Helper()
	p := &progress{}
	r := harness.NewRunner(d, harness.Config{
		Headless:          true,
		NavigationTimeout: 200 * time.Millisecond,
		WaitTimeout:       50 * time.Millisecond,
		ScreenshotDir:     t.TempDir(),
	})
	r.Logf = p.logf
	return r, p
}

func inspector() harness.Scenario {
	return harness.Scenario{
		Name: "inspector",
		Steps: []harness.Step{
			harness.ClickIfVisible(locator.Role("button", "INITIATE")),
			harness.WaitForSelector("canvas", 0),
			harness.ClickCenter(locator.CSS("canvas")),
			harness.Sleep(time.Millisecond),
			harness.ClickCenter(locator.CSS("canvas")),
			harness.AssertVisible(locator.Text("Damage"), 0),
			harness.Screenshot("inspector.png"),
		},
	}
}

func TestRunSucceeded(t *testing.T) {
	d := &drivertest.Driver{}
	r, p := newRunner(t, d)

	res := r.Run(context.Background(), inspector(), target)

	require.Equal(t, harness.Succeeded, res.Outcome, res.Reason)
	assert.True(t, res.OK())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, filepath.Join(r.Config.ScreenshotDir, "inspector.png"), res.ScreenshotPath)
	assert.FileExists(t, res.ScreenshotPath)
	assert.Len(t, res.Steps, 7)
	assert.Equal(t, 1, d.Opens())
	require.Len(t, d.Sessions(), 1)
	assert.Equal(t, 1, d.Sessions()[0].Closes())
	assert.Contains(t, p.text(), "STEP 0: click role:button name:INITIATE if visible")
	assert.Contains(t, p.text(), "PASS inspector")
}

func TestZeroConfigRunsHeadless(t *testing.T) {
	t.Chdir(t.TempDir())
	d := &drivertest.Driver{}
	r := &harness.Runner{Driver: d}
	p := &progress{}
	r.Logf = p.logf

	res := r.Run(context.Background(), inspector(), target)

	require.Equal(t, harness.Succeeded, res.Outcome, res.Reason)
	require.Len(t, d.Sessions(), 1)
	opts := d.Sessions()[0].Options()
	assert.True(t, opts.Headless)
	def := harness.DefaultConfig()
	assert.Equal(t, def.Width, opts.Width)
	assert.Equal(t, def.Height, opts.Height)
	assert.Equal(t, filepath.Join(def.ScreenshotDir, "inspector.png"), res.ScreenshotPath)
}

func TestPartialConfigKeepsHeadlessAsGiven(t *testing.T) {
	d := &drivertest.Driver{}
	r := harness.NewRunner(d, harness.Config{ScreenshotDir: t.TempDir()})
	r.Logf = (&progress{}).logf

	res := r.Run(context.Background(), inspector(), target)

	require.Equal(t, harness.Succeeded, res.Outcome, res.Reason)
	require.Len(t, d.Sessions(), 1)
	assert.False(t, d.Sessions()[0].Options().Headless)
}

func TestRunReleasesExactlyOnce(t *testing.T) {
	tests := []struct {
		name      string
		driver    *drivertest.Driver
		outcome   harness.Outcome
		sentinel  error
		stepIndex int
	}{
		{
			name:      "success",
			driver:    &drivertest.Driver{},
			outcome:   harness.Succeeded,
			stepIndex: 0,
		},
		{
			name:      "assertion failure",
			driver:    &drivertest.Driver{Hidden: map[string]bool{"text:Damage": true}},
			outcome:   harness.Failed,
			sentinel:  harness.ErrStepTimeout,
			stepIndex: 5,
		},
		{
			name:      "wait timeout",
			driver:    &drivertest.Driver{Hidden: map[string]bool{"css:canvas": true}},
			outcome:   harness.Failed,
			sentinel:  harness.ErrStepTimeout,
			stepIndex: 1,
		},
		{
			name:      "step error",
			driver:    &drivertest.Driver{Errors: map[string]error{"MouseClick": errors.New("detached node")}},
			outcome:   harness.Failed,
			sentinel:  harness.ErrStep,
			stepIndex: 2,
		},
		{
			name:      "navigation timeout",
			driver:    &drivertest.Driver{Hang: map[string]bool{"Navigate": true}},
			outcome:   harness.Failed,
			sentinel:  harness.ErrNavigationTimeout,
			stepIndex: -1,
		},
		{
			name:      "navigation error",
			driver:    &drivertest.Driver{Errors: map[string]error{"Navigate": errors.New("net::ERR_CONNECTION_REFUSED")}},
			outcome:   harness.Failed,
			sentinel:  harness.ErrStep,
			stepIndex: -1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newRunner(t, tc.driver)
			res := r.Run(context.Background(), inspector(), target)

			assert.Equal(t, tc.outcome, res.Outcome, res.Reason)
			if tc.sentinel != nil {
				assert.ErrorIs(t, res.Err, tc.sentinel)
				assert.Equal(t, tc.stepIndex, res.StepIndex)
				var se *harness.StepError
				require.ErrorAs(t, res.Err, &se)
				assert.Equal(t, tc.stepIndex, se.Index)
			}
			sessions := tc.driver.Sessions()
			require.Len(t, sessions, 1)
			assert.Equal(t, 1, sessions[0].Closes())
		})
	}
}

func TestRunFailureTakesDebugScreenshot(t *testing.T) {
	d := &drivertest.Driver{Hidden: map[string]bool{"text:Damage": true}}
	r, p := newRunner(t, d)

	res := r.Run(context.Background(), inspector(), target)

	require.Equal(t, harness.Failed, res.Outcome)
	assert.Equal(t, 5, res.StepIndex)
	assert.Contains(t, res.Reason, "expected text:Damage to be visible within 50ms")
	assert.Equal(t, filepath.Join(r.Config.ScreenshotDir, "debug_inspector.png"), res.DebugScreenshotPath)
	assert.FileExists(t, res.DebugScreenshotPath)
	assert.Empty(t, res.ScreenshotPath)
	assert.Contains(t, p.text(), "FAIL inspector at step 5")
}

func TestRunEnvironmentError(t *testing.T) {
	d := &drivertest.Driver{OpenErr: errors.New("chrome not found")}
	r, _ := newRunner(t, d)

	res := r.Run(context.Background(), inspector(), target)

	assert.Equal(t, harness.EnvironmentError, res.Outcome)
	assert.ErrorIs(t, res.Err, harness.ErrEnvironment)
	assert.Contains(t, res.Reason, "chrome not found")
	assert.Empty(t, res.DebugScreenshotPath)
	assert.Empty(t, res.ScreenshotPath)
	entries, err := os.ReadDir(r.Config.ScreenshotDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNavigationTimeoutReleasesPromptly(t *testing.T) {
	d := &drivertest.Driver{Hang: map[string]bool{"Navigate": true}}
	r, _ := newRunner(t, d)

	start := time.Now()
	res := r.Run(context.Background(), inspector(), target)
	elapsed := time.Since(start)

	assert.Equal(t, harness.Failed, res.Outcome)
	assert.True(t, harness.IsTimeout(res.Err))
	assert.Less(t, elapsed, 3*time.Second)
	assert.Equal(t, 1, d.Sessions()[0].Closes())
}

func TestClickIfVisibleNeverChangesOutcome(t *testing.T) {
	initiate := locator.Role("button", "INITIATE")
	scenario := harness.Scenario{
		Name: "optional_start",
		Steps: []harness.Step{
			harness.ClickIfVisible(initiate),
			harness.AssertVisible(locator.CSS("canvas"), 0),
		},
	}
	tests := []struct {
		name   string
		driver *drivertest.Driver
	}{
		{"visible", &drivertest.Driver{}},
		{"hidden", &drivertest.Driver{Hidden: map[string]bool{initiate.String(): true}}},
		{"absent", &drivertest.Driver{Elements: map[string]driver.Box{"css:canvas": drivertest.DefaultBox}}},
		{"click fails", &drivertest.Driver{Errors: map[string]error{"Click": errors.New("not actionable")}}},
		{"check fails", &drivertest.Driver{Errors: map[string]error{"IsVisible": errors.New("evaluate failed")}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newRunner(t, tc.driver)
			res := r.Run(context.Background(), scenario, target)
			assert.Equal(t, harness.Succeeded, res.Outcome, res.Reason)
		})
	}
}

func TestScreenshotFailureKeepsClassification(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	t.Run("unwritable directory on success", func(t *testing.T) {
		d := &drivertest.Driver{}
		r, _ := newRunner(t, d)
		r.Config.ScreenshotDir = blocker
		res := r.Run(context.Background(), inspector(), target)
		assert.Equal(t, harness.Succeeded, res.Outcome)
		assert.Empty(t, res.ScreenshotPath)
	})
	t.Run("capture error on success", func(t *testing.T) {
		d := &drivertest.Driver{Errors: map[string]error{"Screenshot": errors.New("target crashed")}}
		r, _ := newRunner(t, d)
		res := r.Run(context.Background(), inspector(), target)
		assert.Equal(t, harness.Succeeded, res.Outcome)
		assert.Empty(t, res.ScreenshotPath)
	})
	t.Run("unwritable directory on failure", func(t *testing.T) {
		d := &drivertest.Driver{Hidden: map[string]bool{"text:Damage": true}}
		r, _ := newRunner(t, d)
		r.Config.ScreenshotDir = blocker
		res := r.Run(context.Background(), inspector(), target)
		assert.Equal(t, harness.Failed, res.Outcome)
		assert.ErrorIs(t, res.Err, harness.ErrStepTimeout)
		assert.Empty(t, res.DebugScreenshotPath)
		assert.Equal(t, 1, d.Sessions()[0].Closes())
	})
}

func TestSuccessWithoutScreenshotStepCapturesFinalFrame(t *testing.T) {
	d := &drivertest.Driver{}
	r, _ := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{
		Name:  "smoke",
		Steps: []harness.Step{harness.Sleep(time.Millisecond)},
	}, target)

	require.Equal(t, harness.Succeeded, res.Outcome)
	assert.Equal(t, filepath.Join(r.Config.ScreenshotDir, "smoke.png"), res.ScreenshotPath)
	assert.FileExists(t, res.ScreenshotPath)
}

func TestClickAtCoordinates(t *testing.T) {
	canvas := driver.Box{X: 10, Y: 20, Width: 600, Height: 400}
	d := &drivertest.Driver{Elements: map[string]driver.Box{"css:canvas": canvas}}
	r, _ := newRunner(t, d)
	off := harness.ClickCenter(locator.CSS("canvas"))
	x, y := 5.0, 7.0
	off.X, off.Y = &x, &y

	res := r.Run(context.Background(), harness.Scenario{
		Name: "coords",
		Steps: []harness.Step{
			harness.ClickCenter(locator.CSS("canvas")),
			off,
			harness.ClickAt(42, 24),
		},
	}, target)
	require.Equal(t, harness.Succeeded, res.Outcome, res.Reason)

	var clicks []string
	for _, c := range d.Sessions()[0].Calls() {
		if c.Method == "MouseClick" {
			clicks = append(clicks, c.Arg)
		}
	}
	assert.Equal(t, []string{"310,220", "15,27", "42,24"}, clicks)
}

func TestClickAtMissingTargetIsStepError(t *testing.T) {
	d := &drivertest.Driver{Elements: map[string]driver.Box{}}
	r, _ := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{
		Name:  "missing",
		Steps: []harness.Step{harness.ClickCenter(locator.CSS("canvas"))},
	}, target)

	require.Equal(t, harness.Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, harness.ErrStep)
	assert.ErrorIs(t, res.Err, driver.ErrNotFound)
	assert.Equal(t, 0, res.StepIndex)
}

func TestOptionalStepFailureIsSkipped(t *testing.T) {
	d := &drivertest.Driver{Hidden: map[string]bool{"text:Sys.Integrity": true}}
	r, p := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{
		Name: "baseline",
		Steps: []harness.Step{
			harness.WaitForText("Sys.Integrity", 0).AsOptional(),
			harness.Screenshot("firstmap.png"),
		},
	}, target)

	require.Equal(t, harness.Succeeded, res.Outcome, res.Reason)
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].Skipped)
	assert.NotEmpty(t, res.Steps[0].Error)
	assert.Contains(t, p.text(), "optional step skipped")
}

func TestObservationsAreForwarded(t *testing.T) {
	d := &drivertest.Driver{Emit: []driver.Observation{
		{Origin: driver.OriginConsole, Level: "log", Text: "game ready"},
		{Origin: driver.OriginPageError, Text: "TypeError: x is undefined"},
		{Origin: driver.OriginRequestFailed, Text: "http://localhost:3000/missing.png net::ERR_FAILED"},
	}}
	r, p := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{Name: "visuals"}, target)

	require.Equal(t, harness.Succeeded, res.Outcome)
	assert.Len(t, res.Observations, 3)
	out := p.text()
	assert.Contains(t, out, "CONSOLE: game ready")
	assert.Contains(t, out, "PAGE ERROR: TypeError: x is undefined")
	assert.Contains(t, out, "REQUEST FAILED: http://localhost:3000/missing.png")
}

func TestScenarioPathAndRelativeNavigate(t *testing.T) {
	d := &drivertest.Driver{}
	r, _ := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{
		Name:  "paths",
		Path:  "/play?map=1",
		Steps: []harness.Step{harness.Navigate("/settings")},
	}, target)
	require.Equal(t, harness.Succeeded, res.Outcome)

	var urls []string
	for _, c := range d.Sessions()[0].Calls() {
		if c.Method == "Navigate" {
			urls = append(urls, c.Arg)
		}
	}
	assert.Equal(t, []string{target + "/play?map=1", target + "/settings"}, urls)
}

func TestInvalidScenarioNeverOpensSession(t *testing.T) {
	d := &drivertest.Driver{}
	r, _ := newRunner(t, d)
	res := r.Run(context.Background(), harness.Scenario{
		Name:  "bad",
		Steps: []harness.Step{{Action: "teleport"}},
	}, target)

	assert.Equal(t, harness.Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, harness.ErrInvalidScenario)
	assert.Equal(t, 0, d.Opens())
}

func TestRunAllPreservesOrder(t *testing.T) {
	d := &drivertest.Driver{Hidden: map[string]bool{"text:Damage": true}}
	r, _ := newRunner(t, d)
	scenarios := []harness.Scenario{
		inspector(),
		{Name: "visuals", Steps: []harness.Step{harness.Sleep(20 * time.Millisecond)}},
		{Name: "speed_controls", Steps: []harness.Step{harness.Click(locator.MustParse(`text:2x exact:true`), 0)}},
	}

	results := harness.RunAll(context.Background(), r, scenarios, target, 3)

	require.Len(t, results, 3)
	assert.Equal(t, "inspector", results[0].Scenario)
	assert.Equal(t, harness.Failed, results[0].Outcome)
	assert.Equal(t, "visuals", results[1].Scenario)
	assert.Equal(t, harness.Succeeded, results[1].Outcome)
	assert.Equal(t, "speed_controls", results[2].Scenario)
	assert.Equal(t, harness.Succeeded, results[2].Outcome)
	assert.False(t, harness.AllSucceeded(results))
	assert.Equal(t, 3, d.Opens())
	for _, s := range d.Sessions() {
		assert.Equal(t, 1, s.Closes())
	}
}
