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

package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/ttbt-io/uiverify/driver"
)

// Outcome tags a RunResult.
type Outcome string

const (
	Succeeded        Outcome = "succeeded"
	Failed           Outcome = "failed"
	EnvironmentError Outcome = "environment_error"
)

// RunResult is the outcome of one verification run.
//
// Succeeded sets ScreenshotPath when a capture was written. Failed sets
// StepIndex, Reason and, when the debug capture worked, DebugScreenshotPath.
// EnvironmentError sets Reason only.
type RunResult struct {
	RunID     string    `json:"runId"`
	Scenario  string    `json:"scenario"`
	TargetURL string    `json:"targetUrl"`
	Outcome   Outcome   `json:"outcome"`
	Started   time.Time `json:"started"`
	// Duration covers acquisition through release.
	Duration time.Duration `json:"duration"`

	ScreenshotPath      string `json:"screenshotPath,omitempty"`
	StepIndex           int    `json:"stepIndex"`
	Reason              string `json:"reason,omitempty"`
	DebugScreenshotPath string `json:"debugScreenshotPath,omitempty"`

	Steps        []StepRecord         `json:"steps,omitempty"`
	Observations []driver.Observation `json:"observations,omitempty"`

	// Err is the error behind Reason. It is not persisted.
	Err error `json:"-"`
}

// StepRecord is the trace of one executed step.
type StepRecord struct {
	Index       int           `json:"index"`
	Kind        StepKind      `json:"kind"`
	Description string        `json:"description"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	// Skipped is set when an optional step failed and the run went on.
	Skipped bool `json:"skipped,omitempty"`
}

// OK reports whether the run succeeded.
func (r RunResult) OK() bool {
	return r.Outcome == Succeeded
}

// Summary is the one-line PASS/FAIL report.
func (r RunResult) Summary() string {
	switch r.Outcome {
	case Succeeded:
		if r.ScreenshotPath != "" {
			return fmt.Sprintf("PASS %s (%s) screenshot=%s", r.Scenario, r.Duration.Round(time.Millisecond), r.ScreenshotPath)
		}
		return fmt.Sprintf("PASS %s (%s)", r.Scenario, r.Duration.Round(time.Millisecond))
	case Failed:
		s := fmt.Sprintf("FAIL %s at step %d: %s", r.Scenario, r.StepIndex, r.Reason)
		if r.DebugScreenshotPath != "" {
			s += " debug=" + r.DebugScreenshotPath
		}
		return s
	default:
		return fmt.Sprintf("FAIL %s: %s", r.Scenario, r.Reason)
	}
}

func (r *RunResult) fail(err error) {
	r.Outcome = Failed
	r.Reason = err.Error()
	r.Err = err
	r.StepIndex = -1
	var se *StepError
	if errors.As(err, &se) {
		r.StepIndex = se.Index
	}
}

func (r *RunResult) environment(err error) {
	r.Outcome = EnvironmentError
	r.StepIndex = -1
	r.Err = fmt.Errorf("%w: %w", ErrEnvironment, err)
	r.Reason = r.Err.Error()
}
