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
	"path/filepath"
	"strings"
	"time"

	"github.com/ttbt-io/uiverify/harness/locator"
)

// StepKind names a step in the scenario vocabulary.
type StepKind string

const (
	StepNavigate        StepKind = "navigate"
	StepWaitForText     StepKind = "wait_for_text"
	StepWaitForSelector StepKind = "wait_for_selector"
	StepClickIfVisible  StepKind = "click_if_visible"
	StepClickAt         StepKind = "click_at"
	StepSleep           StepKind = "sleep"
	StepAssertVisible   StepKind = "assert_visible"
	StepScreenshot      StepKind = "screenshot"
	StepClick           StepKind = "click"
	StepHover           StepKind = "hover"
)

// StepKinds lists the vocabulary in documentation order.
var StepKinds = []StepKind{
	StepNavigate,
	StepWaitForText,
	StepWaitForSelector,
	StepClickIfVisible,
	StepClickAt,
	StepSleep,
	StepAssertVisible,
	StepScreenshot,
	StepClick,
	StepHover,
}

// Step is one instruction. Which fields apply depends on Action.
type Step struct {
	Action   StepKind        `yaml:"action" json:"action"`
	URL      string          `yaml:"url,omitempty" json:"url,omitempty"`
	Text     string          `yaml:"text,omitempty" json:"text,omitempty"`
	Selector string          `yaml:"selector,omitempty" json:"selector,omitempty"`
	Locator  locator.Locator `yaml:"locator,omitempty" json:"locator,omitzero"`
	// X and Y are absolute viewport coordinates, or offsets from the
	// locator's box when Locator is set.
	X        *float64      `yaml:"x,omitempty" json:"x,omitempty"`
	Y        *float64      `yaml:"y,omitempty" json:"y,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty" json:"duration,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Path     string        `yaml:"path,omitempty" json:"path,omitempty"`
	FullPage bool          `yaml:"full_page,omitempty" json:"fullPage,omitempty"`
	// Optional steps log their failure and let the run continue.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

func Navigate(url string) Step {
	return Step{Action: StepNavigate, URL: url}
}

func WaitForText(text string, timeout time.Duration) Step {
	return Step{Action: StepWaitForText, Text: text, Timeout: timeout}
}

func WaitForSelector(selector string, timeout time.Duration) Step {
	return Step{Action: StepWaitForSelector, Selector: selector, Timeout: timeout}
}

func ClickIfVisible(loc locator.Locator) Step {
	return Step{Action: StepClickIfVisible, Locator: loc}
}

// ClickAt clicks at absolute viewport coordinates.
func ClickAt(x, y float64) Step {
	return Step{Action: StepClickAt, X: &x, Y: &y}
}

// ClickCenter clicks the center of the element matched by loc.
func ClickCenter(loc locator.Locator) Step {
	return Step{Action: StepClickAt, Locator: loc}
}

func Sleep(d time.Duration) Step {
	return Step{Action: StepSleep, Duration: d}
}

func AssertVisible(loc locator.Locator, timeout time.Duration) Step {
	return Step{Action: StepAssertVisible, Locator: loc, Timeout: timeout}
}

func Screenshot(path string) Step {
	return Step{Action: StepScreenshot, Path: path}
}

func Click(loc locator.Locator, timeout time.Duration) Step {
	return Step{Action: StepClick, Locator: loc, Timeout: timeout}
}

func Hover(loc locator.Locator, timeout time.Duration) Step {
	return Step{Action: StepHover, Locator: loc, Timeout: timeout}
}

// AsOptional returns a copy of s whose failure does not end the run.
func (s Step) AsOptional() Step {
	s.Optional = true
	return s
}

func (s Step) hasLocator() bool {
	return s.Locator.Value != ""
}

// Validate checks that the fields required by Action are present.
func (s Step) Validate() error {
	if s.Timeout < 0 || s.Duration < 0 {
		return errors.New("negative duration")
	}
	switch s.Action {
	case StepNavigate:
		if s.URL == "" {
			return errors.New("navigate requires url")
		}
	case StepWaitForText:
		if s.Text == "" {
			return errors.New("wait_for_text requires text")
		}
	case StepWaitForSelector:
		if s.Selector == "" {
			return errors.New("wait_for_selector requires selector")
		}
	case StepClickIfVisible, StepAssertVisible, StepClick, StepHover:
		if !s.hasLocator() {
			return fmt.Errorf("%s requires locator", s.Action)
		}
	case StepClickAt:
		if (s.X == nil) != (s.Y == nil) {
			return errors.New("click_at requires both x and y")
		}
		if !s.hasLocator() && s.X == nil {
			return errors.New("click_at requires x and y or a locator")
		}
	case StepSleep:
		if s.Duration == 0 {
			return errors.New("sleep requires duration")
		}
	case StepScreenshot:
		if s.Path == "" {
			return errors.New("screenshot requires path")
		}
		if !filepath.IsLocal(s.Path) {
			return fmt.Errorf("screenshot path %q must be relative to the screenshot directory", s.Path)
		}
	case "":
		return errors.New("missing action")
	default:
		return fmt.Errorf("unknown action %q, want one of: %s", s.Action, kindList())
	}
	return nil
}

func kindList() string {
	names := make([]string, len(StepKinds))
	for i, k := range StepKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// String describes the step for progress lines.
func (s Step) String() string {
	var b strings.Builder
	switch s.Action {
	case StepNavigate:
		fmt.Fprintf(&b, "navigate to %s", s.URL)
	case StepWaitForText:
		fmt.Fprintf(&b, "wait for text %q", s.Text)
	case StepWaitForSelector:
		fmt.Fprintf(&b, "wait for selector %q", s.Selector)
	case StepClickIfVisible:
		fmt.Fprintf(&b, "click %s if visible", s.Locator)
	case StepClickAt:
		switch {
		case s.X == nil || s.Y == nil:
			fmt.Fprintf(&b, "click center of %s", s.Locator)
		case s.hasLocator():
			fmt.Fprintf(&b, "click %s at offset (%g, %g)", s.Locator, *s.X, *s.Y)
		default:
			fmt.Fprintf(&b, "click at (%g, %g)", *s.X, *s.Y)
		}
	case StepSleep:
		fmt.Fprintf(&b, "sleep %s", s.Duration)
	case StepAssertVisible:
		fmt.Fprintf(&b, "assert %s is visible", s.Locator)
	case StepScreenshot:
		fmt.Fprintf(&b, "screenshot %s", s.Path)
		if s.FullPage {
			b.WriteString(" (full page)")
		}
	case StepClick:
		fmt.Fprintf(&b, "click %s", s.Locator)
	case StepHover:
		fmt.Fprintf(&b, "hover %s", s.Locator)
	default:
		b.WriteString(string(s.Action))
	}
	if s.Optional {
		b.WriteString(" (optional)")
	}
	return b.String()
}
