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
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEnvironment means the browser engine could not be reached or launched.
	ErrEnvironment = errors.New("environment error")
	// ErrNavigationTimeout means a page load did not complete in time.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrStepTimeout means a wait or assertion did not resolve in time.
	ErrStepTimeout = errors.New("step timeout")
	// ErrStep means an interaction target was missing or not actionable.
	ErrStep = errors.New("step failed")
	// ErrInvalidScenario means a scenario was rejected before it ran.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// StepError reports the step that ended a run. Index is -1 for the initial
// navigation to the target.
type StepError struct {
	Index int
	Kind  StepKind
	// Class is one of the package sentinels.
	Class error
	Err   error
}

func (e *StepError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("initial %s: %v: %v", e.Kind, e.Class, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v: %v", e.Index, e.Kind, e.Class, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *StepError) Unwrap() []error {
	return []error{e.Class, e.Err}
}

// newStepError classifies err. Deadlines become timeouts, everything else
// is a plain step failure.
func newStepError(index int, kind StepKind, err error) *StepError {
	class := ErrStep
	if errors.Is(err, context.DeadlineExceeded) {
		class = ErrStepTimeout
		if kind == StepNavigate {
			class = ErrNavigationTimeout
		}
	}
	return &StepError{Index: index, Kind: kind, Class: class, Err: err}
}

// IsTimeout reports whether err is a navigation or step timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrNavigationTimeout) || errors.Is(err, ErrStepTimeout)
}
