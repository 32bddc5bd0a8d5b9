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

package history

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ttbt-io/uiverify/harness"
)

// Render prints the comparable parts of a run, one fact per line. Timings
// and IDs are left out so two runs of the same scenario line up.
func Render(r harness.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "target: %s\n", r.TargetURL)
	fmt.Fprintf(&b, "outcome: %s\n", r.Outcome)
	if r.Outcome == harness.Failed {
		fmt.Fprintf(&b, "failed step: %d\n", r.StepIndex)
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", r.Reason)
	}
	for _, s := range r.Steps {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped: " + s.Error
		case s.Error != "":
			status = "error: " + s.Error
		}
		fmt.Fprintf(&b, "step %d %s: %s\n", s.Index, s.Description, status)
	}
	for _, o := range r.Observations {
		fmt.Fprintf(&b, "%s: %s\n", o.Origin, o.Text)
	}
	return b.String()
}

// Diff returns a unified diff between two runs, or "" when they render the
// same.
func Diff(a, b harness.RunResult) (string, error) {
	ra, rb := Render(a), Render(b)
	if ra == rb {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ra),
		B:        difflib.SplitLines(rb),
		FromFile: a.RunID,
		ToFile:   b.RunID,
		Context:  3,
	})
}
