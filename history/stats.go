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
	"cmp"
	"iter"
	"slices"
	"time"

	"github.com/ttbt-io/uiverify/harness"
)

// ScenarioStats aggregates the stored runs of one scenario.
type ScenarioStats struct {
	Scenario         string
	Runs             int
	Succeeded        int
	Failed           int
	EnvironmentError int
	LastRun          time.Time
	LastOutcome      harness.Outcome
	Duration         Histogram
	// Steps holds one histogram per step index.
	Steps []Histogram
}

// PassRate is the fraction of runs that succeeded.
func (s *ScenarioStats) PassRate() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Runs)
}

func (s *ScenarioStats) add(r harness.RunResult) {
	s.Runs++
	switch r.Outcome {
	case harness.Succeeded:
		s.Succeeded++
	case harness.Failed:
		s.Failed++
	case harness.EnvironmentError:
		s.EnvironmentError++
	}
	if !r.Started.Before(s.LastRun) {
		s.LastRun = r.Started
		s.LastOutcome = r.Outcome
	}
	s.Duration.Add(r.Duration)
	for _, step := range r.Steps {
		for len(s.Steps) <= step.Index {
			s.Steps = append(s.Steps, Histogram{})
		}
		s.Steps[step.Index].Add(step.Duration)
	}
}

// Compute folds runs into per-scenario statistics sorted by scenario name.
// The first error from runs aborts the computation.
func Compute(runs iter.Seq2[harness.RunResult, error]) ([]*ScenarioStats, error) {
	byName := make(map[string]*ScenarioStats)
	for r, err := range runs {
		if err != nil {
			return nil, err
		}
		s, ok := byName[r.Scenario]
		if !ok {
			s = &ScenarioStats{Scenario: r.Scenario}
			byName[r.Scenario] = s
		}
		s.add(r)
	}
	out := make([]*ScenarioStats, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *ScenarioStats) int {
		return cmp.Compare(a.Scenario, b.Scenario)
	})
	return out, nil
}

// Total folds per-scenario statistics into one row named "(all)". Step
// histograms are merged by index.
func Total(stats []*ScenarioStats) *ScenarioStats {
	t := &ScenarioStats{Scenario: "(all)"}
	for _, s := range stats {
		t.Runs += s.Runs
		t.Succeeded += s.Succeeded
		t.Failed += s.Failed
		t.EnvironmentError += s.EnvironmentError
		if !s.LastRun.Before(t.LastRun) {
			t.LastRun = s.LastRun
			t.LastOutcome = s.LastOutcome
		}
		t.Duration.Merge(&s.Duration)
		for i := range s.Steps {
			for len(t.Steps) <= i {
				t.Steps = append(t.Steps, Histogram{})
			}
			t.Steps[i].Merge(&s.Steps[i])
		}
	}
	return t
}
