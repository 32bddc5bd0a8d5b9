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

	"golang.org/x/sync/errgroup"
)

// RunAll runs each scenario with its own session, at most parallel at a
// time. Results are in the order of scenarios.
func RunAll(ctx context.Context, r *Runner, scenarios []Scenario, targetURL string, parallel int) []RunResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]RunResult, len(scenarios))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = r.Run(ctx, sc, targetURL)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AllSucceeded reports whether every result is Succeeded.
func AllSucceeded(results []RunResult) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}
