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

// Package scenarios holds the built-in verification scenarios.
package scenarios

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/ttbt-io/uiverify/harness"
)

//go:embed *.yaml
var files embed.FS

// Names lists the built-ins in run order.
var Names = []string{"inspector", "speed_controls", "visuals", "build_menu", "baseline"}

var load = sync.OnceValues(func() ([]harness.Scenario, error) {
	out := make([]harness.Scenario, 0, len(Names))
	for _, name := range Names {
		data, err := files.ReadFile(name + ".yaml")
		if err != nil {
			return nil, err
		}
		list, err := harness.ParseScenarios(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s.yaml: %w", name, err)
		}
		if len(list) != 1 || list[0].Name != name {
			return nil, fmt.Errorf("%s.yaml: want exactly one scenario named %q", name, name)
		}
		out = append(out, list[0])
	}
	return out, nil
})

// Builtin returns copies of all built-in scenarios.
func Builtin() []harness.Scenario {
	list, err := load()
	if err != nil {
		panic(err)
	}
	out := make([]harness.Scenario, len(list))
	for i, s := range list {
		out[i] = clone(s)
	}
	return out
}

// Lookup returns the built-in scenario called name.
func Lookup(name string) (harness.Scenario, bool) {
	for _, s := range Builtin() {
		if s.Name == name {
			return s, true
		}
	}
	return harness.Scenario{}, false
}

func clone(s harness.Scenario) harness.Scenario {
	s.Steps = append([]harness.Step(nil), s.Steps...)
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.X != nil {
			x := *st.X
			st.X = &x
		}
		if st.Y != nil {
			y := *st.Y
			st.Y = &y
		}
	}
	return s
}
