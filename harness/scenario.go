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
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered, non-branching list of steps. Scenarios are plain
// data and share nothing with each other.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Path is joined onto the target URL for the initial navigation.
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

var scenarioName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Validate rejects scenarios that cannot run. The error names the first
// offending step.
func (s Scenario) Validate() error {
	if !scenarioName.MatchString(s.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidScenario, s.Name)
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("%w: %s: step %d: %w", ErrInvalidScenario, s.Name, i, err)
		}
	}
	return nil
}

// URL resolves the scenario's start page against target.
func (s Scenario) URL(target string) (string, error) {
	return resolveURL(target, s.Path)
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad target url %q: %w", base, err)
	}
	if ref == "" {
		return b.String(), nil
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("bad url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// ParseScenarios decodes one or more YAML documents, each a scenario, and
// validates them.
func ParseScenarios(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []Scenario
	for {
		var s Scenario
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode scenario: %w", err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no scenarios found", ErrInvalidScenario)
	}
	return out, nil
}

// LoadScenarioFile reads scenarios from a YAML file.
func LoadScenarioFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	list, err := ParseScenarios(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// MarshalScenario renders s as YAML.
func MarshalScenario(s Scenario) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
