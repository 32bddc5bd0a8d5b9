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

package drivertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness/locator"
)

func TestTextsUseLocatorMatching(t *testing.T) {
	d := &Driver{
		Texts: map[string]driver.Box{
			"Base  Damage: 12": {X: 10, Y: 10, Width: 50, Height: 10},
			"Damage taken":     {X: 10, Y: 30, Width: 50, Height: 10},
			"1x":               {X: 0, Y: 0, Width: 20, Height: 20},
		},
	}
	s, err := d.Open(context.Background(), driver.Options{})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		loc     string
		visible bool
		box     driver.Box
	}{
		{"case-insensitive substring", "text:damage", true, driver.Box{X: 10, Y: 10, Width: 50, Height: 10}},
		{"second match", "text:damage nth:1", true, driver.Box{X: 10, Y: 30, Width: 50, Height: 10}},
		{"no third match", "text:damage nth:2", false, driver.Box{}},
		{"exact collapses spaces", `text:"Base Damage: 12" exact:true`, true, driver.Box{X: 10, Y: 10, Width: 50, Height: 10}},
		{"exact rejects substring", "text:Damage exact:true", false, driver.Box{}},
		{"absent", "text:Range", false, driver.Box{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := locator.Parse(tc.loc)
			require.NoError(t, err)
			visible, err := s.IsVisible(ctx, loc)
			require.NoError(t, err)
			assert.Equal(t, tc.visible, visible)
			if !tc.visible {
				return
			}
			box, err := s.BoundingBox(ctx, loc)
			require.NoError(t, err)
			assert.Equal(t, tc.box, box)
		})
	}

	// Other kinds still resolve through Elements, which is nil here.
	visible, err := s.IsVisible(ctx, locator.CSS("canvas"))
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestWaitVisibleHonorsDeadline(t *testing.T) {
	d := &Driver{Texts: map[string]driver.Box{}}
	s, err := d.Open(context.Background(), driver.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.WaitVisible(ctx, locator.Text("Damage"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
