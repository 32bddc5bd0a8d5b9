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

package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ttbt-io/uiverify/driver/drivertest"
	"github.com/ttbt-io/uiverify/harness"
	"github.com/ttbt-io/uiverify/harness/locator"
)

func TestRunSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewProvider("uiverify", "test", exporter)
	require.NoError(t, err)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	d := &drivertest.Driver{Hidden: map[string]bool{"text:Damage": true}}
	r := harness.NewRunner(d, harness.Config{WaitTimeout: 20 * time.Millisecond, ScreenshotDir: t.TempDir()})
	r.Logf = t.Logf
	r.Run(context.Background(), harness.Scenario{
		Name: "inspector",
		Steps: []harness.Step{
			harness.WaitForSelector("canvas", 0),
			harness.AssertVisible(locator.Text("Damage"), 0),
		},
	}, "http://localhost:3000")

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	// Children end first.
	assert.Equal(t, "wait_for_selector", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "assert_visible", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "scenario inspector", spans[2].Name)
	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.Equal(t, spans[2].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestInitWritesFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	path := filepath.Join(t.TempDir(), "trace.json")
	shutdown, err := Init("uiverify", "test", path)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "hello")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name":"hello"`)
}
