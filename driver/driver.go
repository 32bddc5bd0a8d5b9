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

// Package driver defines the port between the verification runner and a
// browser engine. Adapters live in the cdp (chromedp) and pw (playwright-go)
// subpackages.
package driver

import (
	"context"
	"errors"

	"github.com/ttbt-io/uiverify/harness/locator"
)

var (
	// ErrNotFound is returned when a locator matches no visible element.
	ErrNotFound = errors.New("element not found")
	// ErrSessionClosed is returned by any call after Close.
	ErrSessionClosed = errors.New("browser session closed")
)

// Driver acquires browser sessions.
type Driver interface {
	// Open launches or attaches to a browser and opens one page. Engine
	// unreachable and launch failures are reported here.
	Open(ctx context.Context, opts Options) (Session, error)
}

// Session is one browser connection plus one page, owned by a single run.
//
// Every blocking call honors the deadline of ctx. Implementations return an
// error wrapping context.DeadlineExceeded when it elapses.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until loc matches a visible element.
	WaitVisible(ctx context.Context, loc locator.Locator) error
	// IsVisible checks once, without waiting.
	IsVisible(ctx context.Context, loc locator.Locator) (bool, error)
	// Click waits for loc to be visible and clicks its center.
	Click(ctx context.Context, loc locator.Locator) error
	// Hover waits for loc to be visible and moves the pointer to its center.
	Hover(ctx context.Context, loc locator.Locator) error
	// BoundingBox returns the viewport box of the first visible match.
	BoundingBox(ctx context.Context, loc locator.Locator) (Box, error)
	// MouseClick clicks at viewport coordinates.
	MouseClick(ctx context.Context, x, y float64) error
	// Screenshot captures the rendered frame as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close() error
}

// Options configures a session.
type Options struct {
	Headless  bool
	RemoteURL string // attach to a running browser instead of launching one
	Width     int
	Height    int

	// Observe receives console lines, page errors and failed requests. It may
	// be called from engine goroutines.
	Observe func(Observation)
	// Logf receives engine diagnostics.
	Logf func(format string, args ...any)
}

// Box is an element's bounding box in viewport CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the box midpoint.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Origin tags where an observation came from.
type Origin string

const (
	OriginConsole       Origin = "CONSOLE"
	OriginPageError     Origin = "PAGE ERROR"
	OriginRequestFailed Origin = "REQUEST FAILED"
)

// Observation is one event forwarded from the page.
type Observation struct {
	Origin Origin `json:"origin"`
	Level  string `json:"level,omitempty"` // console level, e.g. "log", "error"
	Text   string `json:"text"`
}
