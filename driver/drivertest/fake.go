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

// Package drivertest provides an in-memory driver for runner tests.
package drivertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness/locator"
)

// Call records one session method invocation.
type Call struct {
	Method string
	Arg    string
}

// Driver is a scripted driver. The zero value opens sessions where every
// element is visible and every action succeeds.
type Driver struct {
	// OpenErr fails Open.
	OpenErr error
	// Elements maps locator strings to their boxes. When nil, any locator
	// resolves to DefaultBox.
	Elements map[string]driver.Box
	// Texts is the visible text of the page. When set, text locators are
	// resolved against it with the locator's matching rules instead of by
	// Elements key.
	Texts map[string]driver.Box
	// Hidden lists locators that never become visible.
	Hidden map[string]bool
	// Errors fails the named method ("Navigate", "Click", ...) with the
	// given error.
	Errors map[string]error
	// Hang makes the named methods block until ctx is done.
	Hang map[string]bool
	// Emit is replayed through Options.Observe after each Navigate.
	Emit []driver.Observation

	mu       sync.Mutex
	sessions []*Session
	opens    int
}

// DefaultBox is returned for locators without an explicit box.
var DefaultBox = driver.Box{X: 100, Y: 100, Width: 200, Height: 50}

var _ driver.Driver = (*Driver)(nil)

// Open returns a new fake session.
func (d *Driver) Open(ctx context.Context, opts driver.Options) (driver.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &Session{d: d, opts: opts}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Opens returns the number of Open calls.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Sessions returns every session opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake driver.Session.
type Session struct {
	d    *Driver
	opts driver.Options

	mu     sync.Mutex
	calls  []Call
	closes int
}

var _ driver.Session = (*Session)(nil)

// Calls returns the recorded invocations, Close excluded.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Options returns the options the session was opened with.
func (s *Session) Options() driver.Options {
	return s.opts
}

func (s *Session) enter(ctx context.Context, method, arg string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Arg: arg})
	closed := s.closes > 0
	s.mu.Unlock()
	if closed {
		return driver.ErrSessionClosed
	}
	if s.d.Hang[method] {
		<-ctx.Done()
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
	if err := s.d.Errors[method]; err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Session) box(loc locator.Locator) (driver.Box, bool) {
	key := loc.String()
	if s.d.Hidden[key] {
		return driver.Box{}, false
	}
	if loc.Kind == locator.KindText && s.d.Texts != nil {
		n := 0
		for _, text := range slices.Sorted(maps.Keys(s.d.Texts)) {
			if !loc.Matches(loc.Value, text) {
				continue
			}
			if n == loc.Nth {
				return s.d.Texts[text], true
			}
			n++
		}
		return driver.Box{}, false
	}
	if s.d.Elements == nil {
		return DefaultBox, true
	}
	b, ok := s.d.Elements[key]
	return b, ok
}

// waitBox blocks like a real engine until ctx expires when loc is absent.
func (s *Session) waitBox(ctx context.Context, loc locator.Locator) (driver.Box, error) {
	if b, ok := s.box(loc); ok {
		return b, nil
	}
	select {
	case <-ctx.Done():
		return driver.Box{}, fmt.Errorf("waiting for %s: %w", loc, ctx.Err())
	case <-time.After(time.Minute):
		return driver.Box{}, fmt.Errorf("waiting for %s: %w", loc, driver.ErrNotFound)
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.enter(ctx, "Navigate", url); err != nil {
		return err
	}
	if s.opts.Observe != nil {
		for _, o := range s.d.Emit {
			s.opts.Observe(o)
		}
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, loc locator.Locator) error {
	if err := s.enter(ctx, "WaitVisible", loc.String()); err != nil {
		return err
	}
	_, err := s.waitBox(ctx, loc)
	return err
}

func (s *Session) IsVisible(ctx context.Context, loc locator.Locator) (bool, error) {
	if err := s.enter(ctx, "IsVisible", loc.String()); err != nil {
		return false, err
	}
	_, ok := s.box(loc)
	return ok, nil
}

func (s *Session) Click(ctx context.Context, loc locator.Locator) error {
	if err := s.enter(ctx, "Click", loc.String()); err != nil {
		return err
	}
	_, err := s.waitBox(ctx, loc)
	return err
}

func (s *Session) Hover(ctx context.Context, loc locator.Locator) error {
	if err := s.enter(ctx, "Hover", loc.String()); err != nil {
		return err
	}
	_, err := s.waitBox(ctx, loc)
	return err
}

func (s *Session) BoundingBox(ctx context.Context, loc locator.Locator) (driver.Box, error) {
	if err := s.enter(ctx, "BoundingBox", loc.String()); err != nil {
		return driver.Box{}, err
	}
	b, ok := s.box(loc)
	if !ok {
		return driver.Box{}, fmt.Errorf("%s: %w", loc, driver.ErrNotFound)
	}
	return b, nil
}

func (s *Session) MouseClick(ctx context.Context, x, y float64) error {
	return s.enter(ctx, "MouseClick", fmt.Sprintf("%g,%g", x, y))
}

func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := s.enter(ctx, "Screenshot", fmt.Sprint(fullPage)); err != nil {
		return nil, err
	}
	return PNG(), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// PNG returns a small valid PNG image.
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 0, G: 255, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
