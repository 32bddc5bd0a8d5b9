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

// Package pw drives Chromium through playwright-go.
package pw

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness/locator"
)

const defaultTimeout = 30 * time.Second

// Driver starts a Playwright server per session.
type Driver struct {
	// Install downloads the browsers on first use.
	Install bool
}

// New returns a playwright driver.
func New() *Driver {
	return &Driver{}
}

var _ driver.Driver = (*Driver)(nil)

// Open launches Chromium, or connects over CDP when RemoteURL is set, and
// opens one page.
func (d *Driver) Open(ctx context.Context, opts driver.Options) (driver.Session, error) {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	if d.Install {
		if err := playwright.Install(); err != nil {
			return nil, fmt.Errorf("failed to install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browser playwright.Browser
	if opts.RemoteURL != "" {
		browser, err = pw.Chromium.ConnectOverCDP(opts.RemoteURL, playwright.BrowserTypeConnectOverCDPOptions{
			Timeout: timeoutMS(ctx),
		})
	} else {
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Timeout:  timeoutMS(ctx),
		})
	}
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to connect to chromium: %w", err)
	}

	pageOpts := playwright.BrowserNewPageOptions{}
	if opts.Width > 0 && opts.Height > 0 {
		pageOpts.Viewport = &playwright.Size{Width: opts.Width, Height: opts.Height}
	}
	page, err := browser.NewPage(pageOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	s := &session{pw: pw, browser: browser, page: page, logf: logf}
	if opts.Observe != nil {
		s.listen(opts.Observe)
	}
	return s, nil
}

type session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	logf    func(format string, args ...any)

	mu     sync.Mutex
	closed bool
}

var _ driver.Session = (*session)(nil)

func (s *session) listen(observe func(driver.Observation)) {
	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		observe(driver.Observation{Origin: driver.OriginConsole, Level: msg.Type(), Text: msg.Text()})
	})
	s.page.OnPageError(func(err error) {
		observe(driver.Observation{Origin: driver.OriginPageError, Text: err.Error()})
	})
	s.page.OnRequestFailed(func(req playwright.Request) {
		reason := ""
		if f := req.Failure(); f != nil {
			reason = f.Error()
		}
		observe(driver.Observation{
			Origin: driver.OriginRequestFailed,
			Text:   fmt.Sprintf("%s %s", req.URL(), reason),
		})
	})
}

func (s *session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return driver.ErrSessionClosed
	}
	return nil
}

// timeoutMS converts the deadline of ctx into a Playwright timeout.
func timeoutMS(ctx context.Context) *float64 {
	d := defaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		d = time.Until(dl)
	}
	ms := float64(d.Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// wrap maps Playwright timeouts onto context.DeadlineExceeded so callers can
// classify them like any other deadline.
func wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (s *session) locate(loc locator.Locator) playwright.Locator {
	var l playwright.Locator
	switch loc.Kind {
	case locator.KindText:
		l = s.page.GetByText(loc.Value, playwright.PageGetByTextOptions{Exact: playwright.Bool(loc.Exact)})
	case locator.KindRole:
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(loc.Exact)}
		if loc.Name != "" {
			opts.Name = loc.Name
		}
		l = s.page.GetByRole(playwright.AriaRole(loc.Value), opts)
	default:
		l = s.page.Locator(loc.Value)
	}
	return l.Nth(loc.Nth)
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", wrap(ctx, err))
	}
	return nil
}

func (s *session) WaitVisible(ctx context.Context, loc locator.Locator) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.locate(loc).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", loc, wrap(ctx, err))
	}
	return nil
}

func (s *session) IsVisible(ctx context.Context, loc locator.Locator) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	ok, err := s.locate(loc).IsVisible()
	return ok, wrap(ctx, err)
}

func (s *session) Click(ctx context.Context, loc locator.Locator) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.locate(loc).Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(true),
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("click failed: %w", wrap(ctx, err))
	}
	return nil
}

func (s *session) Hover(ctx context.Context, loc locator.Locator) error {
	if err := s.check(); err != nil {
		return err
	}
	err := s.locate(loc).Hover(playwright.LocatorHoverOptions{
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("hover failed: %w", wrap(ctx, err))
	}
	return nil
}

func (s *session) BoundingBox(ctx context.Context, loc locator.Locator) (driver.Box, error) {
	if err := s.check(); err != nil {
		return driver.Box{}, err
	}
	l := s.locate(loc)
	visible, err := l.IsVisible()
	if err != nil {
		return driver.Box{}, wrap(ctx, err)
	}
	if !visible {
		return driver.Box{}, fmt.Errorf("%s: %w", loc, driver.ErrNotFound)
	}
	rect, err := l.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: timeoutMS(ctx)})
	if err != nil {
		return driver.Box{}, wrap(ctx, err)
	}
	if rect == nil {
		return driver.Box{}, fmt.Errorf("%s: %w", loc, driver.ErrNotFound)
	}
	return driver.Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (s *session) MouseClick(ctx context.Context, x, y float64) error {
	if err := s.check(); err != nil {
		return err
	}
	return wrap(ctx, s.page.Mouse().Click(x, y))
}

func (s *session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Timeout:  timeoutMS(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", wrap(ctx, err))
	}
	return data, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	if len(errs) > 0 {
		s.logf("playwright close: %v", errors.Join(errs...))
	}
	return errors.Join(errs...)
}
