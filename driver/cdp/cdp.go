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

// Package cdp drives Chrome through the DevTools Protocol using chromedp.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ttbt-io/uiverify/driver"
	"github.com/ttbt-io/uiverify/harness/locator"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720

	pollInterval = 200 * time.Millisecond
)

// Driver launches a local Chrome, or attaches to one over its remote
// debugging URL.
type Driver struct{}

// New returns a chromedp driver.
func New() *Driver {
	return &Driver{}
}

var _ driver.Driver = (*Driver)(nil)

// Open starts the browser and its first tab.
func (d *Driver) Open(ctx context.Context, opts driver.Options) (driver.Session, error) {
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}

	// The browser outlives the Open call, so it hangs off Background.
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(width, height),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)

	s := &session{
		ctx: tabCtx,
		release: func() {
			tabCancel()
			allocCancel()
		},
	}
	if opts.Observe != nil {
		s.listen(opts.Observe)
	}

	// The first Run allocates the browser and binds it to the context it is
	// given, so it runs on the tab context itself and ctx only bounds the
	// wait.
	errChan := make(chan error, 1)
	go func() {
		errChan <- chromedp.Run(tabCtx,
			network.Enable(),
			chromedp.EmulateViewport(int64(width), int64(height)),
		)
	}()
	select {
	case err := <-errChan:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("start browser: %w", ctx.Err())
	}
	return s, nil
}

type session struct {
	ctx     context.Context
	release func()

	mu     sync.Mutex
	closed bool

	requests sync.Map // network.RequestID -> URL
}

var _ driver.Session = (*session)(nil)

// run executes actions on the tab, bounded by the deadline and cancellation
// of ctx.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return driver.ErrSessionClosed
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	// runCtx shares ctx's deadline but its timer may fire first.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (s *session) listen(observe func(driver.Observation)) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, len(ev.Args))
			for i, arg := range ev.Args {
				args[i] = remoteObjectText(arg)
			}
			observe(driver.Observation{
				Origin: driver.OriginConsole,
				Level:  string(ev.Type),
				Text:   strings.Join(args, " "),
			})
		case *runtime.EventExceptionThrown:
			text := ev.ExceptionDetails.Text
			if ex := ev.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
				text = ex.Description
			}
			observe(driver.Observation{Origin: driver.OriginPageError, Text: text})
		case *network.EventRequestWillBeSent:
			s.requests.Store(ev.RequestID, ev.Request.URL)
		case *network.EventLoadingFinished:
			s.requests.Delete(ev.RequestID)
		case *network.EventLoadingFailed:
			url, _ := s.requests.LoadAndDelete(ev.RequestID)
			if ev.Canceled {
				return
			}
			observe(driver.Observation{
				Origin: driver.OriginRequestFailed,
				Text:   fmt.Sprintf("%v %s", url, ev.ErrorText),
			})
		}
	})
}

func remoteObjectText(o *runtime.RemoteObject) string {
	if o == nil {
		return ""
	}
	if len(o.Value) > 0 {
		var s string
		if err := json.Unmarshal([]byte(o.Value), &s); err == nil {
			return s
		}
		return string(o.Value)
	}
	return o.Description
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *session) find(ctx context.Context, loc locator.Locator, scroll bool) (findResult, error) {
	var res findResult
	err := s.run(ctx, chromedp.Evaluate(findExpression(loc, scroll), &res))
	return res, err
}

// waitFound polls until loc matches a visible element, the same way the
// e2e helpers poll for WaitAnyVisible.
func (s *session) waitFound(ctx context.Context, loc locator.Locator, scroll bool) (findResult, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		res, err := s.find(ctx, loc, scroll)
		if err == nil && res.Found {
			return res, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if err != nil {
				return res, fmt.Errorf("waiting for %s: %w: %w", loc, ctx.Err(), err)
			}
			return res, fmt.Errorf("waiting for %s (%d matches, none visible): %w", loc, res.Count, ctx.Err())
		}
	}
}

func (s *session) WaitVisible(ctx context.Context, loc locator.Locator) error {
	_, err := s.waitFound(ctx, loc, false)
	return err
}

func (s *session) IsVisible(ctx context.Context, loc locator.Locator) (bool, error) {
	res, err := s.find(ctx, loc, false)
	if err != nil {
		return false, err
	}
	return res.Found, nil
}

func (s *session) Click(ctx context.Context, loc locator.Locator) error {
	res, err := s.waitFound(ctx, loc, true)
	if err != nil {
		return err
	}
	x, y := box(res).Center()
	return s.MouseClick(ctx, x, y)
}

func (s *session) Hover(ctx context.Context, loc locator.Locator) error {
	res, err := s.waitFound(ctx, loc, true)
	if err != nil {
		return err
	}
	x, y := box(res).Center()
	return s.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (s *session) BoundingBox(ctx context.Context, loc locator.Locator) (driver.Box, error) {
	res, err := s.find(ctx, loc, false)
	if err != nil {
		return driver.Box{}, err
	}
	if !res.Found {
		return driver.Box{}, fmt.Errorf("%s: %w", loc, driver.ErrNotFound)
	}
	return box(res), nil
}

func (s *session) MouseClick(ctx context.Context, x, y float64) error {
	return s.run(ctx, chromedp.MouseClickXY(x, y))
}

func (s *session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := s.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	return nil
}

func box(r findResult) driver.Box {
	return driver.Box{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
