// internal/browser/pwdriver/page.go
package pwdriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

type page struct {
	id string
	p  playwright.Page
}

func (pg *page) ID() string     { return pg.id }
func (pg *page) URL() string    { return pg.p.URL() }
func (pg *page) IsClosed() bool { return pg.p.IsClosed() }

// Goto returns once the navigation commits.
func (pg *page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	ms, err := bound(ctx, timeout)
	if err != nil {
		return err
	}
	_, err = pg.p.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(ms),
	})
	return translate(err)
}

func (pg *page) MainFrame() browser.Frame {
	return &frame{f: pg.p.MainFrame()}
}

func (pg *page) Frames() []browser.Frame {
	main := pg.p.MainFrame()
	out := []browser.Frame{&frame{f: main}}
	for _, f := range pg.p.Frames() {
		if f == main || f.IsDetached() {
			continue
		}
		out = append(out, &frame{f: f})
	}
	return out
}

func (pg *page) Locator(selector string) browser.Locator {
	return &locator{selector: selector, l: pg.p.Locator(selector)}
}

// ScrollViewport wheels the page down by the current viewport height.
func (pg *page) ScrollViewport(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := pg.p.Evaluate("() => window.innerHeight")
	if err != nil {
		return fmt.Errorf("failed to read viewport height: %w", translate(err))
	}
	var height float64
	switch v := raw.(type) {
	case int:
		height = float64(v)
	case int64:
		height = float64(v)
	case float64:
		height = v
	default:
		return fmt.Errorf("unexpected viewport height %v (%T)", raw, raw)
	}
	return translate(pg.p.Mouse().Wheel(0, height))
}

func (pg *page) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	_, err := pg.p.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return translate(err)
}

// -- Frame --

type frame struct {
	f playwright.Frame
}

func (fr *frame) Name() string { return fr.f.Name() }
func (fr *frame) URL() string  { return fr.f.URL() }

func (fr *frame) WaitForLoadState(ctx context.Context, state browser.LoadState, timeout time.Duration) error {
	ms, err := bound(ctx, timeout)
	if err != nil {
		return err
	}
	return translate(fr.f.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: playwright.Float(ms),
	}))
}

func loadState(s browser.LoadState) *playwright.LoadState {
	switch s {
	case browser.LoadStateLoad:
		return playwright.LoadStateLoad
	default:
		return playwright.LoadStateDomcontentloaded
	}
}

// -- Locator --

type locator struct {
	selector string
	l        playwright.Locator
}

func (lc *locator) Selector() string { return lc.selector }

func (lc *locator) Nth(index int) browser.Locator {
	return &locator{selector: fmt.Sprintf("%s >> nth=%d", lc.selector, index), l: lc.l.Nth(index)}
}

func (lc *locator) Click(ctx context.Context, timeout time.Duration) error {
	ms, err := bound(ctx, timeout)
	if err != nil {
		return err
	}
	return translate(lc.l.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms)}))
}

func (lc *locator) Fill(ctx context.Context, value string, timeout time.Duration) error {
	ms, err := bound(ctx, timeout)
	if err != nil {
		return err
	}
	return translate(lc.l.Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(ms)}))
}

func (lc *locator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	ms, err := bound(ctx, timeout)
	if err != nil {
		return err
	}
	return translate(lc.l.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms),
	}))
}

func (lc *locator) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := lc.l.IsVisible()
	return visible, translate(err)
}

var (
	_ browser.Driver  = (*Driver)(nil)
	_ browser.Host    = (*host)(nil)
	_ browser.Browser = (*browserAdapter)(nil)
	_ browser.Context = (*contextAdapter)(nil)
	_ browser.Page    = (*page)(nil)
	_ browser.Frame   = (*frame)(nil)
	_ browser.Locator = (*locator)(nil)
)
