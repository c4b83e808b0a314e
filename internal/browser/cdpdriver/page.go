// internal/browser/cdpdriver/page.go
package cdpdriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/inspector"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

const readyPollInterval = 50 * time.Millisecond

// page is an attached page target.
type page struct {
	targetID       target.ID
	ctx            context.Context
	cancel         context.CancelFunc
	defaultTimeout time.Duration

	mu     sync.RWMutex
	url    string
	closed bool
}

func (p *page) ID() string { return string(p.targetID) }

func (p *page) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *page) IsClosed() bool {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	return closed || p.ctx.Err() != nil
}

func (p *page) setURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *page) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// observe handles the page-scoped events delivered by ListenTarget.
func (p *page) observe(ev interface{}) {
	switch ev := ev.(type) {
	case *cdppage.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.setURL(ev.Frame.URL + ev.Frame.URLFragment)
		}
	case *cdppage.EventNavigatedWithinDocument:
		p.setURL(ev.URL)
	case *inspector.EventDetached:
		p.markClosed()
	}
}

// run executes actions against the page target within timeout.
func (p *page) run(ctx context.Context, timeout time.Duration, what string, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	opCtx, cancel := opContext(p.ctx, ctx, timeout)
	defer cancel()
	return classify(ctx, opCtx, what, timeout, chromedp.Run(opCtx, actions...))
}

// Goto issues Page.navigate, which returns once the new document has been
// committed.
func (p *page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	err := p.run(ctx, timeout, "navigation to "+url, chromedp.ActionFunc(func(c context.Context) error {
		var res cdppage.NavigateReturns
		if err := cdp.Execute(c, cdppage.CommandNavigate, cdppage.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigation failed: %s", res.ErrorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}
	p.setURL(url)
	return nil
}

func (p *page) MainFrame() browser.Frame {
	return &frame{page: p, main: true, url: p.URL()}
}

func (p *page) Frames() []browser.Frame {
	frames := []browser.Frame{p.MainFrame()}

	var tree *cdppage.FrameTree
	err := p.run(context.Background(), p.defaultTimeout, "frame tree", chromedp.ActionFunc(func(c context.Context) error {
		var err error
		tree, err = cdppage.GetFrameTree().Do(c)
		return err
	}))
	if err != nil || tree == nil {
		return frames
	}

	var walk func(children []*cdppage.FrameTree)
	walk = func(children []*cdppage.FrameTree) {
		for _, child := range children {
			if child == nil || child.Frame == nil {
				continue
			}
			frames = append(frames, &frame{
				page: p,
				id:   child.Frame.ID,
				name: child.Frame.Name,
				url:  child.Frame.URL + child.Frame.URLFragment,
			})
			walk(child.ChildFrames)
		}
	}
	walk(tree.ChildFrames)
	return frames
}

func (p *page) Locator(selector string) browser.Locator {
	return &locator{page: p, selector: selector, query: toSearchQuery(selector)}
}

func (p *page) ScrollViewport(ctx context.Context) error {
	var y float64
	return p.run(ctx, p.defaultTimeout, "scroll viewport",
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight), window.scrollY`, &y))
}

func (p *page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, p.defaultTimeout, "screenshot", chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// -- Frames --

type frame struct {
	page *page
	id   cdp.FrameID
	main bool
	name string
	url  string
}

func (f *frame) Name() string { return f.name }

func (f *frame) URL() string {
	if f.main {
		return f.page.URL()
	}
	return f.url
}

// WaitForLoadState polls document.readyState. CDP has no per-frame
// lifecycle wait, so readiness is observed rather than awaited.
func (f *frame) WaitForLoadState(ctx context.Context, state browser.LoadState, timeout time.Duration) error {
	if state == browser.LoadStateCommit {
		return nil
	}
	if timeout <= 0 {
		timeout = f.page.defaultTimeout
	}
	opCtx, cancel := opContext(f.page.ctx, ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		rs, err := f.readyState(opCtx)
		if err == nil && readyStateReached(rs, state) {
			return nil
		}
		select {
		case <-opCtx.Done():
			return classify(ctx, opCtx, "frame readiness", timeout, opCtx.Err())
		case <-ticker.C:
		}
	}
}

func (f *frame) readyState(ctx context.Context) (string, error) {
	var rs string
	if f.main {
		err := chromedp.Run(ctx, chromedp.Evaluate(`document.readyState`, &rs))
		return rs, err
	}
	// Child frames are evaluated in an isolated world bound to the frame.
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		execID, err := cdppage.CreateIsolatedWorld(f.id).WithWorldName("uiprobe").Do(c)
		if err != nil {
			return err
		}
		obj, exc, err := runtime.Evaluate(`document.readyState`).
			WithContextID(execID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("readyState evaluation threw: %s", exc.Text)
		}
		rs = strings.Trim(string(obj.Value), `"`)
		return nil
	}))
	return rs, err
}

// readyStateReached maps document.readyState onto the requested load state.
func readyStateReached(readyState string, state browser.LoadState) bool {
	switch state {
	case browser.LoadStateLoad:
		return readyState == "complete"
	default:
		return readyState == "interactive" || readyState == "complete"
	}
}

// -- Locators --

type locator struct {
	page     *page
	selector string
	query    string
	nth      int
}

func (l *locator) Selector() string {
	if l.nth == 0 {
		return l.selector
	}
	return fmt.Sprintf("%s >> nth=%d", l.selector, l.nth)
}

func (l *locator) Nth(index int) browser.Locator {
	cp := *l
	cp.nth = index
	return &cp
}

// resolve waits until the nth match exists and returns its node.
func (l *locator) resolve(ctx context.Context) ([]cdp.NodeID, error) {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(l.query, &nodes, chromedp.BySearch, chromedp.AtLeast(l.nth+1)).Do(ctx); err != nil {
		return nil, err
	}
	if len(nodes) <= l.nth {
		return nil, fmt.Errorf("no match %d for %q", l.nth, l.selector)
	}
	return []cdp.NodeID{nodes[l.nth].NodeID}, nil
}

func (l *locator) Click(ctx context.Context, timeout time.Duration) error {
	return l.page.run(ctx, timeout, "click "+l.Selector(), chromedp.ActionFunc(func(c context.Context) error {
		ids, err := l.resolve(c)
		if err != nil {
			return err
		}
		return chromedp.Click(ids, chromedp.ByNodeID).Do(c)
	}))
}

func (l *locator) Fill(ctx context.Context, value string, timeout time.Duration) error {
	return l.page.run(ctx, timeout, "fill "+l.Selector(), chromedp.ActionFunc(func(c context.Context) error {
		ids, err := l.resolve(c)
		if err != nil {
			return err
		}
		if err := chromedp.SetValue(ids, "", chromedp.ByNodeID).Do(c); err != nil {
			return err
		}
		return chromedp.SendKeys(ids, value, chromedp.ByNodeID).Do(c)
	}))
}

func (l *locator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return l.page.run(ctx, timeout, "wait for "+l.Selector(), chromedp.ActionFunc(func(c context.Context) error {
		ids, err := l.resolve(c)
		if err != nil {
			return err
		}
		return chromedp.WaitVisible(ids, chromedp.ByNodeID).Do(c)
	}))
}

// IsVisible checks the current state without waiting. A node without a box
// model is not rendered.
func (l *locator) IsVisible(ctx context.Context) (bool, error) {
	visible := false
	err := l.page.run(ctx, l.page.defaultTimeout, "visibility of "+l.Selector(), chromedp.ActionFunc(func(c context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(l.query, &nodes, chromedp.BySearch, chromedp.AtLeast(0)).Do(c); err != nil {
			return err
		}
		if len(nodes) <= l.nth {
			return nil
		}
		if _, err := dom.GetBoxModel().WithNodeID(nodes[l.nth].NodeID).Do(c); err != nil {
			return nil
		}
		visible = true
		return nil
	}))
	return visible, err
}

var (
	_ browser.Page    = (*page)(nil)
	_ browser.Frame   = (*frame)(nil)
	_ browser.Locator = (*locator)(nil)
)
