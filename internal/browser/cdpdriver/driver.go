// internal/browser/cdpdriver/driver.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/internal/browser"
)

const (
	defaultLaunchTimeout = 60 * time.Second
	defaultOpTimeout     = 5 * time.Second
	disposeTimeout       = 5 * time.Second
)

// Driver drives Chromium directly over the DevTools protocol. It needs no
// Node.js runtime, only a Chrome or Chromium binary.
type Driver struct {
	logger *zap.Logger
}

// New creates a CDP driver.
func New(logger *zap.Logger) *Driver {
	return &Driver{logger: logger.Named("cdp")}
}

func (d *Driver) Name() string { return "cdp" }

// Start returns a host. The browser process itself is spawned by Launch,
// since its command line depends on the launch options.
func (d *Driver) Start(ctx context.Context) (browser.Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &host{logger: d.logger}, nil
}

// -- Host --

type host struct {
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
}

func (h *host) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if opts.Engine != "" && opts.Engine != "chromium" {
		return nil, fmt.Errorf("engine %q is not supported over CDP", opts.Engine)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}

	// The process must outlive the launch call, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(h.logger.Sugar().Debugf),
		chromedp.WithErrorf(h.logger.Sugar().Debugf),
	)

	// The first Run starts the process; its context becomes the browser's
	// lifetime, so the launch bound is enforced from outside.
	if err := detached(ctx, timeout, "browser launch", func() error { return chromedp.Run(browserCtx) }); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	h.mu.Lock()
	h.allocCancel = allocCancel
	h.mu.Unlock()

	h.logger.Info("Browser launched.", zap.Bool("headless", opts.Headless), zap.Strings("args", opts.Args))
	return &browserAdapter{ctx: browserCtx, cancel: browserCancel, logger: h.logger}, nil
}

// Stop terminates the browser process and waits for it to exit.
func (h *host) Stop() error {
	h.mu.Lock()
	cancel := h.allocCancel
	h.allocCancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// buildAllocatorOptions assembles the flags for the browser process.
func buildAllocatorOptions(opts browser.LaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	for _, arg := range opts.Args {
		name, value := parseFlag(arg)
		if name == "" {
			continue
		}
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	return allocOpts
}

// parseFlag splits "--name=value" into a chromedp flag. A bare "--name"
// becomes a boolean switch.
func parseFlag(arg string) (string, interface{}) {
	parts := strings.SplitN(arg, "=", 2)
	name := strings.TrimLeft(strings.TrimSpace(parts[0]), "-")
	if len(parts) == 2 {
		return name, parts[1]
	}
	return name, true
}

// detached runs fn, which cannot be given a bounded context, and gives up
// waiting after timeout or when ctx is done.
func detached(ctx context.Context, timeout time.Duration, what string, fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", what, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s exceeded %v: %w", what, timeout, browser.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -- Browser --

type browserAdapter struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// browserOp runs fn with the browser-level executor.
func (b *browserAdapter) browserOp(ctx context.Context, timeout time.Duration, what string, fn func(context.Context) error) error {
	opCtx, cancel := opContext(b.ctx, ctx, timeout)
	defer cancel()
	return classify(ctx, opCtx, what, timeout, fn(cdp.WithExecutor(opCtx, chromedp.FromContext(b.ctx).Browser)))
}

func (b *browserAdapter) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultOpTimeout
	}
	var id cdp.BrowserContextID
	err := b.browserOp(ctx, opts.DefaultTimeout, "create browser context", func(c context.Context) error {
		var err error
		id, err = target.CreateBrowserContext().Do(c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &contextAdapter{
		browser: b,
		id:      id,
		opts:    opts,
		logger:  b.logger.With(zap.String("browser_context_id", string(id))),
		pages:   make(map[target.ID]*page),
	}, nil
}

func (b *browserAdapter) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// -- Context --

type contextAdapter struct {
	browser *browserAdapter
	id      cdp.BrowserContextID
	opts    browser.ContextOptions
	logger  *zap.Logger

	mu       sync.Mutex
	pages    map[target.ID]*page
	order    []*page
	handlers []func(browser.Page)
	closed   bool
}

func (c *contextAdapter) NewPage(ctx context.Context) (browser.Page, error) {
	var tid target.ID
	err := c.browser.browserOp(ctx, c.opts.DefaultTimeout, "create target", func(op context.Context) error {
		var err error
		tid, err = target.CreateTarget("about:blank").WithBrowserContextID(c.id).Do(op)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.adopt(ctx, tid)
}

func (c *contextAdapter) OnPage(fn func(browser.Page)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// adopt attaches to an existing target, applies the viewport, starts
// listening for its events and announces it to the OnPage handlers.
func (c *contextAdapter) adopt(ctx context.Context, tid target.ID) (*page, error) {
	c.mu.Lock()
	if p, ok := c.pages[tid]; ok {
		c.mu.Unlock()
		return p, nil
	}
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("browser context is closed")
	}
	c.mu.Unlock()

	pageCtx, cancel := chromedp.NewContext(c.browser.ctx, chromedp.WithTargetID(tid))
	if err := detached(ctx, c.opts.DefaultTimeout, "attach to target", func() error { return chromedp.Run(pageCtx) }); err != nil {
		cancel()
		return nil, err
	}

	p := &page{
		targetID:       tid,
		ctx:            pageCtx,
		cancel:         cancel,
		defaultTimeout: c.opts.DefaultTimeout,
		url:            "about:blank",
	}
	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		err := p.run(ctx, c.opts.DefaultTimeout, "emulate viewport",
			chromedp.EmulateViewport(int64(c.opts.ViewportWidth), int64(c.opts.ViewportHeight)))
		if err != nil {
			cancel()
			return nil, err
		}
	}

	c.mu.Lock()
	if existing, ok := c.pages[tid]; ok {
		c.mu.Unlock()
		cancel()
		return existing, nil
	}
	c.pages[tid] = p
	c.order = append(c.order, p)
	handlers := append([]func(browser.Page){}, c.handlers...)
	c.mu.Unlock()

	c.listen(p)
	for _, fn := range handlers {
		fn(p)
	}
	c.logger.Debug("Attached to page target.", zap.String("target_id", string(tid)))
	return p, nil
}

// listen tracks navigation, closure and popups opened by p.
func (c *contextAdapter) listen(p *page) {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *target.EventTargetCreated:
			info := ev.TargetInfo
			if info != nil && info.Type == "page" && info.OpenerID == p.targetID {
				// Listeners must not block the event loop.
				go c.adoptPopup(info.TargetID)
			}
		case *target.EventTargetDestroyed:
			if ev.TargetID == p.targetID {
				p.markClosed()
			}
		default:
			p.observe(ev)
		}
	})
}

func (c *contextAdapter) adoptPopup(tid target.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DefaultTimeout)
	defer cancel()
	if _, err := c.adopt(ctx, tid); err != nil {
		c.logger.Debug("Could not attach to popup.", zap.String("target_id", string(tid)), zap.Error(err))
	}
}

func (c *contextAdapter) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := append([]*page{}, c.order...)
	c.mu.Unlock()

	var errs error
	for i := len(pages) - 1; i >= 0; i-- {
		pages[i].cancel()
	}
	err := c.browser.browserOp(context.Background(), disposeTimeout, "dispose browser context", func(op context.Context) error {
		return target.DisposeBrowserContext(c.id).Do(op)
	})
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

var (
	_ browser.Driver  = (*Driver)(nil)
	_ browser.Host    = (*host)(nil)
	_ browser.Browser = (*browserAdapter)(nil)
	_ browser.Context = (*contextAdapter)(nil)
)
